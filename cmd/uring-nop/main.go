package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/behrlich/go-uring"
	"github.com/behrlich/go-uring/internal/logging"
)

func main() {
	var (
		count   = flag.Int("n", 1000, "Number of no-op requests to push through the ring")
		entries = flag.Uint("entries", 64, "Requested submission queue depth")
		verbose = flag.Bool("v", false, "Verbose output")
		sim     = flag.Bool("sim", false, "Use the simulated kernel instead of io_uring syscalls")
	)
	flag.Parse()

	// Set up logging
	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	config := uring.Config{
		Entries: uint32(*entries),
		Logger:  logger,
	}
	if *sim {
		config.Gateway = uring.NewSimKernel()
	}

	ring, err := uring.New(config)
	if err != nil {
		logger.Error("failed to create ring", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := ring.Close(); err != nil {
			logger.Error("error closing ring", "error", err)
		}
	}()

	logger.Info("ring created",
		"fd", ring.FD(),
		"sq_entries", ring.SQEntries(),
		"cq_entries", ring.CQEntries())

	start := time.Now()
	submitted, completed := 0, 0
	tag := uint64(1)

	for completed < *count {
		// Fill as many slots as we can, then publish the whole batch with
		// one syscall.
		for submitted < *count {
			sqe := ring.GetSQE()
			if sqe == nil {
				break
			}
			sqe.PrepNop(tag)
			tag++
			submitted++
		}
		if _, err := ring.Submit(); err != nil {
			logger.Error("submit failed", "error", err)
			os.Exit(1)
		}

		for completed < submitted {
			cqe, err := ring.WaitCQE()
			if err != nil {
				logger.Error("wait failed", "error", err)
				os.Exit(1)
			}
			if cqe.Err() != nil {
				logger.Error("request failed", "tag", cqe.UserData, "error", cqe.Err())
				os.Exit(1)
			}
			completed++
		}
	}

	elapsed := time.Since(start)
	snap := ring.Metrics().Snapshot()

	fmt.Printf("Completed %d no-ops in %v (%.0f ops/sec)\n",
		completed, elapsed, float64(completed)/elapsed.Seconds())
	fmt.Printf("Metrics: %s\n", snap)
	if ring.Overflow() > 0 {
		fmt.Printf("Completion overflow: %d\n", ring.Overflow())
	}
}

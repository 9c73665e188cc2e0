package uring

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollEmptyReturnsNothing(t *testing.T) {
	r, _ := newSimRing(t, 4)

	_, ok := r.PollCQE()
	assert.False(t, ok)
}

func TestPollReturnsKernelWriteOrder(t *testing.T) {
	r, sim := newSimRing(t, 4)

	sim.Post(CQE{UserData: 7, Res: 10})
	sim.Post(CQE{UserData: 8, Res: 20})
	sim.Post(CQE{UserData: 9, Res: -int32(syscall.EIO)})

	for i, want := range []uint64{7, 8, 9} {
		cqe, ok := r.PollCQE()
		require.True(t, ok, "completion %d", i)
		assert.Equal(t, want, cqe.UserData)
	}
	_, ok := r.PollCQE()
	assert.False(t, ok, "ring drained")
}

func TestDrainCQEs(t *testing.T) {
	r, sim := newSimRing(t, 4)

	for tag := uint64(1); tag <= 5; tag++ {
		sim.Post(CQE{UserData: tag})
	}
	got := r.DrainCQEs(nil)
	require.Len(t, got, 5)
	for i, cqe := range got {
		assert.Equal(t, uint64(i+1), cqe.UserData)
	}
}

func TestCompletionCarriesResultAndFlags(t *testing.T) {
	r, sim := newSimRing(t, 4)

	sim.Post(CQE{UserData: 3, Res: 4096, Flags: 0xabcd})
	cqe, ok := r.PollCQE()
	require.True(t, ok)
	assert.Equal(t, uint64(3), cqe.UserData)
	assert.Equal(t, int32(4096), cqe.Res)
	// Reserved word, preserved verbatim even though currently unused.
	assert.Equal(t, uint32(0xabcd), cqe.Flags)
}

func TestWaitCQEBlocksUntilCompletion(t *testing.T) {
	r, sim := newSimRing(t, 4)
	sim.DeferCompletions(true)

	sqe := r.GetSQE()
	require.NotNil(t, sqe)
	sqe.PrepNop(42)
	sim.SetResult(42, 17)
	_, err := r.Submit()
	require.NoError(t, err)

	// Nothing ready yet; the blocking enter makes the simulated kernel
	// finish the in-flight work before returning.
	_, ok := r.PollCQE()
	require.False(t, ok)

	cqe, err := r.WaitCQE()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), cqe.UserData)
	assert.Equal(t, int32(17), cqe.Res)
	assert.Equal(t, uint64(1), r.Metrics().Waits.Load())
}

func TestWaitCQESurfacesEnterError(t *testing.T) {
	r, sim := newSimRing(t, 4)
	sim.DeferCompletions(true)

	// Nothing in flight: the blocked wait comes back interrupted.
	_, err := r.WaitCQE()
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeEnter))
	assert.True(t, IsErrno(err, syscall.EINTR))
}

func TestOverflowCountsDroppedExactly(t *testing.T) {
	// SQ capacity 4 gives CQ capacity 8. Completing 12 entries without
	// draining must store 8 and drop 4, counted once each.
	r, _ := newSimRing(t, 4)

	tag := uint64(1)
	for batch := 0; batch < 3; batch++ {
		for i := 0; i < 4; i++ {
			sqe := r.GetSQE()
			require.NotNil(t, sqe)
			sqe.PrepNop(tag)
			tag++
		}
		n, err := r.Submit()
		require.NoError(t, err)
		require.Equal(t, uint32(4), n)
	}

	assert.Equal(t, uint32(4), r.Overflow())

	got := r.DrainCQEs(nil)
	require.Len(t, got, 8)
	for i, cqe := range got {
		assert.Equal(t, uint64(i+1), cqe.UserData, "no duplicate or missing completion")
	}
	// Dropped completions stay dropped; only the counter reports them.
	assert.Equal(t, uint32(4), r.Overflow())
}

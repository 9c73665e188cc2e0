package uring

import (
	"syscall"
	"testing"

	"github.com/bytedance/gopkg/lang/fastrand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSQENilWhenFull(t *testing.T) {
	r, _ := newSimRing(t, 4)

	for i := 0; i < 4; i++ {
		sqe := r.GetSQE()
		require.NotNil(t, sqe, "slot %d", i)
		sqe.PrepNop(uint64(i + 1))
	}
	assert.Nil(t, r.GetSQE(), "5th acquire must fail until capacity frees up")
	assert.Equal(t, uint64(1), r.Metrics().SQFull.Load())
}

func TestSubmitPublishesInFillOrder(t *testing.T) {
	r, sim := newSimRing(t, 4)

	// Repeated small batches wrap the shared tail many times; consumption
	// order must stay exactly the fill order throughout.
	var want []uint64
	tag := uint64(1)
	for batch := 0; batch < 20; batch++ {
		for i := 0; i < 3; i++ {
			sqe := r.GetSQE()
			require.NotNil(t, sqe)
			sqe.PrepNop(tag)
			want = append(want, tag)
			tag++
		}
		n, err := r.Submit()
		require.NoError(t, err)
		assert.Equal(t, uint32(3), n)
	}
	assert.Equal(t, want, sim.ConsumedTags())
}

func TestSubmitNothingIsNoSyscall(t *testing.T) {
	r, sim := newSimRing(t, 4)

	n, err := r.Submit()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), n)
	assert.Empty(t, sim.EnterCalls())
}

func TestFilledSlotsInvisibleUntilSubmit(t *testing.T) {
	r, sim := newSimRing(t, 8)

	for i := 1; i <= 2; i++ {
		sqe := r.GetSQE()
		require.NotNil(t, sqe)
		sqe.PrepNop(uint64(i))
	}
	// Filled but unpublished: no tail advance covers these slots yet.
	assert.Empty(t, sim.PeekVisible())

	// Fail the entry call so the publish happens but nothing is consumed:
	// the tail advance alone must make the slots visible, in fill order.
	sim.FailEnter(syscall.EAGAIN)
	_, err := r.Submit()
	require.Error(t, err)
	assert.Equal(t, []uint64{1, 2}, sim.PeekVisible())
}

func TestEnterFailureSetsPendingAndRetriesByCount(t *testing.T) {
	r, sim := newSimRing(t, 8)

	for i := 1; i <= 3; i++ {
		sqe := r.GetSQE()
		require.NotNil(t, sqe)
		sqe.PrepNop(uint64(i))
	}
	sim.FailEnter(syscall.EBUSY)
	_, err := r.Submit()
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeEnter))
	assert.True(t, IsErrno(err, syscall.EBUSY))

	// Fill more work; it must not be touched while the backlog stands.
	for i := 4; i <= 5; i++ {
		sqe := r.GetSQE()
		require.NotNil(t, sqe)
		sqe.PrepNop(uint64(i))
	}

	// A renewed failure leaves pending sticky and publishes nothing new.
	sim.FailEnter(syscall.EBUSY)
	_, err = r.Submit()
	require.Error(t, err)
	assert.Equal(t, []uint64{1, 2, 3}, sim.PeekVisible())

	calls := sim.EnterCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, uint32(3), calls[0].ToSubmit)
	assert.Equal(t, uint32(3), calls[1].ToSubmit, "retry must re-request exactly the backlog count")

	// Once the retry succeeds the new work flows in a separate publish.
	n, err := r.Submit()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), n)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, sim.ConsumedTags())

	calls = sim.EnterCalls()
	require.Len(t, calls, 4)
	assert.Equal(t, uint32(3), calls[2].ToSubmit)
	assert.Equal(t, uint32(2), calls[3].ToSubmit)
	assert.Equal(t, uint64(2), r.Metrics().Retries.Load())
}

func TestRingMaskMatchesModulo(t *testing.T) {
	// index & (C-1) == index mod C for every power-of-two capacity,
	// across random raw indices and deliberate counter wraparound.
	for _, capacity := range []uint32{1 << 2, 1 << 5, 1 << 10, 1 << 15} {
		mask := capacity - 1
		for i := 0; i < 10000; i++ {
			raw := fastrand.Uint32()
			if raw&mask != raw%capacity {
				t.Fatalf("capacity %d: raw %d: mask %d != mod %d",
					capacity, raw, raw&mask, raw%capacity)
			}
		}
		// Walk the counter straight through the unsigned wrap.
		start := ^uint32(0) - 2*capacity
		prev := start & mask
		for raw := start + 1; raw != start; raw++ {
			got := raw & mask
			if got != raw%capacity {
				t.Fatalf("capacity %d: raw %d: mask %d != mod %d",
					capacity, raw, got, raw%capacity)
			}
			if got != (prev+1)&mask {
				t.Fatalf("capacity %d: raw %d: logical position skipped", capacity, raw)
			}
			prev = got
			if raw == start+4*capacity {
				break
			}
		}
	}
}

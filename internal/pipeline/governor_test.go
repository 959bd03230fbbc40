package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernor_ClampsCapacity(t *testing.T) {
	assert.Equal(t, 1, NewGovernor(0).Capacity())
	assert.Equal(t, 1, NewGovernor(-3).Capacity())
	assert.Equal(t, 4, NewGovernor(4).Capacity())
}

func TestGovernor_AcquireRelease(t *testing.T) {
	gov := NewGovernor(2)

	require.NoError(t, gov.Acquire(context.Background()))
	require.NoError(t, gov.Acquire(context.Background()))
	assert.Equal(t, 2, gov.InUse())

	gov.Release()
	assert.Equal(t, 1, gov.InUse())
	assert.Equal(t, 2, gov.HighWater())
}

func TestGovernor_AcquireBlocksAtCapacity(t *testing.T) {
	gov := NewGovernor(1)
	require.NoError(t, gov.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := gov.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, gov.InUse())
}

func TestGovernor_HighWaterUnderContention(t *testing.T) {
	const capacity = 3
	gov := NewGovernor(capacity)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, gov.Acquire(context.Background()))
			time.Sleep(time.Millisecond)
			gov.Release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, gov.InUse())
	assert.LessOrEqual(t, gov.HighWater(), capacity)
	assert.GreaterOrEqual(t, gov.HighWater(), 1)
}

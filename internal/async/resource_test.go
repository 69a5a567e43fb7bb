package async

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResource_LoadSuccessAndFailureKeepsData(t *testing.T) {
	calls := 0
	r := NewResource(func(context.Context) (string, error) {
		calls++
		if calls == 2 {
			return "", errors.New("boom")
		}
		return "v1", nil
	})
	assert.Equal(t, Idle, r.Snapshot().Status)

	st := r.Load(context.Background())
	assert.Equal(t, Ready, st.Status)
	assert.Equal(t, "v1", st.Data)

	st = r.Load(context.Background())
	assert.Equal(t, Failed, st.Status)
	assert.EqualError(t, st.Err, "boom")
	assert.True(t, st.HasData)
	assert.Equal(t, "v1", st.Data)
}

func TestResource_SupersededLoadIsDiscarded(t *testing.T) {
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})

	var mu sync.Mutex
	n := 0
	r := NewResource(func(context.Context) (int, error) {
		mu.Lock()
		n++
		call := n
		mu.Unlock()
		if call == 1 {
			close(slowStarted)
			<-releaseSlow
			return 1, nil
		}
		return 2, nil
	})

	done := make(chan State[int])
	go func() { done <- r.Load(context.Background()) }()
	<-slowStarted

	fresh := r.Load(context.Background())
	require.Equal(t, Ready, fresh.Status)
	require.Equal(t, 2, fresh.Data)

	close(releaseSlow)
	stale := <-done
	assert.Equal(t, 2, stale.Data)
	assert.Equal(t, 2, r.Snapshot().Data)
}

func TestResource_SetSupersedesInFlightLoad(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	r := NewResource(func(context.Context) (string, error) {
		close(started)
		<-release
		return "stale", nil
	})

	done := make(chan struct{})
	go func() {
		r.Load(context.Background())
		close(done)
	}()
	<-started
	r.Set("saved")
	close(release)
	<-done

	st := r.Snapshot()
	assert.Equal(t, Ready, st.Status)
	assert.Equal(t, "saved", st.Data)
}

func TestMutation_RejectsOverlap(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	m := NewMutation(func(_ context.Context, v int) (int, error) {
		close(started)
		<-release
		return v * 2, nil
	})

	res := make(chan int)
	go func() {
		v, _ := m.Run(context.Background(), 21)
		res <- v
	}()
	<-started
	assert.True(t, m.Pending())

	_, err := m.Run(context.Background(), 1)
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	assert.Equal(t, 42, <-res)
	assert.False(t, m.Pending())
	assert.NoError(t, m.Err())
}

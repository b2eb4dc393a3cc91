package bus

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeusync/reefrush/internal/core/env"
	"github.com/zeusync/reefrush/internal/core/observability/log"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type countingListener struct {
	before, after int
}

func (c *countingListener) BeforeStep() error { c.before++; return nil }
func (c *countingListener) AfterStep() error  { c.after++; return nil }

func TestBroadcastReachesEveryListenerInOrder(t *testing.T) {
	b := New(env.Nop())
	var order []string
	first := &ListenerFuncs{
		Before: func() error { order = append(order, "first.before"); return nil },
		After:  func() error { order = append(order, "first.after"); return nil },
	}
	second := &ListenerFuncs{
		Before: func() error { order = append(order, "second.before"); return nil },
		After:  func() error { order = append(order, "second.after"); return nil },
	}
	require.True(t, b.Register(first))
	require.True(t, b.Register(second))
	require.False(t, b.Register(first), "duplicate registration")

	require.NoError(t, b.BroadcastBeforeStep())
	require.NoError(t, b.BroadcastAfterStep())

	require.Equal(t, []string{"first.before", "second.before", "first.after", "second.after"}, order)
}

func TestAfterStepInvokesAfterHook(t *testing.T) {
	b := New(env.Nop())
	l := &countingListener{}
	b.Register(l)

	require.NoError(t, b.BroadcastAfterStep())
	require.Equal(t, 0, l.before)
	require.Equal(t, 1, l.after)
}

func TestFailingListenerIsIsolated(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	b := New(env.New(log.NewWithCore(core), nil))

	failing := &ListenerFuncs{Before: func() error { return errors.New("boom") }}
	panicking := &ListenerFuncs{Before: func() error { panic("kaboom") }}
	healthy := &countingListener{}
	b.Register(failing)
	b.Register(panicking)
	b.Register(healthy)

	const ticks = 100
	for i := 0; i < ticks; i++ {
		err := b.BroadcastBeforeStep()
		require.Error(t, err)
		require.NoError(t, b.BroadcastAfterStep())
	}

	require.Equal(t, ticks, healthy.before)
	require.Equal(t, ticks, healthy.after)
	require.Equal(t, uint64(2*ticks), b.Metrics().Failures)
	require.Equal(t, 2*ticks, logs.FilterMessage("Listener hook failed").Len())
}

func TestUnregisterDuringBroadcast(t *testing.T) {
	b := New(env.Nop())
	later := &countingListener{}
	var self *ListenerFuncs
	self = &ListenerFuncs{After: func() error {
		b.Unregister(self)
		b.Unregister(later)
		return nil
	}}
	b.Register(self)
	b.Register(later)

	require.NoError(t, b.BroadcastAfterStep())
	require.Equal(t, 0, later.after, "listener removed mid-broadcast is skipped")
	require.Equal(t, 0, b.Len())
	require.False(t, b.Unregister(self))
}

func TestRegisterDuringBroadcastIsSafe(t *testing.T) {
	b := New(env.Nop())
	added := &countingListener{}
	b.Register(&ListenerFuncs{Before: func() error {
		b.Register(added)
		return nil
	}})

	require.NoError(t, b.BroadcastBeforeStep())
	require.Equal(t, 0, added.before, "new listener joins from the next broadcast")
	require.NoError(t, b.BroadcastBeforeStep())
	require.Equal(t, 1, added.before)
}

func TestConcurrentRegistration(t *testing.T) {
	b := New(env.Nop())
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = b.BroadcastBeforeStep()
				_ = b.BroadcastAfterStep()
			}
		}
	}()

	for i := 0; i < 200; i++ {
		l := &ListenerFuncs{}
		b.Register(l)
		b.Unregister(l)
	}
	close(stop)
	wg.Wait()
	require.Equal(t, 0, b.Len())
}

// sliceListener is a value type that cannot be compared with ==.
type sliceListener struct {
	seen []int
}

func (sliceListener) BeforeStep() error { return nil }
func (sliceListener) AfterStep() error  { return nil }

func TestNonPointerListenersAreRejected(t *testing.T) {
	b := New(env.Nop())
	b.Register(&countingListener{})

	l := sliceListener{seen: []int{1}}
	require.False(t, b.Register(l))
	require.False(t, b.Contains(l))
	require.False(t, b.Unregister(l))
	require.False(t, b.Register(nil))
	require.Equal(t, 1, b.Len())
}

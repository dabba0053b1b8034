package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nianio/internal/engine"
	"github.com/roach88/nianio/internal/ir"
	"github.com/roach88/nianio/internal/schema"
	"github.com/roach88/nianio/internal/testutil"
)

// fakeClock collects armed timers so tests can fire them in any order.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (c *fakeClock) afterFunc(d time.Duration, fn func()) Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{delay: d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) fire(i int) {
	c.mu.Lock()
	t := c.timers[i]
	c.mu.Unlock()
	t.fn()
}

// lastSchema: the state is the last timeout payload received.
func lastSchema() schema.Registry {
	return schema.Registry{
		schema.StateType:   schema.Int(),
		schema.CommandType: schema.Variant(map[string]schema.Case{Name: schema.WithParam(CommandSchema(schema.Int()))}),
		schema.EffectType:  schema.Variant(map[string]schema.Case{Name: schema.WithParam(EffectSchema(schema.Int()))}),
	}
}

func keepLast(_, cmd ir.Value) (ir.Value, []ir.Value, error) {
	_, payload, err := ir.Untag(cmd)
	if err != nil {
		return nil, nil, err
	}
	_, arg, err := ir.Untag(payload)
	return arg, nil, err
}

func startEngine(t *testing.T, w *Worker) (*engine.Engine, *testutil.ManualHost) {
	t.Helper()
	host := testutil.NewManualHost()
	e, err := engine.Start(engine.Config{
		Schema:       lastSchema(),
		InitialState: ir.Int(-1),
		Transition:   keepLast,
		Workers:      map[string]engine.WorkerFactory{Name: w.Factory()},
		Host:         host,
	})
	require.NoError(t, err)
	return e, host
}

func start(n int64) ir.Value {
	return ir.Tag("Start", ir.Int(n))
}

func TestWorker_FiresTimeOut(t *testing.T) {
	clock := &fakeClock{}
	w := New(3*time.Second, WithAfterFunc(clock.afterFunc))
	e, host := startEngine(t, w)

	w.Handle(start(7))
	require.Len(t, clock.timers, 1)
	assert.Equal(t, 3*time.Second, clock.timers[0].delay)
	assert.Equal(t, 1, w.Pending())

	clock.fire(0)
	assert.Equal(t, 0, w.Pending())
	host.RunPending()

	assert.Equal(t, ir.Int(7), e.State())
	assert.Nil(t, host.Fatal())
}

func TestWorker_FiresInTimerOrder(t *testing.T) {
	clock := &fakeClock{}
	w := New(time.Second, WithAfterFunc(clock.afterFunc))
	e, host := startEngine(t, w)

	w.Handle(start(1))
	w.Handle(start(2))

	clock.fire(1)
	host.RunPending()
	assert.Equal(t, ir.Int(2), e.State())

	clock.fire(0)
	host.RunPending()
	assert.Equal(t, ir.Int(1), e.State())
}

func TestWorker_FireTwiceIsIgnored(t *testing.T) {
	clock := &fakeClock{}
	w := New(time.Second, WithAfterFunc(clock.afterFunc))
	e, host := startEngine(t, w)

	w.Handle(start(1))
	clock.fire(0)
	clock.fire(0)
	host.RunPending()

	assert.Equal(t, int64(1), e.Seq())
}

func TestWorker_Stop(t *testing.T) {
	clock := &fakeClock{}
	w := New(time.Second, WithAfterFunc(clock.afterFunc))
	e, host := startEngine(t, w)

	w.Handle(start(1))
	w.Stop()
	assert.True(t, clock.timers[0].stopped)
	assert.Equal(t, 0, w.Pending())

	clock.fire(0)
	w.Handle(start(2))
	host.RunPending()

	assert.Len(t, clock.timers, 1, "no timer is armed after Stop")
	assert.Equal(t, ir.Int(-1), e.State())
}

func TestWorker_UnknownCommandIsWorkerFault(t *testing.T) {
	clock := &fakeClock{}
	w := New(time.Second, WithAfterFunc(clock.afterFunc))

	assert.PanicsWithValue(t, `timer: unknown command "Stop"`, func() {
		w.Handle(ir.Tag("Stop", ir.Int(1)))
	})
	assert.Panics(t, func() { w.Handle(ir.Int(1)) })
}

func TestWorker_PayloadIsCopied(t *testing.T) {
	clock := &fakeClock{}
	w := New(time.Second, WithAfterFunc(clock.afterFunc))

	var pushed []ir.Value
	w.Factory()(func(v ir.Value) error {
		pushed = append(pushed, v)
		return nil
	})

	arg := ir.Object{"GameId": ir.String("g")}
	w.Handle(ir.Tag("Start", arg))
	arg["GameId"] = ir.String("changed")
	clock.fire(0)

	require.Len(t, pushed, 1)
	assert.Equal(t, ir.Tag("TimeOut", ir.Object{"GameId": ir.String("g")}), pushed[0])
}

func TestWorker_RealTimer(t *testing.T) {
	w := New(5 * time.Millisecond)
	got := make(chan ir.Value, 1)
	w.Factory()(func(v ir.Value) error {
		got <- v
		return nil
	})

	w.Handle(start(42))

	select {
	case v := <-got:
		assert.Equal(t, ir.Tag("TimeOut", ir.Int(42)), v)
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}

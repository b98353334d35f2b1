package bridge

import (
	"sync"

	"landform/internal/session"
)

// stateForwarder hands session states to publish on its own goroutine so a
// slow renderer never holds up the goroutine that changed the session.
// States that arrive while publish is busy collapse into the latest one.
type stateForwarder struct {
	publish func(session.State)

	mu      sync.Mutex
	pending *session.State
	wake    chan struct{}
	done    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once
}

func newStateForwarder(publish func(session.State)) *stateForwarder {
	f := &stateForwarder{
		publish: publish,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	f.stopped.Add(1)
	go f.run()
	return f
}

// Push records st as the next state to publish and returns immediately.
func (f *stateForwarder) Push(st session.State) {
	f.mu.Lock()
	f.pending = &st
	f.mu.Unlock()
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// Stop waits for an in-flight publish and drops anything still pending.
func (f *stateForwarder) Stop() {
	f.once.Do(func() { close(f.done) })
	f.stopped.Wait()
}

func (f *stateForwarder) run() {
	defer f.stopped.Done()
	for {
		select {
		case <-f.done:
			return
		case <-f.wake:
		}
		f.mu.Lock()
		st := f.pending
		f.pending = nil
		f.mu.Unlock()
		if st != nil {
			f.publish(*st)
		}
	}
}

package jobs

// Handle is an opaque completion token. The zero value is a completed
// handle with no error.
type Handle struct {
	run *run
}

// run is one scheduling of a handle. Work goroutines only touch their own
// run, so Release can drop it while work is still in flight.
type run struct {
	done chan struct{}
	err  error
}

// Schedule runs fn on a new goroutine once every dependency has completed.
// If a dependency failed, fn is skipped and the dependency's error is
// recorded instead. Nil dependencies are ignored.
func (h *Handle) Schedule(fn func() error, deps ...*Handle) *Handle {
	waits := make([]*run, 0, len(deps))
	for _, d := range deps {
		if d != nil && d.run != nil {
			waits = append(waits, d.run)
		}
	}

	r := &run{done: make(chan struct{})}
	h.run = r

	go func() {
		defer close(r.done)
		for _, w := range waits {
			<-w.done
			if w.err != nil {
				r.err = w.err
				return
			}
		}
		if fn != nil {
			r.err = fn()
		}
	}()
	return h
}

// Resolve marks the handle as already finished with err. Used by backends
// that execute synchronously.
func (h *Handle) Resolve(err error) *Handle {
	r := &run{done: make(chan struct{}), err: err}
	close(r.done)
	h.run = r
	return h
}

// Complete blocks until the scheduled work has finished and returns its
// error. Completing a released or never-scheduled handle returns nil
// immediately.
func (h *Handle) Complete() error {
	if h == nil || h.run == nil {
		return nil
	}
	<-h.run.done
	return h.run.err
}

// IsCompleted reports, without blocking, whether the work has finished.
func (h *Handle) IsCompleted() bool {
	if h == nil || h.run == nil {
		return true
	}
	select {
	case <-h.run.done:
		return true
	default:
		return false
	}
}

// Release detaches the handle from its work so it can be scheduled again.
func (h *Handle) Release() {
	h.run = nil
}

// Combine schedules on dst an empty job that completes when every dependency
// has completed.
func Combine(dst *Handle, deps ...*Handle) *Handle {
	return dst.Schedule(nil, deps...)
}

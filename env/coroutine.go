package env

// The coroutine fields on Env (resumeCh, pauseCh, killCh, started)
// stand in for trapframe save/restore: the environment runs on its
// own goroutine for its entire lifetime, and every syscall that never
// returns through its normal path (yield, ipc_recv) instead hands
// control back to the dispatching CPU over a channel and blocks until
// resumed. No continuation-passing machinery is needed.

// Start launches the environment's Program on a dedicated goroutine.
// The goroutine immediately blocks waiting to be dispatched; it is
// safe to call Start before the environment is ever made RUNNABLE.
// Calling Start more than once is a no-op.
func (e *Env) Start(k Kernel) {
	if e.started {
		return
	}
	e.started = true
	go func() {
		select {
		case <-e.resumeCh:
		case <-e.killCh:
			return
		}
		defer func() {
			e.exited = true
			select {
			case e.pauseCh <- struct{}{}:
			default:
			}
		}()
		if e.Program != nil {
			e.Program(k, e)
		}
	}()
}

// Dispatch wakes the environment's goroutine so it runs until its
// next park or exit. The channel send itself needs no lock (it is
// buffered), but callers dispatch only after setting Status = Running
// under the table's lock.
func (e *Env) Dispatch() {
	select {
	case e.resumeCh <- struct{}{}:
	default:
	}
}

// AwaitPause blocks until the dispatched environment either parks
// (yield, ipc_recv) or its Program returns (exits).
func (e *Env) AwaitPause() {
	<-e.pauseCh
}

// Exited reports whether the environment's Program has returned.
func (e *Env) Exited() bool { return e.exited }

// ParkSelf is called from within the environment's own goroutine by
// the yield and ipc_recv syscall handlers: it tells the dispatching
// CPU this environment has paused, then blocks until a future
// scheduler dispatch (or destruction) wakes it again. It returns true
// if the environment was destroyed while parked, in which case the
// caller must unwind without touching further per-environment state.
func (e *Env) ParkSelf() (killed bool) {
	e.pauseCh <- struct{}{}
	select {
	case <-e.resumeCh:
		return false
	case <-e.killCh:
		return true
	}
}

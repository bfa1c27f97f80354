package js

import (
	"sync"
)

// task is a unit of deferred work: either a scheduled Go closure (message
// delivery, event dispatch) or a wrapped JavaScript callback.
type task func()

// eventLoop manages the deferred-task queues for a runtime: microtasks
// (drained completely each turn) and tasks (one per turn). A wake channel
// lets an idle pumping goroutine block until new work arrives.
type eventLoop struct {
	microtasks []task
	tasks      []task
	wake       chan struct{}
	mu         sync.Mutex
}

// newEventLoop creates a new event loop.
func newEventLoop() *eventLoop {
	return &eventLoop{
		microtasks: make([]task, 0),
		tasks:      make([]task, 0),
		wake:       make(chan struct{}, 1),
	}
}

// queueMicrotask adds a microtask to the queue.
// Microtasks are executed before the next task.
func (el *eventLoop) queueMicrotask(fn task) {
	el.mu.Lock()
	el.microtasks = append(el.microtasks, fn)
	el.mu.Unlock()
	el.signalWake()
}

// queueTask adds a task to the queue. Safe to call from any goroutine.
func (el *eventLoop) queueTask(fn task) {
	el.mu.Lock()
	el.tasks = append(el.tasks, fn)
	el.mu.Unlock()
	el.signalWake()
}

// signalWake nudges the pumping goroutine without blocking.
func (el *eventLoop) signalWake() {
	select {
	case el.wake <- struct{}{}:
	default:
	}
}

// wakeChan returns the wake channel.
func (el *eventLoop) wakeChan() <-chan struct{} {
	return el.wake
}

// runOnce processes one turn of the event loop: it drains all microtasks,
// fires any due timers, then executes at most one task. Returns true if
// work was done or more tasks remain ready.
func (el *eventLoop) runOnce(r *Runtime) bool {
	ran := false

	// First, drain all microtasks
	for {
		el.mu.Lock()
		if len(el.microtasks) == 0 {
			el.mu.Unlock()
			break
		}
		t := el.microtasks[0]
		el.microtasks = el.microtasks[1:]
		el.mu.Unlock()

		t()
		ran = true
	}

	// Fire due timers
	if r.timers.process(r) {
		ran = true
	}

	// Then execute one task if available
	el.mu.Lock()
	if len(el.tasks) > 0 {
		t := el.tasks[0]
		el.tasks = el.tasks[1:]
		el.mu.Unlock()

		t()
		return true
	}
	el.mu.Unlock()

	return ran || el.hasPending()
}

// hasPending returns true if there are any queued microtasks or tasks.
func (el *eventLoop) hasPending() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.microtasks) > 0 || len(el.tasks) > 0
}

// clear removes all pending work.
func (el *eventLoop) clear() {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.microtasks = el.microtasks[:0]
	el.tasks = el.tasks[:0]
}

// Package js provides the isolated JavaScript execution context in which
// worker scripts run. It uses the goja JavaScript engine (pure Go ES5.1+
// implementation).
package js

import (
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// Runtime wraps a goja JavaScript runtime with worker-specific
// functionality: a console, timers, and a deferred-task queue that a
// single pumping goroutine drains.
type Runtime struct {
	vm        *goja.Runtime
	timers    *timerManager
	eventLoop *eventLoop
	mu        sync.Mutex
	errors    []error
	onError   func(error)
}

// NewRuntime creates a new JavaScript runtime.
func NewRuntime() *Runtime {
	vm := goja.New()

	r := &Runtime{
		vm:        vm,
		timers:    newTimerManager(),
		eventLoop: newEventLoop(),
		errors:    make([]error, 0),
	}

	r.setupConsole()
	r.setupTimers()
	r.setupMicrotasks()
	r.setupEncoding()

	return r
}

// VM returns the underlying goja runtime.
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

// SetOnError sets a callback for JavaScript errors, including errors thrown
// asynchronously from timer and microtask callbacks.
func (r *Runtime) SetOnError(handler func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = handler
}

// recordError appends an error and notifies the error callback.
func (r *Runtime) recordError(err error) {
	r.mu.Lock()
	r.errors = append(r.errors, err)
	handler := r.onError
	r.mu.Unlock()

	if handler != nil {
		handler(err)
	}
}

// Execute runs JavaScript code and returns the result.
func (r *Runtime) Execute(code string) (result goja.Value, err error) {
	// Recover from panics in the goja parser/runtime
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("script execution panic: %v", p)
			r.recordError(err)
		}
	}()

	result, err = r.vm.RunString(code)
	if err != nil {
		r.recordError(err)
	}
	return result, err
}

// ExecuteScript runs JavaScript source text under the given source name.
// Scripts are compiled in non-strict (sloppy) mode by default; scripts that
// need strict mode should include a "use strict" directive.
func (r *Runtime) ExecuteScript(code, src string) (err error) {
	// Recover from panics in the goja parser/compiler
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("script compilation panic in %s: %v", src, p)
			r.recordError(err)
		}
	}()

	program, err := goja.Compile(src, code, false)
	if err != nil {
		r.recordError(err)
		return err
	}

	_, err = r.vm.RunProgram(program)
	if err != nil {
		r.recordError(err)
	}
	return err
}

// executeNested runs source text without recording failures. Callers
// rethrow the error into the running script; the outer evaluation is the
// one that reports it, so a single failure is never counted twice.
func (r *Runtime) executeNested(code, src string) (err error) {
	// Recover from panics in the goja parser/compiler
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("script compilation panic in %s: %v", src, p)
		}
	}()

	program, err := goja.Compile(src, code, false)
	if err != nil {
		return err
	}

	_, err = r.vm.RunProgram(program)
	return err
}

// Errors returns all errors that occurred during execution.
func (r *Runtime) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error{}, r.errors...)
}

// ClearErrors clears the error list.
func (r *Runtime) ClearErrors() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = r.errors[:0]
}

// QueueTask schedules fn on a later turn of the task queue. It is safe to
// call from any goroutine; the pumping goroutine is woken if idle.
func (r *Runtime) QueueTask(fn func()) {
	r.eventLoop.queueTask(fn)
}

// RunEventLoop processes one turn of the task queue: all pending
// microtasks, any due timers, and at most one task. Returns true if work
// was done or more tasks remain ready to run.
func (r *Runtime) RunEventLoop() bool {
	return r.eventLoop.runOnce(r)
}

// HasPendingWork returns true if there are timers or callbacks waiting.
func (r *Runtime) HasPendingWork() bool {
	return r.timers.hasPending() || r.eventLoop.hasPending()
}

// NextTimerDue returns the duration until the next timer fires. The second
// return value is false when no timers are scheduled.
func (r *Runtime) NextTimerDue() (time.Duration, bool) {
	if !r.timers.hasPending() {
		return 0, false
	}
	return r.timers.nextDueTime(), true
}

// Wake returns the channel signalled whenever a task is queued, for the
// pumping goroutine to block on while idle.
func (r *Runtime) Wake() <-chan struct{} {
	return r.eventLoop.wakeChan()
}

// Interrupt aborts any running or future script execution. Used to stop a
// script that would otherwise never yield.
func (r *Runtime) Interrupt(v any) {
	r.vm.Interrupt(v)
}

// ClearPending drops all queued tasks and microtasks without running them.
func (r *Runtime) ClearPending() {
	r.eventLoop.clear()
}

// setupConsole creates the console object with log, warn, error, etc.
func (r *Runtime) setupConsole() {
	console := r.vm.NewObject()

	console.Set("log", func(call goja.FunctionCall) goja.Value {
		fmt.Println(formatArgs(call.Arguments))
		return goja.Undefined()
	})

	console.Set("warn", func(call goja.FunctionCall) goja.Value {
		fmt.Println("[WARN]", formatArgs(call.Arguments))
		return goja.Undefined()
	})

	console.Set("error", func(call goja.FunctionCall) goja.Value {
		fmt.Println("[ERROR]", formatArgs(call.Arguments))
		return goja.Undefined()
	})

	console.Set("info", func(call goja.FunctionCall) goja.Value {
		fmt.Println("[INFO]", formatArgs(call.Arguments))
		return goja.Undefined()
	})

	console.Set("debug", func(call goja.FunctionCall) goja.Value {
		fmt.Println("[DEBUG]", formatArgs(call.Arguments))
		return goja.Undefined()
	})

	console.Set("assert", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 || !call.Arguments[0].ToBoolean() {
			args := "Assertion failed"
			if len(call.Arguments) > 1 {
				args = formatArgs(call.Arguments[1:])
			}
			fmt.Println("[ASSERT]", args)
		}
		return goja.Undefined()
	})

	// console.time / console.timeEnd
	times := make(map[string]time.Time)
	console.Set("time", func(call goja.FunctionCall) goja.Value {
		label := "default"
		if len(call.Arguments) > 0 {
			label = call.Arguments[0].String()
		}
		times[label] = time.Now()
		return goja.Undefined()
	})

	console.Set("timeEnd", func(call goja.FunctionCall) goja.Value {
		label := "default"
		if len(call.Arguments) > 0 {
			label = call.Arguments[0].String()
		}
		if start, ok := times[label]; ok {
			fmt.Printf("%s: %v\n", label, time.Since(start))
			delete(times, label)
		}
		return goja.Undefined()
	})

	r.vm.Set("console", console)
}

// setupTimers creates setTimeout, setInterval, clearTimeout, clearInterval.
func (r *Runtime) setupTimers() {
	r.vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}

		callback, ok := goja.AssertFunction(call.Arguments[0])
		if !ok {
			return goja.Undefined()
		}

		delay := int64(0)
		if len(call.Arguments) > 1 {
			delay = call.Arguments[1].ToInteger()
		}
		if delay < 0 {
			delay = 0
		}

		var args []goja.Value
		if len(call.Arguments) > 2 {
			args = call.Arguments[2:]
		}

		id := r.timers.setTimeout(callback, time.Duration(delay)*time.Millisecond, args)
		r.eventLoop.signalWake()
		return r.vm.ToValue(id)
	})

	r.vm.Set("setInterval", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}

		callback, ok := goja.AssertFunction(call.Arguments[0])
		if !ok {
			return goja.Undefined()
		}

		delay := int64(0)
		if len(call.Arguments) > 1 {
			delay = call.Arguments[1].ToInteger()
		}
		// Browsers clamp intervals to 4ms
		if delay < 4 {
			delay = 4
		}

		var args []goja.Value
		if len(call.Arguments) > 2 {
			args = call.Arguments[2:]
		}

		id := r.timers.setInterval(callback, time.Duration(delay)*time.Millisecond, args)
		r.eventLoop.signalWake()
		return r.vm.ToValue(id)
	})

	r.vm.Set("clearTimeout", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		r.timers.clearTimer(int(call.Arguments[0].ToInteger()))
		return goja.Undefined()
	})

	r.vm.Set("clearInterval", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		r.timers.clearTimer(int(call.Arguments[0].ToInteger()))
		return goja.Undefined()
	})
}

// setupMicrotasks creates queueMicrotask.
func (r *Runtime) setupMicrotasks() {
	r.vm.Set("queueMicrotask", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		callback, ok := goja.AssertFunction(call.Arguments[0])
		if !ok {
			return goja.Undefined()
		}
		r.eventLoop.queueMicrotask(func() {
			if _, err := callback(goja.Undefined()); err != nil {
				r.recordError(err)
			}
		})
		return goja.Undefined()
	})
}

// setupEncoding creates atob and btoa.
func (r *Runtime) setupEncoding() {
	r.vm.Set("btoa", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(r.vm.NewTypeError("btoa requires 1 argument"))
		}
		return r.vm.ToValue(base64.StdEncoding.EncodeToString([]byte(call.Arguments[0].String())))
	})

	r.vm.Set("atob", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(r.vm.NewTypeError("atob requires 1 argument"))
		}
		decoded, err := base64.StdEncoding.DecodeString(call.Arguments[0].String())
		if err != nil {
			panic(r.vm.NewTypeError("atob: invalid base64 input"))
		}
		return r.vm.ToValue(string(decoded))
	})
}

// formatArgs formats function call arguments for console output.
func formatArgs(args []goja.Value) string {
	if len(args) == 0 {
		return ""
	}

	result := ""
	for i, arg := range args {
		if i > 0 {
			result += " "
		}
		result += formatValue(arg)
	}
	return result
}

// formatValue formats a single value for output.
func formatValue(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	return v.String()
}

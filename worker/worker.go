// Package worker implements a Worker-like script host: construct with a
// script URL, and the script runs in an isolated JavaScript context with
// messages and errors relayed asynchronously in both directions.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chrisuehlinger/vibeworker/js"
	"github.com/chrisuehlinger/vibeworker/network"
	"github.com/dop251/goja"
)

// State is the lifecycle state of a Worker.
type State int

const (
	// Loading means the script is being fetched or evaluated. PostMessage
	// calls are accepted and queued.
	Loading State = iota
	// Ready means the script evaluated successfully and messages are
	// relayed as they arrive.
	Ready
	// Terminated is the permanent shutdown state. No events are delivered
	// and no messages are relayed, in either direction.
	Terminated
)

// String returns a readable name for the state.
func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// ErrNoPayload is returned by PostMessage when called without a payload.
var ErrNoPayload = errors.New("postMessage requires a payload argument")

// Option configures a Worker.
type Option func(*Worker)

// WithLocalPath sets a local directory scripts are loaded from before
// trying HTTP.
func WithLocalPath(path string) Option {
	return func(w *Worker) {
		w.localPath = path
	}
}

// WithBaseURL sets the base URL for resolving the script URL and any
// importScripts/fetch URLs inside the context.
func WithBaseURL(baseURL string) Option {
	return func(w *Worker) {
		w.baseURL = baseURL
	}
}

// WithClient sets the HTTP client used to fetch scripts.
func WithClient(client *network.Client) Option {
	return func(w *Worker) {
		w.client = client
	}
}

// WithName sets the worker's name, visible as self.name in the script.
func WithName(name string) Option {
	return func(w *Worker) {
		w.name = name
	}
}

// Worker is the host-facing bridge to a script running in an isolated
// context. All script execution and event dispatch happens on a single pump
// goroutine owned by the Worker; host listeners are invoked on that
// goroutine. Instances are independent and safe for concurrent use by
// multiple host goroutines.
type Worker struct {
	url       string
	name      string
	localPath string
	baseURL   string

	rt     *js.Runtime
	scope  *js.Scope
	loader *network.Loader
	client *network.Client

	mu       sync.Mutex
	state    State
	failed   bool
	pending  []any
	messages registry
	errorReg registry

	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Worker for the script at the given URL and immediately
// begins fetching it. The call never blocks on the fetch; messages posted
// before the script is ready are queued and flushed in order once it is.
func New(scriptURL string, opts ...Option) *Worker {
	w := &Worker{
		url:   scriptURL,
		state: Loading,
		done:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.client == nil {
		// NewClient only fails when the cookie jar cannot be built, which
		// does not happen with the publicsuffix list.
		w.client, _ = network.NewClient()
	}

	var loaderOpts []network.LoaderOption
	if w.localPath != "" {
		loaderOpts = append(loaderOpts, network.WithLocalPath(w.localPath))
	}
	w.loader = network.NewLoader(w.client, loaderOpts...)
	if w.baseURL != "" {
		w.loader.SetBaseURL(w.baseURL)
	}

	w.rt = js.NewRuntime()
	w.rt.SetOnError(func(err error) {
		// Asynchronous script failures (timer callbacks, microtasks)
		// surface to the host as error events.
		w.scheduleError(err.Error())
	})

	go w.run()
	go w.load()

	return w
}

// State returns the worker's lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// PostMessage relays a payload to the worker-side context. Calling with a
// nil payload fails immediately with ErrNoPayload, as does a payload that
// cannot be value-copied; neither produces an error event. Messages posted
// before the script is ready are queued FIFO; messages posted after
// Terminate are silently discarded.
func (w *Worker) PostMessage(payload any) error {
	if payload == nil {
		return ErrNoPayload
	}

	copied, err := clonePayload(payload)
	if err != nil {
		return err
	}

	w.rt.QueueTask(func() {
		if w.isTerminated() {
			return
		}

		w.mu.Lock()
		if w.failed {
			w.mu.Unlock()
			return
		}
		if w.state != Ready {
			w.pending = append(w.pending, copied)
			w.mu.Unlock()
			return
		}
		w.mu.Unlock()

		w.deliver(copied)
	})

	return nil
}

// AddEventListener registers a listener for "message" or "error" events.
// The same function may be registered more than once; each registration is
// invoked distinctly.
func (w *Worker) AddEventListener(eventType string, fn Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch eventType {
	case EventTypeMessage:
		w.messages.add(fn)
	case EventTypeError:
		w.errorReg.add(fn)
	}
}

// RemoveEventListener unregisters the first matching registration of fn.
// Removing a listener that is not registered is a no-op.
func (w *Worker) RemoveEventListener(eventType string, fn Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch eventType {
	case EventTypeMessage:
		w.messages.remove(fn)
	case EventTypeError:
		w.errorReg.remove(fn)
	}
}

// SetOnMessage assigns the single-slot message handler. It fires in
// addition to listeners registered with AddEventListener. Passing nil
// clears the slot; the last assignment wins.
func (w *Worker) SetOnMessage(fn Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages.setSlot(fn)
}

// SetOnError assigns the single-slot error handler. Passing nil clears it.
func (w *Worker) SetOnError(fn Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errorReg.setSlot(fn)
}

// Terminate permanently shuts the worker down: the context is discarded,
// queued messages are dropped, and no further events are delivered in
// either direction, including events already scheduled but not yet
// delivered. Terminate is idempotent and safe to call from any goroutine,
// at any lifecycle state.
func (w *Worker) Terminate() {
	w.shutdown(true)
}

// shutdown moves the worker to Terminated. interrupt controls whether the
// VM is interrupted; worker-initiated close() lets the current turn finish
// instead.
func (w *Worker) shutdown(interrupt bool) {
	w.mu.Lock()
	if w.state == Terminated {
		w.mu.Unlock()
		return
	}
	w.state = Terminated
	w.pending = nil
	w.mu.Unlock()

	if interrupt {
		w.rt.Interrupt("worker terminated")
	}
	w.rt.ClearPending()

	w.stopOnce.Do(func() {
		close(w.done)
	})
}

// isTerminated reports whether the worker has been terminated. Checked at
// delivery time inside every scheduled task, so termination suppresses
// in-flight dispatches as well as future ones.
func (w *Worker) isTerminated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state == Terminated
}

// load fetches the script on its own goroutine and hands the result to the
// pump for evaluation.
func (w *Worker) load() {
	res := w.loader.LoadScript(context.Background(), w.url)
	w.rt.QueueTask(func() {
		w.finishLoad(res)
	})
}

// finishLoad runs on the pump goroutine: it builds the execution context,
// evaluates the fetched script, and flushes queued messages.
func (w *Worker) finishLoad(res *network.Resource) {
	if w.isTerminated() {
		return
	}

	if !res.IsSuccess() {
		w.markFailed()
		w.scheduleError(res.FailureReason())
		return
	}

	w.scope = js.NewScope(w.rt, js.ScopeConfig{
		URL:         res.URL,
		Name:        w.name,
		PostMessage: w.relayFromScript,
		Close: func() {
			w.shutdown(false)
		},
		LoadScript: w.loadImport,
	})
	if err := w.scope.Setup(); err != nil {
		w.markFailed()
		w.scheduleError(err.Error())
		return
	}

	fetchBase := w.baseURL
	if fetchBase == "" {
		fetchBase = res.URL
	}
	js.NewFetchManager(w.rt, w.client, fetchBase).Setup()

	if err := w.rt.ExecuteScript(res.AsString(), res.URL); err != nil {
		// A synchronous throw during evaluation surfaces as an error event
		// via the runtime error hook. The queued messages are not flushed.
		w.markFailed()
		return
	}

	w.mu.Lock()
	if w.state == Terminated {
		w.mu.Unlock()
		return
	}
	w.state = Ready
	queued := w.pending
	w.pending = nil
	w.mu.Unlock()

	// Deliver the queue before this task returns. Tasks enqueued by posts
	// that raced the transition run on later turns, so they cannot overtake
	// the queued payloads.
	for _, payload := range queued {
		if w.isTerminated() {
			return
		}
		w.deliver(payload)
	}
}

// markFailed makes the worker inert after a load or evaluation failure:
// queued messages are discarded and later posts are ignored, but the
// instance is not Terminated and Terminate remains safe.
func (w *Worker) markFailed() {
	w.mu.Lock()
	w.failed = true
	w.pending = nil
	w.mu.Unlock()
}

// deliver routes one payload into the context's message registry. Handler
// throws become host error events without stopping later messages.
func (w *Worker) deliver(payload any) {
	if w.scope == nil {
		return
	}

	value := w.rt.VM().ToValue(payload)
	for _, err := range w.scope.DeliverMessage(value) {
		w.scheduleError(err.Error())
	}
}

// relayFromScript is the context's outbound postMessage binding. The
// payload is copied out of the VM and dispatched to the host on a later
// turn, never synchronously within the script's call.
func (w *Worker) relayFromScript(v goja.Value) error {
	payload, err := exportPayload(v)
	if err != nil {
		return err
	}

	w.rt.QueueTask(func() {
		w.dispatch(Event{Type: EventTypeMessage, Data: payload})
	})
	return nil
}

// loadImport synchronously fetches a script for importScripts, resolving
// relative URLs against the worker script's URL.
func (w *Worker) loadImport(urlStr string) (string, string, error) {
	resolved := urlStr
	if !network.IsAbsoluteURL(urlStr) && !network.IsDataURL(urlStr) {
		base := w.baseURL
		if base == "" {
			base = w.url
		}
		if r, err := network.ResolveURL(base, urlStr); err == nil {
			resolved = r
		}
	}

	res := w.loader.LoadScript(context.Background(), resolved)
	if !res.IsSuccess() {
		return "", resolved, errors.New(res.FailureReason())
	}
	return res.AsString(), res.URL, nil
}

// scheduleError dispatches an error event to the host on a later turn.
func (w *Worker) scheduleError(message string) {
	w.rt.QueueTask(func() {
		w.dispatch(Event{Type: EventTypeError, Message: message})
	})
}

// dispatch invokes the host listeners for an event. Runs on the pump
// goroutine; the Terminated gate is checked here, at delivery time.
func (w *Worker) dispatch(ev Event) {
	if w.isTerminated() {
		return
	}

	w.mu.Lock()
	var fns []Listener
	switch ev.Type {
	case EventTypeMessage:
		fns = w.messages.snapshot()
	case EventTypeError:
		fns = w.errorReg.snapshot()
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// run is the pump goroutine: the single thread on which the VM, the
// context registries, and all event dispatch live.
func (w *Worker) run() {
	for {
		select {
		case <-w.done:
			return
		default:
		}

		if w.rt.RunEventLoop() {
			continue
		}

		// Idle: wait for new work, the next timer, or shutdown.
		var timerC <-chan time.Time
		var tm *time.Timer
		if d, ok := w.rt.NextTimerDue(); ok {
			tm = time.NewTimer(d)
			timerC = tm.C
		}

		select {
		case <-w.done:
		case <-w.rt.Wake():
		case <-timerC:
		}

		if tm != nil {
			tm.Stop()
		}
	}
}

package js

import (
	"errors"
	"fmt"
	"net/url"
	"runtime"

	"github.com/dop251/goja"
)

// ScopeConfig wires the worker global scope to its bridge. The callbacks
// are invoked on the goroutine that pumps the runtime's task queue.
type ScopeConfig struct {
	// URL is the resolved URL of the worker script, exposed as location.
	URL string
	// Name is the worker's name, exposed as self.name.
	Name string
	// PostMessage is the outbound relay, invoked when the script calls its
	// postMessage. A returned error is rethrown into the script.
	PostMessage func(data goja.Value) error
	// Close is invoked when the script calls close().
	Close func()
	// LoadScript fetches the source for importScripts. It returns the
	// source text and the resolved URL.
	LoadScript func(urlStr string) (source string, resolved string, err error)
}

// Scope is the isolated worker global scope: it seeds the runtime's global
// object with the worker-side API surface (self, postMessage, onmessage,
// addEventListener, location, navigator, close, importScripts) without ever
// exposing host state.
type Scope struct {
	rt     *Runtime
	target *EventTarget
	cfg    ScopeConfig
}

// NewScope creates a scope for the given runtime.
func NewScope(rt *Runtime, cfg ScopeConfig) *Scope {
	return &Scope{
		rt:     rt,
		target: NewEventTarget(),
		cfg:    cfg,
	}
}

// Target returns the scope's event target.
func (s *Scope) Target() *EventTarget {
	return s.target
}

// Setup installs the worker-side bindings on the global object. It must be
// called before the worker script is evaluated.
func (s *Scope) Setup() error {
	vm := s.rt.vm
	global := vm.GlobalObject()

	// self and globalThis both refer to the global object, so properties
	// assigned via self are visible as globals and vice versa.
	vm.Set("self", global)
	vm.Set("globalThis", global)
	vm.Set("name", s.cfg.Name)

	s.setupLocation()
	s.setupNavigator()

	vm.Set("postMessage", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			panic(vm.NewTypeError("Failed to execute 'postMessage': 1 argument required, but only 0 present"))
		}
		if s.cfg.PostMessage != nil {
			if err := s.cfg.PostMessage(call.Arguments[0]); err != nil {
				panic(vm.NewTypeError(err.Error()))
			}
		}
		return goja.Undefined()
	})

	vm.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return goja.Undefined()
		}

		eventType := call.Arguments[0].String()
		callback, ok := goja.AssertFunction(call.Arguments[1])
		if !ok {
			return goja.Undefined()
		}

		once := false
		if len(call.Arguments) > 2 {
			if optObj := call.Arguments[2].ToObject(vm); optObj != nil {
				if v := optObj.Get("once"); v != nil {
					once = v.ToBoolean()
				}
			}
		}

		s.target.AddEventListener(eventType, callback, call.Arguments[1], once)
		return goja.Undefined()
	})

	vm.Set("removeEventListener", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 2 {
			return goja.Undefined()
		}

		eventType := call.Arguments[0].String()
		if _, ok := goja.AssertFunction(call.Arguments[1]); !ok {
			return goja.Undefined()
		}

		s.target.RemoveEventListener(eventType, call.Arguments[1])
		return goja.Undefined()
	})

	if err := s.setupHandlerSlot(global, "onmessage", "message"); err != nil {
		return err
	}
	if err := s.setupHandlerSlot(global, "onerror", "error"); err != nil {
		return err
	}

	vm.Set("close", func(call goja.FunctionCall) goja.Value {
		if s.cfg.Close != nil {
			s.cfg.Close()
		}
		return goja.Undefined()
	})

	vm.Set("importScripts", func(call goja.FunctionCall) goja.Value {
		for _, arg := range call.Arguments {
			urlStr := arg.String()
			if s.cfg.LoadScript == nil {
				panic(vm.NewGoError(fmt.Errorf("importScripts is not available")))
			}
			source, resolved, err := s.cfg.LoadScript(urlStr)
			if err != nil {
				panic(vm.NewGoError(fmt.Errorf("importScripts: %w", err)))
			}
			if err := s.rt.executeNested(source, resolved); err != nil {
				// Rethrow the original thrown value so the importing script
				// can catch it; an uncaught throw is reported by the outer
				// evaluation alone.
				var ex *goja.Exception
				if errors.As(err, &ex) {
					panic(ex.Value())
				}
				panic(vm.NewGoError(err))
			}
		}
		return goja.Undefined()
	})

	return nil
}

// setupHandlerSlot defines an accessor property (onmessage/onerror) backed
// by the event target's slot handler for the given event type.
func (s *Scope) setupHandlerSlot(global *goja.Object, propName, eventType string) error {
	vm := s.rt.vm

	getter := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		if v := s.target.Handler(eventType); v != nil {
			return v
		}
		return goja.Null()
	})

	setter := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Undefined()
		}
		v := call.Arguments[0]
		if callback, ok := goja.AssertFunction(v); ok {
			s.target.SetHandler(eventType, v, callback)
		} else {
			// Assigning null, undefined, or a non-function clears the slot
			s.target.SetHandler(eventType, nil, nil)
		}
		return goja.Undefined()
	})

	return global.DefineAccessorProperty(propName, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

// DeliverMessage routes an inbound payload into the scope's message
// registry as a message event. Each throwing handler is reported; a throw
// does not prevent later handlers from seeing the event.
func (s *Scope) DeliverMessage(data goja.Value) []error {
	vm := s.rt.vm

	event := vm.NewObject()
	event.Set("type", "message")
	event.Set("data", data)

	return s.target.Dispatch(event)
}

// setupLocation exposes the script URL as a WorkerLocation-shaped object.
// All properties are snapshots; worker locations are immutable.
func (s *Scope) setupLocation() {
	vm := s.rt.vm

	location := vm.NewObject()
	href := s.cfg.URL
	location.Set("href", href)

	if u, err := url.Parse(href); err == nil {
		location.Set("protocol", u.Scheme+":")
		location.Set("host", u.Host)
		location.Set("hostname", u.Hostname())
		location.Set("port", u.Port())
		location.Set("pathname", u.Path)
		if u.RawQuery != "" {
			location.Set("search", "?"+u.RawQuery)
		} else {
			location.Set("search", "")
		}
		if u.Fragment != "" {
			location.Set("hash", "#"+u.Fragment)
		} else {
			location.Set("hash", "")
		}
		if u.IsAbs() && u.Host != "" {
			location.Set("origin", u.Scheme+"://"+u.Host)
		} else {
			location.Set("origin", "null")
		}
	}

	location.Set("toString", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(href)
	})

	vm.Set("location", location)
}

// setupNavigator exposes a WorkerNavigator-shaped stub.
func (s *Scope) setupNavigator() {
	vm := s.rt.vm

	navigator := vm.NewObject()
	navigator.Set("userAgent", "Vibeworker/1.0")
	navigator.Set("language", "en-US")
	navigator.Set("languages", []string{"en-US", "en"})
	navigator.Set("platform", "Vibeworker")
	navigator.Set("onLine", true)
	navigator.Set("hardwareConcurrency", runtime.NumCPU())

	vm.Set("navigator", navigator)
}

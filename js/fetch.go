package js

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/chrisuehlinger/vibeworker/network"
	"github.com/dop251/goja"
)

// FetchManager provides the worker-scope fetch API. Requests run on their
// own goroutine; the resulting promise is settled on the runtime's task
// queue so resolution is always asynchronous with respect to the caller.
type FetchManager struct {
	rt      *Runtime
	client  *network.Client
	baseURL *url.URL
}

// NewFetchManager creates a fetch manager backed by the given client.
// baseURL, when non-empty, is used to resolve relative request URLs.
func NewFetchManager(rt *Runtime, client *network.Client, baseURL string) *FetchManager {
	m := &FetchManager{
		rt:     rt,
		client: client,
	}

	if baseURL != "" {
		if u, err := url.Parse(baseURL); err == nil {
			m.baseURL = u
		}
	}

	return m
}

// Setup installs fetch on the global object.
func (m *FetchManager) Setup() {
	vm := m.rt.vm

	vm.Set("fetch", func(call goja.FunctionCall) goja.Value {
		promise, resolve, reject := vm.NewPromise()

		if len(call.Arguments) < 1 {
			reject(vm.NewTypeError("fetch requires at least 1 argument"))
			return vm.ToValue(promise)
		}

		requestURL := call.Arguments[0].String()
		method := "GET"
		headers := make(map[string]string)
		var body string

		// Parse options (second argument)
		if len(call.Arguments) > 1 && !goja.IsNull(call.Arguments[1]) && !goja.IsUndefined(call.Arguments[1]) {
			opts := call.Arguments[1].ToObject(vm)
			if opts != nil {
				if v := opts.Get("method"); v != nil && !goja.IsUndefined(v) {
					method = strings.ToUpper(v.String())
				}
				if v := opts.Get("headers"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
					if headersObj := v.ToObject(vm); headersObj != nil {
						for _, key := range headersObj.Keys() {
							val := headersObj.Get(key)
							if val != nil && !goja.IsUndefined(val) {
								headers[key] = val.String()
							}
						}
					}
				}
				if v := opts.Get("body"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
					body = v.String()
				}
			}
		}

		// Resolve relative URL
		if m.baseURL != nil {
			if resolved, err := m.baseURL.Parse(requestURL); err == nil {
				requestURL = resolved.String()
			}
		}

		req := &network.Request{
			Method:  method,
			URL:     requestURL,
			Headers: headers,
		}
		if body != "" {
			req.Body = strings.NewReader(body)
		}

		go func() {
			resp, err := m.client.Do(context.Background(), req)

			m.rt.QueueTask(func() {
				if err != nil {
					reject(vm.NewTypeError("fetch failed: " + err.Error()))
					return
				}
				resolve(m.newResponse(resp))
			})
		}()

		return vm.ToValue(promise)
	})
}

// newResponse builds a Response-shaped object for a completed request.
func (m *FetchManager) newResponse(resp *network.Response) *goja.Object {
	vm := m.rt.vm

	obj := vm.NewObject()
	obj.Set("status", resp.StatusCode)
	obj.Set("statusText", strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))))
	obj.Set("ok", resp.StatusCode >= 200 && resp.StatusCode < 300)
	if resp.URL != nil {
		obj.Set("url", resp.URL.String())
	} else {
		obj.Set("url", "")
	}

	headers := vm.NewObject()
	headers.Set("get", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return goja.Null()
		}
		value := resp.Headers.Get(call.Arguments[0].String())
		if value == "" {
			return goja.Null()
		}
		return vm.ToValue(value)
	})
	headers.Set("has", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) < 1 {
			return vm.ToValue(false)
		}
		return vm.ToValue(resp.Headers.Get(call.Arguments[0].String()) != "")
	})
	obj.Set("headers", headers)

	bodyText := string(resp.Body)

	obj.Set("text", func(call goja.FunctionCall) goja.Value {
		promise, resolve, _ := vm.NewPromise()
		resolve(bodyText)
		return vm.ToValue(promise)
	})

	obj.Set("json", func(call goja.FunctionCall) goja.Value {
		promise, resolve, reject := vm.NewPromise()

		parse, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("parse"))
		if !ok {
			reject(vm.NewTypeError("JSON.parse unavailable"))
			return vm.ToValue(promise)
		}

		parsed, err := parse(goja.Undefined(), vm.ToValue(bodyText))
		if err != nil {
			reject(vm.NewTypeError("invalid JSON in response body"))
			return vm.ToValue(promise)
		}
		resolve(parsed)
		return vm.ToValue(promise)
	})

	return obj
}

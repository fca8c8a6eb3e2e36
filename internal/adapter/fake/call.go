package fake

import "sync"

// Call is one recorded method invocation on a fake adapter.
type Call struct {
	Method string
	Args   []any
}

// CallRecorder collects the invocations a fake receives, in order.
// Embedded by the fakes in this package; tests assert through Calls and
// Count.
type CallRecorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *CallRecorder) record(method string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Method: method, Args: args})
}

// Calls returns the recorded invocations of method, oldest first. An
// empty method name returns everything.
func (r *CallRecorder) Calls(method string) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0, len(r.calls))
	for _, c := range r.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Count reports how many times method was invoked.
func (r *CallRecorder) Count(method string) int {
	return len(r.Calls(method))
}

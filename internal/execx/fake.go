package execx

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Fake is a scriptable Runner for tests. Responses are matched by the joined
// argv prefix; unmatched commands fail the run loudly.
type Fake struct {
	mu        sync.Mutex
	responses []fakeResponse
	Calls     []Cmd
}

type fakeResponse struct {
	prefix string
	result Result
	err    error
}

func NewFake() *Fake {
	return &Fake{}
}

// On registers a canned result for commands whose argv join starts with
// prefix. Later registrations win so tests can override defaults.
func (f *Fake) On(prefix string, result Result) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, fakeResponse{prefix: prefix, result: result})
	return f
}

// OnError registers a transport-level failure for matching commands.
func (f *Fake) OnError(prefix string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, fakeResponse{prefix: prefix, err: err})
	return f
}

func (f *Fake) Run(_ context.Context, cmd Cmd) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, cmd)

	joined := strings.Join(cmd.Argv, " ")
	for i := len(f.responses) - 1; i >= 0; i-- {
		r := f.responses[i]
		if strings.HasPrefix(joined, r.prefix) {
			return r.result, r.err
		}
	}
	return Result{}, fmt.Errorf("fake runner: unexpected command %q", joined)
}

// CommandLines returns every executed argv joined by spaces, in call order.
func (f *Fake) CommandLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, len(f.Calls))
	for i, c := range f.Calls {
		lines[i] = strings.Join(c.Argv, " ")
	}
	return lines
}

package testutil

import "sync"

// ExitRecorder stands in for os.Exit. It records codes instead of
// terminating, so code after the exit call keeps running in tests.
type ExitRecorder struct {
	mu    sync.Mutex
	codes []int
}

// Exit records code.
func (r *ExitRecorder) Exit(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codes = append(r.codes, code)
}

// Codes returns every recorded exit code in call order.
func (r *ExitRecorder) Codes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.codes...)
}

// Called reports whether Exit was called at least once.
func (r *ExitRecorder) Called() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.codes) > 0
}

package policy

import (
	"sync/atomic"

	"github.com/corisec/cori/internal/config"
)

// Handle holds the live EffectivePolicy behind an atomic pointer so a
// background reload can swap it in without a lock on the request path.
// In-flight requests that already loaded a reference keep using it even
// after a swap (spec.md §5: "in-flight requests continue to use their
// captured reference").
type Handle struct {
	current atomic.Pointer[EffectivePolicy]
}

// NewHandle compiles bundle and returns a Handle holding the result, or an
// error if compilation fails.
func NewHandle(bundle config.Bundle) (*Handle, error) {
	h := &Handle{}
	policy, err := Compile(bundle)
	if err != nil {
		return nil, err
	}
	h.current.Store(policy)
	return h, nil
}

// Load returns the currently active EffectivePolicy.
func (h *Handle) Load() *EffectivePolicy {
	return h.current.Load()
}

// Reload compiles bundle and, on success, atomically swaps it in as the
// active policy. On failure the previous policy remains in effect and the
// error is returned for the caller to log; this mirrors spec.md §5's
// reload contract exactly.
func (h *Handle) Reload(bundle config.Bundle) error {
	policy, err := Compile(bundle)
	if err != nil {
		return err
	}
	h.current.Store(policy)
	return nil
}

package upstream

import "fmt"

// KeyError is a per-key failure reported by the upstream inside an otherwise
// successful fetch. The loader caches these rejections; call-level failures
// are plain errors and are not cached.
type KeyError struct {
	Key     string
	Message string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("upstream: key %q: %s", e.Key, e.Message)
}

package gatt

import "sync"

// registration starts an advertisement at most once. A failed start leaves
// it unregistered so the next call retries.
type registration struct {
	start func() error

	mu   sync.Mutex
	done bool
}

func (r *registration) ensure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return nil
	}
	if err := r.start(); err != nil {
		return err
	}
	r.done = true
	return nil
}

func (r *registration) registered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

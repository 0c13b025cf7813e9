// Package nonce issues and tracks the single-use anti-replay tokens attached
// to requests that expect a signed push in response.
package nonce

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
)

// Registry holds the set of issued, not-yet-consumed nonces. A nonce is valid
// for verification at most once: Remove both consumes on a verified push and
// returns a nonce whose request failed before completion.
type Registry struct {
	mu     sync.Mutex
	issued map[int64]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		issued: make(map[int64]struct{}),
	}
}

// Issue draws a fresh nonce from a cryptographically strong source and
// registers it.
func (r *Registry) Issue() int64 {
	n := generate()

	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		if _, ok := r.issued[n]; !ok {
			break
		}
		n = generate()
	}

	r.issued[n] = struct{}{}
	return n
}

// Contains reports whether the nonce was issued and not yet consumed.
func (r *Registry) Contains(n int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.issued[n]
	return ok
}

// Remove takes the nonce out of the registry, reporting whether it was known.
func (r *Registry) Remove(n int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.issued[n]
	delete(r.issued, n)
	return ok
}

func generate() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms; treat it as such.
		panic(err)
	}

	// Keep the value positive so it survives transports that treat it as a
	// signed integer.
	return int64(binary.BigEndian.Uint64(buf[:]) >> 1)
}

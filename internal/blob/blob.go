// Package blob implements the owned/borrowed byte buffer used for
// routing-ids and subscription trie keys, following
// ZMTP's blob.hpp. Ordering is lexicographic, matching the
// byte-for-byte comparison libzmq-family code relies on for routing tables.
package blob

import "bytes"

// Blob is either owned (its bytes are private and may be mutated freely) or
// a borrowed view over someone else's slice (must be copied before storing
// beyond the borrower's lifetime).
type Blob struct {
	data     []byte
	borrowed bool
}

// Owned wraps data as an owned blob without copying; callers must not
// mutate data afterwards unless they also own it exclusively.
func Owned(data []byte) Blob {
	return Blob{data: data}
}

// Borrow creates a blob that refers to someone else's slice. Copy must be
// called before storing a Borrow()-ed blob past the lifetime of its source.
func Borrow(data []byte) Blob {
	return Blob{data: data, borrowed: true}
}

// Copy returns an owned, independent deep copy.
func (b Blob) Copy() Blob {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return Blob{data: out}
}

// Move transfers ownership, leaving the source empty. Since Go has no
// aliasing hazards from a value assignment for slices themselves, Move is
// expressed as returning the data and clearing the source in place.
func (b *Blob) Move() Blob {
	out := Blob{data: b.data, borrowed: b.borrowed}
	b.data = nil
	b.borrowed = false
	return out
}

// Bytes returns the underlying byte slice. Callers must not retain it past
// the blob's lifetime if the blob is borrowed.
func (b Blob) Bytes() []byte { return b.data }

// Len returns the number of bytes.
func (b Blob) Len() int { return len(b.data) }

// Empty reports whether the blob carries no bytes.
func (b Blob) Empty() bool { return len(b.data) == 0 }

// Equal reports byte-for-byte equality.
func (b Blob) Equal(o Blob) bool { return bytes.Equal(b.data, o.data) }

// Compare returns lexicographic ordering: <0, 0, >0.
func (b Blob) Compare(o Blob) int { return bytes.Compare(b.data, o.data) }

// String renders the blob for diagnostics only (routing-ids are opaque
// bytes, not necessarily valid UTF-8).
func (b Blob) String() string { return string(b.data) }

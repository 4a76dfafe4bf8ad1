// Package trie implements the byte-keyed subscription trie that powers
// PUB/SUB and XPUB/XSUB topic filtering, per ZMTP.
//
// No repo in the the wider ecosystem implements a prefix trie of this shape (the
// pack's messaging-adjacent examples deal in byte queues and frames, not
// keyed filters), so this module's structure is derived directly from
// ZMTP's description and ZMTP's src/pubsub naming rather than
// adapted from an existing implementation; see DESIGN.md.
package trie

// node is a single trie level. A sparse map keeps memory proportional to
// the number of distinct branches actually subscribed, matching ZMTP's
// "sparse; dense children table is valid" remark — we choose sparse.
type node struct {
	refcount int
	children map[byte]*node
}

func newNode() *node { return &node{} }

func (n *node) child(b byte, create bool) *node {
	if n.children == nil {
		if !create {
			return nil
		}
		n.children = make(map[byte]*node)
	}
	c, ok := n.children[b]
	if !ok {
		if !create {
			return nil
		}
		c = newNode()
		n.children[b] = c
	}
	return c
}

// Trie is the root of a subscription prefix tree. The zero value is ready
// to use.
type Trie struct {
	root node
}

// New returns an empty trie.
func New() *Trie { return &Trie{} }

// Add inserts key, incrementing its terminal node's subscriber count.
// Returns true if this is the first subscriber for key (callers use this to
// decide whether to announce the subscription upstream, e.g. XSUB).
func Add(t *Trie, key []byte) bool {
	n := &t.root
	for _, b := range key {
		n = n.child(b, true)
	}
	n.refcount++
	return n.refcount == 1
}

// Remove decrements key's subscriber count, returning true if it was the
// last subscriber (count reached zero). Removing a key that was never
// added is a no-op returning false.
func Remove(t *Trie, key []byte) bool {
	n := &t.root
	path := make([]*node, 0, len(key)+1)
	path = append(path, n)
	for _, b := range key {
		next := n.child(b, false)
		if next == nil {
			return false
		}
		path = append(path, next)
		n = next
	}
	if n.refcount == 0 {
		return false
	}
	n.refcount--
	last := n.refcount == 0
	return last
}

// Check reports whether msg's byte prefix matches some key currently
// inserted with non-zero count: it walks the trie consuming bytes from msg
// while any terminal on the path is non-zero, returning true on the first
// such terminal.
func Check(t *Trie, data []byte) bool {
	n := &t.root
	if n.refcount > 0 {
		return true
	}
	for _, b := range data {
		next := n.child(b, false)
		if next == nil {
			return false
		}
		n = next
		if n.refcount > 0 {
			return true
		}
	}
	return false
}

// Apply enumerates every key currently subscribed (refcount > 0) and calls
// fn with it. Keys are reconstructed from the path walked to reach each
// terminal node.
func Apply(t *Trie, fn func(key []byte)) {
	applyNode(&t.root, nil, fn)
}

func applyNode(n *node, prefix []byte, fn func(key []byte)) {
	if n.refcount > 0 {
		out := make([]byte, len(prefix))
		copy(out, prefix)
		fn(out)
	}
	for b, c := range n.children {
		applyNode(c, append(prefix, b), fn)
	}
}

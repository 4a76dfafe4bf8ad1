// Package message implements Msg, the zero-copy tagged-union message type
// that flows through pipes, sessions, and sockets, following ZMTP
// and ZMTP's src/msg content-variant design.
package message

import "fmt"

// VSMMax is the largest payload that fits inline without a heap allocation.
const VSMMax = 30

// Type discriminates the message variant.
type Type uint8

const (
	TypeVSM Type = iota
	TypeLmsg
	TypeCmsg
	TypeJoin
	TypeLeave
	TypeDelimiter
	TypePing
	TypePong
	TypeClose
	TypeSubscribe
	TypeCancel
	TypeRoutingID
)

// Dealloc is the user-supplied release callback for a zero-copy cmsg. It is
// invoked exactly once, on whichever goroutine performs the final Close,
// and must be safe to call from any goroutine (ZMTP).
type Dealloc func(data []byte, hint any)

// Msg is the tagged union described in ZMTP Every successful Init*
// call must be paired with exactly one Close.
type Msg struct {
	typ   Type
	flags Flags

	vsm    [VSMMax]byte
	vsmLen int

	content *contentBlock

	cdata   []byte
	dealloc Dealloc
	hint    any

	routingID uint32
	closed    bool
}

// Init constructs an empty message.
func Init() Msg { return Msg{typ: TypeVSM} }

// InitSize constructs a message of n bytes, inline if it fits in VSMMax,
// otherwise as a refcounted lmsg content block.
func InitSize(n int) Msg {
	if n <= VSMMax {
		return Msg{typ: TypeVSM, vsmLen: n}
	}
	return Msg{typ: TypeLmsg, content: globalContentPools.acquire(n)}
}

// InitBuffer constructs a message of len(src) bytes and copies src in.
func InitBuffer(src []byte) Msg {
	m := InitSize(len(src))
	copy(m.dataMut(), src)
	return m
}

// InitData constructs a zero-copy message borrowing ptr; dealloc is called
// exactly once when the last reference is closed. hint is passed through to
// dealloc unchanged.
func InitData(ptr []byte, dealloc Dealloc, hint any) Msg {
	return Msg{typ: TypeCmsg, cdata: ptr, dealloc: dealloc, hint: hint}
}

func control(t Type) Msg { return Msg{typ: t} }

func InitJoin() Msg      { return control(TypeJoin) }
func InitLeave() Msg     { return control(TypeLeave) }
func InitDelimiter() Msg { return control(TypeDelimiter) }
func InitPing() Msg      { return control(TypePing).withCommand() }
func InitPong() Msg      { return control(TypePong).withCommand() }
func InitCloseCmd() Msg  { return control(TypeClose).withCommand() }

// InitSubscribe builds an XSUB/SUB subscribe control frame carrying key.
func InitSubscribe(key []byte) Msg {
	m := InitBuffer(key)
	m.typ = TypeSubscribe
	return m
}

// InitCancel builds an XSUB/SUB unsubscribe control frame carrying key.
func InitCancel(key []byte) Msg {
	m := InitBuffer(key)
	m.typ = TypeCancel
	return m
}

// InitCredential builds an internal authentication-credential frame; pipes
// silently drop these on read (ZMTP) rather than delivering them to
// the session/socket layer.
func InitCredential(data []byte) Msg {
	m := Msg{typ: TypeCmsg, cdata: data}
	m.flags |= FlagCredential
	return m
}

// InitRoutingID builds a routing-id identity frame.
func InitRoutingID(id []byte) Msg {
	m := InitBuffer(id)
	m.typ = TypeRoutingID
	m.flags |= FlagRoutingID
	return m
}

func (m Msg) withCommand() Msg { m.flags |= FlagCommand; return m }

// Close releases the message's resources. For lmsg it atomically
// decrements the refcount and frees the block on last release; for cmsg it
// invokes the user deallocator on last release.
func (m *Msg) Close() {
	if m.closed {
		return
	}
	m.closed = true
	switch m.typ {
	case TypeLmsg:
		if m.content != nil && m.content.refcount.add(-1) == 0 {
			globalContentPools.release(m.content)
		}
		m.content = nil
	case TypeCmsg:
		if m.dealloc != nil {
			m.dealloc(m.cdata, m.hint)
		}
	}
}

// Copy produces a second live reference. For lmsg this bumps the refcount
// and marks both the source and the copy SHARED. For vsm and control
// variants it is a plain value copy. For cmsg this is a bit-copy (no
// refcount): callers must not Close both the original and the copy of a
// zero-copy cmsg unless the deallocator is itself idempotent — a move is
// not valid while any other reference exists for the same cmsg.
func (m *Msg) Copy() Msg {
	switch m.typ {
	case TypeLmsg:
		m.content.refcount.add(1)
		m.flags |= FlagShared
		dup := *m
		dup.closed = false
		return dup
	default:
		dup := *m
		dup.closed = false
		return dup
	}
}

// Move transfers content to the returned message and re-initialises the
// source as empty; it does not touch any refcount.
func (m *Msg) Move() Msg {
	out := *m
	*m = Msg{typ: TypeVSM}
	return out
}

// Data returns a read-only view of the payload.
func (m *Msg) Data() []byte {
	switch m.typ {
	case TypeVSM:
		return m.vsm[:m.vsmLen]
	case TypeLmsg:
		if m.content == nil {
			return nil
		}
		return m.content.data
	case TypeCmsg:
		return m.cdata
	default:
		return m.vsm[:m.vsmLen]
	}
}

// dataMut returns a mutable view sized for in-place copy-in, used only
// during construction (InitBuffer et al.) before the message escapes.
func (m *Msg) dataMut() []byte {
	switch m.typ {
	case TypeVSM:
		return m.vsm[:m.vsmLen]
	case TypeLmsg:
		return m.content.data
	default:
		return m.vsm[:m.vsmLen]
	}
}

// Size returns the payload length in bytes.
func (m *Msg) Size() int { return len(m.Data()) }

// Type reports the message variant.
func (m *Msg) Type() Type { return m.typ }

// Flags returns the current flag bits.
func (m *Msg) Flags() Flags { return m.flags }

// SetFlags ORs the given bits in.
func (m *Msg) SetFlags(f Flags) { m.flags |= f }

// ResetFlags clears the given bits.
func (m *Msg) ResetFlags(f Flags) { m.flags &^= f }

// More reports whether the MORE bit is set.
func (m *Msg) More() bool { return m.flags.Has(FlagMore) }

// IsCommand reports whether the COMMAND bit is set.
func (m *Msg) IsCommand() bool { return m.flags.Has(FlagCommand) }

// IsCredential reports whether this is an internal credential frame, which
// pipes must silently drop on read (ZMTP).
func (m *Msg) IsCredential() bool { return m.typ == TypeCmsg && m.flags.Has(FlagCredential) }

// GetRoutingID returns the attached per-peer identity id.
func (m *Msg) GetRoutingID() uint32 { return m.routingID }

// SetRoutingID attaches a per-peer identity id.
func (m *Msg) SetRoutingID(id uint32) { m.routingID = id }

func (m Msg) String() string {
	return fmt.Sprintf("Msg{type=%d flags=%#x size=%d}", m.typ, m.flags, m.Size())
}

package message

// Flags are the per-message bits carried on the wire and across pipes.
type Flags uint8

const (
	// FlagMore marks a message as part of a multi-part message with more
	// frames to follow.
	FlagMore Flags = 1 << iota
	// FlagCommand marks a wire command frame (PING/PONG/subscribe/cancel),
	// not user data.
	FlagCommand
	// FlagCredential marks an internal authentication-credential frame; the
	// pipe silently drops these on read (ZMTP).
	FlagCredential
	// FlagRoutingID marks a routing-id identity frame.
	FlagRoutingID
	// FlagShared is set on both sides of an lmsg copy once the refcount is
	// bumped above one.
	FlagShared
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Package mailbox implements the command-passing protocol that links
// user-facing sockets to their transports via an I/O thread, following
// ZMTP ("Command"), grounded on
// ZMTP's mailbox.hpp and src/core/object.cpp's command tag
// switch.
package mailbox

// Tag discriminates the command payload carried in a Command.
type Tag int

const (
	TagStop Tag = iota
	TagPlug
	TagOwn
	TagAttach
	TagBind
	TagActivateRead
	TagActivateWrite
	TagHiccup
	TagPipeTerm
	TagPipeTermAck
	TagPipeHWM
	TagTermReq
	TagTerm
	TagTermAck
	TagTermEndpoint
	TagReap
	TagReaped
	TagInprocConnected
	TagConnFailed
	TagDone
	TagStatsSnapshot // folds pipe_peer_stats/pipe_stats_publish (ZMTP)
)

func (t Tag) String() string {
	switch t {
	case TagStop:
		return "stop"
	case TagPlug:
		return "plug"
	case TagOwn:
		return "own"
	case TagAttach:
		return "attach"
	case TagBind:
		return "bind"
	case TagActivateRead:
		return "activate_read"
	case TagActivateWrite:
		return "activate_write"
	case TagHiccup:
		return "hiccup"
	case TagPipeTerm:
		return "pipe_term"
	case TagPipeTermAck:
		return "pipe_term_ack"
	case TagPipeHWM:
		return "pipe_hwm"
	case TagTermReq:
		return "term_req"
	case TagTerm:
		return "term"
	case TagTermAck:
		return "term_ack"
	case TagTermEndpoint:
		return "term_endpoint"
	case TagReap:
		return "reap"
	case TagReaped:
		return "reaped"
	case TagInprocConnected:
		return "inproc_connected"
	case TagConnFailed:
		return "conn_failed"
	case TagDone:
		return "done"
	case TagStatsSnapshot:
		return "stats_snapshot"
	default:
		return "unknown"
	}
}

// Destination is anything with a Mailbox to post commands to; sockets,
// pipes, sessions, io-threads, and the reaper all implement it.
type Destination interface {
	Mailbox() *Mailbox
}

// Command is a tagged record routed via a Mailbox. Args is a tag-specific
// payload (e.g. *AttachArgs, *TermArgs); the receiver type-asserts it based
// on Tag, mirroring object_t::process_command's switch.
type Command struct {
	Tag  Tag
	Src  Destination
	Args any
}

// AttachArgs carries the engine to install for process_attach.
type AttachArgs struct {
	Engine any
}

// BindArgs carries the pipe to attach for process_bind.
type BindArgs struct {
	Pipe any
}

// OwnArgs carries a newly constructed child object for process_own.
type OwnArgs struct {
	Object any
}

// ActivateWriteArgs carries the reader's position for the lwm handshake.
type ActivateWriteArgs struct {
	MsgsRead uint64
}

// TermArgs carries the linger budget for process_term.
type TermArgs struct {
	Linger int64 // milliseconds; <0 means infinite, 0 means immediate
}

// TermReqArgs names the child requesting termination.
type TermReqArgs struct {
	Object any
}

// TermEndpointArgs names the endpoint being unbound.
type TermEndpointArgs struct {
	Endpoint string
}

// ReapArgs carries the socket being handed to the reaper.
type ReapArgs struct {
	Socket any
}

// HiccupArgs carries the replacement in-pipe installed on reconnect.
type HiccupArgs struct {
	Pipe any
}

// ConnFailedArgs carries the failure reason for a session's active
// connection attempt.
type ConnFailedArgs struct {
	Reason error
}

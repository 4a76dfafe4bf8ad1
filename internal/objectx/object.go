// Package objectx implements the object/own command-router base that every
// long-lived actor (pipe, socket, session, io-thread) derives from, per
// ZMTP, grounded on ZMTP's object.cpp.
//
// Command addressing: ZMTP looks up a destination's thread-id in
// the context's slot table to find its mailbox. In Go, actors can simply
// hold a direct reference to a peer's *mailbox.Mailbox — there is no
// use-after-free hazard the indirection was defending against in C++, so
// SendCommand here takes the destination's Mailbox directly. The context's
// slot table (internal/ctxcore) still exists for enumeration during reaping
// and diagnostics, just not as the addressing path for individual sends.
package objectx

import "github.com/ulala-x/serverlink/internal/mailbox"

// Object is the base embedded by every actor that exchanges commands.
type Object struct {
	Tid     uint32
	Inbox   *mailbox.Mailbox
	Logger  Logger
}

// Logger is the minimal logging capability objects need; satisfied by
// *log.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

// NewObject creates an object with its own mailbox.
func NewObject(tid uint32, logger Logger) Object {
	return Object{Tid: tid, Inbox: mailbox.New(), Logger: logger}
}

// Mailbox implements mailbox.Destination.
func (o *Object) Mailbox() *mailbox.Mailbox { return o.Inbox }

// SendCommand posts cmd to dest's mailbox, addressing it directly by
// reference (see package doc).
func (o *Object) SendCommand(dest mailbox.Destination, cmd Command) {
	if dest == nil {
		return
	}
	dest.Mailbox().Send(mailbox.Command{Tag: cmd.Tag, Src: o, Args: cmd.Args})
}

// Command is a thin alias kept local so callers don't need to import
// internal/mailbox just to build one.
type Command = mailbox.Command

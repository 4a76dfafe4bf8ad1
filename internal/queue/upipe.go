package queue

// UPipe is the common contract both Ypipe and YpipeConflate satisfy, mirroring
// ZMTP's ypipe_base_t interface so pipe_t can be built against
// either backing implementation depending on the CONFLATE socket option.
type UPipe[T any] interface {
	Write(v T, incomplete bool)
	Unwrite() (T, bool)
	Flush() bool
	CheckRead() bool
	Read() (T, bool)
	Probe(fn func(T) bool) bool
	Rollback()
}

var (
	_ UPipe[int] = (*Ypipe[int])(nil)
	_ UPipe[int] = (*YpipeConflate[int])(nil)
)

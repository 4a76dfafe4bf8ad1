package wire

// frameDecodeState enumerates the decoder's steps, matching ZMTP's
// instruction to express incremental wire parsing as an explicit state
// machine rather than blocking reads.
type frameDecodeState int

const (
	stateFlags frameDecodeState = iota
	stateShortLen
	stateLongLen
	statePayload
)

// FrameDecoder incrementally decodes frames from a byte stream that may
// arrive in arbitrary-sized chunks (one TCP read at a time). Feed as many
// bytes as are available; it returns how many were consumed and, once a
// full frame has arrived, the decoded Frame.
type FrameDecoder struct {
	state   frameDecodeState
	flags   byte
	lenBuf  [8]byte
	lenGot  int
	length  uint64
	maxSize uint64

	payload  []byte
	payloadN int
}

// NewFrameDecoder returns a decoder that rejects any frame whose declared
// length exceeds maxSize (0 means unlimited), matching ZMTP's
// `max-msgsz` tunable.
func NewFrameDecoder(maxSize uint64) *FrameDecoder {
	return &FrameDecoder{maxSize: maxSize}
}

// Feed advances the state machine with newly available bytes. It returns
// the number of bytes consumed (always <= len(data)) and, when a complete
// frame has been assembled, the Frame. Call Feed again with the
// unconsumed remainder of data plus whatever arrives next; at most one
// frame is returned per call even if data holds more than one.
func (d *FrameDecoder) Feed(data []byte) (consumed int, frame *Frame, err error) {
	for consumed < len(data) {
		switch d.state {
		case stateFlags:
			d.flags = data[consumed]
			consumed++
			if d.flags&FlagLong != 0 {
				d.state = stateLongLen
				d.lenGot = 0
			} else {
				d.state = stateShortLen
			}

		case stateShortLen:
			d.length = uint64(data[consumed])
			consumed++
			f, err := d.beginPayload()
			if err != nil {
				return consumed, nil, err
			}
			if f != nil {
				return consumed, f, nil
			}

		case stateLongLen:
			n := copy(d.lenBuf[d.lenGot:], data[consumed:])
			consumed += n
			d.lenGot += n
			if d.lenGot < 8 {
				break
			}
			d.length = getUint64(d.lenBuf[:])
			f, err := d.beginPayload()
			if err != nil {
				return consumed, nil, err
			}
			if f != nil {
				return consumed, f, nil
			}

		case statePayload:
			n := copy(d.payload[d.payloadN:], data[consumed:])
			consumed += n
			d.payloadN += n
			if d.payloadN < len(d.payload) {
				break
			}
			f := Frame{Flags: d.flags, Payload: d.payload}
			d.reset()
			return consumed, &f, nil
		}
	}
	return consumed, nil, nil
}

// beginPayload transitions into statePayload, or, for a zero-length
// frame, completes immediately and returns the Frame without waiting for
// more bytes.
func (d *FrameDecoder) beginPayload() (*Frame, error) {
	if d.maxSize > 0 && d.length > d.maxSize {
		return nil, ErrFrameTooBig
	}
	if d.length == 0 {
		f := Frame{Flags: d.flags, Payload: nil}
		d.reset()
		return &f, nil
	}
	d.payload = make([]byte, d.length)
	d.payloadN = 0
	d.state = statePayload
	return nil, nil
}

func (d *FrameDecoder) reset() {
	d.state = stateFlags
	d.flags = 0
	d.lenGot = 0
	d.length = 0
	d.payload = nil
	d.payloadN = 0
}

package wire

// Command names exchanged as ZMTP command frames (FlagCommand set),
// per ZMTP/§6.
const (
	CmdReady     = "READY"
	CmdPing      = "PING"
	CmdPong      = "PONG"
	CmdError     = "ERROR"
	CmdSubscribe = "SUBSCRIBE"
	CmdCancel    = "CANCEL"
)

// EncodeCommand builds a command frame's body: a 1-byte name length, the
// name, then the command's own payload.
func EncodeCommand(name string, body []byte) []byte {
	out := make([]byte, 1+len(name)+len(body))
	out[0] = byte(len(name))
	copy(out[1:], name)
	copy(out[1+len(name):], body)
	return out
}

// DecodeCommand splits a command frame's body into its name and payload.
func DecodeCommand(data []byte) (name string, body []byte, err error) {
	if len(data) < 1 {
		return "", nil, ErrMalformed
	}
	n := int(data[0])
	if len(data) < 1+n {
		return "", nil, ErrMalformed
	}
	return string(data[1 : 1+n]), data[1+n:], nil
}

// EncodeReadyProperties encodes READY's socket-type/identity metadata as
// a run of name/value properties: 1-byte name length, name, 4-byte
// big-endian value length, value — matching ZMTP's "READY exchanges
// socket-type and identity metadata".
func EncodeReadyProperties(props map[string]string) []byte {
	var out []byte
	for k, v := range props {
		entry := make([]byte, 1+len(k)+4+len(v))
		entry[0] = byte(len(k))
		copy(entry[1:], k)
		putUint32(entry[1+len(k):1+len(k)+4], uint32(len(v)))
		copy(entry[1+len(k)+4:], v)
		out = append(out, entry...)
	}
	return out
}

// DecodeReadyProperties parses the property run EncodeReadyProperties
// produces.
func DecodeReadyProperties(data []byte) (map[string]string, error) {
	props := make(map[string]string)
	for len(data) > 0 {
		if len(data) < 1 {
			return nil, ErrMalformed
		}
		nameLen := int(data[0])
		data = data[1:]
		if len(data) < nameLen+4 {
			return nil, ErrMalformed
		}
		name := string(data[:nameLen])
		data = data[nameLen:]
		valLen := int(getUint32(data[:4]))
		data = data[4:]
		if len(data) < valLen {
			return nil, ErrMalformed
		}
		props[name] = string(data[:valLen])
		data = data[valLen:]
	}
	return props, nil
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

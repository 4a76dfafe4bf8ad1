package wire

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeFrameShort(t *testing.T) {
	payload := []byte("hello")
	wireBytes := EncodeFrame(payload, false, false)

	d := NewFrameDecoder(0)
	consumed, frame, err := d.Feed(wireBytes)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if consumed != len(wireBytes) {
		t.Fatalf("consumed = %d, want %d", consumed, len(wireBytes))
	}
	if frame == nil {
		t.Fatalf("Feed() returned no frame")
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Fatalf("Payload = %q, want %q", frame.Payload, payload)
	}
	if frame.More() || frame.IsCommand() {
		t.Fatalf("flags = %08b, want neither MORE nor COMMAND", frame.Flags)
	}
}

func TestEncodeDecodeFrameLong(t *testing.T) {
	payload := make([]byte, 1000)
	for i := range payload {
		payload[i] = byte(i)
	}
	wireBytes := EncodeFrame(payload, true, false)

	d := NewFrameDecoder(0)
	_, frame, err := d.Feed(wireBytes)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if frame == nil || !bytes.Equal(frame.Payload, payload) {
		t.Fatalf("long frame round-trip failed")
	}
	if !frame.More() {
		t.Fatalf("More() = false, want true")
	}
}

func TestFrameDecoderHandlesSplitFeeds(t *testing.T) {
	payload := []byte("split across reads")
	wireBytes := EncodeFrame(payload, false, true)

	d := NewFrameDecoder(0)
	var frame *Frame
	for i := 0; i < len(wireBytes); i++ {
		chunk := wireBytes[i : i+1]
		consumed, f, err := d.Feed(chunk)
		if err != nil {
			t.Fatalf("Feed() error = %v", err)
		}
		if consumed != 1 {
			t.Fatalf("consumed = %d, want 1", consumed)
		}
		if f != nil {
			frame = f
		}
	}
	if frame == nil {
		t.Fatalf("frame never completed across byte-at-a-time feeds")
	}
	if !bytes.Equal(frame.Payload, payload) {
		t.Fatalf("Payload = %q, want %q", frame.Payload, payload)
	}
	if !frame.IsCommand() {
		t.Fatalf("IsCommand() = false, want true")
	}
}

func TestFrameDecoderZeroLengthFrame(t *testing.T) {
	wireBytes := EncodeFrame(nil, false, false)
	d := NewFrameDecoder(0)
	consumed, frame, err := d.Feed(wireBytes)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if consumed != len(wireBytes) {
		t.Fatalf("consumed = %d, want %d", consumed, len(wireBytes))
	}
	if frame == nil || len(frame.Payload) != 0 {
		t.Fatalf("expected a zero-length frame, got %+v", frame)
	}
}

func TestFrameDecoderRejectsOversizeFrame(t *testing.T) {
	d := NewFrameDecoder(10)
	wireBytes := EncodeFrame(make([]byte, 20), false, false)
	if _, _, err := d.Feed(wireBytes); err != ErrFrameTooBig {
		t.Fatalf("Feed() error = %v, want ErrFrameTooBig", err)
	}
}

func TestEncodeDecodeGreeting(t *testing.T) {
	g := Greeting{VersionMajor: 3, VersionMinor: 1, Mechanism: MechanismNull, AsServer: true}
	buf := EncodeGreeting(g)

	var d GreetingDecoder
	consumed, got, err := d.Feed(buf[:])
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if consumed != GreetingLen {
		t.Fatalf("consumed = %d, want %d", consumed, GreetingLen)
	}
	if got == nil {
		t.Fatalf("Feed() did not complete the greeting")
	}
	if got.VersionMajor != 3 || got.VersionMinor != 1 || got.Mechanism != MechanismNull || !got.AsServer {
		t.Fatalf("decoded greeting = %+v, want major=3 minor=1 mechanism=NULL asServer=true", got)
	}
}

func TestGreetingDecoderHandlesSplitFeeds(t *testing.T) {
	g := Greeting{VersionMajor: 3, VersionMinor: 0, Mechanism: MechanismNull, AsServer: false}
	buf := EncodeGreeting(g)

	var d GreetingDecoder
	var got *Greeting
	for i := 0; i < len(buf); i += 7 {
		end := i + 7
		if end > len(buf) {
			end = len(buf)
		}
		_, greeting, err := d.Feed(buf[i:end])
		if err != nil {
			t.Fatalf("Feed() error = %v", err)
		}
		if greeting != nil {
			got = greeting
		}
	}
	if got == nil || got.Mechanism != MechanismNull {
		t.Fatalf("greeting did not assemble correctly across split feeds: %+v", got)
	}
}

func TestGreetingDecoderRejectsBadSignature(t *testing.T) {
	g := Greeting{VersionMajor: 3, Mechanism: MechanismNull}
	buf := EncodeGreeting(g)
	buf[0] = 0x00

	var d GreetingDecoder
	if _, _, err := d.Feed(buf[:]); err != ErrBadSignature {
		t.Fatalf("Feed() error = %v, want ErrBadSignature", err)
	}
}

func TestEncodeDecodeCommand(t *testing.T) {
	body := []byte{1, 2, 3}
	frame := EncodeCommand(CmdPing, body)

	name, rest, err := DecodeCommand(frame)
	if err != nil {
		t.Fatalf("DecodeCommand() error = %v", err)
	}
	if name != CmdPing {
		t.Fatalf("name = %q, want %q", name, CmdPing)
	}
	if !bytes.Equal(rest, body) {
		t.Fatalf("body = %v, want %v", rest, body)
	}
}

func TestEncodeDecodeReadyProperties(t *testing.T) {
	props := map[string]string{"Socket-Type": "DEALER", "Identity": "worker-1"}
	encoded := EncodeReadyProperties(props)

	got, err := DecodeReadyProperties(encoded)
	if err != nil {
		t.Fatalf("DecodeReadyProperties() error = %v", err)
	}
	if got["Socket-Type"] != "DEALER" || got["Identity"] != "worker-1" {
		t.Fatalf("decoded properties = %v, want %v", got, props)
	}
}

package session

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// maxFrameBytes bounds a single frame's length prefix to defend against a
// corrupt or adversarial length field asking for an unbounded allocation.
const maxFrameBytes = 16 * 1024 * 1024

// Tag identifies an inbound or outbound message's variant (spec.md §4.7).
type Tag string

const (
	TagRegister      Tag = "Register"
	TagRegistered    Tag = "Registered"
	TagHeartbeat     Tag = "Heartbeat"
	TagHeartbeatAck  Tag = "HeartbeatAck"
	TagMetrics       Tag = "Metrics"
	TagWorkloadUpdate Tag = "WorkloadUpdate"
	TagWorkloadLogs  Tag = "WorkloadLogs"
	TagMeshReady     Tag = "MeshReady"
	TagStartWorkload Tag = "StartWorkload"
	TagStopWorkload  Tag = "StopWorkload"
	TagError         Tag = "Error"
)

// Envelope is the tagged-union wire message: Tag selects how Payload is
// interpreted, decoded lazily by the router so unknown payload shapes
// don't block framing.
type Envelope struct {
	Tag     Tag             `json:"tag"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// FrameReader decodes length-delimited (4-byte big-endian length prefix +
// JSON body) frames from r.
type FrameReader struct {
	r *bufio.Reader
}

// NewFrameReader wraps r for frame-at-a-time reads.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// ParseError wraps a malformed frame body: the length-delimited framing
// itself was intact, but the JSON payload did not decode. Per spec.md §4.7/
// §7 this is tolerated up to ParseFailureThreshold, unlike a Transport-level
// read failure (closed connection, truncated frame), which ends the session
// immediately.
type ParseError struct {
	Cause error
}

func (e *ParseError) Error() string { return "session: malformed envelope: " + e.Cause.Error() }
func (e *ParseError) Unwrap() error { return e.Cause }

// ReadEnvelope reads one frame and decodes it as an Envelope. A failure to
// read the length prefix or body is a transport error, returned as-is. A
// failure to unmarshal an otherwise complete frame is returned as a
// *ParseError so the caller can distinguish "tolerate and count" from
// "terminate now".
func (fr *FrameReader) ReadEnvelope() (Envelope, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(fr.r, lenBuf[:]); err != nil {
		return Envelope{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameBytes {
		return Envelope{}, fmt.Errorf("session: frame of %d bytes exceeds max %d", n, maxFrameBytes)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		return Envelope{}, err
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, &ParseError{Cause: err}
	}
	return env, nil
}

// FrameWriter encodes Envelopes as length-delimited frames onto w.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter wraps w for frame-at-a-time writes.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteEnvelope encodes and writes one frame.
func (fw *FrameWriter) WriteEnvelope(env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := fw.w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = fw.w.Write(body)
	return err
}

// Encode marshals a payload into an Envelope of the given tag.
func Encode(tag Tag, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Tag: tag, Payload: body}, nil
}

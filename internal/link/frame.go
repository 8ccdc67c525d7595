package link

import (
	"fmt"

	"linebot/internal/rs"
)

// StartByte marks the beginning of a frame on the wire (spec.md §4.7,
// §6).
const StartByte = 0x55

// EncodeFrame serializes m and wraps it in the wire frame:
// 0x55, LEN, then LEN bytes of (encoded message || 8-byte RS parity).
// It returns ErrSerialize if m's encoding does not fit in one frame.
func EncodeFrame(m Message) ([]byte, error) {
	payload, err := Serialize(m)
	if err != nil {
		return nil, err
	}

	codeword := rs.Encode(payload)
	if len(codeword) > FrameMax {
		return nil, ErrSerialize
	}

	frame := make([]byte, 0, 2+len(codeword))
	frame = append(frame, StartByte, byte(len(codeword)))
	frame = append(frame, codeword...)
	return frame, nil
}

// RecvState is the receiver's byte-stream parsing state (spec.md §4.7,
// §8 invariant 4).
type RecvState uint8

const (
	// NotStarted is discarding bytes until it sees StartByte.
	NotStarted RecvState = iota
	// Started has seen StartByte and is waiting for the LEN byte.
	Started
	// Receiving has consumed LEN and is accumulating LEN payload bytes.
	Receiving
)

func (s RecvState) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case Started:
		return "Started"
	case Receiving:
		return "Receiving"
	default:
		return "Unknown"
	}
}

// Receiver is the frame parser state machine: it consumes one byte at
// a time from a UART RX interrupt (or a test harness) and emits a
// decoded Message once a full, RS-corrected frame has accumulated.
//
// The fixed-size recv_buffer lives inline, sized to FrameMax, per
// spec.md §3's "no dynamic allocation" rule.
type Receiver struct {
	state RecvState
	want  int
	buf   [FrameMax]byte
	n     int
}

// NewReceiver creates a Receiver in the NotStarted state.
func NewReceiver() *Receiver {
	return &Receiver{}
}

// State returns the receiver's current parsing state.
func (r *Receiver) State() RecvState { return r.state }

// HandleByte feeds one byte into the receiver. It returns a non-nil
// Message once a complete frame has been received and successfully
// RS-corrected and deserialized. A non-nil error means a frame was
// discarded (RS uncorrectable, truncated, or an unknown tag); the
// receiver has already reset to NotStarted by the time it returns
// (spec.md §4.7 "On any deserialization error the buffer is cleared
// and the receiver returns to NotStarted").
func (r *Receiver) HandleByte(b byte) (*Message, error) {
	switch r.state {
	case NotStarted:
		if b == StartByte {
			r.state = Started
		}
		return nil, nil

	case Started:
		if int(b) == 0 || int(b) > FrameMax {
			r.reset()
			return nil, fmt.Errorf("%w: invalid frame length %d", ErrDeserialize, b)
		}
		r.want = int(b)
		r.n = 0
		r.state = Receiving
		return nil, nil

	case Receiving:
		r.buf[r.n] = b
		r.n++
		if r.n < r.want {
			return nil, nil
		}

		codeword := append([]byte(nil), r.buf[:r.n]...)
		n := r.n
		r.reset()

		if n <= rs.NumParity {
			return nil, fmt.Errorf("%w: frame too short to contain RS parity", ErrDeserialize)
		}

		payload, err := rs.Decode(codeword)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeserialize, err)
		}
		msg, err := Deserialize(payload)
		if err != nil {
			return nil, err
		}
		return &msg, nil

	default:
		r.reset()
		return nil, nil
	}
}

func (r *Receiver) reset() {
	r.state = NotStarted
	r.want = 0
	r.n = 0
}

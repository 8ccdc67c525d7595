// Package link implements the framed command protocol of spec.md §4.7:
// a byte-oriented, half-duplex link between the robot and a host,
// carrying typed commands with identifiers, per-command lifecycle
// tracking, Reed-Solomon forward error correction over a
// length-prefixed frame, and timeout-based retransmission.
//
// The wire framing (0x55 LEN payload) supersedes
// 0x7E-sync/CRC16/dest-sequence transport (protocol/transport.go):
// that is Klipper's own wire format, not the one this spec calls for.
// What is kept almost unchanged is the lower-level
// plumbing its protocol package already got right for a fixed-capacity,
// allocation-free embedded link: the VLQ integer codec (vlq.go) and the
// scratch/FIFO buffer types (buffers.go).
package link

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// CommandKind identifies which variant of the Command payload union a
// Message carries.
type CommandKind uint8

const (
	CmdStop CommandKind = iota
	CmdSetSpeed
	CmdOpenGripper
	CmdCloseGripper
	CmdLiftGripper
	CmdLowerGripper
)

func (k CommandKind) String() string {
	switch k {
	case CmdStop:
		return "Stop"
	case CmdSetSpeed:
		return "SetSpeed"
	case CmdOpenGripper:
		return "OpenGripper"
	case CmdCloseGripper:
		return "CloseGripper"
	case CmdLiftGripper:
		return "LiftGripper"
	case CmdLowerGripper:
		return "LowerGripper"
	default:
		return "Unknown"
	}
}

// Command is the typed payload union spec.md §3 describes: Stop,
// SetSpeed{left, right}, OpenGripper, CloseGripper, LiftGripper,
// LowerGripper. Left/Right are only meaningful when Kind is
// CmdSetSpeed.
type Command struct {
	Kind        CommandKind
	Left, Right int32
}

// Stop, OpenGripper, CloseGripper, LiftGripper, and LowerGripper build
// the corresponding zero-argument Command variants.
func Stop() Command         { return Command{Kind: CmdStop} }
func OpenGripper() Command  { return Command{Kind: CmdOpenGripper} }
func CloseGripper() Command { return Command{Kind: CmdCloseGripper} }
func LiftGripper() Command  { return Command{Kind: CmdLiftGripper} }
func LowerGripper() Command { return Command{Kind: CmdLowerGripper} }

// SetSpeed builds a SetSpeed{left, right} Command.
func SetSpeed(left, right int32) Command {
	return Command{Kind: CmdSetSpeed, Left: left, Right: right}
}

// MessageKind identifies which variant of the Message union a frame
// carries: Command(id, Command), Ack(id), or Done(id).
type MessageKind uint8

const (
	MsgCommand MessageKind = iota
	MsgAck
	MsgDone
)

// Message is the tagged union carried by every frame (spec.md §3).
type Message struct {
	Kind    MessageKind
	ID      uint32
	Command Command // meaningful only when Kind == MsgCommand
}

// NewCommandMessage, NewAckMessage, and NewDoneMessage build the three
// Message variants.
func NewCommandMessage(id uint32, c Command) Message {
	return Message{Kind: MsgCommand, ID: id, Command: c}
}
func NewAckMessage(id uint32) Message  { return Message{Kind: MsgAck, ID: id} }
func NewDoneMessage(id uint32) Message { return Message{Kind: MsgDone, ID: id} }

// ErrSerialize reports that a Message does not fit in one frame's
// MessageMax-byte payload (spec.md §7 MessageSerializeError).
var ErrSerialize = errors.New("link: message does not fit in one frame")

// ErrDeserialize reports a malformed payload: truncated VLQ fields or
// an unrecognized tag (spec.md §7 MessageDeserializeError). The
// wrapped cause, if any, is available via errors.Unwrap.
var ErrDeserialize = errors.New("link: message deserialize error")

// Serialize encodes m's compact binary representation: VLQ for the
// message tag and id (and the command tag), written most-significant
// 7-bit group first as vlq.go encodes it (not little-endian), fixed-width
// little-endian two's-complement i32 pair for SetSpeed's left/right
// (spec.md §4.7 "Encoder details"). It returns ErrSerialize if the
// encoding would exceed MessageMax bytes.
func Serialize(m Message) ([]byte, error) {
	out := NewScratchOutput()
	encodeVLQUint(out, uint32(m.Kind))
	encodeVLQUint(out, m.ID)

	if m.Kind == MsgCommand {
		encodeVLQUint(out, uint32(m.Command.Kind))
		if m.Command.Kind == CmdSetSpeed {
			var buf [8]byte
			binary.LittleEndian.PutUint32(buf[0:4], uint32(m.Command.Left))
			binary.LittleEndian.PutUint32(buf[4:8], uint32(m.Command.Right))
			out.Output(buf[:])
		}
	}

	if out.Overflowed() {
		return nil, ErrSerialize
	}
	return out.Result(), nil
}

// Deserialize decodes a Message from a payload previously produced by
// Serialize (after any RS correction has already been applied).
func Deserialize(data []byte) (Message, error) {
	kindVal, err := decodeVLQUint(&data)
	if err != nil {
		return Message{}, fmt.Errorf("%w: message tag: %v", ErrDeserialize, err)
	}
	id, err := decodeVLQUint(&data)
	if err != nil {
		return Message{}, fmt.Errorf("%w: message id: %v", ErrDeserialize, err)
	}

	switch MessageKind(kindVal) {
	case MsgCommand:
		cmdKindVal, err := decodeVLQUint(&data)
		if err != nil {
			return Message{}, fmt.Errorf("%w: command tag: %v", ErrDeserialize, err)
		}
		cmd := Command{Kind: CommandKind(cmdKindVal)}
		switch cmd.Kind {
		case CmdSetSpeed:
			if len(data) < 8 {
				return Message{}, fmt.Errorf("%w: truncated SetSpeed payload", ErrDeserialize)
			}
			cmd.Left = int32(binary.LittleEndian.Uint32(data[0:4]))
			cmd.Right = int32(binary.LittleEndian.Uint32(data[4:8]))
		case CmdStop, CmdOpenGripper, CmdCloseGripper, CmdLiftGripper, CmdLowerGripper:
			// no further payload
		default:
			return Message{}, fmt.Errorf("%w: unknown command tag %d", ErrDeserialize, cmdKindVal)
		}
		return Message{Kind: MsgCommand, ID: id, Command: cmd}, nil

	case MsgAck:
		return Message{Kind: MsgAck, ID: id}, nil

	case MsgDone:
		return Message{Kind: MsgDone, ID: id}, nil

	default:
		return Message{}, fmt.Errorf("%w: unknown message tag %d", ErrDeserialize, kindVal)
	}
}

// Package encap implements the EtherNet/IP encapsulation layer: the
// 24-byte framing header, ListServices, RegisterSession/UnRegisterSession,
// and the SendRRData envelope used to carry an unconnected CIP request.
package encap

import (
	"fmt"

	"github.com/yatesdr/ethip/errs"
	"github.com/yatesdr/ethip/wire"
)

// HeaderSize is the fixed encapsulation header length in bytes.
const HeaderSize = 24

// Known encapsulation commands.
const (
	CmdNop                Command = 0x0000
	CmdListServices       Command = 0x0004
	CmdListInterfaces     Command = 0x0064
	CmdRegisterSession    Command = 0x0065
	CmdUnRegisterSession  Command = 0x0066
	CmdSendRRData         Command = 0x006F
	CmdSendUnitData       Command = 0x0070
)

// Command identifies an encapsulation-layer command.
type Command uint16

var commandNames = map[Command]string{
	CmdNop:               "NOP",
	CmdListServices:      "ListServices",
	CmdListInterfaces:    "ListInterfaces",
	CmdRegisterSession:   "RegisterSession",
	CmdUnRegisterSession: "UnRegisterSession",
	CmdSendRRData:        "SendRRData",
	CmdSendUnitData:      "SendUnitData",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%#04x)", uint16(c))
}

// Known encapsulation status codes.
const (
	StatusOK               uint32 = 0x00
	StatusInvalidCommand   uint32 = 0x01
	StatusNoMemory         uint32 = 0x02
	StatusMalformed        uint32 = 0x03
	StatusBadSessionID     uint32 = 0x64
	StatusBadLength        uint32 = 0x65
	StatusUnsupportedRev   uint32 = 0x69
)

var statusNames = map[uint32]string{
	StatusOK:             "success",
	StatusInvalidCommand: "invalid command",
	StatusNoMemory:       "no memory at target",
	StatusMalformed:      "malformed",
	StatusBadSessionID:   "bad session id",
	StatusBadLength:      "bad length",
	StatusUnsupportedRev: "unsupported revision",
}

// StatusName renders an encapsulation status as a diagnostic string;
// unknown codes render as "unknown", never treated as success.
func StatusName(status uint32) string {
	if name, ok := statusNames[status]; ok {
		return fmt.Sprintf("%#x (%s)", status, name)
	}
	return fmt.Sprintf("%#x (unknown)", status)
}

// DefaultContext is a recognizable placeholder sender context; the receiver
// only ever echoes it back.
var DefaultContext = [8]byte{'A', 'I', 'R', 'P', 'L', 'A', 'N', 'E'}

// Header is the 24-byte encapsulation header preceding every command's payload.
type Header struct {
	Command       Command
	Length        uint16 // bytes following the header
	SessionHandle uint32
	Status        uint32
	Context       [8]byte
	Options       uint32
}

// Marshal encodes the header to its wire form.
func (h Header) Marshal() []byte {
	w := wire.NewWriter()
	w.PutU16(uint16(h.Command))
	w.PutU16(h.Length)
	w.PutU32(h.SessionHandle)
	w.PutU32(h.Status)
	w.PutBytes(h.Context[:])
	w.PutU32(h.Options)
	return w.Bytes()
}

// ParseHeader decodes the 24-byte encapsulation header from buf.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: encapsulation header needs %d bytes, got %d", errs.ErrProtocol, HeaderSize, len(buf))
	}
	r := wire.NewReader(buf)
	cmd, _ := r.ReadU16()
	length, _ := r.ReadU16()
	session, _ := r.ReadU32()
	status, _ := r.ReadU32()
	ctxBytes, _ := r.ReadBytes(8)
	options, _ := r.ReadU32()

	var h Header
	h.Command = Command(cmd)
	h.Length = length
	h.SessionHandle = session
	h.Status = status
	copy(h.Context[:], ctxBytes)
	h.Options = options
	return h, nil
}

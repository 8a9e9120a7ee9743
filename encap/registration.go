package encap

import (
	"fmt"

	"github.com/yatesdr/ethip/errs"
	"github.com/yatesdr/ethip/wire"
)

// RegisterSessionPayload builds the RegisterSession request payload:
// protocol_version(2 LE)=1 | options(2 LE)=0.
func RegisterSessionPayload() []byte {
	w := wire.NewWriter()
	w.PutU16(1)
	w.PutU16(0)
	return w.Bytes()
}

// ParseRegisterSessionResponse validates a RegisterSession response payload,
// which simply echoes the request's protocol version and options.
func ParseRegisterSessionResponse(data []byte) (protocolVersion, options uint16, err error) {
	if len(data) < 4 {
		return 0, 0, fmt.Errorf("%w: RegisterSession response too short", errs.ErrProtocol)
	}
	return wire.U16(data, 0), wire.U16(data, 2), nil
}

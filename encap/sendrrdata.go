package encap

import (
	"fmt"

	"github.com/yatesdr/ethip/errs"
	"github.com/yatesdr/ethip/wire"
)

// UnconnectedDataItemType is the Common Packet Format item type carrying an
// unconnected CIP message inside a SendRRData envelope.
const UnconnectedDataItemType uint16 = 0xB2

// BuildSendRRData wraps an inner CIP request (already marshaled) in the
// SendRRData envelope: interface_handle(4)=0 | timeout(2)=0 | item_count(2)=2
// | addr_type(2)=0 | addr_len(2)=0 | data_type(2)=0xB2 | data_len(2) | inner.
func BuildSendRRData(inner []byte) []byte {
	w := wire.NewWriter()
	w.PutU32(0) // interface handle
	w.PutU16(0) // timeout
	w.PutU16(2) // item count: null address + unconnected data
	w.PutU16(0) // address type: null
	w.PutU16(0) // address length: 0
	w.PutU16(UnconnectedDataItemType)
	w.PutU16(uint16(len(inner)))
	w.PutBytes(inner)
	return w.Bytes()
}

// ParseSendRRData extracts the inner CIP response bytes from a SendRRData
// envelope, validating the fixed item layout this driver always sends.
func ParseSendRRData(data []byte) ([]byte, error) {
	r := wire.NewReader(data)
	if _, err := r.ReadU32(); err != nil { // interface handle
		return nil, fmt.Errorf("%w: SendRRData envelope too short", errs.ErrProtocol)
	}
	if _, err := r.ReadU16(); err != nil { // timeout
		return nil, fmt.Errorf("%w: SendRRData envelope too short", errs.ErrProtocol)
	}
	itemCount, err := r.ReadU16()
	if err != nil || itemCount < 2 {
		return nil, fmt.Errorf("%w: SendRRData: expected at least 2 CPF items", errs.ErrProtocol)
	}
	if _, err := r.ReadU16(); err != nil { // address type
		return nil, fmt.Errorf("%w: SendRRData: truncated address item", errs.ErrProtocol)
	}
	addrLen, err := r.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("%w: SendRRData: truncated address item", errs.ErrProtocol)
	}
	if addrLen > 0 {
		if err := r.Skip(int(addrLen)); err != nil {
			return nil, fmt.Errorf("%w: SendRRData: address item longer than buffer", errs.ErrProtocol)
		}
	}
	dataType, err := r.ReadU16()
	if err != nil || dataType != UnconnectedDataItemType {
		return nil, fmt.Errorf("%w: SendRRData: unexpected data item type %#x", errs.ErrProtocol, dataType)
	}
	dataLen, err := r.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("%w: SendRRData: truncated data item", errs.ErrProtocol)
	}
	inner, err := r.ReadBytes(int(dataLen))
	if err != nil {
		return nil, fmt.Errorf("%w: SendRRData: data item shorter than declared length", errs.ErrProtocol)
	}
	return inner, nil
}

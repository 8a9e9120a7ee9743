package encap

import (
	"fmt"

	"github.com/yatesdr/ethip/errs"
	"github.com/yatesdr/ethip/wire"
)

// cipPDUFlagBit is bit 5 of a ListServices entry's flags word: support for
// CIP PDU encapsulation.
const cipPDUFlagBit = 1 << 5

// ServiceEntry is one entry of a ListServices response.
type ServiceEntry struct {
	TypeID  uint16
	Length  uint16
	Version uint16
	Flags   uint16
	Name    string // NUL-trimmed, up to 16 bytes on the wire
}

// SupportsCIP reports whether this entry advertises CIP PDU encapsulation
// support (flags bit 5).
func (e ServiceEntry) SupportsCIP() bool {
	return e.Flags&cipPDUFlagBit != 0
}

// ParseListServicesResponse decodes a ListServices response payload: a
// count followed by count entries of {type(2), length(2), version(2),
// flags(2), name[16]}.
func ParseListServicesResponse(data []byte) ([]ServiceEntry, error) {
	r := wire.NewReader(data)
	count, err := r.ReadU16()
	if err != nil {
		return nil, fmt.Errorf("%w: ListServices response missing count", errs.ErrProtocol)
	}
	entries := make([]ServiceEntry, 0, count)
	for i := 0; i < int(count); i++ {
		typeID, err := r.ReadU16()
		if err != nil {
			return nil, fmt.Errorf("%w: ListServices entry %d truncated", errs.ErrProtocol, i)
		}
		length, _ := r.ReadU16()
		version, _ := r.ReadU16()
		flags, _ := r.ReadU16()
		nameBytes, err := r.ReadBytes(16)
		if err != nil {
			return nil, fmt.Errorf("%w: ListServices entry %d name truncated", errs.ErrProtocol, i)
		}
		nameLen := 0
		for nameLen < len(nameBytes) && nameBytes[nameLen] != 0 {
			nameLen++
		}
		entries = append(entries, ServiceEntry{
			TypeID:  typeID,
			Length:  length,
			Version: version,
			Flags:   flags,
			Name:    string(nameBytes[:nameLen]),
		})
	}
	return entries, nil
}

// AnySupportsCIP reports whether any entry in the list supports CIP PDU
// encapsulation; RegisterSession must not be attempted otherwise.
func AnySupportsCIP(entries []ServiceEntry) bool {
	for _, e := range entries {
		if e.SupportsCIP() {
			return true
		}
	}
	return false
}

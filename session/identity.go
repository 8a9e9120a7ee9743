package session

import (
	"github.com/yatesdr/ethip/cip"
	"github.com/yatesdr/ethip/wire"
)

// classIdentity is the CIP Identity object class code.
const classIdentity byte = 0x01

// Identity attribute numbers on Identity instance 1.
const (
	attrVendorID     byte = 1
	attrDeviceType   byte = 2
	attrProductCode  byte = 3
	attrRevision     byte = 4
	attrSerialNumber byte = 6
	attrProductName  byte = 7
)

// Identity summarizes the target's CIP Identity object, gathered by a best
// effort series of Get_Attribute_Single requests. Any attribute that could
// not be read is left at its zero value; identification never fails a
// connect attempt.
type Identity struct {
	VendorID     uint16
	DeviceType   uint16
	ProductCode  uint16
	Revision     [2]byte
	SerialNumber uint32
	ProductName  string
}

// Identify probes the Identity object (class 0x01, instance 1) for the
// attributes this driver cares about, ignoring individual attribute
// failures.
func (s *Session) Identify() Identity {
	var id Identity

	if v, ok := s.getAttrU16(attrVendorID); ok {
		id.VendorID = v
	}
	if v, ok := s.getAttrU16(attrDeviceType); ok {
		id.DeviceType = v
	}
	if v, ok := s.getAttrU16(attrProductCode); ok {
		id.ProductCode = v
	}
	if data, ok := s.getAttrRaw(attrRevision); ok && len(data) >= 2 {
		id.Revision[0], id.Revision[1] = data[0], data[1]
	}
	if v, ok := s.getAttrU32(attrSerialNumber); ok {
		id.SerialNumber = v
	}
	if data, ok := s.getAttrRaw(attrProductName); ok && len(data) >= 1 {
		nameLen := int(data[0])
		if nameLen <= len(data)-1 {
			id.ProductName = string(data[1 : 1+nameLen])
		}
	}
	return id
}

// getAttrRaw issues a Get_Attribute_Single request and returns the raw
// response data. Failures of any kind — transport, protocol, or a
// non-success general status — are reported only via ok=false; a failed
// identity attribute never surfaces as an error to the caller.
func (s *Session) getAttrRaw(attr byte) ([]byte, bool) {
	path := cip.ClassInstancePath(classIdentity, 1, attr)
	req := cip.BuildGetAttributeSingle(path)
	resp, err := s.SendRRData(req.Marshal())
	if err != nil {
		return nil, false
	}
	mr, err := cip.ParseMRResponse(resp)
	if err != nil {
		return nil, false
	}
	if err := cip.CheckReply(req.Service, mr.Service); err != nil {
		return nil, false
	}
	if mr.GeneralStatus != 0 {
		return nil, false
	}
	return mr.Data, true
}

func (s *Session) getAttrU16(attr byte) (uint16, bool) {
	data, ok := s.getAttrRaw(attr)
	if !ok || len(data) < 2 {
		return 0, false
	}
	return wire.U16(data, 0), true
}

func (s *Session) getAttrU32(attr byte) (uint32, bool) {
	data, ok := s.getAttrRaw(attr)
	if !ok || len(data) < 4 {
		return 0, false
	}
	return wire.U32(data, 0), true
}

package cip

import (
	"fmt"

	"github.com/yatesdr/ethip/wire"
)

// Service byte constants used by this driver.
const (
	SvcGetAttributeSingle byte = 0x0E
	SvcMultipleService    byte = 0x0A
	SvcReadData           byte = 0x4C
	SvcWriteData          byte = 0x4D
	SvcUnconnectedSend    byte = 0x52
)

// Class codes of the Connection Manager and Message Router objects, used to
// address Unconnected_Send and MultiRequest respectively (instance 1).
const (
	ClassConnectionManager byte = 0x06
	ClassMessageRouter     byte = 0x02
)

// BuildReadData constructs a ReadData (0x4C) request: MR_Request(path) |
// element_count(2 LE).
func BuildReadData(path EPath, elementCount uint16) MRRequest {
	w := wire.NewWriter()
	w.PutU16(elementCount)
	return MRRequest{Service: SvcReadData, Path: path, Data: w.Bytes()}
}

// ParseReadDataResponse extracts the abbreviated type word and raw value
// bytes from a successful ReadData response payload.
func ParseReadDataResponse(data []byte) (dataType uint16, value []byte, err error) {
	if len(data) < 2 {
		return 0, nil, fmt.Errorf("cip: ReadData response too short: %d bytes", len(data))
	}
	return wire.U16(data, 0), data[2:], nil
}

// BuildWriteData constructs a WriteData (0x4D) request: MR_Request(path) |
// type(2 LE) | element_count(2 LE) | value_bytes.
func BuildWriteData(path EPath, dataType, elementCount uint16, value []byte) MRRequest {
	w := wire.NewWriter()
	w.PutU16(dataType)
	w.PutU16(elementCount)
	w.PutBytes(value)
	return MRRequest{Service: SvcWriteData, Path: path, Data: w.Bytes()}
}

// BuildGetAttributeSingle constructs a Get_Attribute_Single (0x0E) request
// against a Class/Instance/Attribute path.
func BuildGetAttributeSingle(path EPath) MRRequest {
	return MRRequest{Service: SvcGetAttributeSingle, Path: path}
}

// TickTimeDomainMax is the largest millisecond timeout representable by the
// tick_time/ticks encoding (255 << 15).
const TickTimeDomainMax = 255 << 15

// EncodeTickTime computes the smallest tick_time such that
// (millisec >> tick_time) <= 255, and the corresponding ticks value.
// Domain: 0..8355840 ms (255<<15).
func EncodeTickTime(millisec uint32) (tickTime, ticks byte, err error) {
	if millisec > TickTimeDomainMax {
		return 0, 0, fmt.Errorf("cip: timeout %dms exceeds tick-time domain (max %d)", millisec, TickTimeDomainMax)
	}
	var t byte
	for (millisec >> t) > 255 {
		t++
	}
	return t, byte(millisec >> t), nil
}

// BuildUnconnectedSend wraps an inner CIP request for routing through the
// Connection Manager: priority_tick(1) | timeout_ticks(1) | inner_size(2 LE)
// | inner_bytes | pad_to_even | port_path_size_words(1) | reserved(1) |
// port_path_bytes. The outer request addresses Connection Manager
// class 0x06 instance 1, service 0x52.
func BuildUnconnectedSend(inner []byte, portPath EPath, timeoutMs uint32) (MRRequest, error) {
	tickTime, ticks, err := EncodeTickTime(timeoutMs)
	if err != nil {
		return MRRequest{}, err
	}

	w := wire.NewWriter()
	w.PutU8(tickTime)
	w.PutU8(ticks)
	w.PutU16(uint16(len(inner)))
	w.PutBytes(inner)
	w.PadToEven()
	w.PutU8(portPath.WordLen())
	w.PutU8(0) // reserved
	w.PutBytes(portPath)

	cmPath := ClassInstancePath(ClassConnectionManager, 1, 0)
	return MRRequest{Service: SvcUnconnectedSend, Path: cmPath, Data: w.Bytes()}, nil
}

package cip

import (
	"fmt"

	"github.com/yatesdr/ethip/errs"
	"github.com/yatesdr/ethip/wire"
)

// MultiRequestPath addresses the Message Router object, instance 1 — the
// fixed destination for a MultipleServicePacket request.
func MultiRequestPath() EPath {
	return ClassInstancePath(ClassMessageRouter, 1, 0)
}

// BuildMultiRequest bundles pre-marshaled CIP requests into one
// MultipleServicePacket (0x0A) request: count(2 LE) | offset[..](2 LE each)
// | request_0 | request_1 | ... . Offsets are byte offsets measured from the
// start of the count field.
func BuildMultiRequest(requests [][]byte) MRRequest {
	count := len(requests)
	w := wire.NewWriter()
	w.PutU16(uint16(count))

	offset := 2 + 2*count
	offsets := make([]int, count)
	for i, req := range requests {
		offsets[i] = offset
		offset += len(req)
	}
	for _, off := range offsets {
		w.PutU16(uint16(off))
	}
	for _, req := range requests {
		w.PutBytes(req)
	}

	return MRRequest{Service: SvcMultipleService, Path: MultiRequestPath(), Data: w.Bytes()}
}

// MultiRequestSize returns the byte size of a MultipleServicePacket request
// data region for count items whose combined marshaled size is
// itemsTotalSize — used to test the transfer_buffer_limit before actually
// building the frame.
func MultiRequestSize(count, itemsTotalSize int) int {
	return 2 + 2*count + itemsTotalSize
}

// ParseMultiResponse splits a MultipleServicePacket response payload back
// into individual sub-response byte slices, validating the offset table
// invariants along the way.
func ParseMultiResponse(data []byte) ([][]byte, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: MultiResponse too short", errs.ErrProtocol)
	}
	count := int(wire.U16(data, 0))
	if count == 0 {
		return nil, nil
	}
	if len(data) < 2+2*count {
		return nil, fmt.Errorf("%w: MultiResponse offset table truncated", errs.ErrProtocol)
	}
	offsets := make([]int, count)
	for i := 0; i < count; i++ {
		offsets[i] = int(wire.U16(data, 2+2*i))
	}
	if offsets[0] != 2+2*count {
		return nil, fmt.Errorf("%w: MultiResponse offset[0]=%d, want %d", errs.ErrProtocol, offsets[0], 2+2*count)
	}
	out := make([][]byte, count)
	for i := 0; i < count; i++ {
		var end int
		if i+1 < count {
			end = offsets[i+1]
			if end <= offsets[i] {
				return nil, fmt.Errorf("%w: MultiResponse offset[%d]=%d not increasing over offset[%d]=%d", errs.ErrProtocol, i+1, end, i, offsets[i])
			}
		} else {
			end = len(data)
		}
		if end > len(data) || offsets[i] > len(data) {
			return nil, fmt.Errorf("%w: MultiResponse offset %d exceeds data length %d", errs.ErrProtocol, offsets[i], len(data))
		}
		out[i] = data[offsets[i]:end]
	}
	return out, nil
}

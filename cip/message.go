package cip

import (
	"fmt"

	"github.com/yatesdr/ethip/errs"
	"github.com/yatesdr/ethip/wire"
)

// Reply-bit set on a service byte marks a Message-Router response.
const ReplyBit = 0x80

// MRRequest is a Message Router request frame: service, path, and
// service-specific data appended after the path.
type MRRequest struct {
	Service byte
	Path    EPath
	Data    []byte
}

// Marshal encodes the request as service(1) | path_size_words(1) | path | data.
func (r MRRequest) Marshal() []byte {
	w := wire.NewWriter()
	w.PutU8(r.Service)
	w.PutU8(r.Path.WordLen())
	w.PutBytes(r.Path)
	w.PutBytes(r.Data)
	return w.Bytes()
}

// MRResponse is a parsed Message Router response frame.
type MRResponse struct {
	Service       byte
	GeneralStatus byte
	ExtStatus     []uint16
	Data          []byte
}

// ParseMRResponse decodes a Message Router response buffer:
// service|0x80(1) | reserved(1) | general_status(1) | ext_status_size_words(1)
// | ext_status_words[ext_size] | data.
func ParseMRResponse(buf []byte) (MRResponse, error) {
	if len(buf) < 4 {
		return MRResponse{}, fmt.Errorf("cip: MR_Response too short: %d bytes", len(buf))
	}
	r := wire.NewReader(buf)
	service, _ := r.ReadU8()
	if _, err := r.ReadU8(); err != nil { // reserved
		return MRResponse{}, err
	}
	genStatus, _ := r.ReadU8()
	extSize, err := r.ReadU8()
	if err != nil {
		return MRResponse{}, err
	}
	ext := make([]uint16, 0, extSize)
	for i := 0; i < int(extSize); i++ {
		w, err := r.ReadU16()
		if err != nil {
			return MRResponse{}, fmt.Errorf("cip: MR_Response: truncated extended status: %w", err)
		}
		ext = append(ext, w)
	}
	data := buf[r.Pos():]
	return MRResponse{
		Service:       service,
		GeneralStatus: genStatus,
		ExtStatus:     ext,
		Data:          data,
	}, nil
}

// DataOffset returns the byte offset of the data region within a raw
// MR_Response buffer given its extended-status word count, per the
// "4 + 2*ext_status_size" accessor rule. Length is clamped to 0 if the
// buffer is shorter than the computed offset.
func DataOffset(totalLen int, extStatusWords int) (offset, length int) {
	offset = 4 + 2*extStatusWords
	length = totalLen - offset
	if length < 0 {
		length = 0
	}
	return offset, length
}

// CheckReply verifies the response's service byte echoes the request
// service with the reply bit set.
func CheckReply(requestService, responseService byte) error {
	if responseService != requestService|ReplyBit {
		return fmt.Errorf("%w: response service %#x does not echo request service %#x", errs.ErrProtocol, responseService, requestService)
	}
	return nil
}

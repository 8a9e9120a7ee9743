package cip

import "fmt"

// Known extended-status words under general status 0xFF.
const (
	ExtStatusIndexOutOfRange    uint16 = 0x2105
	ExtStatusTypeMismatch       uint16 = 0x2107
	ExtStatusOffsetPastTemplate uint16 = 0x2104
	ExtStatusConnectionNotFound uint16 = 0x0107
)

// generalStatusNames covers the general-status codes this driver expects to
// see in practice. The enum is open: anything absent here is reported as
// "unknown", never silently treated as success.
var generalStatusNames = map[byte]string{
	0x00: "success",
	0x01: "connection failure",
	0x02: "resource unavailable",
	0x03: "invalid parameter value",
	0x04: "path segment error",
	0x05: "path destination unknown",
	0x08: "service not supported",
	0x09: "invalid attribute value",
	0x0C: "object state conflict",
	0x0E: "attribute not settable",
	0x13: "not enough data",
	0x14: "attribute not supported",
	0x15: "too much data",
	0x1E: "embedded service error",
	0xFF: "vendor/extended status",
}

var extStatusNames = map[uint16]string{
	ExtStatusIndexOutOfRange:    "array index out of range",
	ExtStatusTypeMismatch:       "type mismatch",
	ExtStatusOffsetPastTemplate: "offset past template",
	ExtStatusConnectionNotFound: "connection not found",
}

// StatusName renders a general status (and any extended status words) into
// a diagnostic string, purely for logging/reporting; it never changes
// success/failure semantics, which are governed by GeneralStatus == 0 alone.
func StatusName(general byte, ext ...uint16) string {
	name, ok := generalStatusNames[general]
	if !ok {
		name = "unknown"
	}
	if len(ext) == 0 {
		return fmt.Sprintf("%#02x (%s)", general, name)
	}
	extName, ok := extStatusNames[ext[0]]
	if !ok {
		extName = "unknown"
	}
	return fmt.Sprintf("%#02x (%s), ext %#04x (%s)", general, name, ext[0], extName)
}

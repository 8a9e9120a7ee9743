// Package cip implements the Common Industrial Protocol layer: EPath
// construction, Message-Router request/response framing, and the CIP
// services (ReadData, WriteData, Get_Attribute_Single, Unconnected_Send,
// MultipleServicePacket) an EtherNet/IP client needs to talk to a Logix
// controller.
package cip

import (
	"fmt"

	"github.com/yatesdr/ethip/tagpath"
	"github.com/yatesdr/ethip/wire"
)

// Segment type bytes (CIP EPath logical/symbolic segment prefixes).
const (
	segClass8    = 0x20
	segInstance8 = 0x24
	segAttr8     = 0x30
	segSymbolic  = 0x91
	segElement8  = 0x28
	segElement16 = 0x29
	segElement32 = 0x2A
)

// EPath is an encoded CIP path: an even-length sequence of bytes, one
// "word" (2 bytes) at a time.
type EPath []byte

// WordLen returns the path length in 16-bit words, as CIP framing requires.
func (p EPath) WordLen() byte {
	return byte(len(p) / 2)
}

// PortSegment encodes a routing segment: port (1..14, backplane is port 1)
// and link address (the slot, for a backplane port).
func PortSegment(port, link byte) (EPath, error) {
	if port == 0 || port >= 15 {
		return nil, fmt.Errorf("cip: port %d out of range (1..14)", port)
	}
	return EPath{port, link}, nil
}

// ClassSegment encodes an 8-bit logical class segment.
func ClassSegment(classID byte) EPath {
	return EPath{segClass8, classID}
}

// InstanceSegment encodes an 8-bit logical instance segment.
func InstanceSegment(instanceID byte) EPath {
	return EPath{segInstance8, instanceID}
}

// AttributeSegment encodes an 8-bit logical attribute segment. Callers omit
// this segment entirely when attribute == 0.
func AttributeSegment(attributeID byte) EPath {
	return EPath{segAttr8, attributeID}
}

// SymbolicSegment encodes an ASCII extended-symbol segment: 0x91, length,
// name bytes, padded to an even total length.
func SymbolicSegment(name string) EPath {
	w := wire.NewWriter()
	w.PutU8(segSymbolic)
	w.PutU8(byte(len(name)))
	w.PutBytes([]byte(name))
	w.PadToEven()
	return EPath(w.Bytes())
}

// ElementSegment encodes an array/member index segment, choosing the
// narrowest of the three CIP element-segment encodings.
func ElementSegment(idx uint32) EPath {
	w := wire.NewWriter()
	switch {
	case idx <= 0xFF:
		w.PutU8(segElement8)
		w.PutU8(byte(idx))
	case idx <= 0xFFFF:
		w.PutU8(segElement16)
		w.PutU8(0)
		w.PutU16(uint16(idx))
	default:
		w.PutU8(segElement32)
		w.PutU8(0)
		w.PutU32(idx)
	}
	return EPath(w.Bytes())
}

// BuildTagPath encodes a parsed tag path (tagpath.Path) as a sequence of
// symbolic-name and element-index segments.
func BuildTagPath(p tagpath.Path) (EPath, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("cip: empty tag path")
	}
	var out EPath
	for _, seg := range p {
		if seg.IsIndex {
			out = append(out, ElementSegment(seg.Index)...)
		} else {
			out = append(out, SymbolicSegment(seg.Name)...)
		}
	}
	return out, nil
}

// ClassInstancePath builds a Class/Instance[/Attribute] path, omitting the
// attribute segment when attributeID is 0.
func ClassInstancePath(classID, instanceID, attributeID byte) EPath {
	out := append(EPath{}, ClassSegment(classID)...)
	out = append(out, InstanceSegment(instanceID)...)
	if attributeID != 0 {
		out = append(out, AttributeSegment(attributeID)...)
	}
	return out
}

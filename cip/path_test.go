package cip

import (
	"bytes"
	"testing"

	"github.com/yatesdr/ethip/tagpath"
)

func TestBuildTagPathColonNameAndMember(t *testing.T) {
	p, err := tagpath.Parse("Local:2:I.Ch0Data")
	if err != nil {
		t.Fatalf("tagpath.Parse: %v", err)
	}
	got, err := BuildTagPath(p)
	if err != nil {
		t.Fatalf("BuildTagPath: %v", err)
	}
	want := []byte{
		0x91, 0x07, 'L', 'o', 'c', 'a', 'l', ':', '2', 0x00,
		0x91, 0x03, ':', 'I', 0x00,
		0x91, 0x07, 'C', 'h', '0', 'D', 'a', 't', 'a', 0x00,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("BuildTagPath = % X, want % X", got, want)
	}
	if len(got)%2 != 0 {
		t.Fatalf("path length %d is not even", len(got))
	}
	if int(EPath(got).WordLen()) != len(got)/2 {
		t.Fatalf("WordLen() mismatch")
	}
}

func TestBuildTagPathIndexed(t *testing.T) {
	p, err := tagpath.Parse("arr[258]")
	if err != nil {
		t.Fatalf("tagpath.Parse: %v", err)
	}
	got, err := BuildTagPath(p)
	if err != nil {
		t.Fatalf("BuildTagPath: %v", err)
	}
	want := []byte{0x91, 0x03, 'a', 'r', 'r', 0x00, 0x29, 0x00, 0x02, 0x01}
	if !bytes.Equal(got, want) {
		t.Fatalf("BuildTagPath = % X, want % X", got, want)
	}
}

func TestElementSegmentWidths(t *testing.T) {
	if got := ElementSegment(5); !bytes.Equal(got, []byte{0x28, 0x05}) {
		t.Fatalf("8-bit element: got % X", got)
	}
	if got := ElementSegment(0x1234); !bytes.Equal(got, []byte{0x29, 0x00, 0x34, 0x12}) {
		t.Fatalf("16-bit element: got % X", got)
	}
	if got := ElementSegment(0x12345678); !bytes.Equal(got, []byte{0x2A, 0x00, 0x78, 0x56, 0x34, 0x12}) {
		t.Fatalf("32-bit element: got % X", got)
	}
}

func TestClassInstancePath(t *testing.T) {
	got := ClassInstancePath(0x6B, 1, 7)
	want := []byte{0x20, 0x6B, 0x24, 0x01, 0x30, 0x07}
	if !bytes.Equal(got, want) {
		t.Fatalf("ClassInstancePath = % X, want % X", got, want)
	}
	// Attribute 0 must be omitted.
	got = ClassInstancePath(0x01, 1, 0)
	want = []byte{0x20, 0x01, 0x24, 0x01}
	if !bytes.Equal(got, want) {
		t.Fatalf("ClassInstancePath (no attr) = % X, want % X", got, want)
	}
}

func TestWordSizeInvariant(t *testing.T) {
	tags := []string{"Local:2:I.Ch0Data", "arr[258]", "Simple", "a.b.c[7]"}
	for _, tag := range tags {
		p, err := tagpath.Parse(tag)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tag, err)
		}
		built, err := BuildTagPath(p)
		if err != nil {
			t.Fatalf("BuildTagPath(%q): %v", tag, err)
		}
		if int(built.WordLen())*2 != len(built) {
			t.Fatalf("%q: word_size*2 (%d) != byte length (%d)", tag, int(built.WordLen())*2, len(built))
		}
	}
}

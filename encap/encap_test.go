package encap

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		Command:       CmdSendRRData,
		Length:        10,
		SessionHandle: 0x12345678,
		Status:        0,
		Context:       DefaultContext,
		Options:       0,
	}
	buf := h.Marshal()
	if len(buf) != HeaderSize {
		t.Fatalf("Marshal length = %d, want %d", len(buf), HeaderSize)
	}
	got, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestParseHeaderShort(t *testing.T) {
	if _, err := ParseHeader(make([]byte, 10)); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestListServicesCIPFlag(t *testing.T) {
	entries := []ServiceEntry{
		{TypeID: 0x0100, Flags: 0x0000, Name: "no cip"},
		{TypeID: 0x0100, Flags: cipPDUFlagBit, Name: "Communications"},
	}
	if entries[0].SupportsCIP() {
		t.Fatal("entry 0 should not support CIP")
	}
	if !entries[1].SupportsCIP() {
		t.Fatal("entry 1 should support CIP")
	}
	if !AnySupportsCIP(entries) {
		t.Fatal("AnySupportsCIP should be true")
	}
	if AnySupportsCIP(entries[:1]) {
		t.Fatal("AnySupportsCIP should be false without a supporting entry")
	}
}

func TestParseListServicesResponse(t *testing.T) {
	name := make([]byte, 16)
	copy(name, "Communications")
	buf := []byte{0x01, 0x00} // count = 1
	buf = append(buf, 0x00, 0x01) // type
	buf = append(buf, 0x14, 0x00) // length
	buf = append(buf, 0x01, 0x00) // version
	buf = append(buf, 0x20, 0x00) // flags: bit 5 set
	buf = append(buf, name...)

	entries, err := ParseListServicesResponse(buf)
	if err != nil {
		t.Fatalf("ParseListServicesResponse: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Name != "Communications" {
		t.Fatalf("Name = %q", entries[0].Name)
	}
	if !entries[0].SupportsCIP() {
		t.Fatal("expected CIP support flag")
	}
}

func TestRegisterSessionPayloadRoundTrip(t *testing.T) {
	payload := RegisterSessionPayload()
	ver, opts, err := ParseRegisterSessionResponse(payload)
	if err != nil {
		t.Fatalf("ParseRegisterSessionResponse: %v", err)
	}
	if ver != 1 || opts != 0 {
		t.Fatalf("got version=%d options=%d, want 1,0", ver, opts)
	}
}

func TestSendRRDataRoundTrip(t *testing.T) {
	inner := []byte{0x52, 0x02, 0x20, 0x06, 0x24, 0x01, 0xAA, 0xBB}
	envelope := BuildSendRRData(inner)

	// Fixed preamble matches spec exactly.
	want := []byte{0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0xB2, 0x00, byte(len(inner)), 0x00}
	if !bytes.Equal(envelope[:16], want) {
		t.Fatalf("preamble = % X, want % X", envelope[:16], want)
	}

	got, err := ParseSendRRData(envelope)
	if err != nil {
		t.Fatalf("ParseSendRRData: %v", err)
	}
	if !bytes.Equal(got, inner) {
		t.Fatalf("parsed inner = % X, want % X", got, inner)
	}
}

func TestStatusNameUnknown(t *testing.T) {
	if got := StatusName(0xEE); got != "0xee (unknown)" {
		t.Fatalf("StatusName(0xEE) = %q", got)
	}
	if got := StatusName(StatusOK); got == "" {
		t.Fatal("StatusName(StatusOK) should not be empty")
	}
}

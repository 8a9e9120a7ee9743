package ethip

import (
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/yatesdr/ethip/cip"
	"github.com/yatesdr/ethip/encap"
	"github.com/yatesdr/ethip/registry"
	"github.com/yatesdr/ethip/wire"
)

// fakePLC completes the encapsulation handshake and answers every
// ReadData request (bare or bundled) with a canned DINT value of 42.
func fakePLC(t *testing.T, conn net.Conn) {
	t.Helper()
	for {
		hdrBuf := make([]byte, encap.HeaderSize)
		if _, err := readFullT(conn, hdrBuf); err != nil {
			return
		}
		h, err := encap.ParseHeader(hdrBuf)
		if err != nil {
			return
		}
		payload := make([]byte, h.Length)
		if h.Length > 0 {
			if _, err := readFullT(conn, payload); err != nil {
				return
			}
		}

		switch h.Command {
		case encap.CmdListServices:
			writeFrameT(conn, h.Command, h.SessionHandle, encap.StatusOK, listServicesBytes())
		case encap.CmdRegisterSession:
			writeFrameT(conn, h.Command, 0xC0FFEE, encap.StatusOK, encap.RegisterSessionPayload())
		case encap.CmdUnRegisterSession:
			return
		case encap.CmdSendRRData:
			inner, err := encap.ParseSendRRData(payload)
			if err != nil {
				return
			}
			respInner := handleOuterUnconnectedSend(inner)
			writeFrameT(conn, h.Command, h.SessionHandle, encap.StatusOK, encap.BuildSendRRData(respInner))
		default:
			writeFrameT(conn, h.Command, h.SessionHandle, encap.StatusInvalidCommand, nil)
		}
	}
}

func readFullT(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func writeFrameT(conn net.Conn, cmd encap.Command, sessionHandle uint32, status uint32, payload []byte) {
	h := encap.Header{Command: cmd, Length: uint16(len(payload)), SessionHandle: sessionHandle, Status: status, Context: encap.DefaultContext}
	conn.Write(append(h.Marshal(), payload...))
}

func listServicesBytes() []byte {
	name := make([]byte, 16)
	copy(name, "Communications")
	w := wire.NewWriter()
	w.PutU16(1)
	w.PutU16(0x0100)
	w.PutU16(0x14)
	w.PutU16(1)
	w.PutU16(1 << 5)
	w.PutBytes(name)
	return w.Bytes()
}

func handleOuterUnconnectedSend(outer []byte) []byte {
	r := wire.NewReader(outer)
	outerService, _ := r.ReadU8()
	pathWords, _ := r.ReadU8()
	r.Skip(int(pathWords) * 2)
	r.Skip(2)
	innerSize, _ := r.ReadU16()
	inner, _ := r.ReadBytes(int(innerSize))

	embedded := handleRoutedRequest(inner)
	return marshalMRResponse(outerService|cip.ReplyBit, 0, embedded)
}

func handleRoutedRequest(req []byte) []byte {
	r := wire.NewReader(req)
	service, _ := r.ReadU8()
	pathWords, _ := r.ReadU8()
	r.Skip(int(pathWords) * 2)

	switch service {
	case cip.SvcReadData:
		value := wire.NewWriter()
		value.PutU16(cip.TypeDINT)
		value.PutU32(42)
		return marshalMRResponse(service|cip.ReplyBit, 0, value.Bytes())
	case cip.SvcMultipleService:
		subs, err := cip.ParseMultiResponse(req[r.Pos():]) // same count/offset layout as a request
		if err != nil {
			return marshalMRResponse(service|cip.ReplyBit, 0x04, nil)
		}
		replies := make([][]byte, len(subs))
		for i, sub := range subs {
			replies[i] = handleRoutedRequest(sub)
		}
		return marshalMRResponse(service|cip.ReplyBit, 0, cip.BuildMultiRequest(replies).Data)
	default:
		return marshalMRResponse(service|cip.ReplyBit, 0x08, nil)
	}
}

func marshalMRResponse(service, generalStatus byte, data []byte) []byte {
	w := wire.NewWriter()
	w.PutU8(service)
	w.PutU8(0)
	w.PutU8(generalStatus)
	w.PutU8(0)
	w.PutBytes(data)
	return w.Bytes()
}

func TestInitDefinePLCAddTagAndReport(t *testing.T) {
	// The scan worker always dials the fixed ENIP port (session.DefaultPort),
	// matching a real ControlLogix target, so this test needs a listener
	// bound to that exact port rather than an ephemeral one.
	ln, err := net.Listen("tcp", "127.0.0.1:44818")
	if err != nil {
		t.Skipf("cannot bind the standard ENIP port in this environment: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		fakePLC(t, conn)
	}()

	if err := Init(nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer Shutdown()

	plc := DefinePLC("unit1", "127.0.0.1", 0)
	if _, ok := FindPLC("unit1"); !ok {
		t.Fatal("expected FindPLC to find the just-defined PLC")
	}

	tag, err := AddTag(plc, 5*time.Millisecond, "Foo", 1)
	if err != nil {
		t.Fatalf("AddTag: %v", err)
	}

	seen := make(chan struct{}, 1)
	AddCallback(tag, func(tag *registry.TagInfo, arg any) {
		select {
		case seen <- struct{}{}:
		default:
		}
	}, nil)

	Restart(plc)
	select {
	case <-seen:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a callback dispatch")
	}

	value, valid := tag.Snapshot()
	if !valid {
		t.Fatal("expected a valid value after the scan worker ran")
	}
	if got := wire.U16(value, 0); got != cip.TypeDINT {
		t.Fatalf("type word = %#x, want DINT", got)
	}

	report := Report(2)
	if !strings.Contains(report, "unit1") {
		t.Fatalf("expected report to mention PLC name, got:\n%s", report)
	}

	dump := Dump()
	if !strings.Contains(dump, "Foo") {
		t.Fatalf("expected dump to mention tag name, got:\n%s", dump)
	}

	ResetStatistics(plc)
}

func TestSetActivityLogRecordsDefineAndShutdown(t *testing.T) {
	path := t.TempDir() + "/activity.log"
	if err := SetActivityLog(path); err != nil {
		t.Fatalf("SetActivityLog: %v", err)
	}
	defer SetActivityLog("")

	if err := Init(nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	plc := DefinePLC("logtest", "10.0.0.9", 1)
	Shutdown()
	_ = plc

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "define_plc logtest") {
		t.Fatalf("expected a define_plc entry, got:\n%s", content)
	}
	if !strings.Contains(content, "shutdown logtest") {
		t.Fatalf("expected a shutdown entry, got:\n%s", content)
	}
}

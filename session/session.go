// Package session implements the EtherNet/IP transport session: TCP
// connection lifecycle, the ListServices/RegisterSession/UnRegisterSession
// handshake, an identity probe, and framed send/receive of encapsulated
// messages over a growable receive buffer.
package session

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/yatesdr/ethip/encap"
	"github.com/yatesdr/ethip/errs"
)

// DefaultPort is the standard EtherNet/IP TCP port, 0xAF12.
const DefaultPort = 44818

// Session represents one TCP connection to a target and its registered
// EtherNet/IP session handle. Session ≠ 0 iff RegisterSession succeeded iff
// SendRRData is valid.
type Session struct {
	conn          net.Conn
	sessionHandle uint32
	timeout       time.Duration
	recv          *growBuf
	identity      Identity
}

// Dial resolves and connects to host:port, then performs the
// ListServices/RegisterSession handshake and an identity probe (best
// effort). It returns a ready-to-use Session or a classified error.
func Dial(host string, port uint16, timeout time.Duration) (*Session, error) {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return nil, fmt.Errorf("%w: %v", errs.ErrResolve, err)
		}
		return nil, fmt.Errorf("%w: %v", errs.ErrConnect, err)
	}

	s := &Session{conn: conn, timeout: timeout, recv: newGrowBuf()}
	if err := s.handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	s.identity = s.Identify()
	return s, nil
}

// WrapConn builds a Session around an already-established connection,
// still performing the handshake. Exercised by tests against net.Pipe.
func WrapConn(conn net.Conn, timeout time.Duration) (*Session, error) {
	s := &Session{conn: conn, timeout: timeout, recv: newGrowBuf()}
	if err := s.handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	s.identity = s.Identify()
	return s, nil
}

// IdentitySnapshot returns the identity gathered during connect. It is the zero
// value if every probe attribute failed.
func (s *Session) IdentitySnapshot() Identity {
	return s.identity
}

func (s *Session) handshake() error {
	listResp, err := s.transact(encap.CmdListServices, nil)
	if err != nil {
		return fmt.Errorf("%w: ListServices: %v", errs.ErrHandshake, err)
	}
	entries, err := encap.ParseListServicesResponse(listResp)
	if err != nil {
		return fmt.Errorf("%w: ListServices: %v", errs.ErrHandshake, err)
	}
	if !encap.AnySupportsCIP(entries) {
		return fmt.Errorf("%w: target does not advertise CIP PDU support", errs.ErrHandshake)
	}

	regHeader, regData, err := s.transactHeader(encap.CmdRegisterSession, encap.RegisterSessionPayload())
	if err != nil {
		return fmt.Errorf("%w: RegisterSession: %v", errs.ErrHandshake, err)
	}
	if regHeader.Status != encap.StatusOK {
		return fmt.Errorf("%w: RegisterSession status %s", errs.ErrHandshake, encap.StatusName(regHeader.Status))
	}
	if _, _, err := encap.ParseRegisterSessionResponse(regData); err != nil {
		return fmt.Errorf("%w: RegisterSession: %v", errs.ErrHandshake, err)
	}
	if regHeader.SessionHandle == 0 {
		return fmt.Errorf("%w: RegisterSession returned a zero session handle", errs.ErrHandshake)
	}
	s.sessionHandle = regHeader.SessionHandle
	return nil
}

// IsRegistered reports whether a session handle was granted.
func (s *Session) IsRegistered() bool {
	return s.sessionHandle != 0
}

// Close unregisters the session (best effort) and closes the socket.
func (s *Session) Close() error {
	if s.sessionHandle != 0 {
		s.transact(encap.CmdUnRegisterSession, nil) // response, if any, is ignored
		s.sessionHandle = 0
	}
	return s.conn.Close()
}

// SendRRData sends an unconnected CIP request wrapped in the SendRRData
// envelope and returns the inner CIP response bytes.
func (s *Session) SendRRData(inner []byte) ([]byte, error) {
	envelope := encap.BuildSendRRData(inner)
	resp, err := s.transact(encap.CmdSendRRData, envelope)
	if err != nil {
		return nil, err
	}
	return encap.ParseSendRRData(resp)
}

// transact sends one encapsulated command and returns its response payload
// (header stripped, status validated).
func (s *Session) transact(cmd encap.Command, payload []byte) ([]byte, error) {
	h, data, err := s.transactHeader(cmd, payload)
	if err != nil {
		return nil, err
	}
	if h.Status != encap.StatusOK {
		return nil, fmt.Errorf("%w: %s response status %s", errs.ErrProtocol, cmd, encap.StatusName(h.Status))
	}
	return data, nil
}

// transactHeader sends one encapsulated command and returns both its parsed
// header and response payload, without validating status — callers that
// need the session handle out of a non-OK response (there are none in
// practice) can still see it.
func (s *Session) transactHeader(cmd encap.Command, payload []byte) (encap.Header, []byte, error) {
	req := encap.Header{
		Command:       cmd,
		Length:        uint16(len(payload)),
		SessionHandle: s.sessionHandle,
		Context:       encap.DefaultContext,
	}
	frame := append(req.Marshal(), payload...)

	if err := s.writeFrame(frame); err != nil {
		return encap.Header{}, nil, err
	}
	return s.readFrame()
}

// writeFrame sends a fully-framed encapsulation message; short writes are
// treated as a transport failure.
func (s *Session) writeFrame(frame []byte) error {
	if s.timeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	}
	n, err := s.conn.Write(frame)
	if err != nil {
		return fmt.Errorf("%w: send: %v", errs.ErrTransport, err)
	}
	if n != len(frame) {
		return fmt.Errorf("%w: short write: %d of %d bytes", errs.ErrTransport, n, len(frame))
	}
	return nil
}

// readFrame reads one full encapsulation message: header first, then grows
// the receive buffer as needed and reads the declared payload length.
func (s *Session) readFrame() (encap.Header, []byte, error) {
	if s.timeout > 0 {
		s.conn.SetReadDeadline(time.Now().Add(s.timeout))
	}

	headerBuf := s.recv.ensure(encap.HeaderSize)
	if _, err := io.ReadFull(s.conn, headerBuf); err != nil {
		return encap.Header{}, nil, fmt.Errorf("%w: recv header: %v", errs.ErrTransport, err)
	}
	h, err := encap.ParseHeader(headerBuf)
	if err != nil {
		return encap.Header{}, nil, err
	}

	total := encap.HeaderSize + int(h.Length)
	full := s.recv.ensure(total)
	copy(full, headerBuf)
	if h.Length > 0 {
		if _, err := io.ReadFull(s.conn, full[encap.HeaderSize:total]); err != nil {
			return encap.Header{}, nil, fmt.Errorf("%w: recv payload: %v", errs.ErrTransport, err)
		}
	}

	// Copy out of the shared receive buffer: callers may hold onto the
	// slice past the next read, which would otherwise alias it.
	data := make([]byte, h.Length)
	copy(data, full[encap.HeaderSize:total])
	return h, data, nil
}

// Package scan implements the per-PLC scan engine: connect/reconnect,
// discovery of unknown tag sizes, and the bundle/assemble/send/receive/
// dispatch/advance cycle that walks each scan list and serves its
// subscribers.
package scan

import (
	"fmt"
	"time"

	"github.com/yatesdr/ethip/cip"
	"github.com/yatesdr/ethip/errs"
	"github.com/yatesdr/ethip/registry"
	"github.com/yatesdr/ethip/session"
)

// DefaultTransferBufferLimit bounds the byte size of one MultiRequest
// bundle (data region only), matching the driver default of 500 bytes.
const DefaultTransferBufferLimit = 500

// DefaultIdleSleep is used when a PLC has no scan lists at all.
const DefaultIdleSleep = time.Second

// unconnectedSendTimeoutMs is the fixed Unconnected_Send routing timeout.
const unconnectedSendTimeoutMs = 245760

// Worker drives the scan cycle for one PLC. It is long-lived: create one
// with NewWorker and call Run in its own goroutine.
type Worker struct {
	PLC                 *registry.PLC
	Timeout             time.Duration
	TransferBufferLimit int
}

// NewWorker returns a Worker for plc using timeout for every socket
// operation and the default transfer buffer limit.
func NewWorker(plc *registry.PLC, timeout time.Duration) *Worker {
	return &Worker{PLC: plc, Timeout: timeout, TransferBufferLimit: DefaultTransferBufferLimit}
}

// Run executes the scan loop until PLC.Shutdown is closed. It is meant to
// run in its own goroutine, one per PLC; workers outlive their creator
// except for this explicit, additive shutdown signal.
func (w *Worker) Run() {
	for {
		select {
		case <-w.PLC.Shutdown:
			return
		default:
		}

		next := w.runOnce()

		sleepFor := time.Until(next)
		if sleepFor <= 0 {
			w.PLC.SlowScans.Add(1)
			continue
		}
		timer := time.NewTimer(sleepFor)
		select {
		case <-w.PLC.Shutdown:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// runOnce performs one full pass: connect if needed, discover unknown tag
// sizes, and scan every due list. It holds the PLC mutex for its entire
// duration, matching the concurrency model's "worker holds the PLC mutex
// for entire cycles". It returns the next time this PLC should be visited.
func (w *Worker) runOnce() time.Time {
	w.PLC.Lock()
	defer w.PLC.Unlock()

	now := time.Now()

	if w.PLC.Sess == nil {
		if err := w.connectLocked(); err != nil {
			w.PLC.ErrorCount++
			return now.Add(w.Timeout)
		}
		w.discoverLocked()
	}

	lists := w.PLC.Lists()
	if len(lists) == 0 {
		return now.Add(DefaultIdleSleep)
	}

	for _, list := range lists {
		if !list.Enabled || now.Before(list.NextScheduled) {
			continue
		}
		cycleStart := time.Now()
		if err := w.scanListLocked(list); err != nil {
			list.ErrorCount++
			w.PLC.ErrorCount++
			list.NextScheduled = time.Now().Add(w.Timeout)
			w.disconnectLocked()
			break
		}
		dur := time.Since(cycleStart)
		list.LastScanDuration = dur
		if list.MinScanDuration == 0 || dur < list.MinScanDuration {
			list.MinScanDuration = dur
		}
		if dur > list.MaxScanDuration {
			list.MaxScanDuration = dur
		}
		list.NextScheduled = cycleStart.Add(list.Period)
	}

	return nearestSchedule(w.PLC.Lists(), now)
}

func nearestSchedule(lists []*registry.ScanList, now time.Time) time.Time {
	var next time.Time
	for _, l := range lists {
		if !l.Enabled {
			continue
		}
		if next.IsZero() || l.NextScheduled.Before(next) {
			next = l.NextScheduled
		}
	}
	if next.IsZero() {
		return now.Add(DefaultIdleSleep)
	}
	return next
}

// connectLocked dials the PLC. Caller holds PLC.mu.
func (w *Worker) connectLocked() error {
	sess, err := session.Dial(w.PLC.Host, session.DefaultPort, w.Timeout)
	if err != nil {
		return err
	}
	w.PLC.Sess = sess
	w.PLC.Identity = sess.IdentitySnapshot()
	return nil
}

// disconnectLocked closes the transport session and invalidates every
// tag's cached value, per the reconnect contract in the error handling
// design: a transport failure marks all cached values stale.
func (w *Worker) disconnectLocked() {
	if w.PLC.Sess != nil {
		w.PLC.Sess.Close()
		w.PLC.Sess = nil
	}
	for _, list := range w.PLC.Lists() {
		for _, tag := range list.Tags() {
			tag.Lock()
			tag.ValidSize = 0
			tag.Unlock()
		}
	}
}

// sendUnconnectedRaw wraps inner (a marshaled MR_Request) in an
// Unconnected_Send routed to port 1 (backplane), link = the PLC's
// configured slot, sends it, and returns the embedded MR_Response of the
// routed service — status unchecked, since callers differ in how strictly
// they must treat a non-zero general status (a single discovery read
// treats any failure as fatal to that tag; a MultiRequest bundle treats
// only the outer envelope's failure as fatal to the whole exchange).
func (w *Worker) sendUnconnectedRaw(inner []byte) (cip.MRResponse, error) {
	portPath, err := cip.PortSegment(1, w.PLC.Slot)
	if err != nil {
		return cip.MRResponse{}, fmt.Errorf("%w: %v", errs.ErrParse, err)
	}
	outerReq, err := cip.BuildUnconnectedSend(inner, portPath, unconnectedSendTimeoutMs)
	if err != nil {
		return cip.MRResponse{}, err
	}
	raw, err := w.PLC.Sess.SendRRData(outerReq.Marshal())
	if err != nil {
		return cip.MRResponse{}, err
	}
	outerResp, err := cip.ParseMRResponse(raw)
	if err != nil {
		return cip.MRResponse{}, err
	}
	if err := cip.CheckReply(outerReq.Service, outerResp.Service); err != nil {
		return cip.MRResponse{}, err
	}
	if outerResp.GeneralStatus != 0 {
		return cip.MRResponse{}, fmt.Errorf("%w: Unconnected_Send status %s", errs.ErrProtocol, cip.StatusName(outerResp.GeneralStatus))
	}
	return cip.ParseMRResponse(outerResp.Data)
}

// sendUnconnected is sendUnconnectedRaw with the embedded response's own
// general status enforced — the right behavior for a single, standalone
// request such as a discovery read.
func (w *Worker) sendUnconnected(inner []byte) ([]byte, error) {
	innerResp, err := w.sendUnconnectedRaw(inner)
	if err != nil {
		return nil, err
	}
	if innerResp.GeneralStatus != 0 {
		return nil, fmt.Errorf("%w: %s", errs.ErrProtocol, cip.StatusName(innerResp.GeneralStatus, innerResp.ExtStatus...))
	}
	return innerResp.Data, nil
}

package scan

import (
	"fmt"

	"github.com/yatesdr/ethip/cip"
	"github.com/yatesdr/ethip/errs"
	"github.com/yatesdr/ethip/registry"
	"github.com/yatesdr/ethip/wire"
)

// embeddedServiceError is the general status a MultipleServicePacket
// response carries when at least one embedded request failed; the bundle
// itself still parses and per-item statuses are inspected individually.
const embeddedServiceError = 0x1E

// planned is one tag's contribution to a bundle: the request item bytes
// already built, and whether it turned out to be a write.
type planned struct {
	tag     *registry.TagInfo
	item    []byte
	writing bool

	// discoverRead marks a read chosen only because a write is pending but
	// its data type is not yet known (tag.Value has never been populated).
	// Its result must be committed to tag.Value even though a write is
	// pending, or the write could never latch and would be re-attempted
	// forever. See dispatchOne.
	discoverRead bool

	// respSize is the cached expected response size for this item (RRespSize
	// for a read, WRespSize for a write), used by bundle to bound the
	// tentative MultiResponse size alongside the request size. 0 if the
	// discovery read that would have populated it has not run yet.
	respSize int
}

// scanListLocked walks list from its first tag to its last, sending as many
// MultiRequest bundles as the transfer buffer limit requires to cover the
// whole list in one visit — the list itself carries no cross-cycle cursor.
// Caller holds PLC.mu.
func (w *Worker) scanListLocked(list *registry.ScanList) error {
	tags := list.Tags()
	pos := 0
	for pos < len(tags) {
		batch := w.bundle(tags[pos:])
		if len(batch) == 0 {
			break
		}
		if err := w.sendBundle(batch); err != nil {
			return err
		}
		pos += len(batch)
	}
	return nil
}

// bundle decides read-vs-write for each tag starting at the head of
// remaining, in order, stopping as soon as adding the next tag would push
// either the tentative MultiRequest or the tentative MultiResponse past the
// transfer buffer limit — a handful of array reads can each carry a tiny
// request but a large response, so the request size alone is not enough to
// bound the reply. The first tag is always included even if it alone
// exceeds the limit, to guarantee forward progress.
func (w *Worker) bundle(remaining []*registry.TagInfo) []planned {
	var chosen []planned
	var items [][]byte
	respTotal := 0

	for _, tag := range remaining {
		p, ok := w.planTag(tag)
		if !ok {
			continue
		}
		candidateItems := append(append([][]byte{}, items...), p.item)
		candidateRespTotal := respTotal + p.respSize
		total := 0
		for _, it := range candidateItems {
			total += len(it)
		}
		reqSize := cip.MultiRequestSize(len(candidateItems), total)
		respSize := cip.MultiRequestSize(len(candidateItems), candidateRespTotal)
		if (reqSize > w.TransferBufferLimit || respSize > w.TransferBufferLimit) && len(chosen) > 0 {
			if p.writing {
				// planTag latched this write, but it is not going out in
				// this bundle: hand it back so the next bundle plans it again.
				tag.Lock()
				tag.WritingNow = false
				tag.WritePending = true
				tag.Unlock()
			}
			break
		}
		chosen = append(chosen, p)
		items = candidateItems
		respTotal = candidateRespTotal
		if reqSize > w.TransferBufferLimit || respSize > w.TransferBufferLimit {
			break
		}
	}
	return chosen
}

// planTag decides whether tag reads or writes this cycle and builds its
// request item. It latches WritingNow and clears WritePending under the tag
// mutex, at commit time: the (1,1)->(0,1) transition in the write-handoff
// protocol happens here, when the write is built into the outgoing request,
// not later when its response is dispatched. This lets a RequestWrite call
// that arrives while this write is already in flight raise WritePending
// again for the next cycle instead of being silently absorbed by the first
// write's eventual response.
func (w *Worker) planTag(tag *registry.TagInfo) (planned, bool) {
	tag.Lock()
	path := tag.ParsedTag
	elements := tag.ElementCount
	writePending := tag.WritePending
	canWrite := writePending && len(tag.Value) >= 2
	var dataType uint16
	var writeVal []byte
	var respSize int
	if canWrite {
		dataType = wire.U16(tag.Value, 0)
		writeVal = append([]byte(nil), tag.PendingWrite...)
		respSize = tag.WRespSize
		tag.WritingNow = true
		tag.WritePending = false
	} else {
		respSize = tag.RRespSize
	}
	tag.Unlock()

	builtPath, err := cip.BuildTagPath(path)
	if err != nil {
		if canWrite {
			tag.Lock()
			tag.WritingNow = false
			tag.Unlock()
		}
		return planned{}, false
	}

	if canWrite {
		req := cip.BuildWriteData(builtPath, dataType, elements, writeVal)
		return planned{tag: tag, item: req.Marshal(), writing: true, respSize: respSize}, true
	}
	req := cip.BuildReadData(builtPath, elements)
	// writePending with canWrite false means the type is still unknown;
	// this read exists to discover it, not because no write was requested.
	return planned{tag: tag, item: req.Marshal(), writing: false, discoverRead: writePending, respSize: respSize}, true
}

// sendBundle assembles one MultiRequest from batch, sends it wrapped in an
// Unconnected_Send, and dispatches each sub-response. A transport or outer
// protocol failure is returned to the caller (which disconnects the whole
// PLC); a per-item CIP failure only affects that tag.
func (w *Worker) sendBundle(batch []planned) error {
	items := make([][]byte, len(batch))
	for i, p := range batch {
		items[i] = p.item
	}
	multiReq := cip.BuildMultiRequest(items)

	innerResp, err := w.sendUnconnectedRaw(multiReq.Marshal())
	if err != nil {
		return err
	}
	if innerResp.GeneralStatus != 0 && innerResp.GeneralStatus != embeddedServiceError {
		return fmt.Errorf("%w: MultiRequest status %s", errs.ErrProtocol, cip.StatusName(innerResp.GeneralStatus))
	}

	subResponses, err := cip.ParseMultiResponse(innerResp.Data)
	if err != nil {
		return err
	}
	if len(subResponses) != len(batch) {
		return fmt.Errorf("%w: MultiResponse count %d, want %d", errs.ErrProtocol, len(subResponses), len(batch))
	}

	for i, p := range batch {
		dispatchOne(p, subResponses[i])
	}
	return nil
}

// dispatchOne applies one sub-response to its tag under the tag mutex and
// invokes its subscribers, per the write/read halves of the dispatch step.
func dispatchOne(p planned, sub []byte) {
	mr, err := cip.ParseMRResponse(sub)

	p.tag.Lock()
	defer p.tag.Unlock()

	if p.writing {
		// WritePending was already cleared at commit time in planTag. Touching
		// it here would risk erasing a fresh RequestWrite that arrived while
		// this write was in flight, dropping it instead of deferring it to the
		// next cycle.
		if err != nil || mr.GeneralStatus != 0 {
			p.tag.ValidSize = 0
		}
		p.tag.WritingNow = false
		p.tag.Dispatch()
		return
	}

	// Reading. If a subscriber requested a write only after this read was
	// already in flight, the read result is discarded — the next cycle will
	// write instead. A read chosen specifically to discover a pending
	// write's type (discoverRead) is always committed, or the write could
	// never latch and would be re-planned as a discovery read forever.
	if p.tag.WritePending && !p.discoverRead {
		return
	}
	if err != nil || mr.GeneralStatus != 0 {
		p.tag.ValidSize = 0
		p.tag.Dispatch()
		return
	}
	p.tag.Value = append(p.tag.Value[:0], mr.Data...)
	p.tag.ValidSize = len(mr.Data)
	p.tag.Dispatch()
}

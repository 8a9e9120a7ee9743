package scan

import "github.com/yatesdr/ethip/cip"

// discoverLocked issues a standalone read for every tag whose CIP sizes are
// still unknown, caching the request/response sizes needed later to size a
// MultiRequest bundle and to derive whether writes are supported. Per-tag
// failure is tolerated; the PLC connection is not torn down over it. Caller
// holds PLC.mu.
func (w *Worker) discoverLocked() {
	for _, list := range w.PLC.Lists() {
		for _, tag := range list.Tags() {
			tag.Lock()
			known := tag.RReqSize != 0
			path := tag.ParsedTag
			elements := tag.ElementCount
			tag.Unlock()
			if known {
				continue
			}

			builtPath, err := cip.BuildTagPath(path)
			if err != nil {
				continue
			}
			mrReq := cip.BuildReadData(builtPath, elements)
			reqBytes := mrReq.Marshal()

			respData, err := w.sendUnconnected(reqBytes)
			if err != nil {
				continue
			}

			tag.Lock()
			tag.RReqSize = len(reqBytes)
			tag.RRespSize = 4 + len(respData) // MR_Response header + type word + value
			if tag.RRespSize <= 4 {
				tag.WReqSize = 0
				tag.WRespSize = 0
			} else {
				tag.WReqSize = tag.RReqSize + (tag.RRespSize - 4)
				tag.WRespSize = 4
			}
			tag.Unlock()
		}
	}
}

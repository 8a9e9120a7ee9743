package scan

import "github.com/yatesdr/ethip/registry"

// ResetStatistics clears every counter on plc and its scan lists. It takes
// the PLC mutex itself; callers must not already hold it.
func ResetStatistics(plc *registry.PLC) {
	plc.Lock()
	defer plc.Unlock()

	plc.ErrorCount = 0
	plc.SlowScans.Store(0)

	for _, list := range plc.Lists() {
		list.ErrorCount = 0
		list.LastScanDuration = 0
		list.MinScanDuration = 0
		list.MaxScanDuration = 0
	}
}

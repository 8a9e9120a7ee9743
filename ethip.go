// Package ethip is the public surface of an EtherNet/IP CIP client and
// scan-engine driver for Allen-Bradley ControlLogix controllers: define a
// PLC, subscribe tags at a period, and get called back as fresh values
// arrive, or read a single tag ad hoc without touching the registry at
// all.
package ethip

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/yatesdr/ethip/cip"
	"github.com/yatesdr/ethip/config"
	"github.com/yatesdr/ethip/logging"
	"github.com/yatesdr/ethip/registry"
	"github.com/yatesdr/ethip/scan"
	"github.com/yatesdr/ethip/session"
	"github.com/yatesdr/ethip/tagpath"
)

var (
	globalMu       sync.Mutex
	globalRegistry *registry.Registry
	globalWorkers  map[*registry.PLC]*scan.Worker
	globalTimeout  time.Duration
	globalVerbose  int

	activityMu     sync.Mutex
	globalActivity *logging.ActivityLogger
)

// SetActivityLog opens a plain append-only activity log at path — PLC
// define/restart/shutdown events, distinct from the hex-dump protocol
// tracing logging.DebugLogger provides. Pass "" to stop logging and close
// any previously opened file. Guarded by its own mutex, independent of
// globalMu, so it can be called from within DefinePLC/Restart/Shutdown
// without a self-deadlock.
func SetActivityLog(path string) error {
	activityMu.Lock()
	defer activityMu.Unlock()
	if globalActivity != nil {
		globalActivity.Close()
		globalActivity = nil
	}
	if path == "" {
		return nil
	}
	l, err := logging.NewActivityLogger(path)
	if err != nil {
		return err
	}
	globalActivity = l
	return nil
}

func logActivity(event, plcName, detail string) {
	activityMu.Lock()
	l := globalActivity
	activityMu.Unlock()
	if l != nil {
		l.LogEvent(event, plcName, detail)
	}
}

// Init creates the process-wide registry, defines every enabled PLC named
// in cfg, and starts a scan worker for each — mirroring the integration
// layer's `drvEtherIP_define_PLC`/`drvEtherIP_restart` entry points in one
// call. It adds no tags: PLCConfig carries no tag list, so tags are added
// with AddTag afterwards. cfg may be nil, in which case Init just prepares
// an empty registry for DefinePLC/AddTag to be called directly.
func Init(cfg *config.Config) error {
	globalMu.Lock()
	globalRegistry = registry.New()
	globalWorkers = make(map[*registry.PLC]*scan.Worker)
	globalTimeout = 5 * time.Second
	if cfg != nil {
		globalVerbose = cfg.Verbosity
	}
	globalMu.Unlock()

	if cfg == nil {
		return nil
	}
	rate := cfg.DefaultRate
	if rate <= 0 {
		rate = time.Second
	}
	for _, pc := range cfg.PLCs {
		if !pc.Enabled {
			continue
		}
		period := pc.Period
		if period <= 0 {
			period = rate
		}
		plc := DefinePLC(pc.Name, pc.Address, pc.Slot)
		Restart(plc)
		_ = period // per-PLC period only matters once tags are added by the caller
	}
	return nil
}

// Shutdown closes every worker's shutdown channel and disconnects every
// PLC's transport session. It does not block waiting for workers to
// notice; workers are long-lived by contract and observe the channel on
// their own schedule.
func Shutdown() {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalRegistry == nil {
		return
	}
	for _, plc := range globalRegistry.PLCs() {
		select {
		case <-plc.Shutdown:
		default:
			close(plc.Shutdown)
			logActivity("shutdown", plc.Name, "")
		}
		plc.Lock()
		if plc.Sess != nil {
			plc.Sess.Close()
			plc.Sess = nil
		}
		plc.Unlock()
	}
}

// DefinePLC inserts or updates a PLC in the global registry.
func DefinePLC(name, host string, slot byte) *registry.PLC {
	globalMu.Lock()
	defer globalMu.Unlock()
	ensureInitLocked()
	plc := globalRegistry.DefinePLC(name, host, slot)
	logActivity("define_plc", name, fmt.Sprintf("host=%s slot=%d", host, slot))
	return plc
}

// AddTag subscribes a tag at the given period, creating or reusing its
// TagInfo.
func AddTag(plc *registry.PLC, period time.Duration, tagString string, elements uint16) (*registry.TagInfo, error) {
	globalMu.Lock()
	r := globalRegistry
	globalMu.Unlock()
	if r == nil {
		return nil, fmt.Errorf("ethip: Init has not been called")
	}
	return r.AddTag(plc, period, tagString, elements)
}

// AddCallback registers a subscriber on tag.
func AddCallback(tag *registry.TagInfo, fn registry.Callback, arg any) {
	tag.AddCallback(fn, arg)
}

// RemoveCallback removes a previously registered subscriber.
func RemoveCallback(tag *registry.TagInfo, fn registry.Callback, arg any) {
	tag.RemoveCallback(fn, arg)
}

// FindPLC looks up a PLC by name.
func FindPLC(name string) (*registry.PLC, bool) {
	globalMu.Lock()
	r := globalRegistry
	globalMu.Unlock()
	if r == nil {
		return nil, false
	}
	return r.FindPLC(name)
}

// Restart closes plc's transport session under the PLC mutex, so the scan
// worker reconnects on its next pass, and starts a scan worker for plc if
// one is not already running.
func Restart(plc *registry.PLC) {
	globalMu.Lock()
	defer globalMu.Unlock()
	ensureInitLocked()
	plc.Lock()
	if plc.Sess != nil {
		plc.Sess.Close()
		plc.Sess = nil
	}
	plc.Unlock()
	if _, running := globalWorkers[plc]; running {
		return
	}

	w := scan.NewWorker(plc, globalTimeout)
	globalWorkers[plc] = w
	go w.Run()
	logActivity("restart", plc.Name, "")
}

// ResetStatistics clears every counter on plc.
func ResetStatistics(plc *registry.PLC) {
	scan.ResetStatistics(plc)
}

// Report renders a diagnostic summary of every defined PLC and its scan
// lists. Verbosity level 0 lists PLCs only; level 1+ includes per-list
// statistics; level 2+ includes every tag's cached value state.
func Report(level int) string {
	globalMu.Lock()
	r := globalRegistry
	globalMu.Unlock()
	if r == nil {
		return "ethip: not initialized"
	}

	var sb strings.Builder
	for _, plc := range r.PLCs() {
		plc.Lock()
		fmt.Fprintf(&sb, "PLC %s (%s slot %d): errors=%d slow_scans=%d\n",
			plc.Name, plc.Host, plc.Slot, plc.ErrorCount, plc.SlowScans.Load())
		if level >= 1 {
			for _, list := range plc.Lists() {
				fmt.Fprintf(&sb, "  list period=%v enabled=%v errors=%d last=%v min=%v max=%v next=%v\n",
					list.Period, list.Enabled, list.ErrorCount,
					list.LastScanDuration, list.MinScanDuration, list.MaxScanDuration, list.NextScheduled)
				if level >= 2 {
					for _, tag := range list.Tags() {
						value, valid := tag.Snapshot()
						fmt.Fprintf(&sb, "    tag %s valid=%v value=% X\n", tag.TagString, valid, value)
					}
				}
			}
		}
		plc.Unlock()
	}
	return sb.String()
}

// Dump is Report at maximum verbosity.
func Dump() string {
	return Report(2)
}

func ensureInitLocked() {
	if globalRegistry == nil {
		globalRegistry = registry.New()
		globalWorkers = make(map[*registry.PLC]*scan.Worker)
		globalTimeout = 5 * time.Second
	}
}

// ReadTagAdhoc opens a standalone connection to host:slot, reads tag once,
// and closes the connection — no registry, no scan worker, no
// subscription. Intended for a caller's own CLI or test tool, matching the
// original `drvEtherIP_read_tag`/CLI test-tool contract without this
// package building a CLI itself.
func ReadTagAdhoc(host string, slot byte, tag string, elements uint16, timeout time.Duration) ([]byte, error) {
	sess, err := session.Dial(host, session.DefaultPort, timeout)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	parsed, err := tagpath.Parse(tag)
	if err != nil {
		return nil, err
	}
	path, err := cip.BuildTagPath(parsed)
	if err != nil {
		return nil, err
	}
	portPath, err := cip.PortSegment(1, slot)
	if err != nil {
		return nil, err
	}

	mrReq := cip.BuildReadData(path, elements)
	outerReq, err := cip.BuildUnconnectedSend(mrReq.Marshal(), portPath, 245760)
	if err != nil {
		return nil, err
	}

	raw, err := sess.SendRRData(outerReq.Marshal())
	if err != nil {
		return nil, err
	}
	outerResp, err := cip.ParseMRResponse(raw)
	if err != nil {
		return nil, err
	}
	if err := cip.CheckReply(outerReq.Service, outerResp.Service); err != nil {
		return nil, err
	}
	innerResp, err := cip.ParseMRResponse(outerResp.Data)
	if err != nil {
		return nil, err
	}
	if innerResp.GeneralStatus != 0 {
		return nil, fmt.Errorf("ethip: read %q: %s", tag, cip.StatusName(innerResp.GeneralStatus, innerResp.ExtStatus...))
	}
	return innerResp.Data, nil
}

// Package registry holds the in-memory tag database: PLCs, their scan
// lists, and the tags subscribed on each list. It is the structural half
// of the driver — the scan engine (package scan) is what actually talks to
// the wire; this package only tracks what to talk about and to whom to
// report results.
package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yatesdr/ethip/session"
	"github.com/yatesdr/ethip/tagpath"
)

// Callback is invoked once per successful or failed read/write dispatch for
// a tag, in registration order, while the tag's mutex is held. fn must not
// call back into the registry.
type Callback func(tag *TagInfo, arg any)

type subscriber struct {
	fn  Callback
	arg any
}

// TagInfo represents one subscribed tag on one PLC.
type TagInfo struct {
	mu sync.Mutex

	TagString    string
	ParsedTag    tagpath.Path
	ElementCount uint16

	// Cached CIP sizes from the discovery read; 0 means unknown.
	RReqSize  int
	RRespSize int
	WReqSize  int
	WRespSize int

	// Raw CIP value: type word (if known) followed by the value bytes, as
	// returned by ReadData. ValidSize == 0 means no valid data.
	Value     []byte
	ValidSize int

	WritePending bool
	WritingNow   bool
	PendingWrite []byte // value bytes staged by RequestWrite, copied at bundle time

	list *ScanList
	subs []subscriber
}

// Lock/Unlock expose the tag mutex to the scan engine, which must hold it
// across the read-decide-dispatch sequence described in the scan package.
func (t *TagInfo) Lock()   { t.mu.Lock() }
func (t *TagInfo) Unlock() { t.mu.Unlock() }

// List returns the scan list this tag belongs to.
func (t *TagInfo) List() *ScanList { return t.list }

// RequestWrite stages a value for write and sets WritePending. Safe to call
// from any goroutine; takes the tag mutex itself.
func (t *TagInfo) RequestWrite(value []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.PendingWrite = append([]byte(nil), value...)
	t.WritePending = true
}

// Snapshot returns a copy of the current valid value and whether it is
// valid, without requiring the caller to know about the mutex.
func (t *TagInfo) Snapshot() (value []byte, valid bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ValidSize == 0 {
		return nil, false
	}
	out := make([]byte, t.ValidSize)
	copy(out, t.Value[:t.ValidSize])
	return out, true
}

// dispatch invokes every subscriber callback in registration order. Caller
// must hold t.mu.
func (t *TagInfo) dispatch() {
	for _, s := range t.subs {
		s.fn(t, s.arg)
	}
}

// ScanList groups tags scheduled at the same period.
type ScanList struct {
	Period time.Duration

	Enabled       bool
	NextScheduled time.Time

	LastScanDuration time.Duration
	MinScanDuration  time.Duration
	MaxScanDuration  time.Duration
	ErrorCount       uint64

	tags []*TagInfo
}

// Tags returns the ordered tag list. Callers must hold the owning PLC's
// mutex while walking it during a scan cycle.
func (l *ScanList) Tags() []*TagInfo { return l.tags }

// PLC represents one target controller and its registered scan lists.
type PLC struct {
	mu sync.Mutex

	Name string
	Host string
	Slot byte

	Sess     *session.Session
	Identity session.Identity

	lists map[time.Duration]*ScanList

	ErrorCount uint64
	SlowScans  atomic.Uint64 // incremented without holding mu; see scan package

	Shutdown chan struct{}
}

// Lock/Unlock expose the PLC mutex to the scan engine.
func (p *PLC) Lock()   { p.mu.Lock() }
func (p *PLC) Unlock() { p.mu.Unlock() }

// Lists returns the scan lists in a stable, deterministic order (ascending
// period). Callers must hold the PLC mutex.
func (p *PLC) Lists() []*ScanList {
	out := make([]*ScanList, 0, len(p.lists))
	for _, l := range p.lists {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

// Registry is the top-level, process-wide set of known PLCs.
type Registry struct {
	mu   sync.Mutex
	plcs map[string]*PLC
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{plcs: make(map[string]*PLC)}
}

// DefinePLC inserts a PLC under the registry mutex. Calling it again with an
// existing name updates the host/slot in place rather than creating a
// second PLC.
func (r *Registry) DefinePLC(name, host string, slot byte) *PLC {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.plcs[name]; ok {
		p.mu.Lock()
		p.Host = host
		p.Slot = slot
		p.mu.Unlock()
		return p
	}

	p := &PLC{
		Name:     name,
		Host:     host,
		Slot:     slot,
		lists:    make(map[time.Duration]*ScanList),
		Shutdown: make(chan struct{}),
	}
	r.plcs[name] = p
	return p
}

// FindPLC looks up a PLC by name.
func (r *Registry) FindPLC(name string) (*PLC, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plcs[name]
	return p, ok
}

// PLCs returns a stable snapshot of all defined PLCs, sorted by name.
func (r *Registry) PLCs() []*PLC {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*PLC, 0, len(r.plcs))
	for _, p := range r.plcs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AddTag finds or creates a scan list at the given period, finds an
// existing TagInfo with the same tag string on this PLC, migrates it to a
// faster list if one is requested, and raises its element count to at
// least elements. Parsing happens once, at first sight of a new tag
// string.
func (r *Registry) AddTag(p *PLC, period time.Duration, tagString string, elements uint16) (*TagInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing := findTagLocked(p, tagString); existing != nil {
		if period < existing.list.Period {
			migrateTagLocked(p, existing, period)
		}
		if elements > existing.ElementCount {
			existing.ElementCount = elements
		}
		return existing, nil
	}

	parsed, err := tagpath.Parse(tagString)
	if err != nil {
		return nil, fmt.Errorf("registry: add_tag %q: %w", tagString, err)
	}

	list := p.lists[period]
	if list == nil {
		list = &ScanList{Period: period, Enabled: true}
		p.lists[period] = list
	}

	t := &TagInfo{
		TagString:    tagString,
		ParsedTag:    parsed,
		ElementCount: elements,
		list:         list,
	}
	list.tags = append(list.tags, t)
	return t, nil
}

// FindTag looks up a tag string on a PLC without creating it.
func (r *Registry) FindTag(p *PLC, tagString string) (*TagInfo, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t := findTagLocked(p, tagString)
	return t, t != nil
}

func findTagLocked(p *PLC, tagString string) *TagInfo {
	for _, list := range p.lists {
		for _, t := range list.tags {
			if t.TagString == tagString {
				return t
			}
		}
	}
	return nil
}

// migrateTagLocked moves an existing tag onto a new, faster scan list,
// creating that list if necessary. Caller holds p.mu.
func migrateTagLocked(p *PLC, t *TagInfo, period time.Duration) {
	old := t.list
	for i, cand := range old.tags {
		if cand == t {
			old.tags = append(old.tags[:i], old.tags[i+1:]...)
			break
		}
	}
	dst := p.lists[period]
	if dst == nil {
		dst = &ScanList{Period: period, Enabled: true}
		p.lists[period] = dst
	}
	dst.tags = append(dst.tags, t)
	t.list = dst
}

// funcIdentity returns a comparable identity for a func value; reflection
// is the only way to compare funcs in Go, and it is only ever used here for
// deduplication, never for invocation.
func funcIdentity(fn Callback) uintptr {
	return reflect.ValueOf(fn).Pointer()
}

// AddCallback registers fn/arg on a tag, ignoring the call if an identical
// fn+arg pair is already registered.
func (t *TagInfo) AddCallback(fn Callback, arg any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	want := funcIdentity(fn)
	for _, s := range t.subs {
		if funcIdentity(s.fn) == want && s.arg == arg {
			return
		}
	}
	t.subs = append(t.subs, subscriber{fn: fn, arg: arg})
}

// RemoveCallback removes every subscriber whose fn+arg identity matches.
func (t *TagInfo) RemoveCallback(fn Callback, arg any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	want := funcIdentity(fn)
	out := t.subs[:0]
	for _, s := range t.subs {
		if funcIdentity(s.fn) == want && s.arg == arg {
			continue
		}
		out = append(out, s)
	}
	t.subs = out
}

// Dispatch invokes every subscriber for the tag in order. Exported so the
// scan engine (a different package) can call it while holding the tag
// mutex it already acquired via Lock/Unlock.
func (t *TagInfo) Dispatch() { t.dispatch() }

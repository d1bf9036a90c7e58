package kyt

import (
	"sync"
	"time"
)

// State is the per-analyze() working set. It is single-owner: created
// fresh by one call to analyze(), mutated concurrently by the Tracer's
// worker pool during that call only, and discarded at return. All field
// access is serialized by mu — a single coarse lock is adequate given the
// modest fan-out (spec.md §5).
type State struct {
	mu sync.Mutex

	visitedAddr map[string]bool            // Key(chain, address) -> seen
	visitedTx   map[string]bool            // Key(chain, txid) -> seen
	flagged     []FlaggedEntity
	addrMeta    map[string]AddressMetadata // lower(address) -> metadata
	adjacency   map[string]map[string]bool // lower(address) -> set of predecessor lower(address)
	txTimestamps map[string]time.Time      // lower(txid) -> instant
	circularPaths [][]string
	apiCalls    int
}

// NewState allocates an empty TraceState.
func NewState() *State {
	return &State{
		visitedAddr:  make(map[string]bool),
		visitedTx:    make(map[string]bool),
		addrMeta:     make(map[string]AddressMetadata),
		adjacency:    make(map[string]map[string]bool),
		txTimestamps: make(map[string]time.Time),
	}
}

// MarkAddrVisited returns true if key was newly marked (i.e. this is the
// first time this (chain, address) pair has been marked; the Tracer marks
// an address when it pops it from the frontier).
func (s *State) MarkAddrVisited(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visitedAddr[key] {
		return false
	}
	s.visitedAddr[key] = true
	return true
}

// MarkTxVisited returns true if key was newly marked.
func (s *State) MarkTxVisited(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visitedTx[key] {
		return false
	}
	s.visitedTx[key] = true
	return true
}

func (s *State) IsAddrVisited(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visitedAddr[key]
}

func (s *State) AppendFlagged(f FlaggedEntity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flagged = append(s.flagged, f)
}

func (s *State) SetAddrMeta(lowerAddr string, md AddressMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addrMeta[lowerAddr] = md
}

// GetAddrMeta returns the cached per-run metadata and whether it was present.
func (s *State) GetAddrMeta(lowerAddr string) (AddressMetadata, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	md, ok := s.addrMeta[lowerAddr]
	return md, ok
}

// AddAdjacency records "from consumed funds reachable from predecessor".
func (s *State) AddAdjacency(from, predecessor string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.adjacency[from]
	if !ok {
		set = make(map[string]bool)
		s.adjacency[from] = set
	}
	set[predecessor] = true
}

func (s *State) SetTxTimestamp(lowerTx string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txTimestamps[lowerTx] = t
}

func (s *State) RecordCircularPath(path []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.circularPaths = append(s.circularPaths, path)
}

func (s *State) IncAPICalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiCalls++
}

// Snapshot returns copies of the fields the Risk Scorer and Report
// Builder read, taken under the lock so a reader never observes a
// partially updated map mid-trace.
type Snapshot struct {
	VisitedAddrCount int
	VisitedTxCount   int
	Flagged          []FlaggedEntity
	AddrMeta         map[string]AddressMetadata
	Adjacency        map[string]map[string]bool
	TxTimestamps     map[string]time.Time
	CircularPaths    [][]string
	APICalls         int
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	flagged := make([]FlaggedEntity, len(s.flagged))
	copy(flagged, s.flagged)

	addrMeta := make(map[string]AddressMetadata, len(s.addrMeta))
	for k, v := range s.addrMeta {
		addrMeta[k] = v
	}

	adjacency := make(map[string]map[string]bool, len(s.adjacency))
	for k, v := range s.adjacency {
		inner := make(map[string]bool, len(v))
		for p := range v {
			inner[p] = true
		}
		adjacency[k] = inner
	}

	txTimestamps := make(map[string]time.Time, len(s.txTimestamps))
	for k, v := range s.txTimestamps {
		txTimestamps[k] = v
	}

	circular := make([][]string, len(s.circularPaths))
	copy(circular, s.circularPaths)

	return Snapshot{
		VisitedAddrCount: len(s.visitedAddr),
		VisitedTxCount:   len(s.visitedTx),
		Flagged:          flagged,
		AddrMeta:         addrMeta,
		Adjacency:        adjacency,
		TxTimestamps:     txTimestamps,
		CircularPaths:    circular,
		APICalls:         s.apiCalls,
	}
}

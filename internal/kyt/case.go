package kyt

import (
	"sort"
	"sync"
	"time"
)

// Case Manager
//
// A convenience layer over repeated Analyze() calls, supplementing the
// core spec with the upstream service's history_service.py / investigator
// tagging: group one or more root transactions under a named case, run
// analyze() against each, let an investigator tag addresses the reports
// surfaced, and read back a merged chronological timeline. None of this
// changes Tracer or Scorer semantics — a Case only ever calls Analyze().
//
// Adapted from the teacher's InvestigationManager: same mutex+map CRUD
// shape, repurposed from CoinJoin theft-recovery cases to grouped KYT
// analyses of one or more root tx-ids.

// Case is one named grouping of analyses.
type Case struct {
	mu sync.Mutex

	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Status      string          `json:"status"` // "active"/"closed"
	RootTxIDs   []RootTx        `json:"rootTxIds"`
	Reports     []RiskReport    `json:"reports"`
	Tags        []TaggedAddress `json:"tags"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// RootTx is one (chain, tx-id) pair a case traces.
type RootTx struct {
	Chain string `json:"chain"`
	TxID  string `json:"txId"`
	Depth int    `json:"depth"`
}

// TaggedAddress is an investigator-provided label on an address. The
// address is not checked against the case's reports.
type TaggedAddress struct {
	Address  string    `json:"address"`
	Label    string    `json:"label"`
	Notes    string    `json:"notes,omitempty"`
	TaggedAt time.Time `json:"taggedAt"`
	TaggedBy string    `json:"taggedBy,omitempty"`
}

// TimelineEvent is one chronological entry in a case's merged timeline.
type TimelineEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	EventType   string    `json:"eventType"` // "analysis"/"flagged"/"tagged"
	Description string    `json:"description"`
	Chain       string    `json:"chain,omitempty"`
	TxID        string    `json:"txId,omitempty"`
	Address     string    `json:"address,omitempty"`
}

// CaseManager handles CRUD for cases.
type CaseManager struct {
	mu    sync.RWMutex
	cases map[string]*Case
}

func NewCaseManager() *CaseManager {
	return &CaseManager{cases: make(map[string]*Case)}
}

// CreateCase opens a new case around zero or more root transactions.
func (m *CaseManager) CreateCase(id, name, description string, roots []RootTx) *Case {
	now := time.Now()
	c := &Case{
		ID:          id,
		Name:        name,
		Description: description,
		Status:      "active",
		RootTxIDs:   roots,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	m.mu.Lock()
	m.cases[id] = c
	m.mu.Unlock()
	return c
}

func (m *CaseManager) GetCase(id string) (*Case, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cases[id]
	return c, ok
}

func (m *CaseManager) ListCases() []*Case {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]*Case, 0, len(m.cases))
	for _, c := range m.cases {
		list = append(list, c)
	}
	return list
}

// AddReport records one analyze() result against the case, replacing any
// prior report for the same (chain, tx-id, depth).
func (c *Case) AddReport(root RootTx, report RiskReport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	found := false
	for _, r := range c.RootTxIDs {
		if r.Chain == root.Chain && r.TxID == root.TxID && r.Depth == root.Depth {
			found = true
			break
		}
	}
	if !found {
		c.RootTxIDs = append(c.RootTxIDs, root)
	}

	for i, existing := range c.Reports {
		if existing.Chain == report.Chain && existing.TxID == report.TxID && existing.TraceDepth == report.TraceDepth {
			c.Reports[i] = report
			c.UpdatedAt = time.Now()
			return
		}
	}
	c.Reports = append(c.Reports, report)
	c.UpdatedAt = time.Now()
}

// TagAddress adds or updates an investigator label on an address; any
// address is accepted, whether or not the case's reports contain it.
func (c *Case) TagAddress(address, label, notes, taggedBy string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tag := TaggedAddress{Address: address, Label: label, Notes: notes, TaggedAt: time.Now(), TaggedBy: taggedBy}
	for i, existing := range c.Tags {
		if existing.Address == address {
			c.Tags[i] = tag
			c.UpdatedAt = time.Now()
			return
		}
	}
	c.Tags = append(c.Tags, tag)
	c.UpdatedAt = time.Now()
}

// Timeline merges every report's flagged entities and every tagging event
// into one chronological view.
func (c *Case) Timeline() []TimelineEvent {
	var events []TimelineEvent

	for _, r := range c.Reports {
		events = append(events, TimelineEvent{
			Timestamp:   r.AnalyzedAt,
			EventType:   "analysis",
			Description: "Analysis completed with score " + string(r.RiskScore.Level),
			Chain:       r.Chain,
			TxID:        r.TxID,
		})
		for _, f := range r.Flagged {
			events = append(events, TimelineEvent{
				Timestamp:   r.AnalyzedAt,
				EventType:   "flagged",
				Description: "Address flagged during trace",
				Chain:       f.Chain,
				TxID:        f.ViaTx,
				Address:     f.Address,
			})
		}
	}

	for _, t := range c.Tags {
		events = append(events, TimelineEvent{
			Timestamp:   t.TaggedAt,
			EventType:   "tagged",
			Description: "Address tagged as " + t.Label,
			Address:     t.Address,
		})
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

func (c *Case) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Status = status
	c.UpdatedAt = time.Now()
}

package kyt

import (
	"container/heap"
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/rawblock/kyt-engine/internal/cache"
	"github.com/rawblock/kyt-engine/internal/chainconfig"
)

// Default tuning constants for TracerConfig, from spec.md §5.
const (
	DefaultConcurrencyLimit = 5
	DefaultBatchCap         = 20
	DefaultMaxAddresses     = 1000
	DefaultMaxDepth         = 10
)

// TracerConfig parameterizes one Tracer. Zero value is not valid; use
// NewTracerConfig for the documented defaults.
type TracerConfig struct {
	ConcurrencyLimit int
	BatchCap         int
	MaxAddresses     int
	MaxDepth         int
	Scorer           ScorerConfig
}

func NewTracerConfig() TracerConfig {
	return TracerConfig{
		ConcurrencyLimit: DefaultConcurrencyLimit,
		BatchCap:         DefaultBatchCap,
		MaxAddresses:     DefaultMaxAddresses,
		MaxDepth:         DefaultMaxDepth,
		Scorer:           NewScorerConfig(),
	}
}

// TraceEvent is an optional progress notification emitted during a run,
// for a streaming consumer (e.g. a websocket hub). Nil-channel-safe:
// Analyze never blocks on a full or absent events channel.
type TraceEvent struct {
	Stage   string `json:"stage"`
	Chain   string `json:"chain"`
	Address string `json:"address,omitempty"`
	TxID    string `json:"txId,omitempty"`
	Depth   int    `json:"depth"`
}

func emitEvent(events chan<- TraceEvent, ev TraceEvent) {
	if events == nil {
		return
	}
	select {
	case events <- ev:
	default:
	}
}

// Tracer is the Tracer (C7): a priority-ordered, bounded, concurrent
// backward BFS over the provenance graph. Grounded on
// app/services/tracer.py's TransactionTracerService, generalized from
// asyncio tasks + a semaphore to goroutines + a buffered channel.
type Tracer struct {
	Provider BlockchainProvider
	Cache    cache.Cache
	Registry chainconfig.Registry
	History  HistoryRecorder // optional; nil disables audit persistence
	Config   TracerConfig
}

func NewTracer(p BlockchainProvider, c cache.Cache, reg chainconfig.Registry, cfg TracerConfig) *Tracer {
	return &Tracer{Provider: p, Cache: c, Registry: reg, Config: cfg}
}

// traceNode is the frontier's internal record (TraceNode in spec.md §3),
// plus a path slice used only for cycle detection and a seq used only
// to make heap ordering deterministic when depth and priority tie.
type traceNode struct {
	txID     string
	address  string
	depth    int
	parentTx string
	priority float64
	path     []string // lower-cased addresses from root to this node, inclusive
	seq      int
}

// nodeHeap orders by (depth asc, priority desc, seq asc) per spec.md §3's
// "smaller depth first, then larger priority score first, ties broken
// arbitrarily" — seq gives that arbitrary break a deterministic value.
type nodeHeap []*traceNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].depth != h[j].depth {
		return h[i].depth < h[j].depth
	}
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)   { *h = append(*h, x.(*traceNode)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Analyze is analyze(chain, tx-id, depth) -> RiskReport from spec.md §2.
func (t *Tracer) Analyze(ctx context.Context, chainSlug, txID string, depth int, events chan<- TraceEvent) (*RiskReport, error) {
	chainSlug = strings.ToLower(chainSlug)

	cc, ok := t.Registry.Lookup(chainSlug)
	if !ok {
		return nil, NewError(KindUnsupportedChain, chainSlug, "chain is not in the registry", nil)
	}
	if len(strings.TrimSpace(txID)) < 10 {
		return nil, NewError(KindInvalidTransaction, chainSlug, "tx id must be at least 10 characters", nil)
	}
	if depth < 1 || depth > t.Config.MaxDepth {
		return nil, NewError(KindInvalidTransaction, chainSlug, "depth out of range", nil)
	}

	riskKey := cache.RiskKey(chainSlug, txID, depth)
	if raw, found, err := t.Cache.Get(ctx, riskKey); err == nil && found {
		var cached RiskReport
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return &cached, nil
		}
	}

	state := NewState()
	interner := NewInterner()

	rootTx, err := t.fetchTx(ctx, chainSlug, txID, state)
	if err != nil {
		if IsKind(err, KindTxNotFound) {
			return nil, err
		}
		return nil, NewError(KindInvalidTransaction, chainSlug, "failed to fetch root transaction", err)
	}
	state.MarkTxVisited(interner.Key(chainSlug, txID))

	var seq int
	frontier := &nodeHeap{}
	heap.Init(frontier)
	for _, addr := range rootTx.SourceAddresses() {
		if addr == "" {
			continue
		}
		seq++
		heap.Push(frontier, &traceNode{
			txID:    txID,
			address: addr,
			depth:   0,
			path:    []string{interner.Intern(addr)},
			seq:     seq,
		})
	}

	processed := 0
	for frontier.Len() > 0 && processed < t.Config.MaxAddresses {
		if ctx.Err() != nil {
			return nil, NewError(KindCancelled, chainSlug, "analysis cancelled", ctx.Err())
		}

		currentDepth := (*frontier)[0].depth
		var batch []*traceNode
		for frontier.Len() > 0 && (*frontier)[0].depth == currentDepth && len(batch) < t.Config.BatchCap {
			if processed >= t.Config.MaxAddresses {
				break
			}
			node := heap.Pop(frontier).(*traceNode)
			key := interner.Key(chainSlug, node.address)
			if !state.MarkAddrVisited(key) {
				continue
			}
			batch = append(batch, node)
			processed++
		}
		if len(batch) == 0 {
			continue
		}

		children := t.processBatch(ctx, chainSlug, cc, batch, depth, state, interner, events)

		if ctx.Err() != nil {
			return nil, NewError(KindCancelled, chainSlug, "analysis cancelled", ctx.Err())
		}

		for _, child := range children {
			if child.depth > depth {
				continue
			}
			seq++
			child.seq = seq
			heap.Push(frontier, child)
		}
	}

	if processed >= t.Config.MaxAddresses {
		log.Printf("[Tracer] stopped: reached max address limit (%d), visited %d addresses", t.Config.MaxAddresses, processed)
	}

	snap := state.Snapshot()
	score := Score(snap, t.Config.Scorer)
	report := BuildReport(chainSlug, txID, depth, snap, score)

	if raw, err := json.Marshal(report); err == nil {
		if err := t.Cache.Set(ctx, riskKey, raw, cache.DefaultTTL); err != nil {
			log.Printf("[Tracer] failed to cache risk report: %v", err)
		}
	}
	recordHistory(ctx, t.History, report)

	return &report, nil
}

// processBatch runs one depth-layer's nodes concurrently, bounded by
// ConcurrencyLimit, and returns every child node any of them emitted.
// The layer completes (barrier) before the next layer is popped, per
// spec.md §5's batching rule.
func (t *Tracer) processBatch(ctx context.Context, chainSlug string, cc chainconfig.Config, batch []*traceNode, maxDepth int, state *State, interner *Interner, events chan<- TraceEvent) []*traceNode {
	sem := make(chan struct{}, t.Config.ConcurrencyLimit)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var children []*traceNode

	for _, node := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(n *traceNode) {
			defer wg.Done()
			defer func() { <-sem }()

			if ctx.Err() != nil {
				return
			}
			kids := t.processNode(ctx, chainSlug, cc, n, maxDepth, state, interner, events)
			if len(kids) == 0 {
				return
			}
			mu.Lock()
			children = append(children, kids...)
			mu.Unlock()
		}(node)
	}
	wg.Wait()

	return children
}

// processNode is the per-node state machine of spec.md §4.3.4:
// ACTIVE -> {FLAGGED_STOP, DEPTH_STOP, EXPANDED} -> DONE.
func (t *Tracer) processNode(ctx context.Context, chainSlug string, cc chainconfig.Config, node *traceNode, maxDepth int, state *State, interner *Interner, events chan<- TraceEvent) []*traceNode {
	emitEvent(events, TraceEvent{Stage: "visiting", Chain: chainSlug, Address: node.address, TxID: node.txID, Depth: node.depth})

	md := t.fetchAddrMeta(ctx, chainSlug, node.address, state)

	if len(md.Tags) > 0 {
		contribution := EntityContribution(md.Tags, node.depth, t.Config.Scorer)
		state.AppendFlagged(FlaggedEntity{
			Address:      node.address,
			Chain:        chainSlug,
			Tags:         md.Tags,
			Distance:     node.depth,
			ViaTx:        node.txID,
			Contribution: contribution,
		})
		emitEvent(events, TraceEvent{Stage: "flagged", Chain: chainSlug, Address: node.address, TxID: node.txID, Depth: node.depth})

		if hasDefinitiveTag(md.Tags) {
			return nil
		}
	}

	if node.depth >= maxDepth {
		return nil
	}

	if cc.Kind == chainconfig.UTXO {
		return t.expandUTXO(ctx, chainSlug, node, state, interner)
	}
	return t.expandAccount(ctx, chainSlug, cc, node, state, interner)
}

// expandUTXO is §4.3.5.
func (t *Tracer) expandUTXO(ctx context.Context, chainSlug string, node *traceNode, state *State, interner *Interner) []*traceNode {
	state.IncAPICalls()
	inputs, err := t.Provider.GetTxInputs(ctx, chainSlug, node.txID)
	if err != nil {
		log.Printf("[Tracer] failed to trace UTXO inputs for %s: %v", node.txID, err)
		return nil
	}

	nodeAddr := interner.Intern(node.address)
	var children []*traceNode

	for _, in := range inputs {
		if in.Address == "" || in.PrevTxID == "" {
			continue
		}

		txKey := interner.Key(chainSlug, in.PrevTxID)
		if !state.MarkTxVisited(txKey) {
			continue
		}

		predAddr := interner.Intern(in.Address)
		state.AddAdjacency(nodeAddr, predAddr)

		if pathContains(node.path, predAddr) {
			state.RecordCircularPath(append(append([]string{}, node.path...), predAddr))
			continue
		}

		priority := 0.0
		if md, ok := state.GetAddrMeta(predAddr); ok {
			priority = 10 * float64(len(md.Tags))
		}

		children = append(children, &traceNode{
			txID:     in.PrevTxID,
			address:  in.Address,
			depth:    node.depth + 1,
			parentTx: node.txID,
			priority: priority,
			path:     append(append([]string{}, node.path...), predAddr),
		})
	}
	return children
}

// expandAccount is §4.3.6.
func (t *Tracer) expandAccount(ctx context.Context, chainSlug string, cc chainconfig.Config, node *traceNode, state *State, interner *Interner) []*traceNode {
	tx, err := t.fetchTx(ctx, chainSlug, node.txID, state)
	if err != nil {
		log.Printf("[Tracer] failed to trace account inputs for %s: %v", node.txID, err)
		return nil
	}
	state.MarkTxVisited(interner.Key(chainSlug, node.txID))
	if tx.BlockTime != nil {
		state.SetTxTimestamp(strings.ToLower(node.txID), *tx.BlockTime)
	}

	nodeAddr := interner.Intern(node.address)
	var children []*traceNode

	tryEmit := func(addr string, priority float64) {
		if addr == "" {
			return
		}
		lower := interner.Intern(addr)
		if lower == nodeAddr {
			return
		}
		if state.IsAddrVisited(interner.Key(chainSlug, addr)) {
			return
		}

		state.AddAdjacency(nodeAddr, lower)

		if pathContains(node.path, lower) {
			state.RecordCircularPath(append(append([]string{}, node.path...), lower))
			return
		}

		children = append(children, &traceNode{
			txID:     node.txID,
			address:  addr,
			depth:    node.depth + 1,
			parentTx: node.txID,
			priority: priority,
			path:     append(append([]string{}, node.path...), lower),
		})
	}

	if tx.Sender != "" && strings.ToLower(tx.Sender) != nodeAddr {
		tryEmit(tx.Sender, 0)
	}

	if tx.IsContractCall && cc.HasInternalTxs {
		seen := make(map[string]bool)
		for _, itx := range tx.Internals {
			lower := strings.ToLower(itx.FromAddress)
			if lower == "" || lower == nodeAddr || seen[lower] {
				continue
			}
			seen[lower] = true
			tryEmit(itx.FromAddress, 5)
		}
	}

	return children
}

func pathContains(path []string, addr string) bool {
	for _, p := range path {
		if p == addr {
			return true
		}
	}
	return false
}

// fetchTx is the transaction half of the cache-through path (§4.3.7):
// persistent Cache, then Provider on miss.
func (t *Tracer) fetchTx(ctx context.Context, chainSlug, txID string, state *State) (*Transaction, error) {
	key := cache.TxKey(chainSlug, txID)
	if raw, found, err := t.Cache.Get(ctx, key); err == nil && found {
		var tx Transaction
		if jsonErr := json.Unmarshal(raw, &tx); jsonErr == nil {
			return &tx, nil
		}
	}

	state.IncAPICalls()
	tx, err := t.Provider.GetTx(ctx, chainSlug, txID)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(tx); err == nil {
		if err := t.Cache.Set(ctx, key, raw, cache.DefaultTTL); err != nil {
			log.Printf("[Tracer] failed to cache transaction %s: %v", txID, err)
		}
	}
	return tx, nil
}

// fetchAddrMeta is the address-metadata half of the cache-through path:
// per-run in-memory (state.addrMeta) -> persistent Cache -> Provider.
// A provider error degrades to empty metadata; the walk continues.
func (t *Tracer) fetchAddrMeta(ctx context.Context, chainSlug, address string, state *State) AddressMetadata {
	lower := strings.ToLower(address)
	if md, ok := state.GetAddrMeta(lower); ok {
		return md
	}

	key := cache.AddrKey(chainSlug, address)
	if raw, found, err := t.Cache.Get(ctx, key); err == nil && found {
		var md AddressMetadata
		if jsonErr := json.Unmarshal(raw, &md); jsonErr == nil {
			state.SetAddrMeta(lower, md)
			return md
		}
	}

	state.IncAPICalls()
	md, err := t.Provider.GetAddressMetadata(ctx, chainSlug, address)
	if err != nil {
		log.Printf("[Tracer] metadata fetch failed for %s: %v", address, err)
		md = &AddressMetadata{Address: address, Chain: chainSlug}
	}

	if raw, err := json.Marshal(md); err == nil {
		if err := t.Cache.Set(ctx, key, raw, cache.DefaultTTL); err != nil {
			log.Printf("[Tracer] failed to cache address metadata for %s: %v", address, err)
		}
	}
	state.SetAddrMeta(lower, *md)
	return *md
}

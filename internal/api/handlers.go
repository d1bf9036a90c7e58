package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rawblock/kyt-engine/internal/kyt"
)

// handleAnalyze runs analyze() for a single (chain, tx-id) pair and returns
// the RiskReport. Progress events are broadcast over the websocket hub as
// the trace runs so dashboard clients watching /api/v1/stream see it live.
// GET /api/v1/analyze/:chain/:txid?depth=N
func (h *APIHandler) handleAnalyze(c *gin.Context) {
	chain := c.Param("chain")
	txID := c.Param("txid")
	depth := h.cfg.TracerConfig().MaxDepth
	if q := c.Query("depth"); q != "" {
		if d, err := strconv.Atoi(q); err == nil {
			depth = d
		}
	}

	events := make(chan kyt.TraceEvent, 64)
	done := make(chan struct{})
	go h.relayTraceEvents(chain, events, done)

	report, err := h.tracer.Analyze(c.Request.Context(), chain, txID, depth, events)
	close(events)
	<-done

	if err != nil {
		writeTraceError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// relayTraceEvents forwards TraceEvents onto the websocket hub as JSON
// frames until events is closed, then signals done.
func (h *APIHandler) relayTraceEvents(chain string, events <-chan kyt.TraceEvent, done chan<- struct{}) {
	defer close(done)
	if h.wsHub == nil {
		for range events {
		}
		return
	}
	for ev := range events {
		payload, err := json.Marshal(gin.H{"type": "trace_event", "event": ev})
		if err != nil {
			continue
		}
		h.wsHub.Broadcast(payload)
	}
	_ = chain
}

// writeTraceError maps a kyt.Error's Kind onto the HTTP status spec.md §7
// calls for; anything else is a 500.
func writeTraceError(c *gin.Context, err error) {
	var kerr *kyt.Error
	if !errors.As(err, &kerr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	body := gin.H{"error": kerr.Detail, "kind": string(kerr.Kind)}
	switch kerr.Kind {
	case kyt.KindTxNotFound:
		c.JSON(http.StatusNotFound, body)
	case kyt.KindInvalidTransaction, kyt.KindUnsupportedChain, kyt.KindOverCap:
		c.JSON(http.StatusBadRequest, body)
	case kyt.KindRateLimited:
		if kerr.RetryAfter > 0 {
			c.Header("Retry-After", strconv.FormatFloat(kerr.RetryAfter, 'f', 0, 64))
		}
		c.JSON(http.StatusTooManyRequests, body)
	case kyt.KindCancelled:
		c.JSON(http.StatusRequestTimeout, body)
	case kyt.KindProviderTransient, kyt.KindProviderTerminal, kyt.KindCacheError:
		c.JSON(http.StatusServiceUnavailable, body)
	default:
		c.JSON(http.StatusInternalServerError, body)
	}
}

// handleHealth reports cache and provider liveness.
// GET /api/v1/health
func (h *APIHandler) handleHealth(c *gin.Context) {
	body := gin.H{"status": "operational"}

	if h.cache != nil {
		if err := h.cache.Ping(c.Request.Context()); err != nil {
			body["cache"] = gin.H{"status": "unhealthy", "error": err.Error()}
		} else {
			body["cache"] = gin.H{"status": "healthy"}
		}
	}

	if h.provider != nil {
		body["provider"] = h.provider.HealthCheck(c.Request.Context())
	}

	c.JSON(http.StatusOK, body)
}

// ─── Case tracking (C17) ──────────────────────────────────────────

// handleCreateCase opens a case around zero or more root transactions.
// POST /api/v1/cases
func (h *APIHandler) handleCreateCase(c *gin.Context) {
	var req struct {
		Name        string        `json:"name" binding:"required"`
		Description string        `json:"description"`
		Roots       []kyt.RootTx  `json:"roots"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	id := uuid.NewString()
	kase := h.cases.CreateCase(id, req.Name, req.Description, req.Roots)
	c.JSON(http.StatusCreated, kase)
}

// handleGetCase returns a case's current state.
// GET /api/v1/cases/:id
func (h *APIHandler) handleGetCase(c *gin.Context) {
	kase, ok := h.cases.GetCase(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
		return
	}
	c.JSON(http.StatusOK, kase)
}

// handleCaseTrace runs analyze() against every root tx the case names,
// including roots that already have a report, recording each result onto
// the case (a new report replaces the earlier one for the same root).
// POST /api/v1/cases/:id/trace
func (h *APIHandler) handleCaseTrace(c *gin.Context) {
	kase, ok := h.cases.GetCase(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
		return
	}

	var results []kyt.RiskReport
	for _, root := range kase.RootTxIDs {
		report, err := h.tracer.Analyze(c.Request.Context(), root.Chain, root.TxID, root.Depth, nil)
		if err != nil {
			log.Printf("[API] case %s: trace of %s/%s failed: %v", kase.ID, root.Chain, root.TxID, err)
			continue
		}
		kase.AddReport(root, *report)
		results = append(results, *report)
	}

	c.JSON(http.StatusOK, gin.H{"caseId": kase.ID, "reports": results})
}

// handleCaseTimeline returns the case's merged chronological timeline.
// GET /api/v1/cases/:id/timeline
func (h *APIHandler) handleCaseTimeline(c *gin.Context) {
	kase, ok := h.cases.GetCase(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"caseId": kase.ID, "events": kase.Timeline()})
}

// handleTagAddress records an investigator label on a case.
// POST /api/v1/cases/:id/tag
func (h *APIHandler) handleTagAddress(c *gin.Context) {
	kase, ok := h.cases.GetCase(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
		return
	}

	var req struct {
		Address  string `json:"address" binding:"required"`
		Label    string `json:"label" binding:"required"`
		Notes    string `json:"notes"`
		TaggedBy string `json:"taggedBy"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	kase.TagAddress(req.Address, req.Label, req.Notes, req.TaggedBy)
	c.JSON(http.StatusOK, gin.H{"status": "tagged", "address": req.Address, "label": req.Label})
}

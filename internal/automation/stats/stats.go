// Package stats accumulates per-cycle counters and timings for the
// reconciliation engine.
package stats

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// SkipReason explains why a record was not enriched without failing.
type SkipReason string

const (
	SkipAlreadyComplete     SkipReason = "already_complete"
	SkipNoTaxpayerID        SkipReason = "no_taxpayer_id"
	SkipInvalidRegistryData SkipReason = "invalid_registry_data"
)

// API names the downstream a latency sample belongs to.
type API string

const (
	APICRM      API = "crm"
	APIRegistry API = "registry"
)

const (
	topTaxpayerLimit = 5
	maxErrors        = 100
)

// RecordError is one processing failure kept for the summary.
type RecordError struct {
	DealID  string    `json:"deal_id"`
	Message string    `json:"error"`
	At      time.Time `json:"timestamp"`
}

// TaxpayerCount counts how often a taxpayer id was looked up in the cycle.
type TaxpayerCount struct {
	TaxpayerID string `json:"taxpayer_id"`
	Count      int    `json:"count"`
}

// Summary is an immutable snapshot of one cycle.
type Summary struct {
	ExecutionID string
	StartedAt   time.Time
	FinishedAt  time.Time
	Duration    time.Duration

	Discovered int
	Attempted  int
	Succeeded  int
	Failed     int
	Skipped    int
	SkippedBy  map[SkipReason]int

	CRMTime           time.Duration
	RegistryTime      time.Duration
	AvgProcessingTime time.Duration
	RecordsPerMinute  float64
	// SuccessRate is succeeded / (succeeded + failed) as a percentage.
	SuccessRate float64

	Errors         []RecordError
	TopTaxpayerIDs []TaxpayerCount
}

// Processed counts records that reached a terminal success or failure.
func (s Summary) Processed() int {
	return s.Succeeded + s.Failed
}

type summaryJSON struct {
	ExecutionID         string             `json:"execution_id"`
	StartedAt           time.Time          `json:"started_at"`
	FinishedAt          time.Time          `json:"finished_at,omitzero"`
	DurationMS          int64              `json:"duration_ms"`
	Discovered          int                `json:"discovered"`
	Attempted           int                `json:"attempted"`
	Succeeded           int                `json:"succeeded"`
	Failed              int                `json:"failed"`
	Skipped             int                `json:"skipped"`
	SkippedBy           map[SkipReason]int `json:"skipped_by_reason"`
	CRMTimeMS           int64              `json:"crm_time_ms"`
	RegistryTimeMS      int64              `json:"registry_time_ms"`
	AvgProcessingTimeMS int64              `json:"avg_processing_time_ms"`
	RecordsPerMinute    float64            `json:"records_per_minute"`
	SuccessRate         float64            `json:"success_rate"`
	Errors              []RecordError      `json:"errors"`
	TopTaxpayerIDs      []TaxpayerCount    `json:"top_taxpayer_ids"`
}

// MarshalJSON renders durations as milliseconds.
func (s Summary) MarshalJSON() ([]byte, error) {
	return json.Marshal(summaryJSON{
		ExecutionID:         s.ExecutionID,
		StartedAt:           s.StartedAt,
		FinishedAt:          s.FinishedAt,
		DurationMS:          s.Duration.Milliseconds(),
		Discovered:          s.Discovered,
		Attempted:           s.Attempted,
		Succeeded:           s.Succeeded,
		Failed:              s.Failed,
		Skipped:             s.Skipped,
		SkippedBy:           s.SkippedBy,
		CRMTimeMS:           s.CRMTime.Milliseconds(),
		RegistryTimeMS:      s.RegistryTime.Milliseconds(),
		AvgProcessingTimeMS: s.AvgProcessingTime.Milliseconds(),
		RecordsPerMinute:    s.RecordsPerMinute,
		SuccessRate:         s.SuccessRate,
		Errors:              s.Errors,
		TopTaxpayerIDs:      s.TopTaxpayerIDs,
	})
}

// String renders the block printed at the end of a single run.
func (s Summary) String() string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, "│ "+format+"\n", args...)
	}
	b.WriteString("EXECUTION STATISTICS\n")
	b.WriteString("┌─────────────────────────────────────────┐\n")
	line("Execution: %s", s.ExecutionID)
	line("Duration: %dms", s.Duration.Milliseconds())
	line("Deals found: %d", s.Discovered)
	line("Deals processed: %d", s.Processed())
	line("Succeeded: %d", s.Succeeded)
	line("Failed: %d", s.Failed)
	line("Skipped: %d (complete %d, no taxpayer id %d, no registry data %d)",
		s.Skipped,
		s.SkippedBy[SkipAlreadyComplete],
		s.SkippedBy[SkipNoTaxpayerID],
		s.SkippedBy[SkipInvalidRegistryData],
	)
	line("Success rate: %.2f%%", s.SuccessRate)
	line("CRM time: %dms, registry time: %dms", s.CRMTime.Milliseconds(), s.RegistryTime.Milliseconds())
	b.WriteString("└─────────────────────────────────────────┘")
	return b.String()
}

// Collector is safe for concurrent use so the monitor can read snapshots
// while a cycle runs.
type Collector struct {
	mu  sync.Mutex
	now func() time.Time
	cur Summary
	// taxpayers counts lookups per id in the current cycle.
	taxpayers map[string]int
}

func NewCollector(now func() time.Time) *Collector {
	if now == nil {
		now = time.Now
	}
	c := &Collector{now: now}
	c.reset("")
	return c
}

func (c *Collector) reset(executionID string) {
	c.cur = Summary{
		ExecutionID: executionID,
		SkippedBy:   make(map[SkipReason]int),
	}
	c.taxpayers = make(map[string]int)
}

// Start clears all counters and stamps the start of a new cycle.
func (c *Collector) Start(executionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset(executionID)
	c.cur.StartedAt = c.now()
}

func (c *Collector) SetDiscovered(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur.Discovered = n
}

// RecordAttempt counts a record entering the per-record pipeline.
func (c *Collector) RecordAttempt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur.Attempted++
}

// RecordTaxpayer counts a registry lookup for id.
func (c *Collector) RecordTaxpayer(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taxpayers[id]++
}

// RecordSuccess counts a success and folds d into the processing time average.
func (c *Collector) RecordSuccess(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur.Succeeded++
	if c.cur.AvgProcessingTime == 0 {
		c.cur.AvgProcessingTime = d
	} else {
		c.cur.AvgProcessingTime = (c.cur.AvgProcessingTime + d) / 2
	}
}

func (c *Collector) RecordFailure(dealID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur.Failed++
	if err != nil && len(c.cur.Errors) < maxErrors {
		c.cur.Errors = append(c.cur.Errors, RecordError{DealID: dealID, Message: err.Error(), At: c.now()})
	}
}

func (c *Collector) RecordSkip(reason SkipReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur.Skipped++
	c.cur.SkippedBy[reason]++
}

func (c *Collector) AddAPITime(api API, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch api {
	case APICRM:
		c.cur.CRMTime += d
	case APIRegistry:
		c.cur.RegistryTime += d
	}
}

// Finish stamps the end of the cycle and returns its summary.
func (c *Collector) Finish() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur.FinishedAt = c.now()
	return c.snapshotLocked(c.cur.FinishedAt)
}

// Snapshot returns the summary so far without ending the cycle.
func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(c.now())
}

func (c *Collector) snapshotLocked(at time.Time) Summary {
	s := c.cur
	if !s.StartedAt.IsZero() {
		s.Duration = at.Sub(s.StartedAt)
	}
	if minutes := s.Duration.Minutes(); minutes > 0 {
		s.RecordsPerMinute = float64(s.Attempted) / minutes
	}
	if processed := s.Processed(); processed > 0 {
		s.SuccessRate = float64(s.Succeeded) / float64(processed) * 100
	}

	s.SkippedBy = make(map[SkipReason]int, len(c.cur.SkippedBy))
	for k, v := range c.cur.SkippedBy {
		s.SkippedBy[k] = v
	}
	s.Errors = append([]RecordError(nil), c.cur.Errors...)
	s.TopTaxpayerIDs = topTaxpayers(c.taxpayers, topTaxpayerLimit)
	return s
}

// topTaxpayers orders by count descending, then id for stable output.
func topTaxpayers(counts map[string]int, limit int) []TaxpayerCount {
	out := make([]TaxpayerCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, TaxpayerCount{TaxpayerID: id, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].TaxpayerID < out[j].TaxpayerID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

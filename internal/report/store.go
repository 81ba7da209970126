// Package report persists cycle reports for operator introspection. Reports
// are diagnostic, never authoritative: losing them affects nothing but
// hindsight.
package report

import (
	"context"
	"errors"
	"sync"
	"time"

	"ladder_maker/internal/config"
	"ladder_maker/internal/core"
)

// NewStore builds the backend named by the configuration.
func NewStore(cfg config.ReportConfig) (core.IReportStore, error) {
	switch cfg.Backend {
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "memory", "":
		return NewMemoryStore(256), nil
	default:
		return nil, errors.New("unknown report backend: " + cfg.Backend)
	}
}

// MemoryStore is a bounded in-process ring of recent reports.
type MemoryStore struct {
	mu      sync.RWMutex
	reports []*core.CycleReport
	limit   int
}

func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = 256
	}
	return &MemoryStore{limit: limit}
}

func (s *MemoryStore) SaveReport(_ context.Context, report *core.CycleReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports = append(s.reports, report)
	if len(s.reports) > s.limit {
		s.reports = s.reports[len(s.reports)-s.limit:]
	}
	return nil
}

// LoadRecent returns up to limit reports, newest first.
func (s *MemoryStore) LoadRecent(_ context.Context, limit int) ([]*core.CycleReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.reports) {
		limit = len(s.reports)
	}
	out := make([]*core.CycleReport, 0, limit)
	for i := len(s.reports) - 1; i >= len(s.reports)-limit; i-- {
		out = append(out, s.reports[i])
	}
	return out, nil
}

// reportRecord is the persistence shape of a CycleReport. Errors flatten to
// strings on the way in and come back as opaque errors on the way out.
type reportRecord struct {
	CycleID   string         `json:"cycle_id"`
	StartedAt time.Time      `json:"started_at"`
	ElapsedMS int64          `json:"elapsed_ms"`
	Results   []resultRecord `json:"results"`
}

type resultRecord struct {
	Name      string `json:"name"`
	Account   string `json:"account"`
	Pair      string `json:"pair"`
	Cancelled int    `json:"cancelled"`
	Created   int    `json:"created"`
	Flattened bool   `json:"flattened"`
	Error     string `json:"error,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

func toRecord(report *core.CycleReport) reportRecord {
	rec := reportRecord{
		CycleID:   report.CycleID,
		StartedAt: report.StartedAt,
		ElapsedMS: report.Elapsed.Milliseconds(),
		Results:   make([]resultRecord, 0, len(report.Results)),
	}
	for _, res := range report.Results {
		rr := resultRecord{
			Name:      res.Name,
			Account:   res.Account,
			Pair:      res.Pair.String(),
			Cancelled: res.Cancelled,
			Created:   res.Created,
			Flattened: res.Flattened,
			ElapsedMS: res.Elapsed.Milliseconds(),
		}
		if res.Err != nil {
			rr.Error = res.Err.Error()
		}
		rec.Results = append(rec.Results, rr)
	}
	return rec
}

func fromRecord(rec reportRecord) *core.CycleReport {
	report := &core.CycleReport{
		CycleID:   rec.CycleID,
		StartedAt: rec.StartedAt,
		Elapsed:   time.Duration(rec.ElapsedMS) * time.Millisecond,
		Results:   make([]core.ConfigResult, 0, len(rec.Results)),
	}
	for _, rr := range rec.Results {
		res := core.ConfigResult{
			Name:      rr.Name,
			Account:   rr.Account,
			Cancelled: rr.Cancelled,
			Created:   rr.Created,
			Flattened: rr.Flattened,
			Elapsed:   time.Duration(rr.ElapsedMS) * time.Millisecond,
		}
		if rr.Error != "" {
			res.Err = errors.New(rr.Error)
		}
		report.Results = append(report.Results, res)
	}
	return report
}

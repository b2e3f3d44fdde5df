package events

import (
	"context"
	"errors"
	"sort"
	"strings"
)

var ErrInvalidRequest = errors.New("events: invalid request")

// MaxListLimit caps List for callers that pass no or an oversized limit.
const MaxListLimit = 500

// Service serves read-side queries over the event log.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// List returns matching events, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]SyncEvent, error) {
	if s.repo == nil {
		return nil, errors.New("events: repository not configured")
	}
	if f.Limit <= 0 || f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Status != "" && f.Status != StatusSuccess && f.Status != StatusFailed {
		return nil, ErrInvalidRequest
	}
	return s.repo.List(ctx, f)
}

func (s *Service) Summary(ctx context.Context, req SummaryRequest) (Summary, error) {
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return Summary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return Summary{}, errors.New("events: repository not configured")
	}

	rows, err := s.repo.List(ctx, Filter{RecordType: req.RecordType, From: req.Range.From, To: req.Range.To})
	if err != nil {
		return Summary{}, err
	}

	out := Summary{Range: req.Range}
	byType := map[string]*TypeSummary{}
	for _, e := range rows {
		key := strings.ToLower(e.RecordType)
		ts, ok := byType[key]
		if !ok {
			ts = &TypeSummary{RecordType: e.RecordType}
			byType[key] = ts
		}
		ts.Total++
		out.Total++
		switch e.Status {
		case StatusSuccess:
			ts.Succeeded++
			out.Succeeded++
		case StatusFailed:
			ts.Failed++
			out.Failed++
		}
	}
	if out.Total > 0 {
		out.SuccessRate = float64(out.Succeeded) / float64(out.Total)
	}
	out.ByType = make([]TypeSummary, 0, len(byType))
	for _, ts := range byType {
		out.ByType = append(out.ByType, *ts)
	}
	sort.Slice(out.ByType, func(i, j int) bool { return out.ByType[i].RecordType < out.ByType[j].RecordType })
	return out, nil
}

package calendar

import (
	"context"
	"sort"
	"sync"
)

// =============================================================================
// HOLIDAYS
// =============================================================================

// Holiday is a public holiday. Every holiday is an off day for scheduling;
// MandatoryOff marks collective leave ("cuti bersama") for reporting.
type Holiday struct {
	Date         Date   `json:"date"`
	Description  string `json:"description"`
	MandatoryOff bool   `json:"is_cuti"`
}

// Provider returns the public holidays of a year.
// Implementations must be safe for concurrent use.
type Provider interface {
	Holidays(ctx context.Context, year int) ([]Holiday, error)
}

// Index keys holidays by their date string. When a date appears twice,
// descriptions are kept from the first entry.
func Index(holidays []Holiday) map[string]Holiday {
	idx := make(map[string]Holiday, len(holidays))
	for _, h := range holidays {
		key := h.Date.String()
		if _, ok := idx[key]; !ok {
			idx[key] = h
		}
	}
	return idx
}

// HolidaysInRange fetches every year the range touches and returns the
// holidays falling inside it, indexed by date.
func HolidaysInRange(ctx context.Context, p Provider, r Range) (map[string]Holiday, error) {
	var all []Holiday
	for _, year := range r.Years() {
		hs, err := p.Holidays(ctx, year)
		if err != nil {
			return nil, err
		}
		for _, h := range hs {
			if r.Contains(h.Date) {
				all = append(all, h)
			}
		}
	}
	return Index(all), nil
}

// =============================================================================
// STATIC PROVIDER - fixed holiday list (tests, offline mode)
// =============================================================================

type Static struct {
	mu     sync.RWMutex
	byYear map[int][]Holiday
}

func NewStatic(holidays ...Holiday) *Static {
	s := &Static{byYear: make(map[int][]Holiday)}
	s.Add(holidays...)
	return s
}

// Add registers more holidays.
func (s *Static) Add(holidays ...Holiday) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range holidays {
		y := h.Date.Year()
		s.byYear[y] = append(s.byYear[y], h)
		sort.Slice(s.byYear[y], func(i, j int) bool {
			return s.byYear[y][i].Date.Before(s.byYear[y][j].Date)
		})
	}
}

func (s *Static) Holidays(_ context.Context, year int) ([]Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Holiday(nil), s.byYear[year]...), nil
}

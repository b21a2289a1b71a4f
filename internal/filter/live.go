package filter

import (
	"fmt"
	"time"

	"konan/internal/datasource"
	"konan/internal/schedule"
)

const day = 24 * time.Hour

// DefaultUpdateAt is the time of day after which live lists refresh.
var DefaultUpdateAt = schedule.At(16, 0, 0, 0)

// Filter carries how long a filter stays valid and how often it refreshes.
type Filter struct {
	Lifespan     time.Duration
	UpdatePeriod time.Duration
}

func NewFilter(lifespanDays, updateDays int) (Filter, error) {
	if lifespanDays < 1 {
		return Filter{}, fmt.Errorf("lifespan %d: %w", lifespanDays, ErrInvalidPeriod)
	}
	if updateDays < 1 {
		return Filter{}, fmt.Errorf("update period %d: %w", updateDays, ErrInvalidPeriod)
	}
	return Filter{
		Lifespan:     time.Duration(lifespanDays) * day,
		UpdatePeriod: time.Duration(updateDays) * day,
	}, nil
}

// HistoricalFilter serves backtests.
type HistoricalFilter struct {
	Filter
}

func NewHistorical(lifespanDays, updateDays int) (*HistoricalFilter, error) {
	f, err := NewFilter(lifespanDays, updateDays)
	if err != nil {
		return nil, err
	}
	return &HistoricalFilter{Filter: f}, nil
}

// SpawnLive creates a LiveFilter with the same lifespan and update period,
// born at born.
func (h *HistoricalFilter) SpawnLive(born time.Time, updateAt schedule.TimeOfDay, candidate, whitelist []Condition) *LiveFilter {
	return &LiveFilter{
		Filter:    h.Filter,
		Birthdate: born,
		UpdateAt:  updateAt,
		Candidate: candidate,
		Whitelist: whitelist,
	}
}

// LiveFilter refreshes candidate and whitelist tables once the wall clock
// passes UpdateAt.
type LiveFilter struct {
	Filter
	Birthdate time.Time
	UpdateAt  schedule.TimeOfDay
	Candidate []Condition
	Whitelist []Condition
}

func NewLive(f Filter, born time.Time, updateAt schedule.TimeOfDay, candidate, whitelist []Condition) *LiveFilter {
	return &LiveFilter{Filter: f, Birthdate: born, UpdateAt: updateAt, Candidate: candidate, Whitelist: whitelist}
}

// Due reports whether now is at or past the update time of day.
func (l *LiveFilter) Due(now time.Time) bool {
	return !schedule.Of(now).Before(l.UpdateAt)
}

// Expired reports whether the filter has outlived its lifespan.
func (l *LiveFilter) Expired(now time.Time) bool {
	return l.Lifespan > 0 && !now.Before(l.Birthdate.Add(l.Lifespan))
}

// Renew restarts the lifespan at born.
func (l *LiveFilter) Renew(born time.Time) { l.Birthdate = born }

// UpdateCandidates applies the candidate conditions when due. ok is false
// before the update time, in which case t is not touched.
func (l *LiveFilter) UpdateCandidates(now time.Time, t datasource.Table) (datasource.Table, bool, error) {
	return l.update(now, t, l.Candidate)
}

func (l *LiveFilter) UpdateWhitelist(now time.Time, t datasource.Table) (datasource.Table, bool, error) {
	return l.update(now, t, l.Whitelist)
}

func (l *LiveFilter) update(now time.Time, t datasource.Table, conds []Condition) (datasource.Table, bool, error) {
	if !l.Due(now) {
		return datasource.Table{}, false, nil
	}
	out, err := Values(t, conds)
	if err != nil {
		return datasource.Table{}, false, err
	}
	return out, true, nil
}

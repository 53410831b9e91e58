// Package governor enumerates batch searches and rejects any batch whose
// size exceeds its ceiling before a single query is dispatched.
package governor

import (
	"fmt"
	"strings"

	"github.com/dharmasatrya/flightquery/internal/metrics"
	"github.com/dharmasatrya/flightquery/internal/models"
)

type Kind string

const (
	KindDateRange Kind = "date_range"
	KindAirports  Kind = "airport_comparison"
)

type Limits struct {
	DateRange int
	Airports  int
}

func DefaultLimits() Limits {
	return Limits{DateRange: 30, Airports: 12}
}

type BatchTooLargeError struct {
	Kind        Kind
	Requested   int
	Ceiling     int
	Total       int
	Remediation string
}

func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("%s batch of %d searches exceeds the limit of %d", e.Kind, e.Requested, e.Ceiling)
}

// Page describes the slice of an enumerated batch a plan covers.
type Page struct {
	Total      int
	Offset     int
	NextOffset *int
}

type DatePair struct {
	Departure string
	Return    string
}

type DatePlan struct {
	Page
	Pairs []DatePair
}

type RoutePair struct {
	Origin      string
	Destination string
}

type RoutePlan struct {
	Page
	Pairs []RoutePair
}

type Governor struct {
	limits  Limits
	metrics *metrics.Registry
}

func NewGovernor(limits Limits, m *metrics.Registry) *Governor {
	d := DefaultLimits()
	if limits.DateRange <= 0 {
		limits.DateRange = d.DateRange
	}
	if limits.Airports <= 0 {
		limits.Airports = d.Airports
	}
	return &Governor{limits: limits, metrics: m}
}

func (g *Governor) Limits() Limits {
	return g.limits
}

// PlanDateRange enumerates every (departure, return) pair in the window with
// return on or after departure, honouring the stay bounds. req must already
// be validated.
func (g *Governor) PlanDateRange(req *models.DateRangeRequest) (*DatePlan, error) {
	start, err := models.ParseDate(req.StartDate)
	if err != nil {
		return nil, models.ValidationError("start_date must be YYYY-MM-DD")
	}
	end, err := models.ParseDate(req.EndDate)
	if err != nil {
		return nil, models.ValidationError("end_date must be YYYY-MM-DD")
	}
	days := int(end.Sub(start).Hours()/24) + 1
	if days < 1 {
		return nil, models.ErrStartAfterEnd
	}

	minStay, maxStay := 0, days-1
	if req.MinStayDays != nil {
		minStay = *req.MinStayDays
	}
	if req.MaxStayDays != nil && *req.MaxStayDays < maxStay {
		maxStay = *req.MaxStayDays
	}

	// returns for departure day d lie in [d+minStay, min(days-1, d+maxStay)]
	span := func(d int) (lo, hi int) {
		lo, hi = d+minStay, d+maxStay
		if hi > days-1 {
			hi = days - 1
		}
		return lo, hi
	}
	total := 0
	for d := 0; d < days; d++ {
		if lo, hi := span(d); hi >= lo {
			total += hi - lo + 1
		}
	}

	page, count, err := g.page(KindDateRange, g.limits.DateRange, total, req.Offset, req.Limit,
		"narrow the date window, tighten min_stay_days/max_stay_days, or paginate with offset and limit")
	if err != nil {
		return nil, err
	}

	plan := &DatePlan{Page: page, Pairs: make([]DatePair, 0, count)}
	idx := 0
	for d := 0; d < days && len(plan.Pairs) < count; d++ {
		lo, hi := span(d)
		for r := lo; r <= hi && len(plan.Pairs) < count; r++ {
			if idx >= req.Offset {
				plan.Pairs = append(plan.Pairs, DatePair{
					Departure: models.FormatDate(start.AddDate(0, 0, d)),
					Return:    models.FormatDate(start.AddDate(0, 0, r)),
				})
			}
			idx++
		}
	}
	g.metrics.ObserveBatch(string(KindDateRange), len(plan.Pairs))
	return plan, nil
}

// PlanAirportComparison enumerates every origin/destination pair across the
// two lists. Codes are upper-cased and de-duplicated; a pair whose origin
// equals its destination is skipped.
func (g *Governor) PlanAirportComparison(req *models.AirportComparisonRequest) (*RoutePlan, error) {
	origins, destinations := dedupe(req.Origins), dedupe(req.Destinations)

	var all []RoutePair
	for _, o := range origins {
		for _, d := range destinations {
			if o == d {
				continue
			}
			all = append(all, RoutePair{Origin: o, Destination: d})
		}
	}

	page, count, err := g.page(KindAirports, g.limits.Airports, len(all), req.Offset, req.Limit,
		"compare fewer airports per request or paginate with offset and limit")
	if err != nil {
		return nil, err
	}

	plan := &RoutePlan{Page: page, Pairs: []RoutePair{}}
	if count > 0 {
		plan.Pairs = all[req.Offset : req.Offset+count]
	}
	g.metrics.ObserveBatch(string(KindAirports), len(plan.Pairs))
	return plan, nil
}

// page applies pagination to a batch of total items and checks the page
// against the ceiling. It returns the number of items on the page.
func (g *Governor) page(kind Kind, ceiling, total, offset, limit int, hint string) (Page, int, error) {
	p := Page{Total: total, Offset: offset}
	remaining := total - offset
	if remaining < 0 {
		remaining = 0
	}
	count := remaining
	if limit > 0 && limit < count {
		count = limit
	}

	if count > ceiling {
		g.metrics.ObserveBatchRejected(string(kind))
		return p, 0, &BatchTooLargeError{
			Kind:        kind,
			Requested:   count,
			Ceiling:     ceiling,
			Total:       total,
			Remediation: fmt.Sprintf("%s (at most %d searches per request)", hint, ceiling),
		}
	}

	if next := offset + count; count > 0 && next < total {
		p.NextOffset = &next
	}
	return p, count, nil
}

func dedupe(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

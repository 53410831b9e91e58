package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/dharmasatrya/flightquery/internal/dispatch"
	"github.com/dharmasatrya/flightquery/internal/governor"
	"github.com/dharmasatrya/flightquery/internal/models"
	"github.com/dharmasatrya/flightquery/internal/orchestrator"
	"github.com/dharmasatrya/flightquery/internal/providers"
)

// errRateLimited marks a combination whose sources all ended rate limited.
// The batch stops issuing further combinations after it.
var errRateLimited = errors.New("sources rate limited")

type combination struct {
	origin, destination string
	departure, ret      string
}

// DateRange searches every round trip in the window, within the governor's
// ceiling. Cancelling ctx returns the combinations finished so far.
func (s *Service) DateRange(ctx context.Context, req *models.DateRangeRequest) (*models.BatchResponse, error) {
	start := time.Now()
	defer func() { s.config.Metrics.ObserveSearch("date_range", time.Since(start)) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	plan, err := s.governor.PlanDateRange(req)
	if err != nil {
		return nil, err
	}

	combos := make([]combination, len(plan.Pairs))
	for i, p := range plan.Pairs {
		combos[i] = combination{origin: req.Origin, destination: req.Destination, departure: p.Departure, ret: p.Return}
	}
	return s.runBatch(ctx, start, combos, plan.Page, req.TravelParams, req.OutputOptions), nil
}

// CompareAirports searches every origin/destination pair, one-way or round
// trip depending on whether a return date is set.
func (s *Service) CompareAirports(ctx context.Context, req *models.AirportComparisonRequest) (*models.BatchResponse, error) {
	start := time.Now()
	defer func() { s.config.Metrics.ObserveSearch("compare_airports", time.Since(start)) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	plan, err := s.governor.PlanAirportComparison(req)
	if err != nil {
		return nil, err
	}

	combos := make([]combination, len(plan.Pairs))
	for i, p := range plan.Pairs {
		combos[i] = combination{origin: p.Origin, destination: p.Destination, departure: req.DepartureDate, ret: req.ReturnDate}
	}
	return s.runBatch(ctx, start, combos, plan.Page, req.TravelParams, req.OutputOptions), nil
}

func (s *Service) runBatch(ctx context.Context, start time.Time, combos []combination, page governor.Page, params models.TravelParams, opts models.OutputOptions) *models.BatchResponse {
	bctx, stop := context.WithCancel(ctx)
	defer stop()

	var limited atomic.Bool
	outcomes, _ := dispatch.Run(bctx, s.config.Workers, combos, func(ctx context.Context, c combination) (models.CombinationResult, error) {
		r, err := s.searchCombination(ctx, c, params, opts)
		if errors.Is(err, errRateLimited) {
			limited.Store(true)
			stop()
			return r, nil
		}
		return r, err
	})
	cancelled := ctx.Err() != nil

	resp := &models.BatchResponse{
		Metadata:    s.metadata(ctx, start, "", nil),
		Cancelled:   cancelled,
		RateLimited: limited.Load(),
		Results:     make([]models.CombinationResult, 0, len(outcomes)),
		Pagination: models.Pagination{
			Total:      page.Total,
			Offset:     page.Offset,
			NextOffset: page.NextOffset,
		},
	}

	failed := 0
	for _, o := range outcomes {
		if o.Skipped || isCancellation(o.Err) {
			continue
		}
		r := o.Value
		if r.Status == models.StatusFailed {
			failed++
		}
		resp.Results = append(resp.Results, r)
		if r.CheapestPrice != nil && (resp.Cheapest == nil || *r.CheapestPrice < *resp.Cheapest.CheapestPrice) {
			c := r
			resp.Cheapest = &c
		}
		resp.Metadata.TotalFound += len(r.Flights) + len(r.Trips)
	}
	resp.Pagination.Returned = len(resp.Results)
	resp.Metadata.Returned = len(resp.Results)

	switch {
	case cancelled:
		resp.Status = models.StatusPartial
		resp.Metadata.Warnings = append(resp.Metadata.Warnings, "batch cancelled; only finished combinations are listed")
		log.Printf("[search] batch cancelled after %d of %d combinations", len(resp.Results), len(combos))
	case resp.RateLimited:
		resp.Status = models.StatusPartial
		if failed == len(resp.Results) {
			resp.Status = models.StatusFailed
		}
		resp.Metadata.Warnings = append(resp.Metadata.Warnings, fmt.Sprintf("sources are rate limiting; stopped after %d of %d combinations", len(resp.Results), len(combos)))
		log.Printf("[search] batch stopped by rate limiting after %d of %d combinations", len(resp.Results), len(combos))
	case len(combos) > 0 && failed == len(combos):
		resp.Status = models.StatusFailed
	case failed > 0:
		resp.Status = models.StatusPartial
	case resp.Cheapest == nil:
		resp.Status = models.StatusNoResults
	default:
		resp.Status = models.StatusSuccess
	}
	return resp
}

// searchCombination runs one batch member. Failures are reported in the
// result; only cancellation is returned as an error.
func (s *Service) searchCombination(ctx context.Context, c combination, params models.TravelParams, opts models.OutputOptions) (models.CombinationResult, error) {
	r := models.CombinationResult{Origin: c.origin, Destination: c.destination, DepartureDate: c.departure, ReturnDate: c.ret}
	out := legOf(params, c.origin, c.destination, c.departure)

	if c.ret == "" {
		res, err := s.orchestrator.Run(ctx, models.OneWayTrip(out))
		if err != nil {
			return failedCombination(r, err)
		}
		flights, _, _ := present(res.Flights, opts)
		r.Status, r.Source, r.Flights = res.Status, res.Source, flights
		if cheapest, ok := cheapestFlight(flights); ok {
			r.CheapestPrice = &cheapest
		}
		return r, nil
	}

	set, err := s.roundTripSet(ctx, out, out.Reverse(c.ret))
	if err != nil {
		return failedCombination(r, err)
	}
	trips, _, _ := presentTrips(set.Trips, opts)
	r.Status, r.Source, r.Trips = set.Status, set.Source, trips
	if best, ok := cheapestTrip(trips); ok {
		r.CheapestPrice = &best.Price
	}
	return r, nil
}

func failedCombination(r models.CombinationResult, err error) (models.CombinationResult, error) {
	if isCancellation(err) {
		return r, err
	}
	r.Status = models.StatusFailed
	r.Error = err.Error()
	var ex *orchestrator.ExhaustedError
	if errors.As(err, &ex) && ex.Kind != "" {
		r.Error = string(ex.Kind) + ": " + err.Error()
		if ex.Kind == providers.KindRateLimited {
			return r, errRateLimited
		}
	}
	return r, nil
}

func legOf(params models.TravelParams, origin, destination, date string) models.AtomicLegQuery {
	req := models.OneWayRequest{Origin: origin, Destination: destination, DepartureDate: date, TravelParams: params}
	return req.Leg()
}

func cheapestFlight(flights []models.Flight) (int64, bool) {
	var best int64
	found := false
	for _, f := range flights {
		if f.HasPrice() && (!found || f.Price < best) {
			best, found = f.Price, true
		}
	}
	return best, found
}

package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dharmasatrya/flightquery/internal/deeplink"
	"github.com/dharmasatrya/flightquery/internal/dispatch"
	"github.com/dharmasatrya/flightquery/internal/models"
	"github.com/dharmasatrya/flightquery/internal/orchestrator"
	"github.com/dharmasatrya/flightquery/internal/providers"
)

func (s *Service) OneWay(ctx context.Context, req *models.OneWayRequest) (*models.SearchResponse, error) {
	start := time.Now()
	defer func() { s.config.Metrics.ObserveSearch("one_way", time.Since(start)) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	res, err := s.orchestrator.Run(ctx, models.OneWayTrip(req.Leg()))
	if err != nil {
		return nil, err
	}

	flights, total, truncated := present(res.Flights, req.OutputOptions)
	resp := &models.SearchResponse{
		Status:   res.Status,
		Metadata: s.metadata(ctx, start, res.Source, res.Attempts),
		Flights:  flights,
	}
	resp.Metadata.TotalFound = total
	resp.Metadata.Returned = len(flights)
	resp.Metadata.Truncated = truncated
	resp.Metadata.SetInsights(res.Insights)
	if res.Status == models.StatusSuccess && len(flights) == 0 {
		resp.Status = models.StatusNoResults
		resp.Metadata.Warnings = append(resp.Metadata.Warnings, fmt.Sprintf("filters removed all %d flights", len(res.Flights)))
	}
	return resp, nil
}

func (s *Service) RoundTrip(ctx context.Context, req *models.RoundTripRequest) (*models.RoundTripResponse, error) {
	start := time.Now()
	defer func() { s.config.Metrics.ObserveSearch("round_trip", time.Since(start)) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	out, ret := req.Legs()
	set, err := s.roundTripSet(ctx, out, ret)
	if err != nil {
		return nil, err
	}

	trips, total, truncated := presentTrips(set.Trips, req.OutputOptions)
	resp := &models.RoundTripResponse{
		Status:   set.Status,
		Metadata: s.metadata(ctx, start, set.Source, set.Attempts),
		Trips:    trips,
	}
	if len(set.OutboundOnly) > 0 {
		resp.OutboundOnly, _, _ = present(set.OutboundOnly, req.OutputOptions)
	}
	resp.Metadata.TotalFound = total
	resp.Metadata.Returned = len(trips)
	resp.Metadata.Truncated = truncated
	resp.Metadata.Warnings = set.Warnings
	resp.Metadata.SetInsights(set.Insights)
	if resp.Metadata.GoogleFlightsURL == "" {
		resp.Metadata.GoogleFlightsURL = deeplink.GoogleFlights(models.RoundTrip(out, ret))
	}
	if set.Status == models.StatusSuccess && len(trips) == 0 {
		resp.Status = models.StatusNoResults
	}
	return resp, nil
}

// MultiCity searches the whole itinerary when a source can price it, and
// otherwise searches each leg on its own.
func (s *Service) MultiCity(ctx context.Context, req *models.MultiCityRequest) (*models.MultiCityResponse, error) {
	start := time.Now()
	defer func() { s.config.Metrics.ObserveSearch("multi_city", time.Since(start)) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	trip := req.Trip()

	res, err := s.orchestrator.Run(ctx, trip)
	if err == nil {
		itineraries, total, truncated := present(res.Flights, req.OutputOptions)
		resp := &models.MultiCityResponse{
			Status:      res.Status,
			Metadata:    s.metadata(ctx, start, res.Source, res.Attempts),
			Native:      true,
			Itineraries: itineraries,
		}
		resp.Metadata.TotalFound = total
		resp.Metadata.Returned = len(itineraries)
		resp.Metadata.Truncated = truncated
		resp.Metadata.SetInsights(res.Insights)
		return resp, nil
	}

	var ex *orchestrator.ExhaustedError
	if !errors.As(err, &ex) || !ex.Saw(providers.KindUnsupported) {
		return nil, err
	}
	log.Printf("[search] no source prices %s whole, searching %d legs separately", trip, len(trip.Legs))

	outcomes, cancelled := dispatch.Run(ctx, s.config.Workers, trip.Legs, func(ctx context.Context, leg models.AtomicLegQuery) (*orchestrator.Result, error) {
		return s.orchestrator.Run(ctx, models.OneWayTrip(leg))
	})
	if cancelled {
		return nil, ctx.Err()
	}

	resp := &models.MultiCityResponse{
		Metadata: s.metadata(ctx, start, "", ex.Attempts),
		Legs:     make([]models.LegResult, len(outcomes)),
	}
	resp.Metadata.Warnings = []string{"no source prices this itinerary as a whole; legs were searched separately and prices are per leg"}
	resp.Metadata.GoogleFlightsURL = ex.DeepLink

	var firstErr error
	failed := 0
	for i, o := range outcomes {
		leg := trip.Legs[i]
		lr := models.LegResult{Index: i, Origin: leg.Origin, Destination: leg.Destination, Date: leg.Date, Flights: []models.Flight{}}
		if o.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = o.Err
			}
			lr.Status = models.StatusFailed
			lr.Error = o.Err.Error()
			var lex *orchestrator.ExhaustedError
			if errors.As(o.Err, &lex) {
				resp.Metadata.SourcesTried = append(resp.Metadata.SourcesTried, lex.Attempts...)
			}
		} else {
			flights, total, truncated := present(o.Value.Flights, req.OutputOptions)
			lr.Status, lr.Source, lr.Flights = o.Value.Status, o.Value.Source, flights
			resp.Metadata.SourcesTried = append(resp.Metadata.SourcesTried, o.Value.Attempts...)
			resp.Metadata.TotalFound += total
			resp.Metadata.Returned += len(flights)
			resp.Metadata.Truncated = resp.Metadata.Truncated || truncated
		}
		resp.Legs[i] = lr
	}

	switch {
	case failed == len(outcomes):
		return nil, firstErr
	case failed > 0:
		resp.Status = models.StatusPartial
	default:
		resp.Status = models.StatusSuccess
	}
	return resp, nil
}

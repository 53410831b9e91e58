// Package search is the caller-facing flight query service. It validates
// requests, routes them through the orchestrator, reconciler and governor,
// and shapes the results into response envelopes.
package search

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dharmasatrya/flightquery/internal/airports"
	"github.com/dharmasatrya/flightquery/internal/dispatch"
	"github.com/dharmasatrya/flightquery/internal/filter"
	"github.com/dharmasatrya/flightquery/internal/governor"
	"github.com/dharmasatrya/flightquery/internal/metrics"
	"github.com/dharmasatrya/flightquery/internal/models"
	"github.com/dharmasatrya/flightquery/internal/orchestrator"
	"github.com/dharmasatrya/flightquery/internal/pricing"
	"github.com/dharmasatrya/flightquery/internal/providers"
	"github.com/dharmasatrya/flightquery/internal/reconcile"
)

// ErrPricingUnavailable is returned by ConfirmPrice when no pricing source is
// configured.
var ErrPricingUnavailable = errors.New("price confirmation is not configured")

type Config struct {
	Workers int
	Metrics *metrics.Registry
}

type Service struct {
	orchestrator *orchestrator.Orchestrator
	reconciler   *reconcile.Reconciler
	governor     *governor.Governor
	confirmer    *pricing.Confirmer
	config       Config
}

// NewService wires the service. confirmer may be nil when no pricing source
// is configured.
func NewService(orch *orchestrator.Orchestrator, rec *reconcile.Reconciler, gov *governor.Governor, confirmer *pricing.Confirmer, config Config) *Service {
	if config.Workers <= 0 {
		config.Workers = dispatch.DefaultWorkers
	}
	return &Service{
		orchestrator: orch,
		reconciler:   rec,
		governor:     gov,
		confirmer:    confirmer,
		config:       config,
	}
}

type requestIDKey struct{}

// WithRequestID attaches the transport's request id to ctx so it is echoed in
// response metadata.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

func (s *Service) metadata(ctx context.Context, start time.Time, source string, attempts []models.Attempt) models.SearchMetadata {
	if attempts == nil {
		attempts = []models.Attempt{}
	}
	return models.SearchMetadata{
		Source:       source,
		SourcesTried: attempts,
		SearchTimeMs: time.Since(start).Milliseconds(),
		RequestID:    requestID(ctx),
	}
}

// present filters, sorts and trims flights for output. It reports how many
// flights passed the filters and whether any were cut.
func present(flights []models.Flight, opts models.OutputOptions) (out []models.Flight, total int, truncated bool) {
	out = filter.Apply(flights, opts.Filters, opts.SortBy, opts.SortOrder)
	total = len(out)

	switch {
	case opts.ReturnCheapestOnly && len(out) > 0:
		if c, ok := filter.Cheapest(out); ok {
			out = []models.Flight{c}
		} else {
			out = out[:1]
		}
	case opts.MaxResults > 0 && len(out) > opts.MaxResults:
		out = out[:opts.MaxResults]
	}

	airports.Enrich(out)
	return out, total, len(out) < total
}

// presentTrips applies the output options to round trips through their
// combined flights.
func presentTrips(trips []models.RoundTripOption, opts models.OutputOptions) (out []models.RoundTripOption, total int, truncated bool) {
	byID := make(map[string]models.RoundTripOption, len(trips))
	flights := make([]models.Flight, len(trips))
	for i, t := range trips {
		byID[t.ID] = t
		flights[i] = t.Flight
	}

	kept, total, truncated := present(flights, opts)
	out = make([]models.RoundTripOption, len(kept))
	for i, f := range kept {
		t := byID[f.ID]
		t.Flight = f
		out[i] = t
	}
	return out, total, truncated
}

// roundTripSet searches a round trip natively first and reconciles it from
// single legs when the sources cannot serve it whole.
func (s *Service) roundTripSet(ctx context.Context, out, ret models.AtomicLegQuery) (*models.RoundTripSet, error) {
	res, err := s.orchestrator.Run(ctx, models.RoundTrip(out, ret))
	if err == nil {
		set := &models.RoundTripSet{Status: res.Status, Source: res.Source, Trips: make([]models.RoundTripOption, 0, len(res.Flights)), Attempts: res.Attempts, Insights: res.Insights}
		for _, f := range res.Flights {
			set.Trips = append(set.Trips, models.RoundTripOption{Flight: f, Pricing: models.PricingProvider, OutboundID: f.ID})
		}
		return set, nil
	}

	var ex *orchestrator.ExhaustedError
	if !errors.As(err, &ex) || !ex.Saw(providers.KindUnsupported) {
		return nil, err
	}

	set, err := s.reconciler.Reconcile(ctx, out, ret)
	if err != nil {
		var rex *orchestrator.ExhaustedError
		if errors.As(err, &rex) {
			rex.Attempts = append(append([]models.Attempt{}, ex.Attempts...), rex.Attempts...)
		}
		return nil, err
	}
	set.Attempts = append(append([]models.Attempt{}, ex.Attempts...), set.Attempts...)
	return set, nil
}

func cheapestTrip(trips []models.RoundTripOption) (models.RoundTripOption, bool) {
	var best models.RoundTripOption
	found := false
	for _, t := range trips {
		if !t.HasPrice() {
			continue
		}
		if !found || t.Price < best.Price {
			best, found = t, true
		}
	}
	return best, found
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Package reconcile builds round-trip itineraries from single legs, either
// through a source's continuation tokens or by pairing two one-way searches.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dharmasatrya/flightquery/internal/metrics"
	"github.com/dharmasatrya/flightquery/internal/models"
	"github.com/dharmasatrya/flightquery/internal/orchestrator"
	"github.com/dharmasatrya/flightquery/internal/providers"
)

// Runner runs one atomic query with fallback.
type Runner interface {
	Run(ctx context.Context, trip models.Trip) (*orchestrator.Result, error)
	Sources() []providers.Source
}

type Config struct {
	TopK     int
	MaxPairs int
	Metrics  *metrics.Registry
}

func DefaultConfig() Config {
	return Config{TopK: 3, MaxPairs: 10}
}

type Reconciler struct {
	runner Runner
	config Config
}

func NewReconciler(runner Runner, config Config) *Reconciler {
	d := DefaultConfig()
	if config.TopK <= 0 {
		config.TopK = d.TopK
	}
	if config.MaxPairs <= 0 {
		config.MaxPairs = d.MaxPairs
	}
	return &Reconciler{runner: runner, config: config}
}

// Reconcile returns round trips for out and ret. When no return leg can be
// matched the set is partial and lists the outbound offers on their own.
func (r *Reconciler) Reconcile(ctx context.Context, out, ret models.AtomicLegQuery) (*models.RoundTripSet, error) {
	if !r.continuationAvailable() {
		return r.pairLegs(ctx, out, ret, nil)
	}

	outRes, err := r.runner.Run(ctx, models.OutboundOf(out, ret))
	if err != nil {
		return nil, err
	}
	if outRes.Status == models.StatusNoResults {
		return &models.RoundTripSet{Status: models.StatusNoResults, Source: outRes.Source, Trips: []models.RoundTripOption{}, Attempts: outRes.Attempts}, nil
	}

	cs, ok := r.continuationSource(outRes.Source)
	if !ok {
		// the serving source ignored the return hint, so its prices are one-way fares
		return r.pairLegs(ctx, out, ret, outRes)
	}

	trips, attempts, cerr := r.continueFrom(ctx, cs, models.RoundTrip(out, ret), outRes.Flights)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(trips) > 0 {
		r.config.Metrics.ObserveRoundTrips(string(models.PricingProvider), len(trips))
		return &models.RoundTripSet{
			Status:   models.StatusSuccess,
			Source:   cs.Name(),
			Trips:    trips,
			Attempts: append(outRes.Attempts, attempts...),
			Insights: outRes.Insights,
		}, nil
	}

	log.Printf("[reconcile] return options from %s unavailable, pairing one-way legs: %v", cs.Name(), cerr)
	// outbound prices from a continuation source are round-trip fares; search both legs again
	set, err := r.pairLegs(ctx, out, ret, nil)
	if err != nil {
		return nil, err
	}
	set.Attempts = append(append(outRes.Attempts, attempts...), set.Attempts...)
	if set.Status == models.StatusSuccess {
		set.Status = models.StatusPartialReconciliation
	}
	set.Warnings = append(set.Warnings, fmt.Sprintf("return options from %s unavailable (%v); trips priced as two one-way fares", cs.Name(), cerr))
	return set, nil
}

func (r *Reconciler) continuationAvailable() bool {
	for _, s := range r.runner.Sources() {
		if _, ok := s.(providers.ContinuationSource); ok {
			return true
		}
	}
	return false
}

func (r *Reconciler) continuationSource(name string) (providers.ContinuationSource, bool) {
	for _, s := range r.runner.Sources() {
		if s.Name() != name {
			continue
		}
		cs, ok := s.(providers.ContinuationSource)
		return cs, ok
	}
	return nil, false
}

// continueFrom exchanges the tokens of the TopK cheapest outbound offers for
// their return options. The pair price is the source's round-trip total.
func (r *Reconciler) continueFrom(ctx context.Context, cs providers.ContinuationSource, trip models.Trip, outbound []models.Flight) ([]models.RoundTripOption, []models.Attempt, error) {
	var tokenized []models.Flight
	for _, f := range outbound {
		if f.ContinuationToken != "" {
			tokenized = append(tokenized, f)
		}
	}
	if len(tokenized) == 0 {
		return nil, nil, fmt.Errorf("%w: no outbound offer carries a continuation token", providers.ErrNoResults)
	}
	sortByPrice(tokenized)
	if len(tokenized) > r.config.TopK {
		tokenized = tokenized[:r.config.TopK]
	}

	var (
		mu       sync.Mutex
		cands    []candidate
		attempts []models.Attempt
		firstErr error
	)
	g := new(errgroup.Group)
	for _, o := range tokenized {
		o := o
		g.Go(func() error {
			returns, err := cs.ReturnOptions(ctx, o.ContinuationToken, trip)
			if err == nil && len(returns) == 0 {
				err = providers.NewProviderError(cs.Name(), providers.ErrNoResults)
			}

			mu.Lock()
			defer mu.Unlock()
			a := models.Attempt{Source: cs.Name(), Outcome: string(providers.Classify(err))}
			if err != nil {
				a.Error = err.Error()
				if firstErr == nil {
					firstErr = err
				}
			}
			attempts = append(attempts, a)
			for _, rf := range returns {
				if rf.Validate() != nil || !rf.HasPrice() {
					continue
				}
				cands = append(cands, combine(o, rf, rf.Price, models.PricingProvider))
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(cands) == 0 {
		if firstErr == nil {
			firstErr = errors.New("return options carried no usable price")
		}
		return nil, attempts, firstErr
	}
	return r.best(cands), attempts, nil
}

// pairLegs searches whichever legs are missing, concurrently, and prices each
// pair as the sum of its two one-way fares.
func (r *Reconciler) pairLegs(ctx context.Context, out, ret models.AtomicLegQuery, outRes *orchestrator.Result) (*models.RoundTripSet, error) {
	var (
		retRes         *orchestrator.Result
		outErr, retErr error
	)
	g := new(errgroup.Group)
	if outRes == nil {
		g.Go(func() error {
			outRes, outErr = r.runner.Run(ctx, models.OneWayTrip(out))
			return nil
		})
	}
	g.Go(func() error {
		retRes, retErr = r.runner.Run(ctx, models.OneWayTrip(ret))
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if outErr != nil {
		return nil, outErr
	}

	set := &models.RoundTripSet{Source: outRes.Source, Trips: []models.RoundTripOption{}, Attempts: outRes.Attempts}
	if outRes.Status == models.StatusNoResults {
		set.Status = models.StatusNoResults
		return set, nil
	}

	var retFlights []models.Flight
	switch {
	case retErr != nil:
		var ex *orchestrator.ExhaustedError
		if errors.As(retErr, &ex) {
			set.Attempts = append(set.Attempts, ex.Attempts...)
		}
		set.Warnings = append(set.Warnings, "return leg failed: "+retErr.Error())
	default:
		set.Attempts = append(set.Attempts, retRes.Attempts...)
		retFlights = retRes.Flights
		if retRes.Source != outRes.Source {
			set.Source = outRes.Source + "+" + retRes.Source
		}
	}

	var cands []candidate
	for _, o := range outRes.Flights {
		if !o.HasPrice() {
			continue
		}
		for _, rf := range retFlights {
			if !rf.HasPrice() {
				continue
			}
			cands = append(cands, combine(o, rf, o.Price+rf.Price, models.PricingSum))
		}
	}

	if len(cands) == 0 {
		if retErr == nil {
			set.Warnings = append(set.Warnings, "no priced return flight could be matched")
		}
		set.Status = models.StatusPartial
		set.OutboundOnly = outRes.Flights
		return set, nil
	}

	set.Status = models.StatusSuccess
	set.Trips = r.best(cands)
	r.config.Metrics.ObserveRoundTrips(string(models.PricingSum), len(set.Trips))
	return set, nil
}

type candidate struct {
	option    models.RoundTripOption
	stops     int
	departure models.Moment
}

func combine(o, rf models.Flight, price int64, pricing models.Pricing) candidate {
	segs := append(models.WithLeg(o.Segments, models.LegOutbound), models.WithLeg(rf.Segments, models.LegReturn)...)

	source := o.SourceID
	if rf.SourceID != o.SourceID {
		source = o.SourceID + "+" + rf.SourceID
	}
	// segments are non-empty and the source is set, so this cannot fail
	f, _ := models.NewFlight(source, price, o.Currency, segs)
	if pricing == models.PricingProvider {
		f.IsRecommended = o.IsRecommended
		f.RawPayload = rf.RawPayload
	}

	return candidate{
		option: models.RoundTripOption{
			Flight:     f,
			Pricing:    pricing,
			OutboundID: o.ID,
			ReturnID:   rf.ID,
		},
		stops:     o.Stops + rf.Stops,
		departure: o.Departure(),
	}
}

// best orders candidates by price, then stops, then earliest outbound
// departure, and keeps MaxPairs.
func (r *Reconciler) best(cands []candidate) []models.RoundTripOption {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.option.Price != b.option.Price {
			return a.option.Price < b.option.Price
		}
		if a.stops != b.stops {
			return a.stops < b.stops
		}
		return a.departure.Before(b.departure)
	})
	if len(cands) > r.config.MaxPairs {
		cands = cands[:r.config.MaxPairs]
	}
	out := make([]models.RoundTripOption, len(cands))
	for i, c := range cands {
		out[i] = c.option
	}
	return out
}

func sortByPrice(flights []models.Flight) {
	sort.SliceStable(flights, func(i, j int) bool {
		a, b := flights[i], flights[j]
		if a.HasPrice() != b.HasPrice() {
			return a.HasPrice()
		}
		return a.Price < b.Price
	})
}

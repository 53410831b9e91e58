// Package orchestrator runs one atomic query against an ordered list of
// sources, falling back to the next source when one fails.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dharmasatrya/flightquery/internal/deeplink"
	"github.com/dharmasatrya/flightquery/internal/metrics"
	"github.com/dharmasatrya/flightquery/internal/models"
	"github.com/dharmasatrya/flightquery/internal/providers"
	"github.com/dharmasatrya/flightquery/internal/ratelimit"
)

var ErrNoSources = errors.New("no sources configured")

type Config struct {
	AttemptTimeout time.Duration
	RateLimiter    *ratelimit.ProviderLimiter
	Metrics        *metrics.Registry
}

func DefaultConfig() Config {
	return Config{AttemptTimeout: 15 * time.Second}
}

type Orchestrator struct {
	sources []providers.Source
	config  Config
}

// Result is the answering source's offers. Insights always carries a Google
// Flights link: the source's own when it sent one, otherwise one built from
// the trip.
type Result struct {
	Flights  []models.Flight
	Source   string
	Status   string
	Attempts []models.Attempt
	Insights models.SearchInsights
}

// ExhaustedError reports that every source failed. It unwraps to the last
// source's error.
type ExhaustedError struct {
	Source   string
	Kind     providers.Kind
	Err      error
	Attempts []models.Attempt
	DeepLink string
}

func (e *ExhaustedError) Error() string {
	if e.Source == "" {
		return "all sources failed: " + e.Err.Error()
	}
	return fmt.Sprintf("all sources failed, last %s (%s): %v", e.Source, e.Kind, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Saw reports whether any attempt ended with kind.
func (e *ExhaustedError) Saw(kind providers.Kind) bool {
	for _, a := range e.Attempts {
		if a.Outcome == string(kind) {
			return true
		}
	}
	return false
}

func NewOrchestrator(sources []providers.Source, config Config) *Orchestrator {
	return &Orchestrator{
		sources: sources,
		config:  config,
	}
}

// Sources returns the sources in priority order.
func (o *Orchestrator) Sources() []providers.Source {
	return o.sources
}

// Run tries each source once, in order, until one answers. NoResults is an
// answer and stops the fallback. Cancelling ctx stops immediately with
// ctx.Err().
func (o *Orchestrator) Run(ctx context.Context, trip models.Trip) (*Result, error) {
	if len(o.sources) == 0 {
		return nil, &ExhaustedError{Kind: providers.KindUpstream, Err: ErrNoSources, DeepLink: deeplink.GoogleFlights(trip)}
	}

	attempts := make([]models.Attempt, 0, len(o.sources))
	var (
		lastErr    error
		lastSource string
		lastKind   providers.Kind
	)

	for _, src := range o.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := src.Name()

		start := time.Now()
		flights, insights, err := o.attempt(ctx, src, trip)
		elapsed := time.Since(start)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		if err == nil && len(flights) > 0 {
			valid := o.validFlights(name, flights)
			if len(valid) == 0 {
				err = providers.NewProviderError(name, fmt.Errorf("%w: %d records failed validation", providers.ErrUpstream, len(flights)))
			}
			flights = valid
		}

		kind := providers.Classify(err)
		if err == nil && len(flights) == 0 {
			kind = providers.KindNoResults
		}

		a := models.Attempt{Source: name, Outcome: string(kind), DurationMs: elapsed.Milliseconds()}
		if err != nil {
			a.Error = err.Error()
		}
		attempts = append(attempts, a)
		o.config.Metrics.ObserveAttempt(name, string(kind), elapsed)

		if insights.GoogleFlightsURL == "" {
			insights.GoogleFlightsURL = deeplink.GoogleFlights(trip)
		}
		switch kind {
		case providers.KindNone:
			return &Result{Flights: flights, Source: name, Status: models.StatusSuccess, Attempts: attempts, Insights: insights}, nil
		case providers.KindNoResults:
			log.Printf("[orchestrator] %s: no results for %s", name, trip)
			return &Result{Flights: []models.Flight{}, Source: name, Status: models.StatusNoResults, Attempts: attempts, Insights: insights}, nil
		}

		log.Printf("[orchestrator] %s failed for %s (%s), trying next source: %v", name, trip, kind, err)
		lastErr, lastSource, lastKind = err, name, kind
	}

	o.config.Metrics.ObserveExhausted()
	return nil, &ExhaustedError{
		Source:   lastSource,
		Kind:     lastKind,
		Err:      lastErr,
		Attempts: attempts,
		DeepLink: deeplink.GoogleFlights(trip),
	}
}

func (o *Orchestrator) attempt(ctx context.Context, src providers.Source, trip models.Trip) ([]models.Flight, models.SearchInsights, error) {
	var none models.SearchInsights
	name := src.Name()
	actx := ctx
	if o.config.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, o.config.AttemptTimeout)
		defer cancel()
	}

	if o.config.RateLimiter != nil {
		if err := o.config.RateLimiter.Wait(actx, name); err != nil {
			if ctx.Err() != nil {
				return nil, none, ctx.Err()
			}
			return nil, none, providers.NewProviderError(name, fmt.Errorf("%w: %w", providers.ErrRateLimited, err))
		}
	}

	var (
		flights  []models.Flight
		insights models.SearchInsights
		err      error
	)
	if is, ok := src.(providers.InsightSource); ok {
		flights, insights, err = is.SearchWithInsights(actx, trip)
	} else {
		flights, err = src.Search(actx, trip)
	}
	if err == nil {
		return flights, insights, nil
	}
	if ctx.Err() != nil {
		return nil, none, ctx.Err()
	}
	if actx.Err() != nil {
		return nil, none, providers.NewProviderError(name, fmt.Errorf("%w: attempt timed out after %v", providers.ErrUpstream, o.config.AttemptTimeout))
	}
	return nil, none, providers.AsProviderError(name, err)
}

func (o *Orchestrator) validFlights(source string, flights []models.Flight) []models.Flight {
	valid := flights[:0:0]
	for _, f := range flights {
		if err := f.Validate(); err != nil {
			log.Printf("[orchestrator] dropping invalid flight from %s: %v", source, err)
			continue
		}
		valid = append(valid, f)
	}
	o.config.Metrics.ObserveDropped(source, len(flights)-len(valid))
	return valid
}

package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/dharmasatrya/flightquery/internal/models"
)

// Source is a single upstream flight data source. Implementations translate
// every failure into one of the sentinel errors below, wrapped in a
// *ProviderError, and never return provider-native errors.
type Source interface {
	Name() string
	Search(ctx context.Context, trip models.Trip) ([]models.Flight, error)
}

// InsightSource is a Source that also reports search-level context, such as
// the source's own booking link. The orchestrator calls SearchWithInsights in
// place of Search when a source implements it.
type InsightSource interface {
	Source
	SearchWithInsights(ctx context.Context, trip models.Trip) ([]models.Flight, models.SearchInsights, error)
}

// ContinuationSource is implemented by sources whose outbound offers carry a
// token that unlocks return options priced as a whole round trip.
type ContinuationSource interface {
	Source
	ReturnOptions(ctx context.Context, token string, trip models.Trip) ([]models.Flight, error)
}

var (
	ErrNoResults           = errors.New("no results")
	ErrRateLimited         = errors.New("rate limited")
	ErrUpstream            = errors.New("upstream failure")
	ErrAuthRequired        = errors.New("authentication required")
	ErrUnsupportedTripKind = errors.New("unsupported trip kind")
)

type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func NewProviderError(provider string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Err:      err,
	}
}

// Kind names a failure class for logs, metrics and attempt records.
type Kind string

const (
	KindNone        Kind = "success"
	KindNoResults   Kind = "no_results"
	KindRateLimited Kind = "rate_limited"
	KindUpstream    Kind = "upstream"
	KindAuth        Kind = "auth_required"
	KindUnsupported Kind = "unsupported"
)

// Classify maps an error to its failure class. Anything unrecognised is an
// upstream failure.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrNoResults):
		return KindNoResults
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrAuthRequired):
		return KindAuth
	case errors.Is(err, ErrUnsupportedTripKind):
		return KindUnsupported
	default:
		return KindUpstream
	}
}

// wrap classifies err and returns it as a *ProviderError whose chain contains
// the matching sentinel.
func wrap(provider string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	kind := Classify(err)
	if kind == KindUpstream && !errors.Is(err, ErrUpstream) {
		err = fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return NewProviderError(provider, err)
}

// AsProviderError classifies err the way adapters do, for callers outside
// this package that talk to a provider directly.
func AsProviderError(provider string, err error) error {
	return wrap(provider, err)
}

func isNetworkTransient(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func unsupported(provider string, trip models.Trip, reason string) error {
	return NewProviderError(provider, &unsupportedError{kind: trip.Kind, reason: reason})
}

type unsupportedError struct {
	kind   models.TripKind
	reason string
}

func (e *unsupportedError) Error() string {
	if e.reason == "" {
		return "unsupported trip kind " + string(e.kind)
	}
	return "unsupported trip kind " + string(e.kind) + ": " + e.reason
}

func (e *unsupportedError) Unwrap() error {
	return ErrUnsupportedTripKind
}

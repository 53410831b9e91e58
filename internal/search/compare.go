package search

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dharmasatrya/flightquery/internal/airports"
	"github.com/dharmasatrya/flightquery/internal/filter"
	"github.com/dharmasatrya/flightquery/internal/models"
	"github.com/dharmasatrya/flightquery/internal/orchestrator"
	"github.com/dharmasatrya/flightquery/pkg/currency"
)

// CompareOneWayVsRoundTrip prices the trip both ways, as one round trip and
// as two separate one-way fares, and recommends the cheaper.
func (s *Service) CompareOneWayVsRoundTrip(ctx context.Context, req *models.RoundTripRequest) (*models.TripTypeComparison, error) {
	start := time.Now()
	defer func() { s.config.Metrics.ObserveSearch("compare_trip_types", time.Since(start)) }()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	out, ret := req.Legs()

	var (
		outRes, retRes         *orchestrator.Result
		set                    *models.RoundTripSet
		outErr, retErr, setErr error
	)
	g := new(errgroup.Group)
	g.Go(func() error {
		outRes, outErr = s.orchestrator.Run(ctx, models.OneWayTrip(out))
		return nil
	})
	g.Go(func() error {
		retRes, retErr = s.orchestrator.Run(ctx, models.OneWayTrip(ret))
		return nil
	})
	g.Go(func() error {
		set, setErr = s.roundTripSet(ctx, out, ret)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if outErr != nil && retErr != nil && setErr != nil {
		return nil, setErr
	}

	cmp := &models.TripTypeComparison{
		Origin:        out.Origin,
		Destination:   out.Destination,
		DepartureDate: out.Date,
		ReturnDate:    ret.Date,
		Currency:      out.Currency,
	}

	outCheapest := s.cheapestOf(outRes, outErr, "outbound one-way", cmp)
	retCheapest := s.cheapestOf(retRes, retErr, "return one-way", cmp)
	cmp.OutboundOneWay, cmp.ReturnOneWay = outCheapest, retCheapest
	if outCheapest != nil && retCheapest != nil {
		total := outCheapest.Price + retCheapest.Price
		cmp.TwoOneWaysTotal = &total
	}

	switch {
	case setErr != nil:
		cmp.Warnings = append(cmp.Warnings, "round trip search failed: "+setErr.Error())
	default:
		if best, ok := cheapestTrip(set.Trips); ok {
			f := best.Flight
			airports.Enrich([]models.Flight{f})
			cmp.RoundTrip = &f
			cmp.RoundTripPricing = best.Pricing
			cmp.RoundTripTotal = &f.Price
			if best.Pricing == models.PricingSum {
				cmp.Warnings = append(cmp.Warnings, "no source quoted a round-trip fare; the round trip is priced as two one-way fares")
			}
		} else {
			cmp.Warnings = append(cmp.Warnings, "no priced round trip found")
		}
	}

	recommend(cmp)
	cmp.Summary = summary(cmp)
	return cmp, nil
}

func (s *Service) cheapestOf(res *orchestrator.Result, err error, label string, cmp *models.TripTypeComparison) *models.Flight {
	if err != nil {
		cmp.Warnings = append(cmp.Warnings, fmt.Sprintf("%s search failed: %v", label, err))
		return nil
	}
	best, ok := filter.Cheapest(res.Flights)
	if !ok {
		cmp.Warnings = append(cmp.Warnings, "no priced "+label+" flight found")
		return nil
	}
	airports.Enrich([]models.Flight{best})
	return &best
}

func recommend(cmp *models.TripTypeComparison) {
	if cmp.RoundTripTotal == nil || cmp.TwoOneWaysTotal == nil {
		cmp.Recommendation = models.RecommendInsufficient
		return
	}
	rt, ow := *cmp.RoundTripTotal, *cmp.TwoOneWaysTotal
	switch {
	case rt < ow:
		cmp.Recommendation = models.RecommendRoundTrip
		cmp.Savings = ow - rt
	case ow < rt:
		cmp.Recommendation = models.RecommendTwoOneWays
		cmp.Savings = rt - ow
	default:
		cmp.Recommendation = models.RecommendEither
	}
}

func summary(cmp *models.TripTypeComparison) string {
	switch cmp.Recommendation {
	case models.RecommendRoundTrip:
		return "round trip saves " + currency.FormatMinor(cmp.Savings, cmp.Currency)
	case models.RecommendTwoOneWays:
		return "two one-way tickets save " + currency.FormatMinor(cmp.Savings, cmp.Currency)
	case models.RecommendEither:
		return "same price either way"
	default:
		return "not enough prices to compare"
	}
}

// ConfirmPrice re-prices a flight chosen from an earlier search.
func (s *Service) ConfirmPrice(ctx context.Context, req *models.PriceRequest) (*models.PriceConfirmation, error) {
	start := time.Now()
	defer func() { s.config.Metrics.ObserveSearch("confirm_price", time.Since(start)) }()

	if s.confirmer == nil {
		return nil, ErrPricingUnavailable
	}
	if req.Flight.SourceID == "" {
		return nil, models.ValidationError("flight.source_id is required")
	}
	return s.confirmer.Confirm(ctx, req.Flight)
}

package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/dharmasatrya/flightquery/internal/metrics"
	"github.com/dharmasatrya/flightquery/internal/models"
	"github.com/dharmasatrya/flightquery/internal/providers"
	"github.com/dharmasatrya/flightquery/pkg/currency"
)

const pricingPath = "/v1/shopping/flight-offers/pricing"

// ErrWrongSource is returned for flights the pricing source did not produce.
var ErrWrongSource = errors.New("flight was not produced by the pricing source")

// Doer sends one authenticated request to the pricing source.
type Doer interface {
	Do(ctx context.Context, method, path string, params url.Values, body any) (json.RawMessage, error)
}

type Confirmer struct {
	client  Doer
	source  string
	metrics *metrics.Registry
}

func NewConfirmer(client Doer, m *metrics.Registry) *Confirmer {
	return &Confirmer{client: client, source: providers.AmadeusName, metrics: m}
}

type pricingResponse struct {
	Data struct {
		FlightOffers []json.RawMessage `json:"flightOffers"`
	} `json:"data"`
}

type pricedOffer struct {
	Price struct {
		Currency   string `json:"currency"`
		Total      string `json:"total"`
		GrandTotal string `json:"grandTotal"`
	} `json:"price"`
}

// Confirm validates and sanitizes the flight's offer, then asks the pricing
// endpoint for its current price.
func (c *Confirmer) Confirm(ctx context.Context, flight models.Flight) (*models.PriceConfirmation, error) {
	if c.client == nil {
		return nil, providers.NewProviderError(c.source, fmt.Errorf("%w: pricing is not configured", providers.ErrAuthRequired))
	}
	if flight.SourceID != c.source {
		c.metrics.ObservePriceConfirm("rejected")
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongSource, flight.SourceID, c.source)
	}
	if err := RequiredFields(flight.RawPayload); err != nil {
		c.metrics.ObservePriceConfirm("rejected")
		return nil, err
	}
	offer, removed, err := sanitize(flight.RawPayload)
	if err != nil {
		c.metrics.ObservePriceConfirm("rejected")
		return nil, err
	}

	body := map[string]any{
		"data": map[string]any{
			"type":         "flight-offers-pricing",
			"flightOffers": []json.RawMessage{offer},
		},
	}
	data, err := c.client.Do(ctx, http.MethodPost, pricingPath, nil, body)
	if err != nil {
		c.metrics.ObservePriceConfirm(string(providers.Classify(err)))
		return nil, providers.AsProviderError(c.source, err)
	}

	var resp pricingResponse
	if err := json.Unmarshal(data, &resp); err != nil || len(resp.Data.FlightOffers) == 0 {
		c.metrics.ObservePriceConfirm(string(providers.KindUpstream))
		return nil, providers.NewProviderError(c.source, fmt.Errorf("%w: pricing response has no offer", providers.ErrUpstream))
	}
	priced := resp.Data.FlightOffers[0]

	var po pricedOffer
	if err := json.Unmarshal(priced, &po); err != nil {
		return nil, providers.NewProviderError(c.source, fmt.Errorf("%w: decode priced offer: %v", providers.ErrUpstream, err))
	}
	amount := po.Price.GrandTotal
	if amount == "" {
		amount = po.Price.Total
	}
	price, err := currency.ParseMinor(amount)
	if err != nil {
		return nil, providers.NewProviderError(c.source, fmt.Errorf("%w: priced offer has no usable price %q", providers.ErrUpstream, amount))
	}

	cur := po.Price.Currency
	if cur == "" {
		cur = flight.Currency
	}
	changed := flight.HasPrice() && price != flight.Price
	if changed {
		log.Printf("[pricing] price for %s changed from %d to %d %s", flight.ID, flight.Price, price, cur)
	}
	c.metrics.ObservePriceConfirm(string(providers.KindNone))

	return &models.PriceConfirmation{
		FlightID:      flight.ID,
		Source:        c.source,
		QuotedPrice:   flight.Price,
		Price:         price,
		Currency:      cur,
		PriceChanged:  changed,
		PricedOffer:   priced,
		RemovedFields: removed,
	}, nil
}

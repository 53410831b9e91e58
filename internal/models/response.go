package models

import "encoding/json"

// Status values shared by the result envelopes.
const (
	StatusSuccess   = "success"
	StatusNoResults = "no_results"
	StatusPartial   = "partial"
	StatusFailed    = "failed"

	// StatusPartialReconciliation marks round trips paired from one-way
	// fares after the source's own return-option lookup failed.
	StatusPartialReconciliation = "partial_reconciliation"
)

// Attempt records one source tried for an atomic query.
type Attempt struct {
	Source     string `json:"source"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// SearchMetadata describes how a search was answered. GoogleFlightsURL is
// the answering source's own link when it sent one, otherwise a link built
// from the query.
type SearchMetadata struct {
	Source           string         `json:"source,omitempty"`
	SourcesTried     []Attempt      `json:"sources_tried"`
	TotalFound       int            `json:"total_found"`
	Returned         int            `json:"returned"`
	Truncated        bool           `json:"truncated"`
	SearchTimeMs     int64          `json:"search_time_ms"`
	RequestID        string         `json:"request_id"`
	Warnings         []string       `json:"warnings,omitempty"`
	GoogleFlightsURL string         `json:"google_flights_url,omitempty"`
	PriceInsights    *PriceInsights `json:"price_insights,omitempty"`
}

// SetInsights copies a source's search-level context into the metadata.
func (m *SearchMetadata) SetInsights(in SearchInsights) {
	m.GoogleFlightsURL = in.GoogleFlightsURL
	m.PriceInsights = in.PriceInsights
}

// SearchInsights is search-level context a source returns next to its
// offers.
type SearchInsights struct {
	GoogleFlightsURL string
	PriceInsights    *PriceInsights
}

// PriceInsights compares the current fares with the route's usual prices.
// Amounts are minor units.
type PriceInsights struct {
	LowestPrice       int64        `json:"lowest_price"`
	PriceLevel        string       `json:"price_level,omitempty"`
	TypicalPriceRange []int64      `json:"typical_price_range,omitempty"`
	PriceHistory      []PricePoint `json:"price_history,omitempty"`
}

type PricePoint struct {
	Date  string `json:"date"`
	Price int64  `json:"price"`
}

type SearchResponse struct {
	Status   string         `json:"status"`
	Metadata SearchMetadata `json:"metadata"`
	Flights  []Flight       `json:"flights"`
}

type Pricing string

const (
	// PricingProvider means the price is the source's own round-trip total.
	PricingProvider Pricing = "provider"
	// PricingSum means the price is the sum of two independently priced legs.
	PricingSum Pricing = "sum"
)

// RoundTripOption is a reconciled itinerary. Its embedded flight carries the
// combined price and the outbound then return segments tagged by leg.
type RoundTripOption struct {
	Flight
	Pricing    Pricing `json:"pricing"`
	OutboundID string  `json:"outbound_id"`
	ReturnID   string  `json:"return_id,omitempty"`
}

type RoundTripSet struct {
	Status       string            `json:"status"`
	Source       string            `json:"source,omitempty"`
	Trips        []RoundTripOption `json:"trips"`
	OutboundOnly []Flight          `json:"outbound_only,omitempty"`
	Attempts     []Attempt         `json:"-"`
	Warnings     []string          `json:"-"`
	Insights     SearchInsights    `json:"-"`
}

type RoundTripResponse struct {
	Status       string            `json:"status"`
	Metadata     SearchMetadata    `json:"metadata"`
	Trips        []RoundTripOption `json:"trips"`
	OutboundOnly []Flight          `json:"outbound_only,omitempty"`
}

type LegResult struct {
	Index       int      `json:"index"`
	Origin      string   `json:"origin"`
	Destination string   `json:"destination"`
	Date        string   `json:"date"`
	Status      string   `json:"status"`
	Source      string   `json:"source,omitempty"`
	Flights     []Flight `json:"flights"`
	Error       string   `json:"error,omitempty"`
}

// MultiCityResponse carries either native itineraries or, when no source
// prices the whole trip, independent per-leg results.
type MultiCityResponse struct {
	Status      string         `json:"status"`
	Metadata    SearchMetadata `json:"metadata"`
	Native      bool           `json:"native"`
	Itineraries []Flight       `json:"itineraries,omitempty"`
	Legs        []LegResult    `json:"legs,omitempty"`
}

type Pagination struct {
	Total      int  `json:"total"`
	Offset     int  `json:"offset"`
	Returned   int  `json:"returned"`
	NextOffset *int `json:"next_offset,omitempty"`
}

// CombinationResult is the outcome of one governed combination.
type CombinationResult struct {
	Origin        string            `json:"origin"`
	Destination   string            `json:"destination"`
	DepartureDate string            `json:"departure_date"`
	ReturnDate    string            `json:"return_date,omitempty"`
	Status        string            `json:"status"`
	Source        string            `json:"source,omitempty"`
	CheapestPrice *int64            `json:"cheapest_price,omitempty"`
	Flights       []Flight          `json:"flights,omitempty"`
	Trips         []RoundTripOption `json:"trips,omitempty"`
	Error         string            `json:"error,omitempty"`
}

type BatchResponse struct {
	Status      string              `json:"status"`
	Metadata    SearchMetadata      `json:"metadata"`
	Pagination  Pagination          `json:"pagination"`
	Cancelled   bool                `json:"cancelled"`
	RateLimited bool                `json:"rate_limited"`
	Cheapest    *CombinationResult  `json:"cheapest,omitempty"`
	Results     []CombinationResult `json:"results"`
}

type PriceRequest struct {
	Flight Flight `json:"flight"`
}

type PriceConfirmation struct {
	FlightID      string          `json:"flight_id"`
	Source        string          `json:"source"`
	QuotedPrice   int64           `json:"quoted_price"`
	Price         int64           `json:"price"`
	Currency      string          `json:"currency"`
	PriceChanged  bool            `json:"price_changed"`
	PricedOffer   json.RawMessage `json:"priced_offer"`
	RemovedFields []string        `json:"removed_fields,omitempty"`
}

type TripTypeComparison struct {
	Origin           string   `json:"origin"`
	Destination      string   `json:"destination"`
	DepartureDate    string   `json:"departure_date"`
	ReturnDate       string   `json:"return_date"`
	Currency         string   `json:"currency"`
	OutboundOneWay   *Flight  `json:"outbound_one_way,omitempty"`
	ReturnOneWay     *Flight  `json:"return_one_way,omitempty"`
	TwoOneWaysTotal  *int64   `json:"two_one_ways_total,omitempty"`
	RoundTrip        *Flight  `json:"round_trip,omitempty"`
	RoundTripPricing Pricing  `json:"round_trip_pricing,omitempty"`
	RoundTripTotal   *int64   `json:"round_trip_total,omitempty"`
	Savings          int64    `json:"savings"`
	Recommendation   string   `json:"recommendation"`
	Summary          string   `json:"summary"`
	Warnings         []string `json:"warnings,omitempty"`
}

// Recommendation values for TripTypeComparison.
const (
	RecommendRoundTrip    = "round_trip"
	RecommendTwoOneWays   = "two_one_ways"
	RecommendEither       = "either"
	RecommendInsufficient = "insufficient_data"
)

type ErrorResponse struct {
	Error            string         `json:"error"`
	Message          string         `json:"message"`
	Code             int            `json:"code"`
	Remediation      string         `json:"remediation,omitempty"`
	GoogleFlightsURL string         `json:"google_flights_url,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
}

package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dharmasatrya/flightquery/internal/models"
	"github.com/dharmasatrya/flightquery/internal/quota"
	"github.com/dharmasatrya/flightquery/pkg/currency"
)

const SerpAPIName = "serpapi"

// SerpAPIProvider queries the SerpAPI Google Flights engine. Calls count
// against a monthly quota.
type SerpAPIProvider struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
	Timeout time.Duration
	Retries int
	Backoff time.Duration
	Quota   quota.Counter
}

type serpResponse struct {
	BestFlights    []json.RawMessage `json:"best_flights"`
	OtherFlights   []json.RawMessage `json:"other_flights"`
	PriceInsights  *serpInsights     `json:"price_insights"`
	Error          string            `json:"error"`
	SearchMetadata struct {
		Status           string `json:"status"`
		GoogleFlightsURL string `json:"google_flights_url"`
	} `json:"search_metadata"`
}

// serpInsights carries major-unit prices. Price history entries are
// [unix seconds, price] pairs.
type serpInsights struct {
	LowestPrice       *int      `json:"lowest_price"`
	PriceLevel        string    `json:"price_level"`
	TypicalPriceRange []int     `json:"typical_price_range"`
	PriceHistory      [][]int64 `json:"price_history"`
}

type serpFlight struct {
	Flights        []serpSegment `json:"flights"`
	Layovers       []serpLayover `json:"layovers"`
	TotalDuration  int           `json:"total_duration"`
	Price          *int          `json:"price"`
	Type           string        `json:"type"`
	DepartureToken string        `json:"departure_token"`
}

type serpSegment struct {
	DepartureAirport serpAirport `json:"departure_airport"`
	ArrivalAirport   serpAirport `json:"arrival_airport"`
	Duration         int         `json:"duration"`
	Airplane         string      `json:"airplane"`
	Airline          string      `json:"airline"`
	FlightNumber     string      `json:"flight_number"`
	TravelClass      string      `json:"travel_class"`
}

type serpAirport struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Time string `json:"time"`
}

type serpLayover struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Duration int    `json:"duration"`
}

var serpTravelClass = map[string]string{
	"economy":         "1",
	"premium_economy": "2",
	"business":        "3",
	"first":           "4",
}

func (p *SerpAPIProvider) Name() string {
	return SerpAPIName
}

func (p *SerpAPIProvider) Search(ctx context.Context, trip models.Trip) ([]models.Flight, error) {
	flights, _, err := p.SearchWithInsights(ctx, trip)
	return flights, err
}

// SearchWithInsights also returns the response's Google Flights link and
// price insights.
func (p *SerpAPIProvider) SearchWithInsights(ctx context.Context, trip models.Trip) ([]models.Flight, models.SearchInsights, error) {
	var none models.SearchInsights
	if p.APIKey == "" {
		return nil, none, NewProviderError(p.Name(), fmt.Errorf("%w: serpapi key missing", ErrAuthRequired))
	}

	var params url.Values
	switch trip.Kind {
	case models.TripOneWay:
		params = p.legParams(trip.First())
		if trip.ReturnLeg != nil {
			params.Set("type", "1")
			params.Set("return_date", trip.ReturnLeg.Date)
		} else {
			params.Set("type", "2")
		}
	case models.TripMultiCity:
		params = p.multiCityParams(trip)
	default:
		return nil, none, unsupported(p.Name(), trip, "round trips are served through departure tokens")
	}

	resp, err := p.fetch(ctx, params)
	if err != nil {
		return nil, none, wrap(p.Name(), err)
	}

	leg := models.Leg("")
	if trip.ReturnLeg != nil {
		leg = models.LegOutbound
	}
	flights, err := p.mapFlights(resp, trip.First().Currency, leg)
	if err != nil {
		return nil, none, wrap(p.Name(), err)
	}

	if trip.Kind == models.TripMultiCity {
		flights = completeItineraries(flights, trip)
		if len(flights) == 0 {
			return nil, none, unsupported(p.Name(), trip, "results cover only the first leg")
		}
	}
	return flights, resp.insights(), nil
}

// ReturnOptions exchanges a departure token for the matching return flights.
// Their price is the total round-trip fare.
func (p *SerpAPIProvider) ReturnOptions(ctx context.Context, token string, trip models.Trip) ([]models.Flight, error) {
	if len(trip.Legs) != 2 {
		return nil, unsupported(p.Name(), trip, "return options need an outbound and a return leg")
	}
	out, ret := trip.Legs[0], trip.Legs[1]
	params := p.legParams(out)
	params.Set("type", "1")
	params.Set("return_date", ret.Date)
	params.Set("departure_token", token)

	resp, err := p.fetch(ctx, params)
	if err != nil {
		return nil, wrap(p.Name(), err)
	}
	flights, err := p.mapFlights(resp, out.Currency, models.LegReturn)
	if err != nil {
		return nil, wrap(p.Name(), err)
	}
	return flights, nil
}

func (p *SerpAPIProvider) legParams(q models.AtomicLegQuery) url.Values {
	v := url.Values{}
	v.Set("departure_id", q.Origin)
	v.Set("arrival_id", q.Destination)
	v.Set("outbound_date", q.Date)
	p.commonParams(v, q)
	return v
}

func (p *SerpAPIProvider) multiCityParams(trip models.Trip) url.Values {
	type mcLeg struct {
		DepartureID string `json:"departure_id"`
		ArrivalID   string `json:"arrival_id"`
		Date        string `json:"date"`
	}
	legs := make([]mcLeg, len(trip.Legs))
	for i, l := range trip.Legs {
		legs[i] = mcLeg{DepartureID: l.Origin, ArrivalID: l.Destination, Date: l.Date}
	}
	data, _ := json.Marshal(legs)

	v := url.Values{}
	v.Set("type", "3")
	v.Set("multi_city_json", string(data))
	p.commonParams(v, trip.First())
	return v
}

func (p *SerpAPIProvider) commonParams(v url.Values, q models.AtomicLegQuery) {
	v.Set("engine", "google_flights")
	v.Set("hl", "en")
	v.Set("currency", orDefault(q.Currency, "USD"))
	v.Set("adults", strconv.Itoa(max(q.Passengers.Adults, 1)))
	if q.Passengers.Children > 0 {
		v.Set("children", strconv.Itoa(q.Passengers.Children))
	}
	if q.Passengers.InfantsInSeat > 0 {
		v.Set("infants_in_seat", strconv.Itoa(q.Passengers.InfantsInSeat))
	}
	if q.Passengers.InfantsOnLap > 0 {
		v.Set("infants_on_lap", strconv.Itoa(q.Passengers.InfantsOnLap))
	}
	if c, ok := serpTravelClass[q.Cabin]; ok {
		v.Set("travel_class", c)
	}
	// 1 = nonstop only, 2 = at most one stop, 3 = at most two stops.
	if q.MaxStops != nil {
		v.Set("stops", strconv.Itoa(*q.MaxStops+1))
	}
	if len(q.Airlines) > 0 {
		v.Set("include_airlines", strings.Join(q.Airlines, ","))
	}
}

func (p *SerpAPIProvider) fetch(ctx context.Context, params url.Values) (*serpResponse, error) {
	params.Set("api_key", p.APIKey)
	endpoint := p.baseURL() + "/search.json?" + params.Encode()

	attempts := max(p.Retries, 0) + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, backoff(p.resolvedBackoff(), attempt-1)); err != nil {
				return nil, err
			}
		}
		if p.Quota != nil {
			if err := p.Quota.Take(ctx, p.Name()); err != nil {
				if errors.Is(err, quota.ErrExhausted) {
					return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
				}
				log.Printf("[serpapi] quota check failed, continuing: %v", err)
			}
		}

		resp, err := p.fetchOnce(ctx, endpoint)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil || !errors.Is(err, ErrUpstream) {
			return nil, err
		}
		log.Printf("[serpapi] attempt %d failed: %v", attempt+1, err)
	}
	return nil, lastErr
}

func (p *SerpAPIProvider) fetchOnce(ctx context.Context, endpoint string) (*serpResponse, error) {
	reqCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	resp, err := p.client().Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, statusError(resp, body)
	}

	var out serpResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode serpapi response: %v", ErrUpstream, err)
	}
	if out.Error != "" {
		return nil, serpError(out.Error)
	}
	return &out, nil
}

func (r *serpResponse) insights() models.SearchInsights {
	in := models.SearchInsights{GoogleFlightsURL: r.SearchMetadata.GoogleFlightsURL}
	pi := r.PriceInsights
	if pi == nil || pi.LowestPrice == nil {
		return in
	}

	out := &models.PriceInsights{
		LowestPrice: currency.FromMajor(*pi.LowestPrice),
		PriceLevel:  pi.PriceLevel,
	}
	if len(pi.TypicalPriceRange) == 2 {
		out.TypicalPriceRange = []int64{currency.FromMajor(pi.TypicalPriceRange[0]), currency.FromMajor(pi.TypicalPriceRange[1])}
	}
	for _, point := range pi.PriceHistory {
		if len(point) != 2 {
			continue
		}
		out.PriceHistory = append(out.PriceHistory, models.PricePoint{
			Date:  time.Unix(point[0], 0).UTC().Format(models.DateLayout),
			Price: currency.FromMajor(int(point[1])),
		})
	}
	in.PriceInsights = out
	return in
}

// serpError classifies the error field of a 200 response.
func serpError(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "hasn't returned any results"), strings.Contains(lower, "no results"):
		return fmt.Errorf("%w: %s", ErrNoResults, msg)
	case strings.Contains(lower, "run out of searches"), strings.Contains(lower, "rate limit"):
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case strings.Contains(lower, "api key"):
		return fmt.Errorf("%w: %s", ErrAuthRequired, msg)
	default:
		return fmt.Errorf("%w: %s", ErrUpstream, msg)
	}
}

func (p *SerpAPIProvider) mapFlights(resp *serpResponse, cur string, leg models.Leg) ([]models.Flight, error) {
	total := len(resp.BestFlights) + len(resp.OtherFlights)
	if total == 0 {
		return nil, ErrNoResults
	}

	flights := make([]models.Flight, 0, total)
	for i, raw := range append(resp.BestFlights, resp.OtherFlights...) {
		var sf serpFlight
		if err := json.Unmarshal(raw, &sf); err != nil {
			log.Printf("[serpapi] skipping undecodable offer: %v", err)
			continue
		}
		f, err := p.normalize(sf, cur, leg)
		if err != nil {
			log.Printf("[serpapi] skipping offer: %v", err)
			continue
		}
		f.IsRecommended = i < len(resp.BestFlights)
		f.RawPayload = raw
		flights = append(flights, f)
	}
	if len(flights) == 0 {
		return nil, fmt.Errorf("%w: no usable offers in %d results", ErrUpstream, total)
	}
	return flights, nil
}

func (p *SerpAPIProvider) normalize(sf serpFlight, cur string, leg models.Leg) (models.Flight, error) {
	segments := make([]models.Segment, len(sf.Flights))
	for i, s := range sf.Flights {
		carrier, number := splitFlightNumber(s.FlightNumber)
		seg := models.Segment{
			From:         models.Airport{Code: s.DepartureAirport.ID, Name: s.DepartureAirport.Name},
			To:           models.Airport{Code: s.ArrivalAirport.ID, Name: s.ArrivalAirport.Name},
			Departure:    serpMoment(s.DepartureAirport.Time),
			Arrival:      serpMoment(s.ArrivalAirport.Time),
			Airline:      s.Airline,
			CarrierCode:  carrier,
			FlightNumber: number,
			Aircraft:     s.Airplane,
			Cabin:        strings.ToLower(strings.ReplaceAll(s.TravelClass, " ", "_")),
			Leg:          leg,
		}
		if s.Duration > 0 {
			seg.DurationMinutes = models.Minutes(s.Duration)
		}
		segments[i] = seg
	}

	price := models.PriceUnknown
	if sf.Price != nil {
		price = currency.FromMajor(*sf.Price)
	}

	f, err := models.NewFlight(p.Name(), price, cur, segments)
	if err != nil {
		return models.Flight{}, err
	}
	if sf.TotalDuration > 0 {
		f.TotalDurationMinutes = models.Minutes(sf.TotalDuration)
	} else {
		f.TotalDurationMinutes = models.TotalDuration(segments)
	}
	f.ContinuationToken = sf.DepartureToken
	return f, nil
}

// serpMoment parses "2025-07-20 08:30".
func serpMoment(s string) models.Moment {
	t, err := time.Parse("2006-01-02 15:04", strings.TrimSpace(s))
	if err != nil {
		date, _, _ := strings.Cut(strings.TrimSpace(s), " ")
		if _, derr := models.ParseDate(date); derr == nil {
			return models.Moment{Date: date}
		}
		return models.Moment{}
	}
	return models.Moment{Date: t.Format(models.DateLayout), Time: t.Format(models.TimeLayout)}
}

// splitFlightNumber turns "UA 1234" into ("UA", "UA1234").
func splitFlightNumber(s string) (string, string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	carrier, _, found := strings.Cut(s, " ")
	if !found || len(carrier) > 3 {
		return "", strings.ReplaceAll(s, " ", "")
	}
	return carrier, strings.ReplaceAll(s, " ", "")
}

// completeItineraries keeps only itineraries that reach the final
// destination of a multi-city trip.
func completeItineraries(flights []models.Flight, trip models.Trip) []models.Flight {
	final := trip.Legs[len(trip.Legs)-1].Destination
	out := flights[:0]
	for _, f := range flights {
		if f.Segments[len(f.Segments)-1].To.Code == final {
			out = append(out, f)
		}
	}
	return out
}

func (p *SerpAPIProvider) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

func (p *SerpAPIProvider) resolvedBackoff() time.Duration {
	if p.Backoff > 0 {
		return p.Backoff
	}
	return 400 * time.Millisecond
}

func (p *SerpAPIProvider) baseURL() string {
	if p.BaseURL != "" {
		return strings.TrimRight(p.BaseURL, "/")
	}
	return "https://serpapi.com"
}

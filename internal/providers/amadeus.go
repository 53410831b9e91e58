package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dharmasatrya/flightquery/internal/models"
	"github.com/dharmasatrya/flightquery/pkg/currency"
)

const amadeusOffersPath = "/v2/shopping/flight-offers"

// AmadeusProvider searches GDS offers. Every flight keeps its full offer in
// RawPayload so it can be priced later.
type AmadeusProvider struct {
	Client    *AmadeusClient
	MaxOffers int
}

type amadeusSearchResponse struct {
	Data         []json.RawMessage `json:"data"`
	Dictionaries struct {
		Carriers map[string]string `json:"carriers"`
	} `json:"dictionaries"`
}

type amadeusOffer struct {
	ID          string             `json:"id"`
	Source      string             `json:"source"`
	Itineraries []amadeusItinerary `json:"itineraries"`
	Price       struct {
		Currency   string `json:"currency"`
		Total      string `json:"total"`
		GrandTotal string `json:"grandTotal"`
	} `json:"price"`
}

type amadeusItinerary struct {
	Duration string           `json:"duration"`
	Segments []amadeusSegment `json:"segments"`
}

type amadeusSegment struct {
	ID          string          `json:"id"`
	Departure   amadeusEndpoint `json:"departure"`
	Arrival     amadeusEndpoint `json:"arrival"`
	CarrierCode string          `json:"carrierCode"`
	Number      string          `json:"number"`
	Duration    string          `json:"duration"`
}

type amadeusEndpoint struct {
	IataCode string `json:"iataCode"`
	Terminal string `json:"terminal,omitempty"`
	At       string `json:"at"`
}

var amadeusCabin = map[string]string{
	"economy":         "ECONOMY",
	"premium_economy": "PREMIUM_ECONOMY",
	"business":        "BUSINESS",
	"first":           "FIRST",
}

func (p *AmadeusProvider) Name() string {
	return AmadeusName
}

func (p *AmadeusProvider) Search(ctx context.Context, trip models.Trip) ([]models.Flight, error) {
	var (
		raw json.RawMessage
		err error
	)
	q := trip.First()
	switch {
	case trip.Kind == models.TripMultiCity || q.Passengers.InfantsInSeat > 0:
		raw, err = p.Client.Do(ctx, http.MethodPost, amadeusOffersPath, nil, p.searchBody(trip))
	case trip.Kind == models.TripOneWay || trip.Kind == models.TripRoundTrip:
		raw, err = p.Client.Do(ctx, http.MethodGet, amadeusOffersPath, p.searchParams(trip), nil)
	default:
		return nil, unsupported(p.Name(), trip, "")
	}
	if err != nil {
		return nil, wrap(p.Name(), err)
	}

	var resp amadeusSearchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, wrap(p.Name(), fmt.Errorf("%w: decode amadeus response: %v", ErrUpstream, err))
	}
	if len(resp.Data) == 0 {
		return nil, NewProviderError(p.Name(), ErrNoResults)
	}

	flights := make([]models.Flight, 0, len(resp.Data))
	for _, offerRaw := range resp.Data {
		var offer amadeusOffer
		if err := json.Unmarshal(offerRaw, &offer); err != nil {
			log.Printf("[amadeus] skipping undecodable offer: %v", err)
			continue
		}
		if len(offer.Itineraries) != len(trip.Legs) {
			log.Printf("[amadeus] skipping offer %s: %d itineraries for %d legs", offer.ID, len(offer.Itineraries), len(trip.Legs))
			continue
		}
		if !withinStops(offer, q.MaxStops) {
			continue
		}
		f, err := p.normalize(offer, trip, resp.Dictionaries.Carriers, q.Currency)
		if err != nil {
			log.Printf("[amadeus] skipping offer %s: %v", offer.ID, err)
			continue
		}
		f.RawPayload = offerRaw
		flights = append(flights, f)
	}
	if len(flights) == 0 {
		return nil, NewProviderError(p.Name(), ErrNoResults)
	}
	return flights, nil
}

func (p *AmadeusProvider) maxOffers() int {
	if p.MaxOffers > 0 {
		return min(p.MaxOffers, 250)
	}
	return 50
}

func (p *AmadeusProvider) searchParams(trip models.Trip) url.Values {
	q := trip.First()
	v := url.Values{}
	v.Set("originLocationCode", q.Origin)
	v.Set("destinationLocationCode", q.Destination)
	v.Set("departureDate", q.Date)
	if trip.Kind == models.TripRoundTrip {
		v.Set("returnDate", trip.Legs[1].Date)
	}
	v.Set("adults", strconv.Itoa(max(q.Passengers.Adults, 1)))
	if q.Passengers.Children > 0 {
		v.Set("children", strconv.Itoa(q.Passengers.Children))
	}
	if q.Passengers.InfantsOnLap > 0 {
		v.Set("infants", strconv.Itoa(q.Passengers.InfantsOnLap))
	}
	if c, ok := amadeusCabin[q.Cabin]; ok {
		v.Set("travelClass", c)
	}
	if q.MaxStops != nil && *q.MaxStops == 0 {
		v.Set("nonStop", "true")
	}
	if len(q.Airlines) > 0 {
		v.Set("includedAirlineCodes", strings.Join(q.Airlines, ","))
	}
	v.Set("currencyCode", orDefault(q.Currency, "USD"))
	v.Set("max", strconv.Itoa(p.maxOffers()))
	return v
}

type amadeusTraveler struct {
	ID                string `json:"id"`
	TravelerType      string `json:"travelerType"`
	AssociatedAdultID string `json:"associatedAdultId,omitempty"`
}

func (p *AmadeusProvider) searchBody(trip models.Trip) map[string]any {
	q := trip.First()

	ods := make([]map[string]any, len(trip.Legs))
	odIDs := make([]string, len(trip.Legs))
	for i, l := range trip.Legs {
		id := strconv.Itoa(i + 1)
		odIDs[i] = id
		ods[i] = map[string]any{
			"id":                      id,
			"originLocationCode":      l.Origin,
			"destinationLocationCode": l.Destination,
			"departureDateTimeRange":  map[string]string{"date": l.Date},
		}
	}

	var travelers []amadeusTraveler
	next := 1
	add := func(kind string, n int, adult func(int) string) {
		for i := 0; i < n; i++ {
			travelers = append(travelers, amadeusTraveler{ID: strconv.Itoa(next), TravelerType: kind, AssociatedAdultID: adult(i)})
			next++
		}
	}
	none := func(int) string { return "" }
	add("ADULT", max(q.Passengers.Adults, 1), none)
	add("CHILD", q.Passengers.Children, none)
	add("SEATED_INFANT", q.Passengers.InfantsInSeat, none)
	add("HELD_INFANT", q.Passengers.InfantsOnLap, func(i int) string { return strconv.Itoa(i + 1) })

	filters := map[string]any{}
	if c, ok := amadeusCabin[q.Cabin]; ok {
		filters["cabinRestrictions"] = []map[string]any{{
			"cabin":                c,
			"coverage":             "MOST_SEGMENTS",
			"originDestinationIds": odIDs,
		}}
	}
	if len(q.Airlines) > 0 {
		filters["carrierRestrictions"] = map[string]any{"includedCarrierCodes": q.Airlines}
	}
	if q.MaxStops != nil {
		filters["connectionRestriction"] = map[string]any{"maxNumberOfConnections": *q.MaxStops}
	}

	return map[string]any{
		"currencyCode":       orDefault(q.Currency, "USD"),
		"originDestinations": ods,
		"travelers":          travelers,
		"sources":            []string{"GDS"},
		"searchCriteria": map[string]any{
			"maxFlightOffers": p.maxOffers(),
			"flightFilters":   filters,
		},
	}
}

func withinStops(offer amadeusOffer, maxStops *int) bool {
	if maxStops == nil {
		return true
	}
	for _, it := range offer.Itineraries {
		if len(it.Segments)-1 > *maxStops {
			return false
		}
	}
	return true
}

func (p *AmadeusProvider) normalize(offer amadeusOffer, trip models.Trip, carriers map[string]string, fallbackCurrency string) (models.Flight, error) {
	var segments []models.Segment
	for i, it := range offer.Itineraries {
		leg := models.Leg("")
		if trip.Kind == models.TripRoundTrip {
			leg = models.LegOutbound
			if i == 1 {
				leg = models.LegReturn
			}
		}
		for _, s := range it.Segments {
			seg := models.Segment{
				From:         models.Airport{Code: s.Departure.IataCode},
				To:           models.Airport{Code: s.Arrival.IataCode},
				Departure:    amadeusMoment(s.Departure.At),
				Arrival:      amadeusMoment(s.Arrival.At),
				Airline:      carriers[s.CarrierCode],
				CarrierCode:  s.CarrierCode,
				FlightNumber: s.CarrierCode + s.Number,
				Leg:          leg,
			}
			if d, ok := ParseISODuration(s.Duration); ok {
				seg.DurationMinutes = models.Minutes(d)
			}
			segments = append(segments, seg)
		}
	}

	amount := offer.Price.GrandTotal
	if amount == "" {
		amount = offer.Price.Total
	}
	price := models.PriceUnknown
	if v, err := currency.ParseMinor(amount); err == nil {
		price = v
	}

	f, err := models.NewFlight(p.Name(), price, orDefault(offer.Price.Currency, fallbackCurrency), segments)
	if err != nil {
		return models.Flight{}, err
	}
	if len(offer.Itineraries) == 1 {
		if d, ok := ParseISODuration(offer.Itineraries[0].Duration); ok {
			f.TotalDurationMinutes = models.Minutes(d)
		} else {
			f.TotalDurationMinutes = models.TotalDuration(segments)
		}
	}
	return f, nil
}

// amadeusMoment parses "2025-07-20T08:30:00".
func amadeusMoment(s string) models.Moment {
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return models.Moment{}
	}
	return models.Moment{Date: t.Format(models.DateLayout), Time: t.Format(models.TimeLayout)}
}

var isoDurationRe = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:\d+S)?)?$`)

// ParseISODuration parses the ISO-8601 durations Amadeus uses, e.g. "PT5H30M"
// or "P1DT2H", into minutes.
func ParseISODuration(s string) (int, bool) {
	m := isoDurationRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil || s == "P" || s == "PT" {
		return 0, false
	}
	n := func(v string) int {
		if v == "" {
			return 0
		}
		x, _ := strconv.Atoi(v)
		return x
	}
	total := n(m[1])*24*60 + n(m[2])*60 + n(m[3])
	return total, total > 0
}

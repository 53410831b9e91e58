package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dharmasatrya/flightquery/internal/models"
	"github.com/dharmasatrya/flightquery/internal/quota"
)

const serpOneWayBody = `{
  "search_metadata": {"status": "Success", "google_flights_url": "https://www.google.com/travel/flights?x"},
  "best_flights": [{
    "flights": [{
      "departure_airport": {"name": "San Francisco International Airport", "id": "SFO", "time": "2025-07-20 08:00"},
      "arrival_airport": {"name": "John F. Kennedy International Airport", "id": "JFK", "time": "2025-07-20 16:30"},
      "duration": 330, "airplane": "Boeing 757", "airline": "United", "flight_number": "UA 1234"
    }],
    "total_duration": 330, "price": 150, "type": "One way", "departure_token": "tok-1"
  }],
  "other_flights": [{
    "flights": [
      {"departure_airport": {"id": "SFO", "time": "2025-07-20 06:00"}, "arrival_airport": {"id": "ORD", "time": "2025-07-20 12:00"}, "duration": 240, "airline": "American", "flight_number": "AA 10"},
      {"departure_airport": {"id": "ORD", "time": "2025-07-20 13:00"}, "arrival_airport": {"id": "JFK", "time": "2025-07-20 16:10"}, "duration": 130, "airline": "American", "flight_number": "AA 20"}
    ],
    "layovers": [{"id": "ORD", "name": "O'Hare", "duration": 60}],
    "total_duration": 430, "price": 200
  }]
}`

func serpProvider(srv *httptest.Server) *SerpAPIProvider {
	return &SerpAPIProvider{
		APIKey:  "k",
		BaseURL: srv.URL,
		Retries: 2,
		Backoff: time.Millisecond,
		Timeout: 2 * time.Second,
	}
}

func TestSerpAPIOneWay(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(serpOneWayBody))
	}))
	defer srv.Close()

	trip := oneWay("SFO", "JFK", "2025-07-20")
	stops := 1
	trip.Legs[0].MaxStops = &stops
	flights, err := serpProvider(srv).Search(context.Background(), trip)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}

	if got.Get("engine") != "google_flights" || got.Get("type") != "2" || got.Get("travel_class") != "1" || got.Get("stops") != "2" {
		t.Fatalf("unexpected query: %v", got)
	}
	if len(flights) != 2 {
		t.Fatalf("expected 2 flights, got %d", len(flights))
	}

	best := flights[0]
	if !best.IsRecommended || best.Price != 15000 || best.Segments[0].FlightNumber != "UA1234" || best.Segments[0].CarrierCode != "UA" {
		t.Fatalf("unexpected best flight: %+v", best)
	}
	if best.Segments[0].From.Name != "San Francisco International Airport" || best.Segments[0].Departure.Time != "08:00" {
		t.Fatalf("unexpected segment: %+v", best.Segments[0])
	}
	if best.Segments[0].Aircraft != "Boeing 757" {
		t.Fatalf("aircraft = %q", best.Segments[0].Aircraft)
	}
	if best.ContinuationToken != "tok-1" || len(best.RawPayload) == 0 {
		t.Fatal("expected continuation token and raw payload")
	}
	if flights[1].IsRecommended || flights[1].Stops != 1 || *flights[1].TotalDurationMinutes != 430 {
		t.Fatalf("unexpected other flight: %+v", flights[1])
	}
}

func TestSerpAPISearchWithInsights(t *testing.T) {
	body := `{
  "search_metadata": {"status": "Success", "google_flights_url": "https://www.google.com/travel/flights?tfs=abc"},
  "best_flights": [{
    "flights": [{
      "departure_airport": {"id": "SFO", "time": "2025-07-20 08:00"},
      "arrival_airport": {"id": "JFK", "time": "2025-07-20 16:30"},
      "duration": 330, "airline": "United", "flight_number": "UA 1234", "travel_class": "Premium economy"
    }],
    "price": 150
  }],
  "price_insights": {
    "lowest_price": 150,
    "price_level": "low",
    "typical_price_range": [180, 260],
    "price_history": [[1751328000, 210], [1751414400, 195], [42]]
  }
}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	flights, in, err := serpProvider(srv).SearchWithInsights(context.Background(), oneWay("SFO", "JFK", "2025-07-20"))
	if err != nil {
		t.Fatalf("SearchWithInsights error: %v", err)
	}
	if len(flights) != 1 || flights[0].Segments[0].Cabin != "premium_economy" {
		t.Fatalf("unexpected flights: %+v", flights)
	}
	if in.GoogleFlightsURL != "https://www.google.com/travel/flights?tfs=abc" {
		t.Fatalf("google flights url = %q", in.GoogleFlightsURL)
	}
	pi := in.PriceInsights
	if pi == nil {
		t.Fatal("expected price insights")
	}
	if pi.LowestPrice != 15000 || pi.PriceLevel != "low" {
		t.Fatalf("unexpected insights: %+v", pi)
	}
	if len(pi.TypicalPriceRange) != 2 || pi.TypicalPriceRange[0] != 18000 || pi.TypicalPriceRange[1] != 26000 {
		t.Fatalf("typical range = %v", pi.TypicalPriceRange)
	}
	want := []models.PricePoint{{Date: "2025-07-01", Price: 21000}, {Date: "2025-07-02", Price: 19500}}
	if len(pi.PriceHistory) != len(want) {
		t.Fatalf("price history = %+v", pi.PriceHistory)
	}
	for i, p := range want {
		if pi.PriceHistory[i] != p {
			t.Fatalf("price history[%d] = %+v, want %+v", i, pi.PriceHistory[i], p)
		}
	}
}

func TestSerpAPIInsightsWithoutPriceInsights(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(serpOneWayBody))
	}))
	defer srv.Close()

	_, in, err := serpProvider(srv).SearchWithInsights(context.Background(), oneWay("SFO", "JFK", "2025-07-20"))
	if err != nil {
		t.Fatalf("SearchWithInsights error: %v", err)
	}
	if in.PriceInsights != nil || in.GoogleFlightsURL != "https://www.google.com/travel/flights?x" {
		t.Fatalf("unexpected insights: %+v", in)
	}
}

func TestSerpAPIRoundTripIsUnsupported(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	_, err := serpProvider(srv).Search(context.Background(), roundTrip("SFO", "JFK", "2025-07-20", "2025-07-27"))
	if !errors.Is(err, ErrUnsupportedTripKind) {
		t.Fatalf("expected ErrUnsupportedTripKind, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatal("unsupported trip reached the network")
	}
}

func TestSerpAPIOutboundHalfRequestsRoundTripFares(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		_, _ = w.Write([]byte(serpOneWayBody))
	}))
	defer srv.Close()

	rt := roundTrip("SFO", "JFK", "2025-07-20", "2025-07-27")
	flights, err := serpProvider(srv).Search(context.Background(), models.OutboundOf(rt.Legs[0], rt.Legs[1]))
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if got.Get("type") != "1" || got.Get("return_date") != "2025-07-27" {
		t.Fatalf("unexpected query: %v", got)
	}
	if flights[0].Segments[0].Leg != models.LegOutbound {
		t.Fatal("expected outbound leg tag")
	}
}

func TestSerpAPIReturnOptions(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		_, _ = w.Write([]byte(`{"best_flights":[{"flights":[{"departure_airport":{"id":"JFK","time":"2025-07-27 09:00"},"arrival_airport":{"id":"SFO","time":"2025-07-27 12:30"},"duration":390,"airline":"United","flight_number":"UA 1"}],"price":410}]}`))
	}))
	defer srv.Close()

	flights, err := serpProvider(srv).ReturnOptions(context.Background(), "tok-1", roundTrip("SFO", "JFK", "2025-07-20", "2025-07-27"))
	if err != nil {
		t.Fatalf("ReturnOptions error: %v", err)
	}
	if got.Get("departure_token") != "tok-1" {
		t.Fatalf("token not sent: %v", got)
	}
	if flights[0].Price != 41000 || flights[0].Segments[0].Leg != models.LegReturn {
		t.Fatalf("unexpected return option: %+v", flights[0])
	}
}

func TestSerpAPIRetriesUpstreamOnly(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(serpOneWayBody))
	}))
	defer srv.Close()

	if _, err := serpProvider(srv).Search(context.Background(), oneWay("SFO", "JFK", "2025-07-20")); err != nil {
		t.Fatalf("search should succeed after retry: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestSerpAPIErrorClassification(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		want      error
		wantCalls int32
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"Invalid API key."}`, want: ErrAuthRequired, wantCalls: 1},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":"slow"}`, want: ErrRateLimited, wantCalls: 1},
		{name: "server error", status: http.StatusServiceUnavailable, body: ``, want: ErrUpstream, wantCalls: 3},
		{name: "no results", status: http.StatusOK, body: `{"error":"Google Flights hasn't returned any results for this query."}`, want: ErrNoResults, wantCalls: 1},
		{name: "out of searches", status: http.StatusOK, body: `{"error":"Your account has run out of searches."}`, want: ErrRateLimited, wantCalls: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := serpProvider(srv).Search(context.Background(), oneWay("SFO", "JFK", "2025-07-20"))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if n := atomic.LoadInt32(&calls); n != tc.wantCalls {
				t.Fatalf("expected %d calls, got %d", tc.wantCalls, n)
			}
		})
	}
}

func TestSerpAPIQuotaExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(serpOneWayBody))
	}))
	defer srv.Close()

	p := serpProvider(srv)
	p.Quota = quota.NewMemoryCounter(quota.Limits{SerpAPIName: 1})

	if _, err := p.Search(context.Background(), oneWay("SFO", "JFK", "2025-07-20")); err != nil {
		t.Fatalf("first search: %v", err)
	}
	_, err := p.Search(context.Background(), oneWay("SFO", "JFK", "2025-07-21"))
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("exhausted quota must not call upstream, got %d calls", calls)
	}
}

func TestSerpAPIMissingKey(t *testing.T) {
	p := &SerpAPIProvider{}
	if _, err := p.Search(context.Background(), oneWay("SFO", "JFK", "2025-07-20")); !errors.Is(err, ErrAuthRequired) {
		t.Fatalf("expected ErrAuthRequired, got %v", err)
	}
}

package deeplink

import (
	"net/url"
	"strings"
	"testing"

	"github.com/dharmasatrya/flightquery/internal/models"
)

func query(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("invalid url %q: %v", link, err)
	}
	if u.Host != "www.google.com" || u.Path != "/travel/flights" {
		t.Fatalf("unexpected target %q", link)
	}
	return u.Query().Get("q")
}

func TestGoogleFlights(t *testing.T) {
	out := models.AtomicLegQuery{Origin: "SFO", Destination: "JFK", Date: "2025-07-20", Passengers: models.Passengers{Adults: 2}, Cabin: "business", Currency: "USD"}
	ret := out.Reverse("2025-07-27")

	cases := []struct {
		name string
		trip models.Trip
		want string
	}{
		{name: "one way", trip: models.OneWayTrip(out), want: "One way flights to JFK from SFO on 2025-07-20 for 2 passengers business class"},
		{name: "round trip", trip: models.RoundTrip(out, ret), want: "Flights to JFK from SFO on 2025-07-20 through 2025-07-27 for 2 passengers business class"},
		{name: "multi city", trip: models.MultiCityTrip([]models.AtomicLegQuery{out, {Origin: "JFK", Destination: "LHR", Date: "2025-07-25"}}),
			want: "Flights from SFO to JFK on 2025-07-20, from JFK to LHR on 2025-07-25 for 2 passengers business class"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := query(t, GoogleFlights(tc.trip)); got != tc.want {
				t.Fatalf("q = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGoogleFlightsEmptyTrip(t *testing.T) {
	if got := GoogleFlights(models.Trip{}); got != "" {
		t.Fatalf("expected empty link, got %q", got)
	}
}

func TestGoogleFlightsCurrency(t *testing.T) {
	link := GoogleFlights(models.OneWayTrip(models.AtomicLegQuery{Origin: "CGK", Destination: "DPS", Date: "2025-08-01", Currency: "IDR"}))
	if !strings.Contains(link, "curr=IDR") {
		t.Fatalf("expected currency in %q", link)
	}
}

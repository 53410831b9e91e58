// Package deeplink builds Google Flights search URLs that let a user finish a
// search in the browser when every source failed.
package deeplink

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dharmasatrya/flightquery/internal/models"
)

const baseURL = "https://www.google.com/travel/flights"

var cabinText = map[string]string{
	"premium_economy": "premium economy",
	"business":        "business class",
	"first":           "first class",
}

// GoogleFlights returns a search URL for trip, or "" when it has no legs.
func GoogleFlights(trip models.Trip) string {
	if len(trip.Legs) == 0 {
		return ""
	}
	first := trip.First()

	var b strings.Builder
	switch {
	case trip.Kind == models.TripRoundTrip && len(trip.Legs) == 2:
		fmt.Fprintf(&b, "Flights to %s from %s on %s through %s", first.Destination, first.Origin, first.Date, trip.Legs[1].Date)
	case trip.Kind == models.TripOneWay && trip.ReturnLeg != nil:
		fmt.Fprintf(&b, "Flights to %s from %s on %s through %s", first.Destination, first.Origin, first.Date, trip.ReturnLeg.Date)
	case trip.Kind == models.TripMultiCity:
		b.WriteString("Flights")
		for i, l := range trip.Legs {
			if i > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, " from %s to %s on %s", l.Origin, l.Destination, l.Date)
		}
	default:
		fmt.Fprintf(&b, "One way flights to %s from %s on %s", first.Destination, first.Origin, first.Date)
	}

	if n := first.Passengers.Total(); n > 1 {
		fmt.Fprintf(&b, " for %d passengers", n)
	}
	if c, ok := cabinText[first.Cabin]; ok {
		b.WriteString(" " + c)
	}
	if first.MaxStops != nil && *first.MaxStops == 0 {
		b.WriteString(" nonstop")
	}

	v := url.Values{}
	v.Set("q", b.String())
	v.Set("hl", "en")
	if first.Currency != "" {
		v.Set("curr", first.Currency)
	}
	return baseURL + "?" + v.Encode()
}

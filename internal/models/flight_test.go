package models

import (
	"errors"
	"testing"
)

func seg(from, to, date, dep, arr string, dur int) Segment {
	return Segment{
		From:            Airport{Code: from},
		To:              Airport{Code: to},
		Departure:       Moment{Date: date, Time: dep},
		Arrival:         Moment{Date: date, Time: arr},
		DurationMinutes: Minutes(dur),
		Airline:         "United",
	}
}

func TestNewFlightDerivesStops(t *testing.T) {
	cases := []struct {
		name string
		segs []Segment
		want int
	}{
		{name: "nonstop", segs: []Segment{seg("SFO", "JFK", "2025-07-20", "08:00", "16:30", 330)}, want: 0},
		{name: "one stop", segs: []Segment{
			seg("SFO", "ORD", "2025-07-20", "08:00", "14:00", 240),
			seg("ORD", "JFK", "2025-07-20", "15:00", "18:00", 120),
		}, want: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := NewFlight("scraper", 15000, "usd", tc.segs)
			if err != nil {
				t.Fatalf("NewFlight error: %v", err)
			}
			if f.Stops != tc.want || f.Stops != len(f.Segments)-1 {
				t.Fatalf("stops = %d, want %d", f.Stops, tc.want)
			}
			if f.Currency != "USD" {
				t.Fatalf("currency = %q", f.Currency)
			}
			if f.ID == "" {
				t.Fatal("expected generated id")
			}
		})
	}
}

func TestNewFlightRejectsEmptySegments(t *testing.T) {
	if _, err := NewFlight("scraper", 100, "USD", nil); !errors.Is(err, ErrNoSegments) {
		t.Fatalf("expected ErrNoSegments, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	f, err := NewFlight("scraper", PriceUnknown, "USD", []Segment{seg("SFO", "JFK", "2025-07-20", "08:00", "16:30", 330)})
	if err != nil {
		t.Fatalf("unknown price should be valid: %v", err)
	}

	bad := f
	bad.Stops = 2
	if err := bad.Validate(); !errors.Is(err, ErrStopsMismatch) {
		t.Fatalf("expected ErrStopsMismatch, got %v", err)
	}

	bad = f
	bad.Price = -5
	if err := bad.Validate(); !errors.Is(err, ErrNegativePrice) {
		t.Fatalf("expected ErrNegativePrice, got %v", err)
	}

	bad = f
	bad.SourceID = ""
	if err := bad.Validate(); !errors.Is(err, ErrMissingSourceID) {
		t.Fatalf("expected ErrMissingSourceID, got %v", err)
	}
}

func TestAirlineNamesAreDistinct(t *testing.T) {
	segs := []Segment{
		seg("SFO", "ORD", "2025-07-20", "08:00", "14:00", 240),
		seg("ORD", "JFK", "2025-07-20", "15:00", "18:00", 120),
		{From: Airport{Code: "JFK"}, To: Airport{Code: "BOS"}, CarrierCode: "B6"},
	}
	f, err := NewFlight("amadeus", 100, "USD", segs)
	if err != nil {
		t.Fatalf("NewFlight error: %v", err)
	}
	if len(f.AirlineNames) != 2 || f.AirlineNames[0] != "United" || f.AirlineNames[1] != "B6" {
		t.Fatalf("airline names = %v", f.AirlineNames)
	}
}

func TestTotalDuration(t *testing.T) {
	segs := []Segment{
		seg("SFO", "ORD", "2025-07-20", "08:00", "14:00", 240),
		seg("ORD", "JFK", "2025-07-20", "15:00", "18:00", 120),
	}
	got := TotalDuration(segs)
	if got == nil || *got != 420 {
		t.Fatalf("TotalDuration = %v, want 420", got)
	}

	segs[1].Departure.Time = ""
	if got := TotalDuration(segs); got != nil {
		t.Fatalf("expected nil with unknown layover, got %d", *got)
	}
}

func TestMomentBefore(t *testing.T) {
	a := Moment{Date: "2025-07-20", Time: "08:00"}
	b := Moment{Date: "2025-07-20", Time: "09:30"}
	noTime := Moment{Date: "2025-07-20"}

	if !a.Before(b) || b.Before(a) {
		t.Fatal("expected 08:00 before 09:30")
	}
	if !b.Before(noTime) || noTime.Before(a) {
		t.Fatal("missing time should sort last within a date")
	}
	if !noTime.Before(Moment{Date: "2025-07-21", Time: "00:10"}) {
		t.Fatal("earlier date should sort first")
	}
}

func TestAddDays(t *testing.T) {
	if got := AddDays("2025-07-31", 1); got != "2025-08-01" {
		t.Fatalf("AddDays = %q", got)
	}
}

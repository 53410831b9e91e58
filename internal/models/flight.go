package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PriceUnknown marks a flight whose source did not publish a parseable price.
const PriceUnknown int64 = -1

type Leg string

const (
	LegOutbound Leg = "outbound"
	LegReturn   Leg = "return"
)

type Airport struct {
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
}

// Moment is a local calendar date with an optional time of day. Scraped
// sources sometimes omit the time; it stays empty rather than being guessed.
type Moment struct {
	Date string `json:"date"`
	Time string `json:"time,omitempty"`
}

func (m Moment) HasTime() bool {
	return m.Time != ""
}

// Before orders moments by date, then time. A missing time sorts after any
// known time on the same date.
func (m Moment) Before(o Moment) bool {
	if m.Date != o.Date {
		return m.Date < o.Date
	}
	switch {
	case m.HasTime() && o.HasTime():
		return m.Time < o.Time
	case m.HasTime():
		return true
	default:
		return false
	}
}

type Segment struct {
	From            Airport `json:"from"`
	To              Airport `json:"to"`
	Departure       Moment  `json:"departure"`
	Arrival         Moment  `json:"arrival"`
	DurationMinutes *int    `json:"duration_minutes"`
	Airline         string  `json:"airline,omitempty"`
	CarrierCode     string  `json:"carrier_code,omitempty"`
	FlightNumber    string  `json:"flight_number,omitempty"`
	Aircraft        string  `json:"aircraft,omitempty"`
	Cabin           string  `json:"cabin,omitempty"`
	Leg             Leg     `json:"leg,omitempty"`
}

type Flight struct {
	ID                   string          `json:"id"`
	Price                int64           `json:"price"`
	Currency             string          `json:"currency"`
	AirlineNames         []string        `json:"airline_names"`
	Segments             []Segment       `json:"segments"`
	TotalDurationMinutes *int            `json:"total_duration_minutes"`
	Stops                int             `json:"stops"`
	IsRecommended        bool            `json:"is_recommended"`
	SourceID             string          `json:"source_id"`
	ContinuationToken    string          `json:"continuation_token,omitempty"`
	RawPayload           json.RawMessage `json:"raw_payload,omitempty"`
}

var (
	ErrNoSegments      = errors.New("flight has no segments")
	ErrStopsMismatch   = errors.New("stops does not match segment count")
	ErrMissingSourceID = errors.New("flight has no source id")
	ErrNegativePrice   = errors.New("flight price is negative")
)

// NewFlight builds a flight whose stop count and airline list are derived
// from its segments. Adapters use it so the invariants hold by construction.
func NewFlight(source string, price int64, currency string, segments []Segment) (Flight, error) {
	f := Flight{
		ID:           uuid.NewString(),
		Price:        price,
		Currency:     strings.ToUpper(currency),
		Segments:     segments,
		Stops:        len(segments) - 1,
		AirlineNames: airlinesOf(segments),
		SourceID:     source,
	}
	if err := f.Validate(); err != nil {
		return Flight{}, err
	}
	return f, nil
}

func (f Flight) Validate() error {
	if len(f.Segments) == 0 {
		return ErrNoSegments
	}
	if f.Stops != len(f.Segments)-1 {
		return fmt.Errorf("%w: stops=%d segments=%d", ErrStopsMismatch, f.Stops, len(f.Segments))
	}
	if f.SourceID == "" {
		return ErrMissingSourceID
	}
	if f.Price < 0 && f.Price != PriceUnknown {
		return ErrNegativePrice
	}
	return nil
}

func (f Flight) HasPrice() bool {
	return f.Price != PriceUnknown
}

func (f Flight) Departure() Moment {
	return f.Segments[0].Departure
}

// SegmentsFor returns the segments tagged with the given leg.
func (f Flight) SegmentsFor(leg Leg) []Segment {
	var out []Segment
	for _, s := range f.Segments {
		if s.Leg == leg {
			out = append(out, s)
		}
	}
	return out
}

// WithLeg returns a copy of segs tagged with leg.
func WithLeg(segs []Segment, leg Leg) []Segment {
	out := make([]Segment, len(segs))
	for i, s := range segs {
		s.Leg = leg
		out[i] = s
	}
	return out
}

// TotalDuration sums segment durations and the layovers between them. It
// returns nil when any segment duration or layover is unknown.
func TotalDuration(segs []Segment) *int {
	if len(segs) == 0 {
		return nil
	}
	total := 0
	for i, s := range segs {
		if s.DurationMinutes == nil {
			return nil
		}
		total += *s.DurationMinutes
		if i == 0 {
			continue
		}
		layover, ok := minutesBetween(segs[i-1].Arrival, s.Departure)
		if !ok {
			return nil
		}
		total += layover
	}
	return &total
}

func airlinesOf(segs []Segment) []string {
	seen := make(map[string]bool)
	names := make([]string, 0, len(segs))
	for _, s := range segs {
		name := s.Airline
		if name == "" {
			name = s.CarrierCode
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Minutes returns a pointer to m, for optional duration fields.
func Minutes(m int) *int {
	return &m
}

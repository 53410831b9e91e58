package models

import (
	"errors"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestOneWayRequestValidate(t *testing.T) {
	cases := []struct {
		name    string
		req     OneWayRequest
		wantErr error
	}{
		{name: "valid", req: OneWayRequest{Origin: "sfo", Destination: "JFK", DepartureDate: "2025-07-20"}},
		{name: "missing origin", req: OneWayRequest{Destination: "JFK", DepartureDate: "2025-07-20"}, wantErr: ErrMissingOrigin},
		{name: "same airports", req: OneWayRequest{Origin: "JFK", Destination: "jfk", DepartureDate: "2025-07-20"}, wantErr: ErrSameOriginDestination},
		{name: "three stops", req: OneWayRequest{Origin: "SFO", Destination: "JFK", DepartureDate: "2025-07-20",
			TravelParams: TravelParams{MaxStops: intPtr(3)}}, wantErr: ErrUnsupportedStops},
		{name: "negative passengers", req: OneWayRequest{Origin: "SFO", Destination: "JFK", DepartureDate: "2025-07-20",
			TravelParams: TravelParams{Passengers: Passengers{Adults: 1, Children: -1}}}, wantErr: ErrNegativePassengers},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestOneWayRequestDefaults(t *testing.T) {
	req := OneWayRequest{Origin: "sfo", Destination: "jfk", DepartureDate: "2025-07-20"}
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	leg := req.Leg()
	if leg.Origin != "SFO" || leg.Destination != "JFK" {
		t.Fatalf("codes not normalized: %+v", leg)
	}
	if leg.Passengers.Adults != 1 || leg.Cabin != "economy" || leg.Currency != "USD" {
		t.Fatalf("defaults not applied: %+v", leg)
	}
	if req.SortBy != "price" || req.SortOrder != "asc" {
		t.Fatalf("sort defaults not applied: %s %s", req.SortBy, req.SortOrder)
	}
}

func TestBadDateFormat(t *testing.T) {
	req := OneWayRequest{Origin: "SFO", Destination: "JFK", DepartureDate: "20/07/2025"}
	var verr ValidationError
	if err := req.Validate(); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestRoundTripRequestValidate(t *testing.T) {
	req := RoundTripRequest{Origin: "SFO", Destination: "JFK", DepartureDate: "2025-07-20", ReturnDate: "2025-07-19"}
	if err := req.Validate(); !errors.Is(err, ErrReturnBeforeDeparture) {
		t.Fatalf("expected ErrReturnBeforeDeparture, got %v", err)
	}

	req.ReturnDate = "2025-07-27"
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	out, ret := req.Legs()
	if ret.Origin != "JFK" || ret.Destination != "SFO" || ret.Date != "2025-07-27" || out.Date != "2025-07-20" {
		t.Fatalf("unexpected legs: %+v %+v", out, ret)
	}
}

func TestMultiCityRequestValidate(t *testing.T) {
	req := MultiCityRequest{Legs: []LegRequest{{Origin: "SFO", Destination: "JFK", Date: "2025-07-20"}}}
	if err := req.Validate(); !errors.Is(err, ErrTooFewLegs) {
		t.Fatalf("expected ErrTooFewLegs, got %v", err)
	}

	req.Legs = append(req.Legs, LegRequest{Origin: "JFK", Destination: "LHR", Date: "2025-07-18"})
	if err := req.Validate(); err == nil {
		t.Fatal("expected out-of-order legs to fail")
	}

	req.Legs[1].Date = "2025-07-25"
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	trip := req.Trip()
	if trip.Kind != TripMultiCity || len(trip.Legs) != 2 {
		t.Fatalf("unexpected trip: %v", trip)
	}
}

func TestDateRangeRequestValidate(t *testing.T) {
	req := DateRangeRequest{Origin: "SFO", Destination: "JFK", StartDate: "2025-07-01", EndDate: "2025-07-14",
		MinStayDays: intPtr(7), MaxStayDays: intPtr(3)}
	if err := req.Validate(); !errors.Is(err, ErrStayBounds) {
		t.Fatalf("expected ErrStayBounds, got %v", err)
	}

	req.MinStayDays, req.MaxStayDays = nil, nil
	req.EndDate = "2025-06-30"
	if err := req.Validate(); !errors.Is(err, ErrStartAfterEnd) {
		t.Fatalf("expected ErrStartAfterEnd, got %v", err)
	}
}

func TestAirportComparisonRequestValidate(t *testing.T) {
	req := AirportComparisonRequest{Destinations: []string{"JFK"}, DepartureDate: "2025-07-20"}
	if err := req.Validate(); !errors.Is(err, ErrEmptyOrigins) {
		t.Fatalf("expected ErrEmptyOrigins, got %v", err)
	}

	req.Origins = []string{"SFO", "OAK1"}
	if err := req.Validate(); err == nil {
		t.Fatal("expected invalid code to fail")
	}
}

func TestOutputOptionsValidate(t *testing.T) {
	strPtr := func(s string) *string { return &s }
	i64 := func(n int64) *int64 { return &n }

	cases := []struct {
		name    string
		opts    OutputOptions
		wantErr bool
	}{
		{name: "defaults", opts: OutputOptions{}},
		{name: "best value desc", opts: OutputOptions{SortBy: "BEST_VALUE", SortOrder: "Desc"}},
		{name: "unknown sort", opts: OutputOptions{SortBy: "comfort"}, wantErr: true},
		{name: "bad order", opts: OutputOptions{SortOrder: "up"}, wantErr: true},
		{name: "time of day", opts: OutputOptions{Filters: &SearchFilters{TimeOfDay: "Morning"}}},
		{name: "unknown time of day", opts: OutputOptions{Filters: &SearchFilters{TimeOfDay: "brunch"}}, wantErr: true},
		{name: "bad departure time", opts: OutputOptions{Filters: &SearchFilters{DepartureTimeMin: strPtr("8am")}}, wantErr: true},
		{name: "price bounds inverted", opts: OutputOptions{Filters: &SearchFilters{PriceMin: i64(500), PriceMax: i64(100)}}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := OneWayRequest{Origin: "SFO", Destination: "JFK", DepartureDate: "2025-07-20", OutputOptions: tc.opts}
			err := req.Validate()
			if tc.wantErr {
				var ve ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

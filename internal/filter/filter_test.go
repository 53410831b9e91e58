package filter

import (
	"testing"

	"github.com/dharmasatrya/flightquery/internal/models"
)

func mk(id string, price int64, depTime string, stops int, airline string, duration *int) models.Flight {
	segs := make([]models.Segment, stops+1)
	for i := range segs {
		segs[i] = models.Segment{Airline: airline, CarrierCode: airline[:2], Departure: models.Moment{Date: "2025-07-20"}, Arrival: models.Moment{Date: "2025-07-20", Time: "23:00"}}
	}
	segs[0].Departure.Time = depTime
	return models.Flight{ID: id, Price: price, Stops: stops, Segments: segs, AirlineNames: []string{airline}, TotalDurationMinutes: duration, SourceID: "test"}
}

func ids(flights []models.Flight) []string {
	out := make([]string, len(flights))
	for i, f := range flights {
		out[i] = f.ID
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func fixtures() []models.Flight {
	return []models.Flight{
		mk("morning", 20000, "07:30", 0, "United", models.Minutes(330)),
		mk("redeye", 15000, "01:15", 1, "Delta", models.Minutes(480)),
		mk("evening", 30000, "19:00", 0, "JetBlue", nil),
		mk("notime", models.PriceUnknown, "", 2, "Alaska", models.Minutes(600)),
	}
}

func TestApplyFilters(t *testing.T) {
	i64 := func(n int64) *int64 { return &n }
	str := func(s string) *string { return &s }

	cases := []struct {
		name    string
		filters *models.SearchFilters
		want    []string
	}{
		{name: "none", filters: nil, want: []string{"redeye", "morning", "evening", "notime"}},
		{name: "price range", filters: &models.SearchFilters{PriceMin: i64(16000), PriceMax: i64(30000)}, want: []string{"morning", "evening"}},
		{name: "nonstop", filters: &models.SearchFilters{MaxStops: models.Minutes(0)}, want: []string{"morning", "evening"}},
		{name: "airline by code", filters: &models.SearchFilters{Airlines: []string{"de"}}, want: []string{"redeye"}},
		{name: "morning window", filters: &models.SearchFilters{TimeOfDay: "morning"}, want: []string{"morning"}},
		{name: "red eye window", filters: &models.SearchFilters{TimeOfDay: "red_eye"}, want: []string{"redeye"}},
		{name: "departure bounds", filters: &models.SearchFilters{DepartureTimeMin: str("07:00"), DepartureTimeMax: str("20:00")}, want: []string{"morning", "evening"}},
		{name: "max duration", filters: &models.SearchFilters{MaxDuration: models.Minutes(500)}, want: []string{"redeye", "morning"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ids(Apply(fixtures(), tc.filters, "price", "asc"))
			if !equal(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestApplySort(t *testing.T) {
	cases := []struct {
		sortBy, order string
		want          []string
	}{
		{"price", "desc", []string{"evening", "morning", "redeye", "notime"}},
		{"duration", "asc", []string{"morning", "redeye", "notime", "evening"}},
		{"departure", "asc", []string{"redeye", "morning", "evening", "notime"}},
		{"stops", "desc", []string{"notime", "redeye", "morning", "evening"}},
	}
	for _, tc := range cases {
		t.Run(tc.sortBy+"_"+tc.order, func(t *testing.T) {
			got := ids(Apply(fixtures(), nil, tc.sortBy, tc.order))
			if !equal(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestApplyDoesNotReorderInput(t *testing.T) {
	in := fixtures()
	_ = Apply(in, nil, "price", "asc")
	if in[0].ID != "morning" {
		t.Fatal("input slice was reordered")
	}
}

func TestCheapest(t *testing.T) {
	f, ok := Cheapest(fixtures())
	if !ok || f.ID != "redeye" {
		t.Fatalf("cheapest = %v %v", f.ID, ok)
	}
	if _, ok := Cheapest([]models.Flight{mk("x", models.PriceUnknown, "", 0, "United", nil)}); ok {
		t.Fatal("no priced flight should report false")
	}
}

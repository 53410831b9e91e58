package governor

import (
	"errors"
	"testing"

	"github.com/dharmasatrya/flightquery/internal/models"
)

func intPtr(n int) *int { return &n }

func TestPlanDateRangeRejectsOversizedBatch(t *testing.T) {
	g := NewGovernor(DefaultLimits(), nil)
	req := &models.DateRangeRequest{Origin: "SFO", Destination: "JFK", StartDate: "2025-07-01", EndDate: "2025-07-14"}

	_, err := g.PlanDateRange(req)

	var tooLarge *BatchTooLargeError
	if !errors.As(err, &tooLarge) {
		t.Fatalf("expected BatchTooLargeError, got %v", err)
	}
	if tooLarge.Requested != 105 || tooLarge.Total != 105 || tooLarge.Ceiling != 30 || tooLarge.Kind != KindDateRange {
		t.Fatalf("unexpected error %+v", tooLarge)
	}
	if tooLarge.Remediation == "" {
		t.Fatal("expected remediation text")
	}
}

func TestPlanDateRangeAcceptsExactCeiling(t *testing.T) {
	g := NewGovernor(DefaultLimits(), nil)
	req := &models.DateRangeRequest{Origin: "SFO", Destination: "JFK", StartDate: "2025-07-01", EndDate: "2025-07-14", Limit: 30}

	plan, err := g.PlanDateRange(req)
	if err != nil {
		t.Fatalf("PlanDateRange: %v", err)
	}
	if len(plan.Pairs) != 30 || plan.Total != 105 {
		t.Fatalf("pairs=%d total=%d", len(plan.Pairs), plan.Total)
	}
	if plan.NextOffset == nil || *plan.NextOffset != 30 {
		t.Fatalf("next offset = %v", plan.NextOffset)
	}
	if plan.Pairs[0] != (DatePair{Departure: "2025-07-01", Return: "2025-07-01"}) {
		t.Fatalf("first pair = %+v", plan.Pairs[0])
	}
}

func TestPlanDateRangePagination(t *testing.T) {
	g := NewGovernor(DefaultLimits(), nil)
	req := &models.DateRangeRequest{Origin: "SFO", Destination: "JFK", StartDate: "2025-07-01", EndDate: "2025-07-14", Offset: 90, Limit: 30}

	plan, err := g.PlanDateRange(req)
	if err != nil {
		t.Fatalf("PlanDateRange: %v", err)
	}
	if len(plan.Pairs) != 15 || plan.NextOffset != nil {
		t.Fatalf("pairs=%d next=%v", len(plan.Pairs), plan.NextOffset)
	}
	last := plan.Pairs[len(plan.Pairs)-1]
	if last != (DatePair{Departure: "2025-07-14", Return: "2025-07-14"}) {
		t.Fatalf("last pair = %+v", last)
	}
}

func TestPlanDateRangeStayBounds(t *testing.T) {
	g := NewGovernor(DefaultLimits(), nil)
	req := &models.DateRangeRequest{
		Origin: "SFO", Destination: "JFK",
		StartDate: "2025-07-01", EndDate: "2025-07-10",
		MinStayDays: intPtr(3), MaxStayDays: intPtr(4),
	}

	plan, err := g.PlanDateRange(req)
	if err != nil {
		t.Fatalf("PlanDateRange: %v", err)
	}
	// departures 1..7 allow a 3-day stay, 1..6 a 4-day stay
	if plan.Total != 13 {
		t.Fatalf("total = %d, want 13", plan.Total)
	}
	for _, p := range plan.Pairs {
		dep, _ := models.ParseDate(p.Departure)
		ret, _ := models.ParseDate(p.Return)
		stay := int(ret.Sub(dep).Hours() / 24)
		if stay < 3 || stay > 4 {
			t.Fatalf("pair %+v has stay %d", p, stay)
		}
	}
}

func TestPlanAirportComparison(t *testing.T) {
	g := NewGovernor(DefaultLimits(), nil)

	cases := []struct {
		name      string
		origins   []string
		dests     []string
		wantPairs int
		wantErr   bool
	}{
		{name: "small", origins: []string{"SFO", "OAK", "sjc"}, dests: []string{"JFK", "EWR"}, wantPairs: 6},
		{name: "duplicates collapse", origins: []string{"SFO", "sfo"}, dests: []string{"JFK"}, wantPairs: 1},
		{name: "same airport skipped", origins: []string{"SFO", "JFK"}, dests: []string{"JFK"}, wantPairs: 1},
		{name: "over ceiling", origins: []string{"SFO", "OAK", "SJC", "LAX"}, dests: []string{"JFK", "EWR", "LGA", "BOS"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, err := g.PlanAirportComparison(&models.AirportComparisonRequest{Origins: tc.origins, Destinations: tc.dests, DepartureDate: "2025-07-20"})
			if tc.wantErr {
				var tooLarge *BatchTooLargeError
				if !errors.As(err, &tooLarge) || tooLarge.Requested != 16 {
					t.Fatalf("expected 16-pair rejection, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("PlanAirportComparison: %v", err)
			}
			if len(plan.Pairs) != tc.wantPairs {
				t.Fatalf("pairs = %d, want %d", len(plan.Pairs), tc.wantPairs)
			}
		})
	}
}

func TestOffsetPastEnd(t *testing.T) {
	g := NewGovernor(DefaultLimits(), nil)
	plan, err := g.PlanAirportComparison(&models.AirportComparisonRequest{Origins: []string{"SFO"}, Destinations: []string{"JFK"}, DepartureDate: "2025-07-20", Offset: 5})
	if err != nil {
		t.Fatalf("PlanAirportComparison: %v", err)
	}
	if len(plan.Pairs) != 0 || plan.NextOffset != nil || plan.Total != 1 {
		t.Fatalf("unexpected plan %+v", plan)
	}
}

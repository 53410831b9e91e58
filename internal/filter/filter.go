package filter

import (
	"sort"
	"strings"
	"time"

	"github.com/dharmasatrya/flightquery/internal/models"
	"github.com/dharmasatrya/flightquery/internal/ranking"
)

// Apply filters and sorts a copy of flights. A flight missing the data a
// filter needs (an unknown price, time or duration) does not match it.
func Apply(flights []models.Flight, filters *models.SearchFilters, sortBy, sortOrder string) []models.Flight {
	filtered := applyFilters(flights, filters)
	return applySort(filtered, sortBy, sortOrder)
}

func applyFilters(flights []models.Flight, filters *models.SearchFilters) []models.Flight {
	result := make([]models.Flight, 0, len(flights))

	for _, f := range flights {
		if filters == nil || matchesFilters(f, filters) {
			result = append(result, f)
		}
	}

	return result
}

func matchesFilters(f models.Flight, filters *models.SearchFilters) bool {
	if filters.PriceMin != nil && (!f.HasPrice() || f.Price < *filters.PriceMin) {
		return false
	}
	if filters.PriceMax != nil && (!f.HasPrice() || f.Price > *filters.PriceMax) {
		return false
	}

	if filters.MaxStops != nil && outboundStops(f) > *filters.MaxStops {
		return false
	}

	if len(filters.Airlines) > 0 && !operatedBy(f, filters.Airlines) {
		return false
	}

	dep, depKnown := departureMinutes(f)
	if filters.TimeOfDay != "" {
		window, ok := models.TimeOfDayWindows[strings.ToLower(filters.TimeOfDay)]
		if ok && (!depKnown || dep < window[0]*60 || dep >= window[1]*60) {
			return false
		}
	}
	if filters.DepartureTimeMin != nil {
		minTime, err := parseTimeOfDay(*filters.DepartureTimeMin)
		if err == nil && (!depKnown || dep < minTime) {
			return false
		}
	}
	if filters.DepartureTimeMax != nil {
		maxTime, err := parseTimeOfDay(*filters.DepartureTimeMax)
		if err == nil && (!depKnown || dep > maxTime) {
			return false
		}
	}

	if filters.MaxDuration != nil && (f.TotalDurationMinutes == nil || *f.TotalDurationMinutes > *filters.MaxDuration) {
		return false
	}

	return true
}

// outboundStops counts stops on the outbound leg only, so a reconciled round
// trip is not charged for its turnaround.
func outboundStops(f models.Flight) int {
	if out := f.SegmentsFor(models.LegOutbound); len(out) > 0 {
		return len(out) - 1
	}
	return f.Stops
}

func operatedBy(f models.Flight, airlines []string) bool {
	for _, want := range airlines {
		for _, name := range f.AirlineNames {
			if strings.EqualFold(name, want) {
				return true
			}
		}
		for _, s := range f.Segments {
			if strings.EqualFold(s.CarrierCode, want) {
				return true
			}
		}
	}
	return false
}

func departureMinutes(f models.Flight) (int, bool) {
	if len(f.Segments) == 0 || !f.Departure().HasTime() {
		return 0, false
	}
	m, err := parseTimeOfDay(f.Departure().Time)
	return m, err == nil
}

func parseTimeOfDay(s string) (int, error) {
	t, err := time.Parse(models.TimeLayout, s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func arrival(f models.Flight) models.Moment {
	return f.Segments[len(f.Segments)-1].Arrival
}

func applySort(flights []models.Flight, sortBy, sortOrder string) []models.Flight {
	if len(flights) == 0 {
		return flights
	}

	ascending := strings.ToLower(sortOrder) != "desc"

	// less orders two flights whose key is known; unknown keys always sort last
	sortKnown := func(known func(models.Flight) bool, less func(a, b models.Flight) bool) {
		sort.SliceStable(flights, func(i, j int) bool {
			a, b := flights[i], flights[j]
			ka, kb := known(a), known(b)
			if ka != kb {
				return ka
			}
			if !ka {
				return false
			}
			if ascending {
				return less(a, b)
			}
			return less(b, a)
		})
	}
	always := func(models.Flight) bool { return true }

	switch strings.ToLower(sortBy) {
	case "duration":
		sortKnown(func(f models.Flight) bool { return f.TotalDurationMinutes != nil }, func(a, b models.Flight) bool {
			return *a.TotalDurationMinutes < *b.TotalDurationMinutes
		})

	case "departure":
		sortKnown(always, func(a, b models.Flight) bool {
			return a.Departure().Before(b.Departure())
		})

	case "arrival":
		sortKnown(always, func(a, b models.Flight) bool {
			return arrival(a).Before(arrival(b))
		})

	case "best_value":
		ranking.SortByBestValue(flights, ascending)

	case "stops":
		sortKnown(always, func(a, b models.Flight) bool {
			return a.Stops < b.Stops
		})

	default:
		sortKnown(models.Flight.HasPrice, func(a, b models.Flight) bool {
			return a.Price < b.Price
		})
	}

	return flights
}

// Cheapest returns the lowest-priced flight with a known price.
func Cheapest(flights []models.Flight) (models.Flight, bool) {
	var best models.Flight
	found := false
	for _, f := range flights {
		if !f.HasPrice() {
			continue
		}
		if !found || f.Price < best.Price {
			best, found = f, true
		}
	}
	return best, found
}

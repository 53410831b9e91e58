package ranking

import (
	"math"
	"sort"

	"github.com/dharmasatrya/flightquery/internal/models"
)

const (
	PriceWeight    = 0.5
	DurationWeight = 0.3
	StopsWeight    = 0.2
)

// unknownScore is charged for a missing price or duration.
const unknownScore = 100.0

// Scores returns the best-value score of every flight, keyed by flight ID.
func Scores(flights []models.Flight) map[string]float64 {
	maxPrice := findMaxPrice(flights)
	maxDuration := findMaxDuration(flights)

	scores := make(map[string]float64, len(flights))
	for _, f := range flights {
		scores[f.ID] = CalculateBestValue(f, maxPrice, maxDuration)
	}
	return scores
}

// Lower score = better value
func CalculateBestValue(flight models.Flight, maxPrice, maxDuration float64) float64 {
	priceScore := unknownScore
	if flight.HasPrice() && maxPrice > 0 {
		priceScore = (float64(flight.Price) / maxPrice) * 100
	}

	durationScore := unknownScore
	if flight.TotalDurationMinutes != nil && maxDuration > 0 {
		durationScore = (float64(*flight.TotalDurationMinutes) / maxDuration) * 100
	}

	stopsScore := float64(flight.Stops) * 15
	score := (priceScore * PriceWeight) + (durationScore * DurationWeight) + (stopsScore * StopsWeight)

	return math.Round(score*100) / 100
}

// SortByBestValue orders flights in place by score.
func SortByBestValue(flights []models.Flight, ascending bool) {
	scores := Scores(flights)
	sort.SliceStable(flights, func(i, j int) bool {
		a, b := scores[flights[i].ID], scores[flights[j].ID]
		if ascending {
			return a < b
		}
		return a > b
	})
}

func findMaxPrice(flights []models.Flight) float64 {
	maxPrice := 0.0
	for _, f := range flights {
		if f.HasPrice() && float64(f.Price) > maxPrice {
			maxPrice = float64(f.Price)
		}
	}
	return maxPrice
}

func findMaxDuration(flights []models.Flight) float64 {
	maxDuration := 0.0
	for _, f := range flights {
		if f.TotalDurationMinutes == nil {
			continue
		}
		if dur := float64(*f.TotalDurationMinutes); dur > maxDuration {
			maxDuration = dur
		}
	}
	return maxDuration
}

package models

import (
	"fmt"
	"strings"
	"time"
)

type TripKind string

const (
	TripOneWay    TripKind = "one_way"
	TripRoundTrip TripKind = "round_trip"
	TripMultiCity TripKind = "multi_city"
)

type Passengers struct {
	Adults        int `json:"adults"`
	Children      int `json:"children,omitempty"`
	InfantsInSeat int `json:"infants_in_seat,omitempty"`
	InfantsOnLap  int `json:"infants_on_lap,omitempty"`
}

func (p Passengers) Total() int {
	return p.Adults + p.Children + p.InfantsInSeat + p.InfantsOnLap
}

// AtomicLegQuery is the smallest unit of work dispatched to a source.
type AtomicLegQuery struct {
	Origin      string     `json:"origin"`
	Destination string     `json:"destination"`
	Date        string     `json:"date"`
	Passengers  Passengers `json:"passengers"`
	Cabin       string     `json:"cabin"`
	MaxStops    *int       `json:"max_stops,omitempty"`
	Airlines    []string   `json:"airlines,omitempty"`
	Currency    string     `json:"currency"`
}

// Reverse returns the complementary leg flown on date.
func (q AtomicLegQuery) Reverse(date string) AtomicLegQuery {
	r := q
	r.Origin, r.Destination = q.Destination, q.Origin
	r.Date = date
	return r
}

// Trip couples a trip kind with its ordered atomic legs: one for one-way,
// outbound then return for round trips, two or more for multi-city.
type Trip struct {
	Kind TripKind
	Legs []AtomicLegQuery

	// ReturnLeg, when set on a one-way trip, marks it as the outbound half of
	// a round trip. Continuation sources then quote round-trip fares and
	// attach tokens for ReturnOptions; other sources ignore it.
	ReturnLeg *AtomicLegQuery
}

func OneWayTrip(q AtomicLegQuery) Trip {
	return Trip{Kind: TripOneWay, Legs: []AtomicLegQuery{q}}
}

func RoundTrip(outbound, ret AtomicLegQuery) Trip {
	return Trip{Kind: TripRoundTrip, Legs: []AtomicLegQuery{outbound, ret}}
}

// OutboundOf is the outbound half of a round trip, searched as a one-way leg.
func OutboundOf(outbound, ret AtomicLegQuery) Trip {
	return Trip{Kind: TripOneWay, Legs: []AtomicLegQuery{outbound}, ReturnLeg: &ret}
}

func MultiCityTrip(legs []AtomicLegQuery) Trip {
	return Trip{Kind: TripMultiCity, Legs: legs}
}

func (t Trip) First() AtomicLegQuery {
	return t.Legs[0]
}

func (t Trip) String() string {
	parts := make([]string, len(t.Legs))
	for i, l := range t.Legs {
		parts[i] = fmt.Sprintf("%s-%s@%s", l.Origin, l.Destination, l.Date)
	}
	return string(t.Kind) + "[" + strings.Join(parts, ",") + "]"
}

type SearchFilters struct {
	PriceMin         *int64   `json:"price_min,omitempty"`
	PriceMax         *int64   `json:"price_max,omitempty"`
	MaxStops         *int     `json:"max_stops,omitempty"`
	Airlines         []string `json:"airlines,omitempty"`
	TimeOfDay        string   `json:"time_of_day,omitempty"`
	DepartureTimeMin *string  `json:"departure_time_min,omitempty"`
	DepartureTimeMax *string  `json:"departure_time_max,omitempty"`
	MaxDuration      *int     `json:"max_duration,omitempty"`
}

// TravelParams are the per-leg parameters shared by every request kind.
type TravelParams struct {
	Passengers Passengers `json:"passengers"`
	CabinClass string     `json:"cabin_class,omitempty"`
	MaxStops   *int       `json:"max_stops,omitempty"`
	Airlines   []string   `json:"airlines,omitempty"`
	Currency   string     `json:"currency,omitempty"`
}

type OutputOptions struct {
	ReturnCheapestOnly bool           `json:"return_cheapest_only,omitempty"`
	MaxResults         int            `json:"max_results,omitempty"`
	Filters            *SearchFilters `json:"filters,omitempty"`
	SortBy             string         `json:"sort_by,omitempty"`
	SortOrder          string         `json:"sort_order,omitempty"`
}

type OneWayRequest struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	TravelParams
	OutputOptions
}

type RoundTripRequest struct {
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureDate string `json:"departure_date"`
	ReturnDate    string `json:"return_date"`
	TravelParams
	OutputOptions
}

type LegRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Date        string `json:"date"`
}

type MultiCityRequest struct {
	Legs []LegRequest `json:"legs"`
	TravelParams
	OutputOptions
}

type DateRangeRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	MinStayDays *int   `json:"min_stay_days,omitempty"`
	MaxStayDays *int   `json:"max_stay_days,omitempty"`
	Offset      int    `json:"offset,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	TravelParams
	OutputOptions
}

type AirportComparisonRequest struct {
	Origins       []string `json:"origins"`
	Destinations  []string `json:"destinations"`
	DepartureDate string   `json:"departure_date"`
	ReturnDate    string   `json:"return_date,omitempty"`
	Offset        int      `json:"offset,omitempty"`
	Limit         int      `json:"limit,omitempty"`
	TravelParams
	OutputOptions
}

func (r *OneWayRequest) Validate() error {
	if err := validateRoute(r.Origin, r.Destination); err != nil {
		return err
	}
	if err := validateDate("departure_date", r.DepartureDate); err != nil {
		return err
	}
	r.Origin, r.Destination = normalizeCode(r.Origin), normalizeCode(r.Destination)
	if err := r.TravelParams.normalize(); err != nil {
		return err
	}
	return r.OutputOptions.normalize()
}

func (r *OneWayRequest) Leg() AtomicLegQuery {
	return r.TravelParams.leg(r.Origin, r.Destination, r.DepartureDate)
}

func (r *RoundTripRequest) Validate() error {
	if err := validateRoute(r.Origin, r.Destination); err != nil {
		return err
	}
	if err := validateDate("departure_date", r.DepartureDate); err != nil {
		return err
	}
	if r.ReturnDate == "" {
		return ErrMissingReturnDate
	}
	if err := validateDate("return_date", r.ReturnDate); err != nil {
		return err
	}
	if r.ReturnDate < r.DepartureDate {
		return ErrReturnBeforeDeparture
	}
	r.Origin, r.Destination = normalizeCode(r.Origin), normalizeCode(r.Destination)
	if err := r.TravelParams.normalize(); err != nil {
		return err
	}
	return r.OutputOptions.normalize()
}

func (r *RoundTripRequest) Legs() (AtomicLegQuery, AtomicLegQuery) {
	out := r.TravelParams.leg(r.Origin, r.Destination, r.DepartureDate)
	return out, out.Reverse(r.ReturnDate)
}

func (r *MultiCityRequest) Validate() error {
	if len(r.Legs) < 2 {
		return ErrTooFewLegs
	}
	prev := ""
	for i := range r.Legs {
		l := &r.Legs[i]
		if err := validateRoute(l.Origin, l.Destination); err != nil {
			return ValidationError(fmt.Sprintf("legs[%d]: %s", i, err))
		}
		if err := validateDate("date", l.Date); err != nil {
			return ValidationError(fmt.Sprintf("legs[%d]: %s", i, err))
		}
		if l.Date < prev {
			return ValidationError(fmt.Sprintf("legs[%d]: date %s is before the previous leg", i, l.Date))
		}
		prev = l.Date
		l.Origin, l.Destination = normalizeCode(l.Origin), normalizeCode(l.Destination)
	}
	if err := r.TravelParams.normalize(); err != nil {
		return err
	}
	return r.OutputOptions.normalize()
}

func (r *MultiCityRequest) Trip() Trip {
	legs := make([]AtomicLegQuery, len(r.Legs))
	for i, l := range r.Legs {
		legs[i] = r.TravelParams.leg(l.Origin, l.Destination, l.Date)
	}
	return MultiCityTrip(legs)
}

func (r *DateRangeRequest) Validate() error {
	if err := validateRoute(r.Origin, r.Destination); err != nil {
		return err
	}
	if err := validateDate("start_date", r.StartDate); err != nil {
		return err
	}
	if err := validateDate("end_date", r.EndDate); err != nil {
		return err
	}
	if r.StartDate > r.EndDate {
		return ErrStartAfterEnd
	}
	if r.MinStayDays != nil && *r.MinStayDays < 0 || r.MaxStayDays != nil && *r.MaxStayDays < 0 {
		return ErrNegativeStay
	}
	if r.MinStayDays != nil && r.MaxStayDays != nil && *r.MinStayDays > *r.MaxStayDays {
		return ErrStayBounds
	}
	if r.Offset < 0 || r.Limit < 0 {
		return ErrPagination
	}
	r.Origin, r.Destination = normalizeCode(r.Origin), normalizeCode(r.Destination)
	if err := r.TravelParams.normalize(); err != nil {
		return err
	}
	return r.OutputOptions.normalize()
}

func (r *DateRangeRequest) Leg(origin, destination, date string) AtomicLegQuery {
	return r.TravelParams.leg(origin, destination, date)
}

func (r *AirportComparisonRequest) Validate() error {
	if len(r.Origins) == 0 {
		return ErrEmptyOrigins
	}
	if len(r.Destinations) == 0 {
		return ErrEmptyDestinations
	}
	for i, c := range r.Origins {
		if !validCode(c) {
			return ValidationError(fmt.Sprintf("origins[%d]: %q is not a 3-letter IATA code", i, c))
		}
	}
	for i, c := range r.Destinations {
		if !validCode(c) {
			return ValidationError(fmt.Sprintf("destinations[%d]: %q is not a 3-letter IATA code", i, c))
		}
	}
	if err := validateDate("departure_date", r.DepartureDate); err != nil {
		return err
	}
	if r.ReturnDate != "" {
		if err := validateDate("return_date", r.ReturnDate); err != nil {
			return err
		}
		if r.ReturnDate < r.DepartureDate {
			return ErrReturnBeforeDeparture
		}
	}
	if r.Offset < 0 || r.Limit < 0 {
		return ErrPagination
	}
	if err := r.TravelParams.normalize(); err != nil {
		return err
	}
	return r.OutputOptions.normalize()
}

func (r *AirportComparisonRequest) Leg(origin, destination, date string) AtomicLegQuery {
	return r.TravelParams.leg(origin, destination, date)
}

func (p *TravelParams) normalize() error {
	if p.Passengers.Adults == 0 && p.Passengers.Children == 0 {
		p.Passengers.Adults = 1
	}
	pax := p.Passengers
	if pax.Adults < 0 || pax.Children < 0 || pax.InfantsInSeat < 0 || pax.InfantsOnLap < 0 {
		return ErrNegativePassengers
	}
	if pax.Total() > 9 {
		return ErrTooManyPassengers
	}
	if pax.InfantsOnLap > pax.Adults {
		return ErrLapInfants
	}
	if p.MaxStops != nil && (*p.MaxStops < 0 || *p.MaxStops > 2) {
		return ErrUnsupportedStops
	}
	if p.CabinClass == "" {
		p.CabinClass = "economy"
	}
	p.CabinClass = strings.ToLower(p.CabinClass)
	switch p.CabinClass {
	case "economy", "premium_economy", "business", "first":
	default:
		return ValidationError(fmt.Sprintf("cabin_class %q is not one of economy, premium_economy, business, first", p.CabinClass))
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}
	p.Currency = strings.ToUpper(p.Currency)
	for i, a := range p.Airlines {
		p.Airlines[i] = strings.ToUpper(strings.TrimSpace(a))
	}
	return nil
}

func (p TravelParams) leg(origin, destination, date string) AtomicLegQuery {
	return AtomicLegQuery{
		Origin:      normalizeCode(origin),
		Destination: normalizeCode(destination),
		Date:        date,
		Passengers:  p.Passengers,
		Cabin:       p.CabinClass,
		MaxStops:    p.MaxStops,
		Airlines:    p.Airlines,
		Currency:    p.Currency,
	}
}

func (o *OutputOptions) normalize() error {
	if o.MaxResults < 0 {
		return ValidationError("max_results must not be negative")
	}
	if o.SortBy == "" {
		o.SortBy = "price"
	}
	if o.SortOrder == "" {
		o.SortOrder = "asc"
	}
	o.SortBy, o.SortOrder = strings.ToLower(o.SortBy), strings.ToLower(o.SortOrder)
	if !SortKeys[o.SortBy] {
		return ValidationError(fmt.Sprintf("sort_by %q is not supported", o.SortBy))
	}
	if o.SortOrder != "asc" && o.SortOrder != "desc" {
		return ValidationError("sort_order must be asc or desc")
	}
	if o.Filters == nil {
		return nil
	}
	f := o.Filters
	f.TimeOfDay = strings.ToLower(f.TimeOfDay)
	if f.TimeOfDay != "" {
		if _, ok := TimeOfDayWindows[f.TimeOfDay]; !ok {
			return ValidationError(fmt.Sprintf("time_of_day %q must be morning, afternoon, evening or red_eye", f.TimeOfDay))
		}
	}
	for field, v := range map[string]*string{"departure_time_min": f.DepartureTimeMin, "departure_time_max": f.DepartureTimeMax} {
		if v == nil {
			continue
		}
		if _, err := time.Parse(TimeLayout, *v); err != nil {
			return ValidationError(fmt.Sprintf("%s %q must be HH:MM", field, *v))
		}
	}
	if f.PriceMin != nil && f.PriceMax != nil && *f.PriceMin > *f.PriceMax {
		return ValidationError("price_min must not exceed price_max")
	}
	return nil
}

// SortKeys are the accepted sort_by values.
var SortKeys = map[string]bool{
	"price":      true,
	"duration":   true,
	"departure":  true,
	"arrival":    true,
	"stops":      true,
	"best_value": true,
}

// TimeOfDayWindows maps time_of_day to its departure window in local hours,
// start inclusive and end exclusive.
var TimeOfDayWindows = map[string][2]int{
	"morning":   {6, 12},
	"afternoon": {12, 18},
	"evening":   {18, 24},
	"red_eye":   {0, 6},
}

func validateRoute(origin, destination string) error {
	if origin == "" {
		return ErrMissingOrigin
	}
	if destination == "" {
		return ErrMissingDestination
	}
	if !validCode(origin) {
		return ValidationError(fmt.Sprintf("origin %q is not a 3-letter IATA code", origin))
	}
	if !validCode(destination) {
		return ValidationError(fmt.Sprintf("destination %q is not a 3-letter IATA code", destination))
	}
	if strings.EqualFold(origin, destination) {
		return ErrSameOriginDestination
	}
	return nil
}

func validateDate(field, value string) error {
	if value == "" {
		return ValidationError(field + " is required")
	}
	if _, err := ParseDate(value); err != nil {
		return ValidationError(fmt.Sprintf("%s %q is not a valid YYYY-MM-DD date", field, value))
	}
	return nil
}

func validCode(code string) bool {
	code = strings.TrimSpace(code)
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type ValidationError string

func (e ValidationError) Error() string {
	return string(e)
}

const (
	ErrMissingOrigin         ValidationError = "origin is required"
	ErrMissingDestination    ValidationError = "destination is required"
	ErrMissingReturnDate     ValidationError = "return_date is required for a round trip"
	ErrSameOriginDestination ValidationError = "origin and destination must differ"
	ErrReturnBeforeDeparture ValidationError = "return_date must not be before departure_date"
	ErrStartAfterEnd         ValidationError = "start_date must not be after end_date"
	ErrNegativeStay          ValidationError = "stay lengths must not be negative"
	ErrStayBounds            ValidationError = "min_stay_days must not exceed max_stay_days"
	ErrPagination            ValidationError = "offset and limit must not be negative"
	ErrEmptyOrigins          ValidationError = "origins must list at least one airport"
	ErrEmptyDestinations     ValidationError = "destinations must list at least one airport"
	ErrTooFewLegs            ValidationError = "a multi-city trip needs at least two legs"
	ErrNegativePassengers    ValidationError = "passenger counts must not be negative"
	ErrTooManyPassengers     ValidationError = "at most 9 passengers per search"
	ErrLapInfants            ValidationError = "each infant on lap needs an accompanying adult"
	ErrUnsupportedStops      ValidationError = "max_stops must be 0, 1 or 2"
)

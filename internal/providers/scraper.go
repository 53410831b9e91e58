package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dharmasatrya/flightquery/internal/models"
	"github.com/dharmasatrya/flightquery/pkg/currency"
)

const ScraperName = "scraper"

// ScraperProvider reads Google Flights results through a best-effort
// scraping endpoint. The endpoint has answered with three shapes over time
// (flat v2 records, structured v3 records, raw result HTML); each response is
// resolved to exactly one of them before mapping.
type ScraperProvider struct {
	BaseURL string
	Client  *http.Client
	Timeout time.Duration
}

type scraperFormat int

const (
	formatV2 scraperFormat = iota
	formatV3
	formatHTML
)

func (f scraperFormat) String() string {
	switch f {
	case formatV3:
		return "v3"
	case formatHTML:
		return "html"
	default:
		return "v2"
	}
}

type scraperEnvelope struct {
	Flights      []json.RawMessage `json:"flights"`
	CurrentPrice string            `json:"current_price"`
	Error        string            `json:"error"`
}

// v2Record is the flat record shape.
type v2Record struct {
	IsBest           bool   `json:"is_best"`
	Name             string `json:"name"`
	Departure        string `json:"departure"`
	Arrival          string `json:"arrival"`
	ArrivalTimeAhead string `json:"arrival_time_ahead"`
	Duration         string `json:"duration"`
	Stops            int    `json:"stops"`
	Price            string `json:"price"`
}

type v3Record struct {
	Price    *int        `json:"price"`
	Airlines []string    `json:"airlines"`
	Flights  []v3Segment `json:"flights"`
}

type v3Segment struct {
	FromAirport v3Airport `json:"from_airport"`
	ToAirport   v3Airport `json:"to_airport"`
	Departure   v3Moment  `json:"departure"`
	Arrival     v3Moment  `json:"arrival"`
	Duration    int       `json:"duration"`
	PlaneType   string    `json:"plane_type"`
}

type v3Airport struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

type v3Moment struct {
	Date []int `json:"date"`
	Time []int `json:"time"`
}

func (p *ScraperProvider) Name() string {
	return ScraperName
}

func (p *ScraperProvider) Search(ctx context.Context, trip models.Trip) ([]models.Flight, error) {
	switch trip.Kind {
	case models.TripMultiCity:
		return nil, unsupported(p.Name(), trip, "scraper cannot price multi-city itineraries")
	case models.TripRoundTrip:
		if ms := trip.First().MaxStops; ms != nil && *ms == 0 {
			return nil, unsupported(p.Name(), trip, "nonstop round trips come back without the return leg")
		}
	}

	body, contentType, err := p.fetch(ctx, trip)
	if err != nil {
		return nil, wrap(p.Name(), err)
	}

	flights, err := p.parse(body, contentType, trip)
	if err != nil {
		return nil, wrap(p.Name(), err)
	}
	return flights, nil
}

func (p *ScraperProvider) fetch(ctx context.Context, trip models.Trip) ([]byte, string, error) {
	reqCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	endpoint := strings.TrimRight(p.BaseURL, "/") + "/flights?" + scraperParams(trip).Encode()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: build request: %v", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json, text/html;q=0.9")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode >= 400 {
		if noFlights(body) {
			return nil, "", fmt.Errorf("%w: scraper reported no flights", ErrNoResults)
		}
		if looksLikeCaptcha(body) {
			return nil, "", fmt.Errorf("%w: captcha challenge (%s)", ErrRateLimited, resp.Status)
		}
		return nil, "", statusError(resp, body)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func scraperParams(trip models.Trip) url.Values {
	q := trip.First()
	v := url.Values{}
	v.Set("from", q.Origin)
	v.Set("to", q.Destination)
	v.Set("date", q.Date)
	if trip.Kind == models.TripRoundTrip {
		v.Set("trip", "round-trip")
		v.Set("return_date", trip.Legs[1].Date)
	} else {
		v.Set("trip", "one-way")
	}
	v.Set("seat", orDefault(q.Cabin, "economy"))
	v.Set("adults", strconv.Itoa(max(q.Passengers.Adults, 1)))
	v.Set("children", strconv.Itoa(q.Passengers.Children))
	v.Set("infants_in_seat", strconv.Itoa(q.Passengers.InfantsInSeat))
	v.Set("infants_on_lap", strconv.Itoa(q.Passengers.InfantsOnLap))
	if q.MaxStops != nil {
		v.Set("max_stops", strconv.Itoa(*q.MaxStops))
	}
	if len(q.Airlines) > 0 {
		v.Set("airlines", strings.Join(q.Airlines, ","))
	}
	v.Set("currency", orDefault(q.Currency, "USD"))
	return v
}

// detectFormat resolves the response union once.
func detectFormat(body []byte, contentType string) (scraperFormat, *scraperEnvelope, error) {
	trimmed := bytes.TrimSpace(body)
	if strings.Contains(contentType, "html") || bytes.HasPrefix(trimmed, []byte("<")) {
		return formatHTML, nil, nil
	}

	var env scraperEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return 0, nil, fmt.Errorf("%w: decode scraper response: %v", ErrUpstream, err)
	}
	if len(env.Flights) == 0 {
		return formatV2, &env, nil
	}

	var head struct {
		Flights json.RawMessage `json:"flights"`
	}
	if err := json.Unmarshal(env.Flights[0], &head); err != nil {
		return 0, nil, fmt.Errorf("%w: decode scraper record: %v", ErrUpstream, err)
	}
	if len(head.Flights) > 0 && head.Flights[0] == '[' {
		return formatV3, &env, nil
	}
	return formatV2, &env, nil
}

func (p *ScraperProvider) parse(body []byte, contentType string, trip models.Trip) ([]models.Flight, error) {
	format, env, err := detectFormat(body, contentType)
	if err != nil {
		return nil, err
	}

	if format == formatHTML {
		if looksLikeCaptcha(body) {
			return nil, fmt.Errorf("%w: captcha challenge", ErrRateLimited)
		}
		if noFlights(body) {
			return nil, fmt.Errorf("%w: scraper reported no flights", ErrNoResults)
		}
		records, err := parseResultHTML(body)
		if err != nil {
			return nil, err
		}
		return p.fromV2(records, trip)
	}

	if env.Error != "" {
		if noFlights([]byte(env.Error)) {
			return nil, fmt.Errorf("%w: %s", ErrNoResults, env.Error)
		}
		return nil, fmt.Errorf("%w: %s", ErrUpstream, env.Error)
	}
	if len(env.Flights) == 0 {
		return nil, ErrNoResults
	}

	if format == formatV3 {
		records := make([]v3Record, 0, len(env.Flights))
		raws := make([]json.RawMessage, 0, len(env.Flights))
		for _, raw := range env.Flights {
			var r v3Record
			if err := json.Unmarshal(raw, &r); err != nil {
				log.Printf("[scraper] skipping undecodable v3 record: %v", err)
				continue
			}
			records = append(records, r)
			raws = append(raws, raw)
		}
		return p.fromV3(records, raws, trip)
	}

	records := make([]v2Record, 0, len(env.Flights))
	for _, raw := range env.Flights {
		var r v2Record
		if err := json.Unmarshal(raw, &r); err != nil {
			log.Printf("[scraper] skipping undecodable v2 record: %v", err)
			continue
		}
		records = append(records, r)
	}
	return p.fromV2(records, trip)
}

// fromV2 maps flat records. They carry no per-segment data, so a record with
// N stops becomes N+1 segments whose intermediate airports are unknown.
func (p *ScraperProvider) fromV2(records []v2Record, trip models.Trip) ([]models.Flight, error) {
	if trip.Kind == models.TripRoundTrip {
		return nil, unsupported(p.Name(), trip, "flat results omit the return leg")
	}
	q := trip.First()

	flights := make([]models.Flight, 0, len(records))
	for _, r := range records {
		f, err := p.normalizeV2(r, q)
		if err != nil {
			log.Printf("[scraper] skipping v2 record %q: %v", r.Name, err)
			continue
		}
		flights = append(flights, f)
	}
	if len(flights) == 0 {
		if len(records) == 0 {
			return nil, ErrNoResults
		}
		return nil, fmt.Errorf("%w: no usable records in %d results", ErrUpstream, len(records))
	}
	return flights, nil
}

func (p *ScraperProvider) normalizeV2(r v2Record, q models.AtomicLegQuery) (models.Flight, error) {
	if r.Stops < 0 {
		return models.Flight{}, fmt.Errorf("invalid stop count %d", r.Stops)
	}

	dep := parseScrapedMoment(r.Departure, q.Date)
	arrDefault := q.Date
	if dep.Date != "" {
		arrDefault = dep.Date
	}
	if ahead := parseDaysAhead(r.ArrivalTimeAhead); ahead > 0 {
		arrDefault = models.AddDays(arrDefault, ahead)
	}
	arr := parseScrapedMoment(r.Arrival, arrDefault)

	names := splitAirlines(r.Name)
	segments := make([]models.Segment, r.Stops+1)
	for i := range segments {
		segments[i] = models.Segment{}
		if len(names) == len(segments) {
			segments[i].Airline = names[i]
		} else if len(names) == 1 {
			segments[i].Airline = names[0]
		}
	}
	segments[0].From = models.Airport{Code: q.Origin}
	segments[0].Departure = dep
	segments[len(segments)-1].To = models.Airport{Code: q.Destination}
	segments[len(segments)-1].Arrival = arr

	total, hasTotal := parseDurationText(r.Duration)
	if hasTotal && len(segments) == 1 {
		segments[0].DurationMinutes = models.Minutes(total)
	}

	price := models.PriceUnknown
	if amount, err := currency.ParseMinor(r.Price); err == nil && amount > 0 {
		price = amount
	}

	f, err := models.NewFlight(p.Name(), price, q.Currency, segments)
	if err != nil {
		return models.Flight{}, err
	}
	if len(names) > 0 && len(names) != len(segments) && len(names) != 1 {
		f.AirlineNames = names
	}
	if hasTotal {
		f.TotalDurationMinutes = models.Minutes(total)
	}
	f.IsRecommended = r.IsBest
	return f, nil
}

func (p *ScraperProvider) fromV3(records []v3Record, raws []json.RawMessage, trip models.Trip) ([]models.Flight, error) {
	q := trip.First()
	flights := make([]models.Flight, 0, len(records))
	truncated := 0
	for i, r := range records {
		segments := make([]models.Segment, len(r.Flights))
		for j, s := range r.Flights {
			segments[j] = v3ToSegment(s)
		}

		if trip.Kind == models.TripRoundTrip {
			tagged, ok := splitRoundTrip(segments, q.Destination)
			if !ok {
				truncated++
				continue
			}
			segments = tagged
		}

		price := models.PriceUnknown
		if r.Price != nil && *r.Price > 0 {
			price = currency.FromMajor(*r.Price)
		}
		f, err := models.NewFlight(p.Name(), price, q.Currency, segments)
		if err != nil {
			log.Printf("[scraper] skipping v3 record: %v", err)
			continue
		}
		if len(f.AirlineNames) == 0 {
			f.AirlineNames = r.Airlines
		}
		f.TotalDurationMinutes = models.TotalDuration(segments)
		f.IsRecommended = i == 0
		f.RawPayload = raws[i]
		flights = append(flights, f)
	}

	if len(flights) == 0 {
		if truncated > 0 {
			return nil, unsupported(p.Name(), trip, "results are missing the return leg")
		}
		if len(records) == 0 {
			return nil, ErrNoResults
		}
		return nil, fmt.Errorf("%w: no usable records in %d results", ErrUpstream, len(records))
	}
	return flights, nil
}

func v3ToSegment(s v3Segment) models.Segment {
	seg := models.Segment{
		From:      models.Airport{Code: s.FromAirport.Code, Name: s.FromAirport.Name},
		To:        models.Airport{Code: s.ToAirport.Code, Name: s.ToAirport.Name},
		Departure: v3ToMoment(s.Departure),
		Arrival:   v3ToMoment(s.Arrival),
		Aircraft:  s.PlaneType,
	}
	if s.Duration > 0 {
		seg.DurationMinutes = models.Minutes(s.Duration)
	}
	return seg
}

func v3ToMoment(m v3Moment) models.Moment {
	var out models.Moment
	if len(m.Date) == 3 {
		d := time.Date(m.Date[0], time.Month(m.Date[1]), m.Date[2], 0, 0, 0, 0, time.UTC)
		out.Date = models.FormatDate(d)
	}
	switch len(m.Time) {
	case 0:
	case 1:
		out.Time = fmt.Sprintf("%02d:00", m.Time[0])
	default:
		out.Time = fmt.Sprintf("%02d:%02d", m.Time[0], m.Time[1])
	}
	return out
}

// splitRoundTrip tags segments up to the arrival at destination as outbound
// and the rest as return. It reports false when no return segment exists.
func splitRoundTrip(segs []models.Segment, destination string) ([]models.Segment, bool) {
	for i, s := range segs {
		if s.To.Code != destination {
			continue
		}
		if i == len(segs)-1 {
			return nil, false
		}
		out := models.WithLeg(segs[:i+1], models.LegOutbound)
		return append(out, models.WithLeg(segs[i+1:], models.LegReturn)...), true
	}
	return nil, false
}

// parseScrapedMoment parses "8:30 AM on Mon, Dec 15" or "8:30 AM". The year
// comes from fallbackDate; a month far before it rolls into the next year.
func parseScrapedMoment(s, fallbackDate string) models.Moment {
	s = strings.TrimSpace(s)
	clock, day, hasDay := strings.Cut(s, " on ")

	m := models.Moment{Date: fallbackDate}
	if t, err := time.Parse("3:04 PM", strings.ToUpper(strings.TrimSpace(clock))); err == nil {
		m.Time = t.Format(models.TimeLayout)
	}

	if hasDay {
		ref, err := models.ParseDate(fallbackDate)
		if err != nil {
			return m
		}
		d, err := time.Parse("Mon, Jan 2", strings.TrimSpace(day))
		if err != nil {
			return m
		}
		date := time.Date(ref.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		if ref.Sub(date) > 180*24*time.Hour {
			date = date.AddDate(1, 0, 0)
		}
		m.Date = models.FormatDate(date)
	}
	return m
}

// parseDaysAhead parses "+1" style day offsets.
func parseDaysAhead(s string) int {
	s = strings.TrimPrefix(strings.TrimSpace(s), "+")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// parseDurationText parses "5 hr 30 min", "45 min", "1 hr" and "2h 30m".
func parseDurationText(s string) (int, bool) {
	fields := strings.Fields(strings.ToLower(s))
	total := 0
	found := false
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		numPart := strings.TrimRightFunc(f, func(r rune) bool { return r < '0' || r > '9' })
		unit := strings.TrimPrefix(f, numPart)
		n, err := strconv.Atoi(numPart)
		if err != nil {
			continue
		}
		if unit == "" && i+1 < len(fields) {
			i++
			unit = fields[i]
		}
		switch {
		case strings.HasPrefix(unit, "h"):
			total += n * 60
			found = true
		case strings.HasPrefix(unit, "m"):
			total += n
			found = true
		}
	}
	return total, found && total > 0
}

func splitAirlines(name string) []string {
	var out []string
	for _, part := range strings.Split(name, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func noFlights(body []byte) bool {
	return bytes.Contains(bytes.ToLower(body), []byte("no flights found"))
}

func looksLikeCaptcha(body []byte) bool {
	lower := bytes.ToLower(body)
	return bytes.Contains(lower, []byte("captcha")) || bytes.Contains(lower, []byte("unusual traffic"))
}

package providers

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Result list markup of the Google Flights page. The first container holds
// the "best" flights; the last item of every other container is a
// "show more" row.
const (
	selResultLists = `div[jsname="IWWDBc"], div[jsname="YdtKid"]`
	selResultItem  = "ul.Rk10dc li"
	selName        = "div.sSHqwe.tPgKwe.ogfYpf span"
	selTimes       = "span.mv1WYe div"
	selTimeAhead   = "span.bOzv6"
	selDuration    = "li div.Ak5kof div"
	selStops       = ".BbR8Ec .ogfYpf"
	selPrice       = ".YMlIz.FpEdX"
)

// parseResultHTML extracts flat records from a result page.
func parseResultHTML(body []byte) ([]v2Record, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse scraper html: %v", ErrUpstream, err)
	}

	var records []v2Record
	doc.Find(selResultLists).Each(func(i int, list *goquery.Selection) {
		items := list.Find(selResultItem)
		n := items.Length()
		if i > 0 && n > 0 {
			n--
		}
		items.Slice(0, n).Each(func(_ int, item *goquery.Selection) {
			r, ok := htmlRecord(item)
			if !ok {
				return
			}
			r.IsBest = i == 0
			records = append(records, r)
		})
	})

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no result rows in scraper html", ErrUpstream)
	}
	return records, nil
}

func htmlRecord(item *goquery.Selection) (v2Record, bool) {
	times := item.Find(selTimes)
	if times.Length() < 2 {
		return v2Record{}, false
	}

	stops, ok := parseStopsText(strings.TrimSpace(item.Find(selStops).First().Text()))
	if !ok {
		return v2Record{}, false
	}

	return v2Record{
		Name:             strings.TrimSpace(item.Find(selName).First().Text()),
		Departure:        cleanText(times.Eq(0).Text()),
		Arrival:          cleanText(times.Eq(1).Text()),
		ArrivalTimeAhead: strings.TrimSpace(item.Find(selTimeAhead).First().Text()),
		Duration:         strings.TrimSpace(item.Find(selDuration).First().Text()),
		Stops:            stops,
		Price:            strings.TrimSpace(item.Find(selPrice).First().Text()),
	}, true
}

// parseStopsText parses "Nonstop" or "2 stops".
func parseStopsText(s string) (int, bool) {
	if strings.EqualFold(s, "nonstop") {
		return 0, true
	}
	head, _, _ := strings.Cut(s, " ")
	n, err := strconv.Atoi(head)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// cleanText collapses the narrow no-break spaces Google puts before AM/PM.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\u202f", " ")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

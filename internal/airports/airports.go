// Package airports holds embedded airport reference data used to fill in
// display names. It is never consulted for search decisions.
package airports

import (
	"bytes"
	"encoding/csv"
	_ "embed"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/jszwec/csvutil"

	"github.com/dharmasatrya/flightquery/internal/models"
)

//go:embed airports.csv
var airportsCSV []byte

type Info struct {
	Code     string `csv:"code"`
	Name     string `csv:"name"`
	City     string `csv:"city"`
	Country  string `csv:"country"`
	Timezone string `csv:"timezone"`
}

var (
	loadOnce sync.Once
	byCode   map[string]Info
)

// Parse decodes reference rows from CSV with a code,name,city,country,timezone header.
func Parse(r io.Reader) (map[string]Info, error) {
	dec, err := csvutil.NewDecoder(csv.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("read airport header: %w", err)
	}
	var rows []Info
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode airports: %w", err)
	}

	out := make(map[string]Info, len(rows))
	for _, row := range rows {
		row.Code = strings.ToUpper(strings.TrimSpace(row.Code))
		if row.Code == "" {
			continue
		}
		out[row.Code] = row
	}
	return out, nil
}

func table() map[string]Info {
	loadOnce.Do(func() {
		m, err := Parse(bytes.NewReader(airportsCSV))
		if err != nil {
			log.Printf("[airports] embedded data unusable: %v", err)
			m = map[string]Info{}
		}
		byCode = m
	})
	return byCode
}

func Lookup(code string) (Info, bool) {
	info, ok := table()[strings.ToUpper(code)]
	return info, ok
}

// Enrich fills empty airport names on every segment. Flights are modified
// in place.
func Enrich(flights []models.Flight) {
	for i := range flights {
		segs := flights[i].Segments
		for j := range segs {
			fill(&segs[j].From)
			fill(&segs[j].To)
		}
	}
}

func fill(a *models.Airport) {
	if a.Name != "" || a.Code == "" {
		return
	}
	if info, ok := Lookup(a.Code); ok {
		a.Name = info.Name
	}
}

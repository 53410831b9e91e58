package airports

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dharmasatrya/flightquery/internal/models"
)

func TestLookup(t *testing.T) {
	cases := []struct {
		code, name, tz string
		ok             bool
	}{
		{"SFO", "San Francisco International", "America/Los_Angeles", true},
		{"dps", "I Gusti Ngurah Rai International", "Asia/Makassar", true},
		{"XXX", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			info, ok := Lookup(tc.code)
			if ok != tc.ok || info.Name != tc.name || info.Timezone != tc.tz {
				t.Fatalf("Lookup(%s) = %+v, %v", tc.code, info, ok)
			}
		})
	}
}

func TestEnrichKeepsExistingNames(t *testing.T) {
	flights := []models.Flight{{Segments: []models.Segment{{
		From: models.Airport{Code: "SFO"},
		To:   models.Airport{Code: "JFK", Name: "Kennedy"},
	}, {
		From: models.Airport{Code: "JFK", Name: "Kennedy"},
		To:   models.Airport{},
	}}}}

	Enrich(flights)

	segs := flights[0].Segments
	if segs[0].From.Name != "San Francisco International" {
		t.Fatalf("origin name not filled: %+v", segs[0].From)
	}
	if segs[0].To.Name != "Kennedy" {
		t.Fatal("existing names must be kept")
	}
	if segs[1].To.Name != "" {
		t.Fatal("unknown airports stay empty")
	}
}

func TestParseSkipsBlankCodes(t *testing.T) {
	m, err := Parse(strings.NewReader("code,name,city,country,timezone\n,Nowhere,,,\nsin,Changi,Singapore,SG,Asia/Singapore\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(m) != 1 || m["SIN"].Name != "Changi" {
		t.Fatalf("unexpected table %+v", m)
	}
}

func TestParseQuotedFields(t *testing.T) {
	m, err := Parse(strings.NewReader("code,name,city,country,timezone\nCGK,\"Soekarno-Hatta International, Terminal 3\",Jakarta,ID,Asia/Jakarta\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := m["CGK"].Name; got != "Soekarno-Hatta International, Terminal 3" {
		t.Fatalf("name = %q", got)
	}
}

func TestEmbeddedTableLoads(t *testing.T) {
	m, err := Parse(bytes.NewReader(airportsCSV))
	if err != nil {
		t.Fatalf("embedded airports: %v", err)
	}
	if len(m) < 50 {
		t.Fatalf("embedded table has %d airports", len(m))
	}
}

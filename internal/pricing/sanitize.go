// Package pricing prepares a chosen offer for replay against the strict
// pricing endpoint and performs the confirmation call.
package pricing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPayload is returned when the offer is not a JSON object.
var ErrInvalidPayload = errors.New("offer payload is not a JSON object")

const missingHint = "send the offer's full raw_payload from the search response, not its display summary"

// strippedSegmentFields are rejected by the pricing endpoint although search
// returns them.
var strippedSegmentFields = []string{"aircraft"}

type MissingFieldsError struct {
	Missing []string
	Hint    string
}

func (e *MissingFieldsError) Error() string {
	return "offer is missing required fields: " + strings.Join(e.Missing, ", ")
}

// RequiredFields checks that raw still carries what the pricing endpoint
// needs to identify the offer.
func RequiredFields(raw json.RawMessage) error {
	offer, err := decode(raw)
	if err != nil {
		return err
	}

	var missing []string
	if v, ok := offer["travelerPricings"].([]any); !ok || len(v) == 0 {
		missing = append(missing, "travelerPricings")
	}
	if v, ok := offer["source"].(string); !ok || v == "" {
		missing = append(missing, "source")
	}
	itineraries, ok := offer["itineraries"].([]any)
	if !ok || len(itineraries) == 0 {
		missing = append(missing, "itineraries")
	}
	for i, it := range itineraries {
		itin, _ := it.(map[string]any)
		segs, ok := itin["segments"].([]any)
		if !ok || len(segs) == 0 {
			missing = append(missing, fmt.Sprintf("itineraries[%d].segments", i))
			continue
		}
		for j, s := range segs {
			seg, _ := s.(map[string]any)
			if id, ok := seg["id"].(string); !ok || id == "" {
				missing = append(missing, fmt.Sprintf("itineraries[%d].segments[%d].id", i, j))
			}
		}
	}

	if len(missing) > 0 {
		return &MissingFieldsError{Missing: missing, Hint: missingHint}
	}
	return nil
}

// Sanitize returns a copy of raw without the segment fields the pricing
// endpoint rejects. The removed members are cut out of the original bytes, so
// key order, formatting and numbers are kept exactly; an offer with nothing to
// remove comes back byte for byte.
func Sanitize(raw json.RawMessage) (json.RawMessage, error) {
	out, _, err := sanitize(raw)
	return out, err
}

func sanitize(raw json.RawMessage) (json.RawMessage, []string, error) {
	if _, err := decode(raw); err != nil {
		return nil, nil, err
	}
	if !json.Valid(raw) {
		return nil, nil, ErrInvalidPayload
	}

	var (
		cuts    []span
		removed []string
	)
	itineraries, ok := lastMember(members(raw, skipSpace(raw, 0)), "itineraries")
	if ok && raw[itineraries.valueStart] == '[' {
		for i, it := range elements(raw, itineraries.valueStart) {
			if raw[it] != '{' {
				continue
			}
			segments, ok := lastMember(members(raw, it), "segments")
			if !ok || raw[segments.valueStart] != '[' {
				continue
			}
			for j, seg := range elements(raw, segments.valueStart) {
				if raw[seg] != '{' {
					continue
				}
				c, names := strip(members(raw, seg))
				cuts = append(cuts, c...)
				for _, name := range names {
					removed = append(removed, fmt.Sprintf("itineraries[%d].segments[%d].%s", i, j, name))
				}
			}
		}
	}

	out := make([]byte, 0, len(raw))
	prev := 0
	for _, c := range cuts {
		out = append(out, raw[prev:c.start]...)
		prev = c.end
	}
	out = append(out, raw[prev:]...)
	return json.RawMessage(out), removed, nil
}

func isStripped(key string) bool {
	for _, f := range strippedSegmentFields {
		if key == f {
			return true
		}
	}
	return false
}

// strip returns the byte spans that remove the stripped members of one
// object together with one separating comma, and their names.
func strip(ms []member) ([]span, []string) {
	var (
		cuts       []span
		names      []string
		keptBefore bool
	)
	for i, m := range ms {
		if !isStripped(m.key) {
			keptBefore = true
			continue
		}
		names = append(names, m.key)
		switch {
		case keptBefore:
			cuts = append(cuts, span{ms[i-1].valueEnd, m.valueEnd})
		case i+1 < len(ms):
			cuts = append(cuts, span{m.keyStart, ms[i+1].keyStart})
		default:
			cuts = append(cuts, span{m.keyStart, m.valueEnd})
		}
	}
	return cuts, names
}

// decode parses raw into a fresh tree for field checks.
func decode(raw json.RawMessage) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &MissingFieldsError{Missing: []string{"raw_payload"}, Hint: missingHint}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var offer map[string]any
	if err := dec.Decode(&offer); err != nil || offer == nil {
		return nil, ErrInvalidPayload
	}
	return offer, nil
}

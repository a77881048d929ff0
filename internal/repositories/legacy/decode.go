package legacy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ArowuTest/agriclaim-backend/internal/models"
)

// flexNumber accepts 60, 60.5, "60", "60%" and "" or null as zero.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if b[0] != '"' {
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		*n = flexNumber(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return fmt.Errorf("not a number: %q", s)
	}
	*n = flexNumber(f)
	return nil
}

func (n flexNumber) Int() int { return int(n) }

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// flexTime accepts ISO strings, epoch milliseconds and Firestore timestamp
// objects. Anything else decodes as the zero time so the row stays readable.
type flexTime time.Time

func (t *flexTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*t = flexTime{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				*t = flexTime(parsed.UTC())
				return nil
			}
		}
	case '{':
		var ts struct {
			Seconds     *int64 `json:"seconds"`
			LegacySecs  *int64 `json:"_seconds"`
			Nanoseconds int64  `json:"nanoseconds"`
			LegacyNanos int64  `json:"_nanoseconds"`
		}
		if err := json.Unmarshal(b, &ts); err != nil {
			return nil
		}
		switch {
		case ts.Seconds != nil:
			*t = flexTime(time.Unix(*ts.Seconds, ts.Nanoseconds).UTC())
		case ts.LegacySecs != nil:
			*t = flexTime(time.Unix(*ts.LegacySecs, ts.LegacyNanos).UTC())
		}
	default:
		var ms int64
		if err := json.Unmarshal(b, &ms); err == nil {
			*t = flexTime(time.UnixMilli(ms).UTC())
		}
	}
	return nil
}

func (t flexTime) Time() time.Time { return time.Time(t) }

func firstTime(ts ...flexTime) time.Time {
	for _, t := range ts {
		if !t.Time().IsZero() {
			return t.Time()
		}
	}
	return time.Time{}
}

// legacyReport is an inspection report in any of the shapes the old front
// end wrote: the nested fieldReport, the inspection form payload, or just
// the notes string.
type legacyReport struct {
	Notes           string            `json:"notes"`
	InspectionNotes string            `json:"inspectionNotes"`
	OriginalDamage  flexNumber        `json:"originalDamage"`
	VerifiedDamage  flexNumber        `json:"verifiedDamage"`
	Recommendation  string            `json:"recommendation"`
	Inspector       string            `json:"inspector"`
	InspectorName   string            `json:"inspectorName"`
	Photos          []models.Evidence `json:"photos"`
	InspectionPhoto []models.Evidence `json:"inspectionPhotos"`
	InspectedAt     flexTime          `json:"inspectedAt"`
	InspectionDate  flexTime          `json:"inspectionDate"`
	Timestamp       flexTime          `json:"timestamp"`
}

func (r *legacyReport) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		*r = legacyReport{}
		return json.Unmarshal(b, &r.Notes)
	}
	type plain legacyReport
	return json.Unmarshal(b, (*plain)(r))
}

func (r *legacyReport) toModel() *models.FieldReport {
	fr := &models.FieldReport{
		Notes:          firstString(r.Notes, r.InspectionNotes),
		OriginalDamage: r.OriginalDamage.Int(),
		VerifiedDamage: r.VerifiedDamage.Int(),
		Inspector:      firstString(r.Inspector, r.InspectorName),
		Photos:         r.Photos,
		InspectedAt:    firstTime(r.InspectedAt, r.InspectionDate, r.Timestamp),
	}
	if len(fr.Photos) == 0 {
		fr.Photos = r.InspectionPhoto
	}
	switch a := models.Action(strings.ToLower(strings.TrimSpace(r.Recommendation))); a {
	case models.ActionApprove, models.ActionReject:
		fr.Recommendation = a
	}
	return fr
}

type legacyHistoryEntry struct {
	Stage     string   `json:"stage"`
	Status    string   `json:"status"`
	Timestamp flexTime `json:"timestamp"`
	Actor     string   `json:"actor"`
	RequestID string   `json:"requestId"`
}

func firstString(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}

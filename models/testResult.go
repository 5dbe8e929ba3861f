package models

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// HollandDimensions is the RIASEC alphabet in canonical order.
var HollandDimensions = []string{"R", "I", "A", "S", "E", "C"}

var hollandNames = map[string]string{
	"R": "Realista",
	"I": "Investigador",
	"A": "Artístico",
	"S": "Social",
	"E": "Emprendedor",
	"C": "Convencional",
}

func HollandName(dim string) string {
	if n, ok := hollandNames[strings.ToUpper(dim)]; ok {
		return n
	}
	return dim
}

// TestResult is written by the test front end; this service only reads it.
type TestResult struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	UserId    string         `gorm:"size:64;not null;index:idx_test_results_user_created" json:"user_id"`
	Code      string         `gorm:"size:3" json:"code"`
	Certainty string         `gorm:"size:64" json:"certainty"`
	Scores    datatypes.JSON `json:"scores"`
	Careers   datatypes.JSON `json:"careers"`
	CreatedAt time.Time      `gorm:"index:idx_test_results_user_created" json:"created_at"`
}

// TestResultSnapshot is the copy of a TestResult embedded in a paid report.
type TestResultSnapshot struct {
	TestResultId string             `json:"testResultId,omitempty"`
	Code         string             `json:"code"`
	Certainty    string             `json:"certainty"`
	Scores       map[string]float64 `json:"scores"`
	Careers      []Career           `json:"careers"`
	TakenAt      *time.Time         `json:"takenAt,omitempty"`
}

// NewTestResultSnapshot copies tr into a snapshot. Entries that cannot be
// read are dropped one by one; the rest of the result is always kept.
func NewTestResultSnapshot(tr TestResult) *TestResultSnapshot {
	snap := &TestResultSnapshot{
		TestResultId: tr.ID,
		Code:         strings.ToUpper(strings.TrimSpace(tr.Code)),
		Certainty:    tr.Certainty,
		Scores:       decodeScores(tr.Scores),
		Careers:      decodeCareers(tr.Careers),
	}
	if !tr.CreatedAt.IsZero() {
		taken := tr.CreatedAt.UTC()
		snap.TakenAt = &taken
	}
	return snap
}

// decodeScores accepts numbers and quoted numbers per dimension.
func decodeScores(raw datatypes.JSON) map[string]float64 {
	scores := map[string]float64{}
	var entries map[string]json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &entries) != nil {
		return scores
	}
	for dim, value := range entries {
		dim = strings.ToUpper(strings.TrimSpace(dim))
		if dim == "" || string(value) == "null" {
			continue
		}
		var f float64
		if err := json.Unmarshal(value, &f); err == nil {
			scores[dim] = f
			continue
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			continue
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			scores[dim] = f
		}
	}
	return scores
}

// decodeCareers reads the careers array element by element. Nulls, blanks
// and entries with an unreadable shape are skipped.
func decodeCareers(raw datatypes.JSON) []Career {
	var entries []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &entries) != nil {
		return nil
	}
	careers := make([]Career, 0, len(entries))
	for _, entry := range entries {
		var c Career
		if err := json.Unmarshal(entry, &c); err != nil {
			continue
		}
		if c.Kind == "" || (c.Kind == CareerKindName && c.Name == "") {
			continue
		}
		careers = append(careers, c)
	}
	return careers
}

type DimensionScore struct {
	Dimension string
	Score     float64
}

// SortedScores orders dimensions by score, highest first; ties keep RIASEC order.
func (s TestResultSnapshot) SortedScores() []DimensionScore {
	out := make([]DimensionScore, 0, len(s.Scores))
	seen := map[string]bool{}
	for _, d := range HollandDimensions {
		if v, ok := s.Scores[d]; ok {
			out = append(out, DimensionScore{Dimension: d, Score: v})
			seen[d] = true
		}
	}
	var extra []string
	for k := range s.Scores {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		out = append(out, DimensionScore{Dimension: k, Score: s.Scores[k]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

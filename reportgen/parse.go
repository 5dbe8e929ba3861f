package reportgen

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/vocari/reports_backend/models"
	"github.com/vocari/reports_backend/utils"
)

var errNoJSONObject = errors.New("no json object in completion")

// decodeCompletion parses text as a JSON object, falling back to the first
// balanced {...} span when the model wrapped it in prose or code fences.
func decodeCompletion(text string, out interface{}) error {
	text = strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}
	span, ok := utils.ExtractJSONObject(text)
	if !ok {
		return errNoJSONObject
	}
	return json.Unmarshal([]byte(span), out)
}

// parseReportContent never fails: unparseable text ends up in Profile.
// degraded is true when the fallback was used.
func parseReportContent(text string) (content models.ReportContent, degraded bool) {
	if err := decodeCompletion(text, &content); err == nil && hasSections(content) {
		content.Error = ""
		return content, false
	}
	return models.ReportContent{Profile: strings.TrimSpace(text)}, true
}

func hasSections(c models.ReportContent) bool {
	return c.Profile != "" || c.DetailedAnalysis != "" || c.RecommendedCareers != "" || c.NextSteps != ""
}

func parseVisualSummary(text string) (*models.VisualSummary, error) {
	var v models.VisualSummary
	if err := decodeCompletion(text, &v); err != nil {
		return nil, err
	}
	v.Headline = strings.TrimSpace(v.Headline)
	if v.Headline == "" {
		return nil, errors.New("visual summary without headline")
	}
	v.Strengths = trimList(v.Strengths, 4)
	v.TopCareers = trimList(v.TopCareers, 3)
	v.Closing = strings.TrimSpace(v.Closing)
	return &v, nil
}

func trimList(items []string, max int) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			out = append(out, s)
		}
		if len(out) == max {
			break
		}
	}
	return out
}

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type CareerKind string

const (
	CareerKindName     CareerKind = "name"
	CareerKindDetailed CareerKind = "detailed"
)

// Career is a recommended career as stored by the test front end: either a
// bare string or an object. The shape is resolved once, when decoded.
type Career struct {
	Kind  CareerKind
	Name  string
	Area  string
	Match string
}

type detailedCareer struct {
	Name           string          `json:"name"`
	Nombre         string          `json:"nombre"`
	Carrera        string          `json:"carrera"`
	Title          string          `json:"title"`
	Titulo         string          `json:"titulo"`
	Area           string          `json:"area"`
	Match          json.RawMessage `json:"match"`
	Compatibilidad json.RawMessage `json:"compatibilidad"`
	Score          json.RawMessage `json:"score"`
}

func (c *Career) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Career{}
		return nil
	}
	if data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*c = Career{Kind: CareerKindName, Name: strings.TrimSpace(name)}
		return nil
	}
	if data[0] == '[' {
		return fmt.Errorf("career: unsupported json %s", string(data))
	}
	if data[0] != '{' {
		// numbers and booleans are kept as their literal text
		*c = Career{Kind: CareerKindName, Name: string(data)}
		return nil
	}

	var d detailedCareer
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	*c = Career{
		Kind:  CareerKindDetailed,
		Name:  firstNonEmpty(d.Name, d.Nombre, d.Carrera, d.Title, d.Titulo),
		Area:  strings.TrimSpace(d.Area),
		Match: firstMatch(d.Match, d.Compatibilidad, d.Score),
	}
	return nil
}

func (c Career) MarshalJSON() ([]byte, error) {
	if c.Kind != CareerKindDetailed {
		return json.Marshal(c.Name)
	}
	out := map[string]string{"name": c.Name}
	if c.Area != "" {
		out["area"] = c.Area
	}
	if c.Match != "" {
		out["match"] = c.Match
	}
	return json.Marshal(out)
}

// Display renders the career as a single line for prompts and exports.
func (c Career) Display() string {
	name := c.Name
	if name == "" {
		name = "Carrera sin nombre"
	}
	var b strings.Builder
	b.WriteString(name)
	if c.Area != "" {
		b.WriteString(" (" + c.Area + ")")
	}
	if c.Match != "" {
		m := c.Match
		if _, err := strconv.ParseFloat(m, 64); err == nil {
			m += "%"
		}
		b.WriteString(" - compatibilidad " + m)
	}
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func firstMatch(raws ...json.RawMessage) string {
	for _, raw := range raws {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	}
	return ""
}

package reportgen

import "testing"

func TestParseReportContent(t *testing.T) {
	cases := []struct {
		name     string
		text     string
		profile  string
		degraded bool
	}{
		{"plain json", fullReportJSON, "Perfil social", false},
		{"code fence", "```json\n" + fullReportJSON + "\n```", "Perfil social", false},
		{"prose around", "Claro, aquí tienes el informe: " + fullReportJSON + " ¡Éxito!", "Perfil social", false},
		{"braces in strings", `Nota previa: ` + `{"profile":"usa {llaves} y \"comillas\"","nextSteps":"ok"}`, "usa {llaves} y \"comillas\"", false},
		{"no json", "Texto libre sin estructura", "Texto libre sin estructura", true},
		{"wrong keys", `{"foo":"bar"}`, `{"foo":"bar"}`, true},
		{"truncated", `{"profile":"corte`, `{"profile":"corte`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, degraded := parseReportContent(tc.text)
			if degraded != tc.degraded {
				t.Fatalf("degraded = %v, want %v", degraded, tc.degraded)
			}
			if got.Profile != tc.profile {
				t.Fatalf("profile = %q, want %q", got.Profile, tc.profile)
			}
		})
	}
}

func TestParseVisualSummary(t *testing.T) {
	v, err := parseVisualSummary(visualJSON)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if v.Closing != "Tu camino empieza hoy." || len(v.Strengths) != 4 || len(v.TopCareers) != 3 {
		t.Fatalf("unexpected summary %+v", v)
	}
	if _, err := parseVisualSummary(`{"strengths":["a"]}`); err == nil {
		t.Fatalf("expected error without headline")
	}
	if _, err := parseVisualSummary("nada"); err == nil {
		t.Fatalf("expected error for non-json")
	}
}

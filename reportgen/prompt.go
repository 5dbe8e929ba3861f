package reportgen

import (
	"fmt"
	"strings"

	"github.com/vocari/reports_backend/models"
)

// Minimum word counts requested per section.
const (
	minWordsProfile            = 250
	minWordsDetailedAnalysis   = 400
	minWordsRecommendedCareers = 350
	minWordsNextSteps          = 200
)

const reportSystemPrompt = `Eres un orientador vocacional experto en el modelo RIASEC de Holland que escribe informes para estudiantes chilenos. ` +
	`Escribe en español neutro, con un tono cercano, profesional y motivador. No inventes puntajes ni carreras que no estén en los datos. ` +
	`Responde únicamente con un objeto JSON válido, sin texto adicional.`

const visualSystemPrompt = `Eres un diseñador de contenidos que resume informes vocacionales RIASEC en piezas breves y visuales. ` +
	`Responde únicamente con un objeto JSON válido, sin texto adicional.`

func buildReportPrompt(snap *models.TestResultSnapshot) CompletionRequest {
	var b strings.Builder
	b.WriteString("Redacta un informe vocacional personalizado a partir de estos resultados del test RIASEC.\n\n")
	writeResultSummary(&b, snap)
	b.WriteString("\nDevuelve un objeto JSON con exactamente estas claves:\n")
	fmt.Fprintf(&b, "- \"profile\": descripción del perfil vocacional (mínimo %d palabras).\n", minWordsProfile)
	fmt.Fprintf(&b, "- \"detailedAnalysis\": análisis detallado de cada dimensión y de cómo se combinan (mínimo %d palabras).\n", minWordsDetailedAnalysis)
	fmt.Fprintf(&b, "- \"recommendedCareers\": análisis de las carreras recomendadas y por qué encajan con el perfil (mínimo %d palabras).\n", minWordsRecommendedCareers)
	fmt.Fprintf(&b, "- \"nextSteps\": próximos pasos concretos para el estudiante (mínimo %d palabras).\n", minWordsNextSteps)
	b.WriteString("Cada valor debe ser texto en prosa, puede usar párrafos separados por saltos de línea.")

	return CompletionRequest{
		System:      reportSystemPrompt,
		User:        b.String(),
		MaxTokens:   4096,
		Temperature: 0.7,
	}
}

func buildVisualPrompt(snap *models.TestResultSnapshot) CompletionRequest {
	var b strings.Builder
	b.WriteString("Crea un resumen visual compacto de este perfil vocacional RIASEC.\n\n")
	writeResultSummary(&b, snap)
	b.WriteString("\nDevuelve un objeto JSON con estas claves:\n")
	b.WriteString("- \"headline\": un titular breve que capture el perfil.\n")
	b.WriteString("- \"strengths\": arreglo de 3 a 4 fortalezas, cada una en pocas palabras.\n")
	b.WriteString("- \"topCareers\": arreglo con las 3 carreras más afines.\n")
	b.WriteString("- \"closing\": una sola frase motivacional de cierre.")

	return CompletionRequest{
		System:      visualSystemPrompt,
		User:        b.String(),
		MaxTokens:   800,
		Temperature: 0.8,
	}
}

func writeResultSummary(b *strings.Builder, snap *models.TestResultSnapshot) {
	if snap == nil {
		b.WriteString("No hay resultados del test disponibles; redacta un informe general de orientación vocacional.\n")
		return
	}

	code := snap.Code
	if code == "" {
		code = "sin código"
	}
	fmt.Fprintf(b, "Código Holland dominante: %s", code)
	if names := codeNames(snap.Code); names != "" {
		fmt.Fprintf(b, " (%s)", names)
	}
	b.WriteString("\n")
	if snap.Certainty != "" {
		fmt.Fprintf(b, "Nivel de certeza: %s\n", snap.Certainty)
	}

	if scores := snap.SortedScores(); len(scores) > 0 {
		b.WriteString("Puntajes por dimensión (de mayor a menor):\n")
		for _, s := range scores {
			fmt.Fprintf(b, "- %s (%s): %s\n", models.HollandName(s.Dimension), s.Dimension, formatScore(s.Score))
		}
	}

	if len(snap.Careers) > 0 {
		b.WriteString("Carreras recomendadas:\n")
		for _, c := range snap.Careers {
			fmt.Fprintf(b, "- %s\n", c.Display())
		}
	}
}

func codeNames(code string) string {
	var names []string
	for _, r := range strings.ToUpper(code) {
		names = append(names, models.HollandName(string(r)))
	}
	return strings.Join(names, ", ")
}

func formatScore(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}

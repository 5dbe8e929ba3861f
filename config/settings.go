package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vocari/reports_backend/utils"
)

const (
	defaultFlowAPIURL       = "https://www.flow.cl/api"
	defaultPayerEmail       = "pagos@vocari.cl"
	defaultOpenAIBaseURL    = "https://api.openai.com/v1"
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultGenerationTopic  = "report-generation"
	defaultRateLimitPerMin  = 10
	defaultFlowTimeoutSecs  = 20
	defaultLLMTimeoutSecs   = 90
	defaultReconcileMinutes = 30
)

// FlowSettings holds the payment gateway credentials and callback URLs.
type FlowSettings struct {
	APIKey            string
	SecretKey         string
	APIURL            string
	ConfirmationURL   string
	ReturnURL         string
	DefaultPayerEmail string
	Timeout           time.Duration
}

// Validate fails when any credential or callback URL is missing.
func (s FlowSettings) Validate() error {
	var missing []string
	if s.APIKey == "" {
		missing = append(missing, "FLOW_API_KEY")
	}
	if s.SecretKey == "" {
		missing = append(missing, "FLOW_SECRET_KEY")
	}
	if s.APIURL == "" {
		missing = append(missing, "FLOW_API_URL")
	}
	if s.ConfirmationURL == "" {
		missing = append(missing, "FLOW_CONFIRMATION_URL")
	}
	if s.ReturnURL == "" {
		missing = append(missing, "FLOW_RETURN_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing gateway configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func LoadFlowSettings() FlowSettings {
	publicURL := strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/")
	confirmation := strings.TrimSpace(os.Getenv("FLOW_CONFIRMATION_URL"))
	if confirmation == "" && publicURL != "" {
		confirmation = publicURL + "/api/flow/webhook"
	}
	returnURL := strings.TrimSpace(os.Getenv("FLOW_RETURN_URL"))
	if returnURL == "" && publicURL != "" {
		returnURL = publicURL + "/pago/retorno"
	}
	return FlowSettings{
		APIKey:            strings.TrimSpace(os.Getenv("FLOW_API_KEY")),
		SecretKey:         strings.TrimSpace(os.Getenv("FLOW_SECRET_KEY")),
		APIURL:            strings.TrimRight(utils.EnvDefault("FLOW_API_URL", defaultFlowAPIURL), "/"),
		ConfirmationURL:   confirmation,
		ReturnURL:         returnURL,
		DefaultPayerEmail: utils.EnvDefault("FLOW_DEFAULT_PAYER_EMAIL", defaultPayerEmail),
		Timeout:           utils.SecondsFromEnv("FLOW_HTTP_TIMEOUT_SECONDS", defaultFlowTimeoutSecs*time.Second),
	}
}

// LLMSettings configures the OpenAI-compatible chat completions endpoint.
type LLMSettings struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

func (s LLMSettings) Validate() error {
	if s.APIKey == "" {
		return fmt.Errorf("missing text generation configuration: OPENAI_API_KEY")
	}
	return nil
}

func LoadLLMSettings() LLMSettings {
	return LLMSettings{
		APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		BaseURL: strings.TrimRight(utils.EnvDefault("OPENAI_BASE_URL", defaultOpenAIBaseURL), "/"),
		Model:   utils.EnvDefault("OPENAI_MODEL", defaultOpenAIModel),
		Timeout: utils.SecondsFromEnv("LLM_HTTP_TIMEOUT_SECONDS", defaultLLMTimeoutSecs*time.Second),
	}
}

// DispatchSettings decides where queued generation jobs are delivered.
// A Pub/Sub project wins; otherwise jobs are POSTed to GenerationURL.
type DispatchSettings struct {
	Topic         string
	GenerationURL string
	InternalToken string
}

func (s DispatchSettings) UsePubSub() bool {
	return PubSubProjectID() != "" && s.Topic != ""
}

func LoadDispatchSettings() DispatchSettings {
	genURL := strings.TrimSpace(os.Getenv("REPORT_GENERATION_URL"))
	if genURL == "" {
		if publicURL := strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/"); publicURL != "" {
			genURL = publicURL + "/api/reports/generate"
		}
	}
	return DispatchSettings{
		Topic:         utils.EnvDefault("REPORT_GENERATION_TOPIC", defaultGenerationTopic),
		GenerationURL: genURL,
		InternalToken: strings.TrimSpace(os.Getenv("INTERNAL_API_TOKEN")),
	}
}

// RateLimitSettings bounds checkout attempts per client IP.
type RateLimitSettings struct {
	MaxRequests int64
	Window      time.Duration
}

func LoadRateLimitSettings() RateLimitSettings {
	return RateLimitSettings{
		MaxRequests: int64(utils.IntFromEnv("RATE_LIMIT_MAX_REQUESTS", defaultRateLimitPerMin)),
		Window:      utils.SecondsFromEnv("RATE_LIMIT_WINDOW_SECONDS", 60*time.Second),
	}
}

// ReconcileSettings drives the pending-payment sweep.
type ReconcileSettings struct {
	Schedule  string
	OlderThan time.Duration
	BatchSize int
}

func LoadReconcileSettings() ReconcileSettings {
	return ReconcileSettings{
		Schedule:  strings.TrimSpace(os.Getenv("RECONCILE_CRON")),
		OlderThan: time.Duration(utils.IntFromEnv("RECONCILE_OLDER_THAN_MINUTES", defaultReconcileMinutes)) * time.Minute,
		BatchSize: utils.IntFromEnv("RECONCILE_BATCH_SIZE", 100),
	}
}

package research

import "github.com/mikeboe/research-studio/pkg/config"

// Config holds runtime configuration for the report streamer
type Config struct {
	Model string
}

// ConfigFrom picks the streamer settings out of the service config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{Model: cfg.ReportModel}
}

// GroundingSource is a web citation backing the report.
type GroundingSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// WebCitation is the "web" part of a raw grounding chunk. Either field may be empty.
type WebCitation struct {
	URI   string
	Title string
}

// Citation is a raw grounding record as delivered by the generation service.
type Citation struct {
	Web *WebCitation
}

// Fragment is one piece of a streamed response. Text and Citations are both optional.
type Fragment struct {
	Text      string
	Citations []Citation
}

// Request describes a single streaming generation call.
type Request struct {
	Model             string
	SystemInstruction string
	Prompt            string
	Grounding         bool
}

// Report is the final result of a streaming exchange.
type Report struct {
	Text    string            `json:"text"`
	Sources []GroundingSource `json:"sources"`
}

package llm

import "talentworth/internal/domain"

// SalaryRange carries the model's raw salary figures before rounding.
type SalaryRange struct {
	Min float64 `json:"min"`
	Mid float64 `json:"mid"`
	Max float64 `json:"max"`
}

// Output is the structured analysis payload returned by the model.
type Output struct {
	SalaryRange     SalaryRange               `json:"salaryRange"`
	CompanyTypes    []domain.CompanyTypeMatch `json:"companyTypes"`
	Strengths       []domain.Strength         `json:"strengths"`
	SampleSize      float64                   `json:"sampleSize"`
	ConfidenceScore float64                   `json:"confidenceScore"`

	// Raw is the verbatim message content the payload was parsed from.
	Raw string `json:"-"`
}

// chatRequest is the OpenAI-compatible chat completions request format.
type chatRequest struct {
	Model          string          `json:"model"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Messages       []message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float64         `json:"temperature"`
}

type responseFormat struct {
	Type       string     `json:"type"`
	JSONSchema jsonSchema `json:"json_schema"`
}

type jsonSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

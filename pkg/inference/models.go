package inference

import "encoding/json"

// ChatRequest is an OpenAI-compatible chat completion request with a
// structured-output constraint.
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens"`
}

// Message is one chat message. Content is either a plain string (system
// messages) or a list of ContentPart (multi-modal user messages).
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// ContentPart is one part of a multi-modal message
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL carries an inlined base64 data URL
type ImageURL struct {
	URL string `json:"url"`
}

// ResponseFormat constrains the response to a predeclared JSON schema
type ResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

// JSONSchema names the schema the response must conform to
type JSONSchema struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
}

// ChatResponse is the provider's reply
type ChatResponse struct {
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is one completion alternative
type Choice struct {
	Message ResponseMessage `json:"message"`
}

// ResponseMessage holds the completion content
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage reports measured token consumption
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is one post's extraction input assembled by the orchestrator
type Request struct {
	Username string
	Bio      string
	Caption  string
	// Images are base64-encoded JPEG payloads, at most three
	Images []string
}

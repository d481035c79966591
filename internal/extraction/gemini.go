package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// geminiCallTimeout bounds a single generateContent attempt. Retries get a
// fresh budget each.
const geminiCallTimeout = 90 * time.Second

// GeminiClient calls the Gemini REST API for schema-constrained structured
// output. One instance serves the whole process and is safe for concurrent
// use; it holds a pooled HTTP client.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	retry      RetryConfig
}

// NewGeminiClient builds a client. An empty baseURL selects the public
// endpoint; tests point it at a local server.
func NewGeminiClient(apiKey, baseURL string) *GeminiClient {
	return NewGeminiClientWithRetry(apiKey, baseURL, DefaultLLMRetryConfig)
}

// NewGeminiClientWithRetry builds a client with an explicit retry budget.
// Tests use it to shrink the backoff delays.
func NewGeminiClientWithRetry(apiKey, baseURL string, retry RetryConfig) *GeminiClient {
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: geminiCallTimeout},
		retry:      retry,
	}
}

// StructuredRequest is one schema-constrained generation call.
type StructuredRequest struct {
	Model             string
	SystemInstruction string
	Prompt            string
	// Schema is a Gemini responseSchema (OpenAPI subset) the output must
	// satisfy.
	Schema          map[string]any
	Temperature     float64
	MaxOutputTokens int
}

// TokenUsage mirrors Gemini usageMetadata.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StructuredResponse carries the model text and usage; the caller parses the
// JSON into its domain shape.
type StructuredResponse struct {
	Text         string
	FinishReason string
	Usage        TokenUsage
}

// ExtractStructured runs the request under the client retry policy: three
// attempts total on transient failures with 4s/8s backoff and jitter; fatal
// errors abort immediately. A response truncated by the output budget
// surfaces as ErrCodeLLMTruncation — fatal, because the fix is smaller
// chunks, not another attempt.
func (c *GeminiClient) ExtractStructured(ctx context.Context, req StructuredRequest) (*StructuredResponse, error) {
	if c.apiKey == "" {
		return nil, &ExtractionError{Code: ErrCodeLLMFatal, Message: "gemini api key not configured"}
	}
	return WithRetry(ctx, c.retry, func(ctx context.Context) (*StructuredResponse, error) {
		return c.generateContent(ctx, req)
	})
}

func (c *GeminiClient) generateContent(ctx context.Context, req StructuredRequest) (*StructuredResponse, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, req.Model, c.apiKey)

	generationConfig := map[string]any{
		"temperature":      req.Temperature,
		"maxOutputTokens":  req.MaxOutputTokens,
		"responseMimeType": "application/json",
	}
	if req.Schema != nil {
		generationConfig["responseSchema"] = req.Schema
	}
	reqBody := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]any{{"text": req.Prompt}}},
		},
		"generationConfig": generationConfig,
	}
	if req.SystemInstruction != "" {
		reqBody["system_instruction"] = map[string]any{
			"parts": []map[string]any{{"text": req.SystemInstruction}},
		}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &ExtractionError{Code: ErrCodeLLMFatal, Message: "marshal request", Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, &ExtractionError{Code: ErrCodeLLMFatal, Message: "create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Transport failures carry their own transient markers (timeouts,
		// connection resets); classify by message.
		return nil, ClassifyLLMError(fmt.Errorf("gemini call: %w", err), "")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ExtractionError{Code: ErrCodeLLMTransient, Message: "read response", Retryable: true, Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyGeminiHTTPStatus(resp.StatusCode, respBody)
	}

	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
			FinishReason string `json:"finishReason"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
			TotalTokenCount      int `json:"totalTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return nil, &ExtractionError{Code: ErrCodeBadResponse, Message: "parse gemini response", Cause: err}
	}

	finishReason := ""
	text := ""
	if len(geminiResp.Candidates) > 0 {
		finishReason = geminiResp.Candidates[0].FinishReason
		for _, part := range geminiResp.Candidates[0].Content.Parts {
			text += part.Text
		}
	}
	text = stripCodeFences(text)

	if text == "" && finishReason == "MAX_TOKENS" {
		return nil, &ExtractionError{
			Code:    ErrCodeLLMTruncation,
			Message: "response truncated by output token budget",
		}
	}
	if text == "" {
		return nil, &ExtractionError{Code: ErrCodeBadResponse, Message: "empty gemini response"}
	}

	return &StructuredResponse{
		Text:         text,
		FinishReason: finishReason,
		Usage: TokenUsage{
			PromptTokens:     geminiResp.UsageMetadata.PromptTokenCount,
			CompletionTokens: geminiResp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      geminiResp.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

// classifyGeminiHTTPStatus maps HTTP failures onto the retry taxonomy:
// 429 and 5xx are transient, everything else is fatal.
func classifyGeminiHTTPStatus(status int, body []byte) *ExtractionError {
	snippet := string(body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	switch {
	case status == http.StatusTooManyRequests:
		return &ExtractionError{
			Code:      ErrCodeLLMTransient,
			Message:   fmt.Sprintf("gemini rate limited (429): %s", snippet),
			Retryable: true,
		}
	case status >= 500:
		return &ExtractionError{
			Code:      ErrCodeLLMTransient,
			Message:   fmt.Sprintf("gemini unavailable (%d): %s", status, snippet),
			Retryable: true,
		}
	default:
		return &ExtractionError{
			Code:    ErrCodeLLMFatal,
			Message: fmt.Sprintf("gemini error %d: %s", status, snippet),
		}
	}
}

// stripCodeFences removes markdown fences models sometimes wrap JSON in.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// extractJSON pulls the outermost JSON object or array out of model text,
// tolerating stray prose around it. Returns the input unchanged when no
// balanced value is found.
func extractJSON(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return text
	}
	open := text[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return text
}

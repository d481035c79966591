// Package ocr routes document bytes through the remote GPU OCR service, with
// a circuit breaker and an in-process parser fallback.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/api/idtoken"

	"github.com/loanlens/loanlens/internal/extraction"
)

// DefaultTimeout tolerates GPU cold starts; a single OCR call on a scanned
// packet can legitimately run for minutes.
const DefaultTimeout = 120 * time.Second

// Client calls the GPU OCR service: multipart upload of the original bytes,
// Google-signed OIDC bearer auth, JSON response with the recognized text.
// One instance serves the whole process and is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for the service at baseURL. It mints OIDC
// identity tokens for the service URL audience; when no ambient credentials
// exist (local dev, tests) it degrades to an unauthenticated client.
func NewClient(ctx context.Context, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient, err := idtoken.NewClient(ctx, baseURL)
	if err != nil {
		log.WithError(err).Warn("ocr: no OIDC credentials, using unauthenticated client")
		httpClient = &http.Client{}
	}
	httpClient.Timeout = timeout
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// NewClientWithHTTP injects a prebuilt HTTP client. Tests use this to point
// at an httptest server without credentials.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// Response is the OCR service output: the markdown-normalized text, the raw
// text it was derived from, and the page count the model saw.
type Response struct {
	Markdown  string `json:"markdown"`
	RawText   string `json:"raw_text"`
	PageCount int    `json:"page_count"`
}

// Recognize sends document bytes for OCR. Errors carry the extraction error
// taxonomy so the router and breaker can tell transient from fatal.
func (c *Client) Recognize(ctx context.Context, data []byte, filename string) (*Response, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, &extraction.ExtractionError{Code: extraction.ErrCodeOCRFatal, Message: "create form file", Cause: err}
	}
	if _, err := part.Write(data); err != nil {
		return nil, &extraction.ExtractionError{Code: extraction.ErrCodeOCRFatal, Message: "write file data", Cause: err}
	}
	if err := writer.Close(); err != nil {
		return nil, &extraction.ExtractionError{Code: extraction.ErrCodeOCRFatal, Message: "close multipart writer", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", &buf)
	if err != nil {
		return nil, &extraction.ExtractionError{Code: extraction.ErrCodeOCRFatal, Message: "create request", Cause: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection failures are worth a later retry; the
		// breaker counts them either way.
		return nil, &extraction.ExtractionError{
			Code:      extraction.ErrCodeOCRTransient,
			Message:   "ocr call failed",
			Retryable: true,
			Cause:     err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &extraction.ExtractionError{Code: extraction.ErrCodeOCRTransient, Message: "read response", Retryable: true, Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, classifyOCRHTTPStatus(resp.StatusCode, body)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &extraction.ExtractionError{Code: extraction.ErrCodeOCRFatal, Message: "decode ocr response", Cause: err}
	}
	if out.RawText == "" && out.Markdown == "" {
		return nil, &extraction.ExtractionError{Code: extraction.ErrCodeOCRFatal, Message: "ocr returned no text"}
	}
	if out.PageCount < 1 {
		out.PageCount = 1
	}
	return &out, nil
}

func classifyOCRHTTPStatus(status int, body []byte) *extraction.ExtractionError {
	snippet := string(body)
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		return &extraction.ExtractionError{
			Code:      extraction.ErrCodeOCRTransient,
			Message:   fmt.Sprintf("ocr service unavailable (%d): %s", status, snippet),
			Retryable: true,
		}
	}
	return &extraction.ExtractionError{
		Code:    extraction.ErrCodeOCRFatal,
		Message: fmt.Sprintf("ocr error %d: %s", status, snippet),
	}
}

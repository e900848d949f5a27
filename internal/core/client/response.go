package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/quotalens/quotalens/internal/core/quota"
)

// ProviderMessage is the shape of the provider's Err and Warn body fields.
type ProviderMessage struct {
	Type      int            `json:"type,omitempty"`
	Message   string         `json:"message,omitempty"`
	OtherInfo map[string]any `json:"other_info,omitempty"`
}

// Empty reports whether the message carries nothing.
func (m *ProviderMessage) Empty() bool {
	return m == nil || (m.Type == 0 && m.Message == "" && len(m.OtherInfo) == 0)
}

func (m *ProviderMessage) String() string {
	if m.Empty() {
		return ""
	}
	if m.Message != "" {
		return m.Message
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("type %d", m.Type)
	}
	return string(encoded)
}

// Response is the outcome of one provider call.
type Response struct {
	Endpoint   string           `json:"endpoint"`
	URL        string           `json:"url"`
	StatusCode int              `json:"status_code"`
	Header     http.Header      `json:"headers,omitempty"`
	RateLimit  RateHeaders      `json:"rate_limit"`
	RetryAfter time.Duration    `json:"retry_after,omitempty"`
	Deprecated bool             `json:"deprecated"`
	Data       json.RawMessage  `json:"data,omitempty"`
	ErrorText  string           `json:"error,omitempty"`
	Err        *ProviderMessage `json:"err,omitempty"`
	Warn       *ProviderMessage `json:"warn,omitempty"`
	Quota      *quota.Status    `json:"rate_limit_tracked,omitempty"`
	FromCache  bool             `json:"from_cache"`
	Attempts   int              `json:"attempts"`
	FetchedAt  time.Time        `json:"fetched_at"`
	Duration   time.Duration    `json:"duration"`

	body []byte
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Body returns the raw response body.
func (r *Response) Body() []byte {
	if r == nil {
		return nil
	}
	return r.body
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Data) == 0 {
		return fmt.Errorf("response has no JSON body")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", r.Endpoint, err)
	}
	return nil
}

// Check classifies the response: *HTTPError for non-2xx, *APIError when the
// provider reported Err, nil otherwise.
func (r *Response) Check() error {
	if r == nil {
		return nil
	}
	if !r.OK() {
		return &HTTPError{StatusCode: r.StatusCode, URL: r.URL, Body: r.ErrorText}
	}
	if !r.Err.Empty() {
		return &APIError{URL: r.URL, Type: r.Err.Type, Message: r.Err.String()}
	}
	if len(r.Data) == 0 && len(bytes.TrimSpace(r.body)) > 0 {
		return &APIError{URL: r.URL, Message: "response body is not JSON"}
	}
	return nil
}

func newResponse(endpoint, target string, status int, header http.Header, body []byte, fetchedAt time.Time) *Response {
	resp := &Response{
		Endpoint:   endpoint,
		URL:        target,
		StatusCode: status,
		Header:     header,
		RateLimit:  rateHeaders(header),
		RetryAfter: retryAfterHeader(header, fetchedAt),
		Deprecated: deprecated(header),
		FetchedAt:  fetchedAt,
		body:       body,
	}

	if status != http.StatusOK {
		resp.ErrorText = strings.TrimSpace(string(body))
		return resp
	}

	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		resp.ErrorText = string(trimmed)
		return resp
	}
	resp.Data = json.RawMessage(trimmed)
	resp.Err, resp.Warn = envelopeMessages(trimmed)
	return resp
}

func envelopeMessages(body []byte) (*ProviderMessage, *ProviderMessage) {
	var envelope struct {
		Err  json.RawMessage `json:"Err"`
		Warn json.RawMessage `json:"Warn"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, nil
	}
	return decodeMessage(envelope.Err), decodeMessage(envelope.Warn)
}

func decodeMessage(raw json.RawMessage) *ProviderMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var msg ProviderMessage
	if err := json.Unmarshal(raw, &msg); err == nil {
		if msg.Empty() {
			return nil
		}
		return &msg
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil && strings.TrimSpace(text) != "" {
		return &ProviderMessage{Message: text}
	}
	return nil
}

// Package nlu is the external NLU/NLG network client spec.md §1(ii)
// carves out as a narrow-interface collaborator: turning a raw utterance
// into a token/entity sequence (Parse) and rendering a program's result
// back into prose when the formatter needs help beyond template
// interpolation (Generate). Cascade never implements natural-language
// understanding itself; this package only calls out to it.
//
// Grounded on the reference architecture's internal/model.GLMClient: an
// HTTP client wrapped in a circuit breaker plus retry policy, config
// carrying base URL/timeout/API key, and IsAvailable used to fail fast
// when unconfigured. The Authorization header is validated through
// golang.org/x/net/http/httpguts before being attached, the same guard
// internal/lookup applies to its own outbound headers.
package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/http/httpguts"

	"github.com/cascade-run/cascade/internal/agenterr"
)

// Config configures the NLU/NLG client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// DefaultConfig returns a reasonable default configuration.
func DefaultConfig(baseURL, apiKey string) *Config {
	return &Config{BaseURL: baseURL, APIKey: apiKey, Timeout: 10 * time.Second}
}

// ParseRequest asks the NLU service to turn an utterance into a
// token/entity sequence.
type ParseRequest struct {
	Utterance string            `json:"utterance"`
	Locale    string            `json:"locale"`
	Context   map[string]string `json:"context,omitempty"`
}

// ParseResult is the token/entity sequence the NLU service returns,
// matching handler.UserInput's Parsed variant shape.
type ParseResult struct {
	Code       []string       `json:"code"`
	Entities   map[string]any `json:"entities"`
	Confidence float64        `json:"confidence"`
}

// GenerateRequest asks the NLG service to render a program result as
// prose, for cases the deterministic formatter (C9) cannot cover.
type GenerateRequest struct {
	Locale     string `json:"locale"`
	ProgramAST string `json:"program_ast"`
	OutputJSON string `json:"output_json"`
}

// Client is the NLU/NLG HTTP client.
type Client struct {
	cfg     *Config
	http    *http.Client
	breaker *agenterr.CircuitBreaker
	policy  *agenterr.Policy
}

// New creates a Client. Returns nil if cfg is nil (unconfigured NLU is a
// valid deployment: a UI that only sends pre-parsed token arrays never
// needs it).
func New(cfg *Config) *Client {
	if cfg == nil {
		return nil
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: agenterr.NewCircuitBreaker("nlu", agenterr.DefaultCircuitBreakerConfig()),
		policy:  agenterr.SlowPolicy(),
	}
}

// IsAvailable reports whether the client is usable.
func (c *Client) IsAvailable() bool {
	return c != nil && c.cfg.BaseURL != ""
}

// setBearerAuth attaches an Authorization header built from apiKey,
// rejecting a key that isn't a valid header field value rather than
// letting it corrupt the request. apiKey ultimately comes from
// deployment configuration, not user input, but it still crosses into a
// header the same way any other caller-supplied string would.
func setBearerAuth(req *http.Request, apiKey string) error {
	if apiKey == "" {
		return nil
	}
	value := "Bearer " + apiKey
	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("api key is not a valid header value")
	}
	req.Header.Set("Authorization", value)
	return nil
}

// Parse turns an utterance into a token/entity sequence.
func (c *Client) Parse(ctx context.Context, req ParseRequest) (*ParseResult, error) {
	if !c.IsAvailable() {
		return nil, agenterr.NewBuilder(agenterr.CodeServiceUnreachable, "NLU service not configured").
			Category(agenterr.CategoryServiceOutage).
			Build()
	}

	var result *ParseResult
	err := c.breaker.Execute(func() error {
		return agenterr.Do(ctx, c.policy, func() error {
			r, err := c.doParse(ctx, req)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	return result, err
}

func (c *Client) doParse(ctx context.Context, req ParseRequest) (*ParseResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, agenterr.Wrap(err, agenterr.CodeUnexpected, "encode parse request", agenterr.CategorySystem)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/parse", bytes.NewReader(body))
	if err != nil {
		return nil, agenterr.Wrap(err, agenterr.CodeUnexpected, "build parse request", agenterr.CategorySystem)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if err := setBearerAuth(httpReq, c.cfg.APIKey); err != nil {
		return nil, agenterr.Wrap(err, agenterr.CodeUnexpected, "invalid NLU api key", agenterr.CategorySystem)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, agenterr.NewBuilder(agenterr.CodeServiceUnreachable, err.Error()).Temporary().Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusNotFound {
		return nil, agenterr.NewBuilder(agenterr.CodeServiceUnreachable, fmt.Sprintf("NLU returned %d", resp.StatusCode)).
			Temporary().Build()
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, agenterr.NewBuilder(agenterr.CodeParseFailed, string(data)).Category(agenterr.CategoryParse).Build()
	}

	var result ParseResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, agenterr.Wrap(err, agenterr.CodeUnexpected, "decode parse response", agenterr.CategorySystem)
	}
	return &result, nil
}

// Generate renders a program result as prose.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if !c.IsAvailable() {
		return "", agenterr.NewBuilder(agenterr.CodeServiceUnreachable, "NLG service not configured").
			Category(agenterr.CategoryServiceOutage).
			Build()
	}

	var text string
	err := c.breaker.Execute(func() error {
		return agenterr.Do(ctx, c.policy, func() error {
			t, err := c.doGenerate(ctx, req)
			if err != nil {
				return err
			}
			text = t
			return nil
		})
	})
	return text, err
}

func (c *Client) doGenerate(ctx context.Context, req GenerateRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", agenterr.Wrap(err, agenterr.CodeUnexpected, "encode generate request", agenterr.CategorySystem)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return "", agenterr.Wrap(err, agenterr.CodeUnexpected, "build generate request", agenterr.CategorySystem)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if err := setBearerAuth(httpReq, c.cfg.APIKey); err != nil {
		return "", agenterr.Wrap(err, agenterr.CodeUnexpected, "invalid NLU api key", agenterr.CategorySystem)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", agenterr.NewBuilder(agenterr.CodeServiceUnreachable, err.Error()).Temporary().Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusNotFound {
		return "", agenterr.NewBuilder(agenterr.CodeServiceUnreachable, fmt.Sprintf("NLG returned %d", resp.StatusCode)).
			Temporary().Build()
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", agenterr.Wrap(err, agenterr.CodeUnexpected, "decode generate response", agenterr.CategorySystem)
	}
	return out.Text, nil
}

package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	googleai "google.golang.org/genai"

	"studio/internal/gateway"
	"studio/internal/infra"
)

const (
	defaultFastModel   = "gemini-2.5-flash"
	defaultProModel    = "gemini-2.5-pro"
	defaultTemperature = float32(0.4)
	defaultTimeout     = 120 * time.Second
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey        string
	BaseURL       string
	FastModel     string
	ProModel      string
	RatePerMinute int
	HTTPClient    *http.Client
	Logger        *infra.Logger
}

// Client sends gateway requests to Gemini through the official SDK. It is safe
// for concurrent use; every call waits on a shared rate limiter.
type Client struct {
	client    *googleai.Client
	fastModel string
	proModel  string
	limiter   *rate.Limiter
	logger    infra.Logger
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; one with a generous timeout is created.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	cfg := &googleai.ClientConfig{
		APIKey:     apiKey,
		Backend:    googleai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if base := strings.TrimRight(opts.BaseURL, "/"); base != "" {
		cfg.HTTPOptions = googleai.HTTPOptions{BaseURL: base + "/"}
	}
	sdk, err := googleai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	perMinute := opts.RatePerMinute
	if perMinute <= 0 {
		perMinute = 60
	}

	logger := infra.NopLogger()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Client{
		client:    sdk,
		fastModel: firstNonEmpty(opts.FastModel, defaultFastModel),
		proModel:  firstNonEmpty(opts.ProModel, defaultProModel),
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		logger:    infra.Component(logger, "genai"),
	}, nil
}

// Model returns the Gemini model identifier for a tier.
func (c *Client) Model(tier gateway.Tier) string {
	if tier == gateway.TierFast {
		return c.fastModel
	}
	return c.proModel
}

// Generate implements gateway.Backend.
func (c *Client) Generate(ctx context.Context, req gateway.Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}

	model := c.Model(req.Tier)
	contents := []*googleai.Content{{Role: "user", Parts: toParts(req.Parts)}}
	config := &googleai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   toSchema(req.Schema),
		Temperature:      googleai.Ptr(defaultTemperature),
	}
	if req.SystemInstruction != "" {
		config.SystemInstruction = &googleai.Content{Parts: []*googleai.Part{{Text: req.SystemInstruction}}}
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		c.logger.Warn().Err(err).Str("model", model).Str("recipe", req.Recipe).Msg("genai: generate content failed")
		return "", translateError(err)
	}

	text := responseText(resp)
	if text == "" {
		if reason := blockReason(resp); reason != "" {
			return "", &gateway.BackendError{Status: http.StatusUnprocessableEntity, Message: "The request was blocked: " + reason}
		}
	}
	return text, nil
}

func translateError(err error) error {
	var apiErr googleai.APIError
	if errors.As(err, &apiErr) {
		return &gateway.BackendError{Status: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *googleai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &gateway.BackendError{Status: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return err
}

func toParts(parts []gateway.Part) []*googleai.Part {
	out := make([]*googleai.Part, 0, len(parts))
	for _, p := range parts {
		if len(p.Data) > 0 {
			out = append(out, &googleai.Part{InlineData: &googleai.Blob{MIMEType: p.MIMEType, Data: p.Data}})
			continue
		}
		if p.Text != "" {
			out = append(out, &googleai.Part{Text: p.Text})
		}
	}
	return out
}

func toSchema(s *gateway.Schema) *googleai.Schema {
	if s == nil {
		return nil
	}
	out := &googleai.Schema{Description: s.Description}
	switch s.Type {
	case gateway.TypeString:
		out.Type = googleai.TypeString
	case gateway.TypeArray:
		out.Type = googleai.TypeArray
		out.Items = toSchema(s.Items)
		if s.MinItems > 0 {
			out.MinItems = googleai.Ptr(int64(s.MinItems))
		}
		if s.MaxItems > 0 {
			out.MaxItems = googleai.Ptr(int64(s.MaxItems))
		}
	case gateway.TypeObject:
		out.Type = googleai.TypeObject
		out.Properties = make(map[string]*googleai.Schema, len(s.Properties))
		for _, p := range s.Properties {
			out.Properties[p.Name] = toSchema(p.Schema)
			out.PropertyOrdering = append(out.PropertyOrdering, p.Name)
		}
		out.Required = s.RequiredNames()
	}
	return out
}

func responseText(resp *googleai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

func blockReason(resp *googleai.GenerateContentResponse) string {
	if resp == nil || resp.PromptFeedback == nil {
		return ""
	}
	if msg := strings.TrimSpace(resp.PromptFeedback.BlockReasonMessage); msg != "" {
		return msg
	}
	return string(resp.PromptFeedback.BlockReason)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

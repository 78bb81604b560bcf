// Package gateway packages media and instructions into schema-constrained
// requests for the generative backend and decodes the typed results.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"

	"studio/internal/domain"
	"studio/internal/infra"
)

// Tier selects the model class used for a request.
type Tier string

const (
	TierFast Tier = "fast"
	TierPro  Tier = "pro"
)

// Recipe names, also used as the GatewayError recipe.
const (
	RecipeReverseEngineer = "reverse_engineer"
	RecipeRefine          = "refine"
	RecipeImageToVideo    = "image_to_video"
	RecipeRefineVideo     = "refine_video"
	RecipeWallpaperFusion = "wallpaper_fusion"
	RecipeStockSeo        = "stock_seo"
	RecipeMarketInsights  = "market_insights"
	RecipeTranscribe      = "transcribe"
)

var fallbackMessages = map[string]string{
	RecipeReverseEngineer: "Could not analyze the uploaded media. Please try again.",
	RecipeRefine:          "Could not refine the prompt. Please try again.",
	RecipeImageToVideo:    "Could not create the video prompt. Please try again.",
	RecipeRefineVideo:     "Could not refine the video prompt. Please try again.",
	RecipeWallpaperFusion: "Could not fuse the style and subject. Please try again.",
	RecipeStockSeo:        "Could not generate stock metadata. Please try again.",
	RecipeMarketInsights:  "Could not load market insights.",
	RecipeTranscribe:      "Could not transcribe the recording.",
}

// FallbackMessage returns the user-facing message shown when the backend gave none.
func FallbackMessage(recipe string) string {
	if msg, ok := fallbackMessages[recipe]; ok {
		return msg
	}
	return "The AI service is unavailable. Please try again."
}

// Part is one content part of a request: either text or an inline payload.
type Part struct {
	Text     string
	MIMEType string
	Data     []byte
}

// TextPart builds a text part.
func TextPart(s string) Part { return Part{Text: s} }

// MediaPart converts a descriptor into a request part. Text descriptors become
// text parts.
func MediaPart(m domain.MediaDescriptor) Part {
	if m.Kind() == domain.MediaText {
		return Part{Text: m.Text()}
	}
	return Part{MIMEType: m.MIMEType(), Data: m.Data()}
}

// Request is a single backend call.
type Request struct {
	Recipe            string
	Tier              Tier
	SystemInstruction string
	Parts             []Part
	Schema            *Schema
}

// Backend sends a request and returns the raw JSON text of the reply.
type Backend interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// BackendError is returned by backends that received an error status. Message
// is the backend's own explanation, when it gave one.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// Gateway exposes one method per recipe. It holds no per-call state.
type Gateway struct {
	backend Backend
	logger  infra.Logger
	now     func() time.Time
}

// New constructs a Gateway over backend.
func New(backend Backend, logger infra.Logger) *Gateway {
	return &Gateway{
		backend: backend,
		logger:  infra.Component(logger, "gateway"),
		now:     time.Now,
	}
}

// ReverseEngineer analyzes a single image, video or text description.
func (g *Gateway) ReverseEngineer(ctx context.Context, lang language.Tag, media domain.MediaDescriptor) (domain.DirectorResult, error) {
	if media.IsZero() {
		return domain.DirectorResult{}, domain.NewValidationError("source", "upload an image, a video or a description first")
	}
	var out domain.DirectorResult
	err := g.call(ctx, Request{
		Recipe:            RecipeReverseEngineer,
		Tier:              TierPro,
		SystemInstruction: reverseEngineerInstruction(lang, media.Kind()),
		Parts:             []Part{MediaPart(media)},
		Schema:            directorSchema,
	}, &out)
	return trimDirector(out), err
}

// RefineInput carries everything a refinement call needs. Zero descriptors
// are treated as absent.
type RefineInput struct {
	Language         language.Tag
	PreviousAnalysis string
	PreviousPrompt   string
	Feedback         string
	Original         domain.MediaDescriptor
	Bad              domain.MediaDescriptor
	Extra            domain.MediaDescriptor
}

// Refine rewrites an image-phase result using feedback and an optional bad example.
func (g *Gateway) Refine(ctx context.Context, in RefineInput) (domain.DirectorResult, error) {
	parts := []Part{TextPart(previousResultText(in.PreviousAnalysis, in.PreviousPrompt, in.Feedback))}
	parts = appendLabeled(parts, "Original reference:", in.Original)
	parts = appendLabeled(parts, "Unsatisfactory result to move away from:", in.Bad)
	parts = appendLabeled(parts, "Additional context:", in.Extra)

	var out domain.DirectorResult
	err := g.call(ctx, Request{
		Recipe:            RecipeRefine,
		Tier:              TierPro,
		SystemInstruction: refineInstruction(in.Language, !in.Bad.IsZero()),
		Parts:             parts,
		Schema:            refineSchema,
	}, &out)
	out.Title = ""
	return trimDirector(out), err
}

// VideoInput carries the inputs of both video-phase recipes.
type VideoInput struct {
	Language         language.Tag
	Original         domain.MediaDescriptor
	Good             domain.MediaDescriptor
	PreviousAnalysis string
	PreviousPrompt   string
	Feedback         string
	Bad              domain.MediaDescriptor
}

// ImageToVideo turns a confirmed still into a motion prompt.
func (g *Gateway) ImageToVideo(ctx context.Context, in VideoInput) (domain.DirectorResult, error) {
	if in.Good.Kind() != domain.MediaImage {
		return domain.DirectorResult{}, domain.NewValidationError("good", "a confirmed image is required")
	}
	var parts []Part
	parts = appendLabeled(parts, "Original reference:", in.Original)
	parts = appendLabeled(parts, "Confirmed still image to animate:", in.Good)

	var out domain.DirectorResult
	err := g.call(ctx, Request{
		Recipe:            RecipeImageToVideo,
		Tier:              TierPro,
		SystemInstruction: imageToVideoInstruction(in.Language),
		Parts:             parts,
		Schema:            refineSchema,
	}, &out)
	return trimDirector(out), err
}

// RefineVideo rewrites a video-phase result.
func (g *Gateway) RefineVideo(ctx context.Context, in VideoInput) (domain.DirectorResult, error) {
	parts := []Part{TextPart(previousResultText(in.PreviousAnalysis, in.PreviousPrompt, in.Feedback))}
	parts = appendLabeled(parts, "Original reference:", in.Original)
	parts = appendLabeled(parts, "Confirmed still image:", in.Good)
	parts = appendLabeled(parts, "Unsatisfactory video to move away from:", in.Bad)

	var out domain.DirectorResult
	err := g.call(ctx, Request{
		Recipe:            RecipeRefineVideo,
		Tier:              TierPro,
		SystemInstruction: refineVideoInstruction(in.Language, !in.Bad.IsZero()),
		Parts:             parts,
		Schema:            refineSchema,
	}, &out)
	out.Title = ""
	return trimDirector(out), err
}

// FusionInput describes a wallpaper fusion. Exactly one of StyleMedia and
// StyleText is expected.
type FusionInput struct {
	Language    language.Tag
	StyleMedia  domain.MediaDescriptor
	StyleText   string
	Subject     domain.MediaDescriptor
	Requirement string
}

// WallpaperFusion blends a style source with an optional subject.
func (g *Gateway) WallpaperFusion(ctx context.Context, in FusionInput) (domain.DirectorResult, error) {
	var parts []Part
	switch {
	case !in.StyleMedia.IsZero():
		parts = appendLabeled(parts, "Style source:", in.StyleMedia)
	case strings.TrimSpace(in.StyleText) != "":
		parts = append(parts, TextPart("Style source description:\n"+strings.TrimSpace(in.StyleText)))
	default:
		return domain.DirectorResult{}, domain.NewValidationError("style", "choose a style image or a saved style")
	}
	parts = appendLabeled(parts, "Subject:", in.Subject)
	if req := strings.TrimSpace(in.Requirement); req != "" {
		parts = append(parts, TextPart("Additional requirement:\n"+req))
	}

	var out domain.DirectorResult
	err := g.call(ctx, Request{
		Recipe:            RecipeWallpaperFusion,
		Tier:              TierPro,
		SystemInstruction: wallpaperFusionInstruction(in.Language, !in.Subject.IsZero()),
		Parts:             parts,
		Schema:            directorSchema,
	}, &out)
	return trimDirector(out), err
}

// StockSeo produces English stock-site metadata for a media item or description.
func (g *Gateway) StockSeo(ctx context.Context, source domain.MediaDescriptor) (domain.StockSeoResult, error) {
	if source.IsZero() {
		return domain.StockSeoResult{}, domain.NewValidationError("source", "upload an image, a video or a description first")
	}
	var out domain.StockSeoResult
	err := g.call(ctx, Request{
		Recipe:            RecipeStockSeo,
		Tier:              TierPro,
		SystemInstruction: stockSeoInstruction(source.Kind()),
		Parts:             []Part{MediaPart(source)},
		Schema:            stockSeoSchema,
	}, &out)
	if err != nil {
		return domain.StockSeoResult{}, err
	}
	for i := range out.Titles {
		out.Titles[i] = strings.TrimSpace(out.Titles[i])
	}
	out.BestTitle = strings.TrimSpace(out.BestTitle)
	out.Keywords = strings.TrimSpace(out.Keywords)
	if n := KeywordCount(out.Keywords); n < 35 || n > 50 {
		g.logger.Debug().Int("keywords", n).Msg("stock seo keyword count outside 35-50")
	}
	return out, nil
}

// MarketInsights fetches a market snapshot for the current date.
func (g *Gateway) MarketInsights(ctx context.Context, lang language.Tag) (domain.MarketInsight, error) {
	now := g.now()
	var out domain.MarketInsight
	err := g.call(ctx, Request{
		Recipe:            RecipeMarketInsights,
		Tier:              TierFast,
		SystemInstruction: marketInsightsInstruction(lang, now),
		Parts:             []Part{TextPart("Today is " + now.Format("2006-01-02") + ".")},
		Schema:            marketInsightSchema,
	}, &out)
	if err != nil {
		return domain.MarketInsight{}, err
	}
	out.FetchedAt = now.UTC()
	return out, nil
}

// Transcribe converts a recorded audio chunk to text.
func (g *Gateway) Transcribe(ctx context.Context, lang language.Tag, mimeType string, audio []byte) (string, error) {
	if len(audio) == 0 {
		return "", domain.NewValidationError("audio", "recording is empty")
	}
	var out struct {
		Text string `json:"text"`
	}
	err := g.call(ctx, Request{
		Recipe:            RecipeTranscribe,
		Tier:              TierFast,
		SystemInstruction: transcribeInstruction(lang),
		Parts:             []Part{{MIMEType: mimeType, Data: audio}},
		Schema:            transcriptSchema,
	}, &out)
	return strings.TrimSpace(out.Text), err
}

// KeywordCount counts the non-empty terms of a comma separated keyword string.
func KeywordCount(keywords string) int {
	n := 0
	for _, k := range strings.Split(keywords, ",") {
		if strings.TrimSpace(k) != "" {
			n++
		}
	}
	return n
}

func (g *Gateway) call(ctx context.Context, req Request, out any) error {
	start := time.Now()
	raw, err := g.backend.Generate(ctx, req)
	event := g.logger.Debug().
		Str("recipe", req.Recipe).
		Str("tier", string(req.Tier)).
		Int("parts", len(req.Parts)).
		Dur("latency", time.Since(start))
	if err != nil {
		event.Err(err).Msg("gateway call failed")
		return &domain.GatewayError{Recipe: req.Recipe, Message: userMessage(req.Recipe, err), Err: err}
	}
	event.Msg("gateway call")

	body := cleanJSON(raw)
	if body == "" {
		return gatewayFailure(req.Recipe, errors.New("empty response"))
	}
	var generic any
	if err := json.Unmarshal([]byte(body), &generic); err != nil {
		return gatewayFailure(req.Recipe, fmt.Errorf("decode response: %w", err))
	}
	if req.Schema != nil {
		if err := req.Schema.Validate(generic); err != nil {
			return gatewayFailure(req.Recipe, fmt.Errorf("schema v%s: %w", SchemaVersion, err))
		}
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		return gatewayFailure(req.Recipe, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func gatewayFailure(recipe string, err error) error {
	return &domain.GatewayError{Recipe: recipe, Message: FallbackMessage(recipe), Err: err}
}

func userMessage(recipe string, err error) string {
	var be *BackendError
	if errors.As(err, &be) && strings.TrimSpace(be.Message) != "" {
		return strings.TrimSpace(be.Message)
	}
	return FallbackMessage(recipe)
}

// cleanJSON strips a markdown fence some models wrap around JSON replies.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func trimDirector(r domain.DirectorResult) domain.DirectorResult {
	r.Title = strings.TrimSpace(r.Title)
	r.Analysis = strings.TrimSpace(r.Analysis)
	r.Prompt = strings.TrimSpace(r.Prompt)
	return r
}

func appendLabeled(parts []Part, label string, m domain.MediaDescriptor) []Part {
	if m.IsZero() {
		return parts
	}
	return append(parts, TextPart(label), MediaPart(m))
}

func previousResultText(analysis, prompt, feedback string) string {
	var b strings.Builder
	b.WriteString("Previous analysis:\n")
	b.WriteString(strings.TrimSpace(analysis))
	if p := strings.TrimSpace(prompt); p != "" {
		b.WriteString("\n\nPrevious prompt:\n")
		b.WriteString(p)
	}
	if f := strings.TrimSpace(feedback); f != "" {
		b.WriteString("\n\nUser feedback:\n")
		b.WriteString(f)
	}
	return b.String()
}

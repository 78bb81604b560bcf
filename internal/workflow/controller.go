package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/language"

	"studio/internal/domain"
	"studio/internal/gateway"
	"studio/internal/infra"
)

// Gateway is the subset of the AI gateway the workflow calls.
type Gateway interface {
	ReverseEngineer(ctx context.Context, lang language.Tag, media domain.MediaDescriptor) (domain.DirectorResult, error)
	Refine(ctx context.Context, in gateway.RefineInput) (domain.DirectorResult, error)
	ImageToVideo(ctx context.Context, in gateway.VideoInput) (domain.DirectorResult, error)
	RefineVideo(ctx context.Context, in gateway.VideoInput) (domain.DirectorResult, error)
	WallpaperFusion(ctx context.Context, in gateway.FusionInput) (domain.DirectorResult, error)
	StockSeo(ctx context.Context, source domain.MediaDescriptor) (domain.StockSeoResult, error)
}

// call is a dispatched action with its inputs captured, so a retry replays
// exactly the same request.
type call struct {
	action Action
	exec   func(ctx context.Context) (Result, error)
	commit func(s State, r Result) State
}

// Controller serializes one workflow's actions. At most one gateway call is in
// flight; a second action while busy fails with domain.ErrBusy.
type Controller struct {
	mu      sync.Mutex
	state   State
	gateway Gateway
	failed  *call
	release func(handles []string)
	logger  infra.Logger
}

// NewController creates a controller starting from initial.
func NewController(gw Gateway, initial State, logger infra.Logger) *Controller {
	return &Controller{gateway: gw, state: initial, logger: infra.Component(logger, "workflow")}
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnRelease registers fn to receive the preview handles of media the state no
// longer references. fn runs after the controller lock is released.
func (c *Controller) OnRelease(fn func(handles []string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.release = fn
}

// Discard releases every preview the state still references. It is called
// when the owning session ends.
func (c *Controller) Discard() {
	c.mu.Lock()
	handles, fn := c.state.Inputs.Previews(), c.release
	c.mu.Unlock()
	if fn != nil && len(handles) > 0 {
		fn(handles)
	}
}

// Update applies a pure transition to the idle state. Transitions that fail
// leave the state unchanged.
func (c *Controller) Update(fn func(State) (State, error)) (State, error) {
	c.mu.Lock()
	if c.state.Loading {
		state := c.state
		c.mu.Unlock()
		return state, domain.ErrBusy
	}
	next, err := fn(c.state)
	if err != nil {
		state := c.state
		c.mu.Unlock()
		return state, err
	}
	if next.Mode != c.state.Mode || next.Phase != c.state.Phase {
		c.failed = nil
	}
	release := c.setLocked(next)
	state := c.state
	c.mu.Unlock()
	release()
	return state, nil
}

// setLocked replaces the state. The returned func hands the previews the new
// state dropped to the release hook and must run without the lock.
func (c *Controller) setLocked(next State) func() {
	keep := map[string]bool{}
	for _, h := range next.Inputs.Previews() {
		keep[h] = true
	}
	var dropped []string
	for _, h := range c.state.Inputs.Previews() {
		if !keep[h] {
			dropped = append(dropped, h)
		}
	}
	c.state = next
	fn := c.release
	if fn == nil || len(dropped) == 0 {
		return func() {}
	}
	return func() { fn(dropped) }
}

// ForgetStyle drops a deleted saved style from the inputs. It applies even
// while a call is in flight since calls capture their inputs up front.
func (c *Controller) ForgetStyle(id string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != "" && c.state.Inputs.StyleID == id {
		c.state = c.state.ClearStyle(id)
	}
	return c.state
}

// Reset returns the workflow to the image-prompt phase with nothing attached.
func (c *Controller) Reset() (State, error) {
	c.mu.Lock()
	if c.state.Loading {
		state := c.state
		c.mu.Unlock()
		return state, domain.ErrBusy
	}
	release := c.setLocked(c.state.Reset())
	c.failed = nil
	state := c.state
	c.mu.Unlock()
	release()
	return state, nil
}

// Generate runs the first director call: wallpaper fusion when a style source
// is attached, else a reverse-engineer of the source.
func (c *Controller) Generate(ctx context.Context) (State, error) {
	return c.dispatch(ctx, func(s State) (*call, error) {
		if s.Mode != ModeDirector {
			return nil, domain.NewValidationError("mode", "switch to director mode to generate prompts")
		}
		if s.Phase != PhaseImagePrompt {
			return nil, ErrResetRequired
		}
		in, lang := s.Inputs, s.Language
		var origin StyleOrigin
		var exec func(ctx context.Context) (domain.DirectorResult, error)
		switch {
		case in.hasStyle():
			origin = StyleOrigin{StyleID: in.StyleID, Image: in.StyleImage}
			subject := in.Subject
			if subject.IsZero() {
				subject = in.Source
			}
			fusion := gateway.FusionInput{
				Language:    lang,
				StyleMedia:  in.StyleImage,
				StyleText:   in.StyleText,
				Subject:     subject,
				Requirement: in.Requirement,
			}
			exec = func(ctx context.Context) (domain.DirectorResult, error) {
				return c.gateway.WallpaperFusion(ctx, fusion)
			}
		case !in.Source.IsZero():
			source := in.Source
			exec = func(ctx context.Context) (domain.DirectorResult, error) {
				return c.gateway.ReverseEngineer(ctx, lang, source)
			}
		default:
			return nil, domain.NewValidationError("source", "upload an image, a video or a description first")
		}
		return &call{
			action: ActionGenerate,
			exec:   directorExec(exec),
			commit: func(s State, r Result) State {
				s.Result = r
				s.Origin = origin
				return s
			},
		}, nil
	})
}

// Refine rewrites the active director result. It needs non-blank feedback or
// a bad result of the phase's media kind; on success both are cleared.
func (c *Controller) Refine(ctx context.Context) (State, error) {
	return c.dispatch(ctx, func(s State) (*call, error) {
		prev, ok := s.Result.Director()
		if !ok {
			return nil, domain.ErrNoResult
		}
		feedback := strings.TrimSpace(s.Inputs.Feedback)
		bad := s.phaseBad()
		if feedback == "" && bad.IsZero() {
			return nil, domain.NewValidationError("feedback", "describe what to change or attach a bad result")
		}

		var exec func(ctx context.Context) (domain.DirectorResult, error)
		if s.Phase == PhaseVideoPrompt {
			in := gateway.VideoInput{
				Language:         s.Language,
				Original:         s.Inputs.original(),
				Good:             s.Inputs.Good,
				PreviousAnalysis: prev.Analysis,
				PreviousPrompt:   prev.Prompt,
				Feedback:         feedback,
				Bad:              bad,
			}
			exec = func(ctx context.Context) (domain.DirectorResult, error) {
				return c.gateway.RefineVideo(ctx, in)
			}
		} else {
			in := gateway.RefineInput{
				Language:         s.Language,
				PreviousAnalysis: prev.Analysis,
				PreviousPrompt:   prev.Prompt,
				Feedback:         feedback,
				Original:         s.Inputs.original(),
				Bad:              bad,
				Extra:            s.Inputs.Extra,
			}
			exec = func(ctx context.Context) (domain.DirectorResult, error) {
				return c.gateway.Refine(ctx, in)
			}
		}
		return &call{
			action: ActionRefine,
			exec:   directorExec(exec),
			commit: func(s State, r Result) State {
				s.Result = r
				s.Inputs.Feedback = ""
				s.Inputs.Bad = domain.MediaDescriptor{}
				return s
			},
		}, nil
	})
}

// Advance moves from image-prompt to video-prompt using the confirmed image.
func (c *Controller) Advance(ctx context.Context) (State, error) {
	return c.dispatch(ctx, func(s State) (*call, error) {
		if s.Phase != PhaseImagePrompt {
			return nil, ErrResetRequired
		}
		if _, ok := s.Result.Director(); !ok {
			return nil, domain.ErrNoResult
		}
		if s.Inputs.Good.Kind() != domain.MediaImage {
			return nil, domain.NewValidationError("good", "attach the image you are happy with first")
		}
		in := gateway.VideoInput{
			Language: s.Language,
			Original: s.Inputs.original(),
			Good:     s.Inputs.Good,
		}
		return &call{
			action: ActionAdvance,
			exec: directorExec(func(ctx context.Context) (domain.DirectorResult, error) {
				return c.gateway.ImageToVideo(ctx, in)
			}),
			commit: func(s State, r Result) State {
				s.Result = r
				s.Phase = PhaseVideoPrompt
				s.Inputs.Feedback = ""
				s.Inputs.Bad = domain.MediaDescriptor{}
				return s
			},
		}, nil
	})
}

// GenerateSeo produces stock metadata for the source in stock-seo mode.
func (c *Controller) GenerateSeo(ctx context.Context) (State, error) {
	return c.dispatch(ctx, func(s State) (*call, error) {
		if s.Mode != ModeStockSeo {
			return nil, domain.NewValidationError("mode", "switch to stock-seo mode to generate metadata")
		}
		source := s.Inputs.Source
		if source.IsZero() {
			return nil, domain.NewValidationError("source", "upload an image, a video or a description first")
		}
		return &call{
			action: ActionSeo,
			exec: func(ctx context.Context) (Result, error) {
				res, err := c.gateway.StockSeo(ctx, source)
				if err != nil {
					return Result{}, err
				}
				return SeoOutcome(res), nil
			},
			commit: func(s State, r Result) State {
				s.Result = r
				s.Origin = StyleOrigin{}
				return s
			},
		}, nil
	})
}

// Retry re-issues the last failed action with the inputs it was issued with.
func (c *Controller) Retry(ctx context.Context) (State, error) {
	return c.dispatch(ctx, func(s State) (*call, error) {
		if c.failed == nil {
			return nil, domain.ErrNoLastAction
		}
		return c.failed, nil
	})
}

// ErrResetRequired is returned for actions the current phase does not allow.
var ErrResetRequired = fmt.Errorf("%w: reset the workflow to start a new image prompt", domain.ErrInvalidTransition)

func (c *Controller) dispatch(ctx context.Context, plan func(State) (*call, error)) (State, error) {
	c.mu.Lock()
	if c.state.Loading {
		state := c.state
		c.mu.Unlock()
		return state, domain.ErrBusy
	}
	cl, err := plan(c.state)
	if err != nil {
		state := c.state
		c.mu.Unlock()
		return state, err
	}
	c.state.Loading = true
	c.state.LastAction = cl.action
	c.mu.Unlock()

	res, err := cl.exec(ctx)

	c.mu.Lock()
	c.state.Loading = false
	if err != nil {
		c.state.LastError = userMessage(err)
		c.failed = cl
		state := c.state
		c.mu.Unlock()
		c.logger.Warn().Err(err).Str("action", string(cl.action)).Msg("workflow action failed")
		return state, err
	}
	next := cl.commit(c.state, res)
	next.LastError = ""
	release := c.setLocked(next)
	c.failed = nil
	state := c.state
	c.mu.Unlock()
	release()
	return state, nil
}

func directorExec(fn func(ctx context.Context) (domain.DirectorResult, error)) func(ctx context.Context) (Result, error) {
	return func(ctx context.Context) (Result, error) {
		res, err := fn(ctx)
		if err != nil {
			return Result{}, err
		}
		return DirectorOutcome(res), nil
	}
}

func userMessage(err error) string {
	var gerr *domain.GatewayError
	if errors.As(err, &gerr) {
		return gerr.Message
	}
	return err.Error()
}

// Package analysis runs a photo through the model and turns the reply into validated
// trait scores. It owns the retry policy and the concurrency limits around model calls;
// extraction and validation themselves stay pure.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/trait-scorer/internal/db"
	"github.com/jonathan/trait-scorer/internal/extract"
	"github.com/jonathan/trait-scorer/internal/imaging"
	"github.com/jonathan/trait-scorer/internal/llm"
	"github.com/jonathan/trait-scorer/internal/profiles"
	"github.com/jonathan/trait-scorer/internal/prompts"
	"github.com/jonathan/trait-scorer/internal/scoring"
	"github.com/jonathan/trait-scorer/internal/traits"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	// ErrUnknownProfile is returned for a profile name the registry does not hold.
	ErrUnknownProfile = errors.New("unknown profile")
	// ErrNotScored is returned when a free-text profile is used for region scoring.
	ErrNotScored = errors.New("profile does not score regions")
	// ErrNoImages is returned when a model request carries no image.
	ErrNoImages = errors.New("at least one image is required")
)

// Recorder persists finished analyses.
type Recorder interface {
	RecordAnalysis(ctx context.Context, a *db.Analysis) error
}

// Options tunes the service.
type Options struct {
	// MaxAttempts bounds model calls per scoring request. Only extraction and
	// validation failures are retried.
	MaxAttempts int
	// MaxConcurrent bounds model calls in flight across all requests.
	MaxConcurrent int64
	// CallInterval paces model calls. Zero disables pacing.
	CallInterval time.Duration

	ScoringTier        llm.ModelTier
	ReportTier         llm.ModelTier
	ClassificationTier llm.ModelTier
}

// DefaultOptions returns the options used by the server.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:        2,
		MaxConcurrent:      4,
		ScoringTier:        llm.TierStandard,
		ReportTier:         llm.TierLite,
		ClassificationTier: llm.TierLite,
	}
}

// Request asks for one profile to be scored from the given images.
type Request struct {
	Profile string
	Images  []imaging.Image
	// Report requests a narrative report once the scores validate.
	Report bool
}

// Outcome is the result of one scoring, classification or evaluation run.
// On failure it still carries the raw reply and whatever could be validated.
type Outcome struct {
	ID             uuid.UUID                `json:"id"`
	Profile        string                   `json:"profile"`
	Model          string                   `json:"model,omitempty"`
	Status         string                   `json:"status"`
	Attempts       int                      `json:"attempts"`
	Result         *scoring.ValidatedResult `json:"result,omitempty"`
	Summary        *Summary                 `json:"summary,omitempty"`
	Partial        *scoring.ValidatedResult `json:"partial,omitempty"`
	Violations     []scoring.Violation      `json:"violations,omitempty"`
	Classification string                   `json:"tipo_carater,omitempty"`
	Report         string                   `json:"report,omitempty"`
	ReportError    string                   `json:"report_error,omitempty"`
	Raw            string                   `json:"raw_response,omitempty"`
}

// Service scores photos against the configured profiles.
type Service struct {
	client    llm.Client
	registry  *profiles.Registry
	catalog   *traits.Catalog
	extractor *extract.Extractor
	recorder  Recorder
	logger    *zap.Logger
	opts      Options

	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// New creates a Service. client may be nil when only Evaluate is used.
func New(client llm.Client, registry *profiles.Registry, catalog *traits.Catalog, opts Options, logger *zap.Logger) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if opts.ScoringTier == "" {
		opts.ScoringTier = llm.TierStandard
	}
	if opts.ReportTier == "" {
		opts.ReportTier = llm.TierLite
	}
	if opts.ClassificationTier == "" {
		opts.ClassificationTier = llm.TierLite
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		client:    client,
		registry:  registry,
		catalog:   catalog,
		extractor: extract.New(),
		logger:    logger,
		opts:      opts,
		sem:       semaphore.NewWeighted(opts.MaxConcurrent),
	}
	if opts.CallInterval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(opts.CallInterval), 1)
	}
	return s
}

// SetRecorder makes the service persist every model-backed outcome.
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// Profiles returns the registry the service scores against.
func (s *Service) Profiles() *profiles.Registry {
	return s.registry
}

// Options returns the settings the service runs with, defaults applied.
func (s *Service) Options() Options {
	return s.opts
}

// Catalog returns the trait descriptions used in prompts.
func (s *Service) Catalog() *traits.Catalog {
	return s.catalog
}

// Score asks the model to score req.Images and validates the reply. A reply that
// cannot be extracted or validated is retried up to MaxAttempts. On failure the
// returned Outcome is still populated and the error is the last
// *extract.ExtractionError, *scoring.ValidationError or *llm.APICallError.
func (s *Service) Score(ctx context.Context, req Request) (*Outcome, error) {
	schema, err := s.scoredSchema(req.Profile)
	if err != nil {
		return nil, err
	}
	if len(req.Images) == 0 {
		return nil, ErrNoImages
	}

	prompt, err := prompts.BuildScoringPrompt(schema, s.catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to build scoring prompt: %w", err)
	}

	out := &Outcome{ID: uuid.New(), Profile: schema.Name, Model: s.client.GetModel(s.opts.ScoringTier)}
	log := s.logger.With(zap.String("analysis_id", out.ID.String()), zap.String("profile", schema.Name))

	var lastErr error
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		out.Attempts = attempt

		raw, err := s.call(ctx, func(ctx context.Context) (string, error) {
			return s.client.GenerateFromImages(ctx, prompt.System, prompt.Text(), req.Images, s.opts.ScoringTier)
		})
		if err != nil {
			out.Status = db.StatusModelFailed
			lastErr = err
			log.Warn("model call failed", zap.Int("attempt", attempt), zap.Error(err))
			break
		}

		lastErr = s.evaluate(schema, raw, out)
		if lastErr == nil {
			break
		}
		log.Warn("model reply rejected",
			zap.Int("attempt", attempt),
			zap.String("status", out.Status),
			zap.Error(lastErr),
		)
	}

	if lastErr == nil {
		log.Info("analysis scored",
			zap.Int("attempts", out.Attempts),
			zap.String("dominant", out.Summary.Dominant),
		)
		if req.Report {
			s.report(ctx, out, log)
		}
	}

	s.record(ctx, out, lastErr)
	return out, lastErr
}

// Evaluate runs a reply already obtained from the model through extraction and
// validation. Nothing is recorded.
func (s *Service) Evaluate(profile, raw string) (*Outcome, error) {
	schema, err := s.scoredSchema(profile)
	if err != nil {
		return nil, err
	}

	out := &Outcome{ID: uuid.New(), Profile: schema.Name}
	return out, s.evaluate(schema, raw, out)
}

// Classify asks the model for a free-text classification of the dominant character
// type. The reply is not parsed.
func (s *Service) Classify(ctx context.Context, images []imaging.Image) (*Outcome, error) {
	schema, ok := s.registry.Get(profiles.Classification)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfile, profiles.Classification)
	}
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	prompt, err := prompts.BuildClassificationPrompt(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to build classification prompt: %w", err)
	}

	out := &Outcome{
		ID:       uuid.New(),
		Profile:  schema.Name,
		Model:    s.client.GetModel(s.opts.ClassificationTier),
		Attempts: 1,
	}
	text, err := s.call(ctx, func(ctx context.Context) (string, error) {
		return s.client.GenerateFromImages(ctx, prompt.System, prompt.Text(), images, s.opts.ClassificationTier)
	})
	if err != nil {
		out.Status = db.StatusModelFailed
	} else {
		out.Status = db.StatusClassified
		out.Classification = text
		out.Raw = text
	}

	s.record(ctx, out, err)
	return out, err
}

func (s *Service) scoredSchema(name string) (scoring.TraitSchema, error) {
	schema, ok := s.registry.Get(name)
	if !ok {
		return scoring.TraitSchema{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	if !schema.Scored() {
		return scoring.TraitSchema{}, fmt.Errorf("%w: %s", ErrNotScored, name)
	}
	return schema, nil
}

// evaluate fills out from raw and returns the extraction or validation error, if any.
func (s *Service) evaluate(schema scoring.TraitSchema, raw string, out *Outcome) error {
	out.Raw = raw
	out.Result, out.Summary, out.Partial, out.Violations = nil, nil, nil, nil

	payload, err := s.extractor.Extract(raw)
	if err != nil {
		out.Status = db.StatusExtractionFailed
		return err
	}

	result, err := scoring.Validate(payload, schema)
	if err != nil {
		out.Status = db.StatusValidationFailed
		var validationErr *scoring.ValidationError
		if errors.As(err, &validationErr) {
			out.Partial = validationErr.Partial
			out.Violations = validationErr.Violations
		}
		return err
	}

	summary := Summarize(result)
	out.Status = db.StatusScored
	out.Result = result
	out.Summary = &summary
	return nil
}

// call runs fn once a concurrency slot is free and the pacing limiter allows it.
func (s *Service) call(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer s.sem.Release(1)

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	return fn(ctx)
}

// report adds the narrative report. Failures are kept on the outcome only.
func (s *Service) report(ctx context.Context, out *Outcome, log *zap.Logger) {
	prompt, err := prompts.BuildReportPrompt(out.Result)
	if err != nil {
		out.ReportError = err.Error()
		return
	}

	text, err := s.call(ctx, func(ctx context.Context) (string, error) {
		return s.client.GenerateContent(ctx, prompt.System, prompt.User, s.opts.ReportTier)
	})
	if err != nil {
		out.ReportError = err.Error()
		log.Warn("report generation failed", zap.Error(err))
		return
	}
	out.Report = text
}

// record stores the outcome when a recorder is configured. Errors are logged.
func (s *Service) record(ctx context.Context, out *Outcome, cause error) {
	if s.recorder == nil {
		return
	}

	a, err := toRecord(out, cause)
	if err == nil {
		err = s.recorder.RecordAnalysis(context.WithoutCancel(ctx), a)
	}
	if err != nil {
		s.logger.Error("failed to record analysis",
			zap.String("analysis_id", out.ID.String()),
			zap.Error(err),
		)
	}
}

func toRecord(out *Outcome, cause error) (*db.Analysis, error) {
	a := &db.Analysis{
		ID:          out.ID,
		Profile:     out.Profile,
		Model:       out.Model,
		Status:      out.Status,
		Attempts:    out.Attempts,
		RawResponse: out.Raw,
		Report:      out.Report,
	}
	if cause != nil {
		a.Error = cause.Error()
	}

	var result any
	switch {
	case out.Result != nil:
		result = out.Result
	case out.Partial != nil:
		result = out.Partial
	case out.Classification != "":
		result = map[string]string{"tipo_carater": out.Classification}
	}
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		a.Result = data
	}
	if len(out.Violations) > 0 {
		data, err := json.Marshal(out.Violations)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal violations: %w", err)
		}
		a.Violations = data
	}
	return a, nil
}

// Package pipeline runs the fetch, parse and persist cycle over pending items.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/podcast-ingest/internal/dispatcher"
	"github.com/JakeFAU/podcast-ingest/internal/headers"
	"github.com/JakeFAU/podcast-ingest/internal/metrics"
	"github.com/JakeFAU/podcast-ingest/internal/spotify"
	"github.com/JakeFAU/podcast-ingest/internal/store"
	"github.com/JakeFAU/podcast-ingest/internal/transport"
)

var (
	// ErrPersistence marks a database failure; it aborts the whole run.
	ErrPersistence = errors.New("persistence failure")
	// ErrAuthAbort marks a run stopped because the credentials were rejected
	// before any upstream call succeeded.
	ErrAuthAbort = errors.New("upstream rejected credentials")
	// ErrNoProfile is returned by LookupShow when the show has no name or publisher.
	ErrNoProfile = errors.New("no profile data returned")
)

var tracer = otel.Tracer("github.com/JakeFAU/podcast-ingest/internal/pipeline")

// Item outcomes reported to metrics.
const (
	outcomeSaved     = "saved"
	outcomeDuplicate = "duplicate"
	outcomeEmpty     = "empty"
	outcomeInvalid   = "invalid"
	outcomeFailed    = "failed"
)

// Options tunes a pipeline.
type Options struct {
	// Concurrency is the number of items processed at once; 1 is sequential.
	Concurrency int
	// AbortOnAuthError stops the run when credentials are rejected before
	// any upstream call succeeded.
	AbortOnAuthError bool
	// MaxEpisodeLookups caps the episodes tried for a description; 0 tries all.
	MaxEpisodeLookups int
	// EpisodeLinks merges links found in the episode description.
	EpisodeLinks bool
	// Topic receives a notification per saved record when set.
	Topic string
}

// Deps are the collaborators of a pipeline. Archive, Publisher, Clock,
// Hasher and IDs are optional.
type Deps struct {
	Sender    transport.Sender
	Store     Store
	Builder   spotify.Builder
	Headers   headers.Set
	Denylist  spotify.Denylist
	Archive   BlobStore
	Publisher Publisher
	Clock     Clock
	Hasher    Hasher
	IDs       IDGenerator
	Logger    *zap.Logger
}

// Summary counts what a run did.
type Summary struct {
	RunID      string
	Variant    string
	Pending    int
	Saved      int
	Duplicates int
	Empty      int
	Invalid    int
	Failed     int
	Duration   time.Duration
}

// Pipeline processes pending items for one variant at a time.
type Pipeline struct {
	deps   Deps
	opts   Options
	logger *zap.Logger
}

// New validates deps and returns a Pipeline.
func New(deps Deps, opts Options) (*Pipeline, error) {
	if deps.Sender == nil {
		return nil, errors.New("sender is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = utcClock{}
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.MaxEpisodeLookups < 0 {
		opts.MaxEpisodeLookups = 0
	}
	return &Pipeline{deps: deps, opts: opts, logger: deps.Logger.Named("pipeline")}, nil
}

type runState struct {
	id        string
	variant   Variant
	succeeded atomic.Bool

	saved      atomic.Int64
	duplicates atomic.Int64
	empty      atomic.Int64
	invalid    atomic.Int64
	failed     atomic.Int64
}

func (s *runState) count(outcome string) {
	switch outcome {
	case outcomeSaved:
		s.saved.Add(1)
	case outcomeDuplicate:
		s.duplicates.Add(1)
	case outcomeEmpty:
		s.empty.Add(1)
	case outcomeInvalid:
		s.invalid.Add(1)
	case outcomeFailed:
		s.failed.Add(1)
	}
	metrics.ObserveItem(s.variant.Name, outcome)
}

// Run migrates the variant's table, loads pending items and processes each
// one. Item failures are logged and counted; only header validation, schema,
// persistence and auth-abort failures are returned.
func (p *Pipeline) Run(ctx context.Context, v Variant) (Summary, error) {
	started := p.deps.Clock.Now()
	state := &runState{id: p.newRunID(), variant: v}
	logger := p.logger.With(zap.String("run_id", state.id), zap.String("variant", v.Name))

	ctx, span := tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run.id", state.id),
		attribute.String("run.variant", v.Name),
	))
	defer span.End()

	summary, err := p.run(ctx, logger, state)
	span.SetAttributes(attribute.Int("run.pending", summary.Pending))
	summary.Duration = p.deps.Clock.Now().Sub(started)

	status := "succeeded"
	if err != nil {
		status = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("run failed", zap.Error(err))
	} else {
		logger.Info("run finished",
			zap.Int("pending", summary.Pending),
			zap.Int("saved", summary.Saved),
			zap.Int("duplicates", summary.Duplicates),
			zap.Int("empty", summary.Empty),
			zap.Int("invalid", summary.Invalid),
			zap.Int("failed", summary.Failed),
			zap.Duration("duration", summary.Duration),
		)
	}
	metrics.ObserveRun(v.Name, status)
	return summary, err
}

func (p *Pipeline) run(ctx context.Context, logger *zap.Logger, state *runState) (Summary, error) {
	v := state.variant
	summary := Summary{RunID: state.id, Variant: v.Name}
	if p.deps.Store == nil {
		return summary, errors.New("store is required")
	}
	if err := p.deps.Headers.Validate(); err != nil {
		return summary, err
	}
	if err := p.deps.Store.EnsureSchema(ctx, v.Table); err != nil {
		return summary, err
	}
	items, err := p.deps.Store.FetchPending(ctx, v.Table)
	if err != nil {
		return summary, err
	}
	summary.Pending = len(items)
	if len(items) == 0 {
		logger.Warn(fmt.Sprintf("No %s found to process.", v.plural(0)))
		return summary, nil
	}
	logger.Info(fmt.Sprintf("Processing %d %s.", len(items), v.plural(len(items))))

	runErr := dispatcher.Run(ctx, items, p.opts.Concurrency, func(ctx context.Context, item store.PendingItem) error {
		return p.handleItem(ctx, logger, state, item)
	})

	summary.Saved = int(state.saved.Load())
	summary.Duplicates = int(state.duplicates.Load())
	summary.Empty = int(state.empty.Load())
	summary.Invalid = int(state.invalid.Load())
	summary.Failed = int(state.failed.Load())
	return summary, runErr
}

// handleItem is the item boundary: anything but a persistence failure, an
// auth abort or cancellation is logged and swallowed.
func (p *Pipeline) handleItem(ctx context.Context, logger *zap.Logger, state *runState, item store.PendingItem) error {
	ctx, span := tracer.Start(ctx, "pipeline.item", trace.WithAttributes(attribute.String("item.value", item.Value)))
	defer span.End()

	var (
		outcome string
		err     error
	)
	switch state.variant.Kind {
	case spotify.KindShow:
		outcome, err = p.processProfile(ctx, logger, state, item)
	case spotify.KindSearch:
		outcome, err = p.processSearch(ctx, logger, state, item)
	default:
		return fmt.Errorf("variant %s: unsupported kind %s", state.variant.Name, state.variant.Kind)
	}
	if err == nil {
		span.SetAttributes(attribute.String("item.outcome", outcome))
		state.count(outcome)
		return nil
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	switch {
	case errors.Is(err, ErrPersistence):
		state.count(outcomeFailed)
		return err
	case dispatcher.IsCanceled(err) && ctx.Err() != nil:
		return err
	case spotify.IsAuthError(err) && p.opts.AbortOnAuthError && !state.succeeded.Load():
		state.count(outcomeFailed)
		return fmt.Errorf("%w: %w", ErrAuthAbort, err)
	}

	var validation *spotify.ValidationError
	if errors.As(err, &validation) {
		state.count(outcomeInvalid)
	} else {
		state.count(outcomeFailed)
	}
	logger.Error(fmt.Sprintf("Failed to process %s", state.variant.Noun),
		zap.String("item", item.Value),
		zap.String("error_kind", failureKind(err)),
		zap.Error(err),
	)
	return nil
}

// failureKind names the error class for item failure logs.
func failureKind(err error) string {
	var (
		validation *spotify.ValidationError
		upstream   *spotify.UpstreamError
	)
	switch {
	case spotify.IsAuthError(err):
		return "auth"
	case errors.As(err, &validation):
		return "validation"
	case transport.IsRelayError(err):
		return "relay"
	case transport.IsTransportError(err):
		return "transport"
	case errors.As(err, &upstream):
		return "upstream"
	default:
		return "other"
	}
}

func (p *Pipeline) processProfile(
	ctx context.Context,
	logger *zap.Logger,
	state *runState,
	item store.PendingItem,
) (string, error) {
	if _, ok := spotify.Normalize(item.Value); !ok {
		logger.Warn("Could not build identifier from URL", zap.String("url", item.Value))
		return outcomeInvalid, nil
	}
	profile, err := p.fetchProfile(ctx, logger, state, item.Value)
	if errors.Is(err, ErrNoProfile) {
		logger.Warn("No profile data returned", zap.String("url", item.Value))
		return outcomeEmpty, nil
	}
	if err != nil {
		return "", err
	}
	profile.URL = item.Value
	profile.SearchID = item.AuxKey

	inserted, err := p.deps.Store.UpsertProfile(ctx, state.variant.Table, *profile)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if !inserted {
		logger.Info("Profile already stored", zap.String("url", item.Value))
		return outcomeDuplicate, nil
	}
	metrics.ObserveSaved(state.variant.Name, 1)
	logger.Info("Saved profile", zap.String("url", item.Value))
	p.notify(ctx, logger, state, profile.URL, profile.SearchID)
	return outcomeSaved, nil
}

func (p *Pipeline) processSearch(
	ctx context.Context,
	logger *zap.Logger,
	state *runState,
	item store.PendingItem,
) (string, error) {
	env, err := p.deps.Builder.Build(spotify.KindSearch, item.Value)
	if err != nil {
		return "", err
	}
	doc, err := p.send(ctx, state, env)
	if err != nil {
		return "", err
	}
	results, err := spotify.ExtractSearchResults(doc, item.Value)
	if err != nil {
		return "", err
	}
	state.succeeded.Store(true)
	if len(results) == 0 {
		logger.Warn("No search results returned", zap.String("query", item.Value))
		return outcomeEmpty, nil
	}

	saved := 0
	for _, result := range results {
		result.SearchID = item.AuxKey
		inserted, err := p.deps.Store.UpsertSearchResult(ctx, state.variant.Table, result)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		if inserted {
			saved++
			p.notify(ctx, logger, state, result.URL, result.SearchID)
		}
	}
	metrics.ObserveSaved(state.variant.Name, saved)
	logger.Info("Saved search results",
		zap.String("query", item.Value),
		zap.Int("results", len(results)),
		zap.Int("saved", saved),
	)
	if saved == 0 {
		return outcomeDuplicate, nil
	}
	return outcomeSaved, nil
}

// LookupShow fetches and parses one show without touching the database.
// The returned profile's URL is the web form of the input.
func (p *Pipeline) LookupShow(ctx context.Context, input string) (*spotify.ShowProfile, error) {
	if err := p.deps.Headers.Validate(); err != nil {
		return nil, err
	}
	uri, ok := spotify.Normalize(input)
	if !ok {
		return nil, &spotify.ValidationError{Field: "show", Message: fmt.Sprintf("cannot build identifier from %q", input)}
	}
	state := &runState{id: p.newRunID(), variant: Variant{Name: "lookup", Kind: spotify.KindShow, Noun: "show"}}
	logger := p.logger.With(zap.String("run_id", state.id))

	profile, err := p.fetchProfile(ctx, logger, state, uri)
	if err != nil {
		return nil, err
	}
	profile.URL = strings.TrimSpace(input)
	if strings.HasPrefix(profile.URL, spotify.Scheme+":") {
		if webURL, ok := spotify.IdentifierToURL(uri); ok {
			profile.URL = webURL
		}
	}
	return profile, nil
}

// fetchProfile runs the show call, the episode description search and link
// extraction for one identifier.
func (p *Pipeline) fetchProfile(
	ctx context.Context,
	logger *zap.Logger,
	state *runState,
	identifier string,
) (*spotify.ShowProfile, error) {
	env, err := p.deps.Builder.Build(spotify.KindShow, identifier)
	if err != nil {
		return nil, err
	}
	doc, err := p.send(ctx, state, env)
	if err != nil {
		return nil, err
	}
	profile, err := spotify.ParseShow(doc)
	if err != nil {
		return nil, err
	}
	state.succeeded.Store(true)
	if profile == nil {
		return nil, ErrNoProfile
	}

	description := p.episodeDescription(ctx, logger, state, spotify.EpisodeURIs(doc))
	profile.EpisodeDescription = description
	profile.Links = spotify.ExtractLinks(profile.About, p.deps.Denylist)
	if p.opts.EpisodeLinks && description != "" {
		episodeLinks := spotify.ExtractLinks(spotify.DescriptionText(description), p.deps.Denylist)
		profile.Links = spotify.MergeLinks(profile.Links, episodeLinks)
	}
	return profile, nil
}

// episodeDescription tries episodes in order and keeps the first non-empty
// description. Per-episode failures are warnings.
func (p *Pipeline) episodeDescription(ctx context.Context, logger *zap.Logger, state *runState, uris []string) string {
	if p.opts.MaxEpisodeLookups > 0 && len(uris) > p.opts.MaxEpisodeLookups {
		uris = uris[:p.opts.MaxEpisodeLookups]
	}
	for _, uri := range uris {
		if ctx.Err() != nil {
			return ""
		}
		description, err := p.fetchEpisodeDescription(ctx, state, uri)
		if err != nil {
			logger.Warn("Failed to fetch episode description", zap.String("uri", uri), zap.Error(err))
			continue
		}
		if description != "" {
			return description
		}
	}
	return ""
}

func (p *Pipeline) fetchEpisodeDescription(ctx context.Context, state *runState, uri string) (string, error) {
	env, err := p.deps.Builder.Build(spotify.KindEpisode, uri)
	if err != nil {
		return "", err
	}
	doc, err := p.send(ctx, state, env)
	if err != nil {
		return "", err
	}
	return spotify.ParseEpisodeDescription(doc)
}

// send posts env and archives the decoded response.
func (p *Pipeline) send(ctx context.Context, state *runState, env spotify.Envelope) (map[string]any, error) {
	doc, err := p.deps.Sender.Send(ctx, p.deps.Headers, env)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", env.Kind(), err)
	}
	p.archive(ctx, state, env.Kind(), doc)
	return doc, nil
}

func (p *Pipeline) newRunID() string {
	if p.deps.IDs == nil {
		return ""
	}
	id, err := p.deps.IDs.NewID()
	if err != nil {
		p.logger.Warn("generate run id", zap.Error(err))
		return ""
	}
	return id
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

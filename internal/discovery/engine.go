package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"marketscout/internal/config"
	"marketscout/internal/logging"
	"marketscout/internal/services"
	"marketscout/internal/textutil"
)

const (
	defaultDepth         = 2
	defaultMaxKeywords   = 50
	fallbackLookupLimit  = 25
	competitorCandidates = 200
)

// Options configures an Engine.
type Options struct {
	Depth         int
	MaxKeywords   int
	Confirmations int
	Policy        FallbackPolicy
}

// OptionsFrom maps the [discovery] section to engine options.
func OptionsFrom(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	policy := FallbackOnEmptyOrError
	if !cfg.Discovery.FallbackOnError {
		policy = FallbackOnEmpty
	}
	return Options{
		Depth:         cfg.Discovery.SeedDepth,
		MaxKeywords:   cfg.Discovery.MaxKeywords,
		Confirmations: cfg.Discovery.CompetitorConfirmations,
		Policy:        policy,
	}
}

// Engine runs discovery strategies against a marketplace.
type Engine struct {
	market Marketplace
	opts   Options
	logger *slog.Logger
}

// NewEngine builds an engine. A nil logger discards output.
func NewEngine(market Marketplace, opts Options, logger *slog.Logger) *Engine {
	if opts.Depth <= 0 {
		opts.Depth = defaultDepth
	}
	if opts.MaxKeywords <= 0 {
		opts.MaxKeywords = defaultMaxKeywords
	}
	if opts.Confirmations < 0 {
		opts.Confirmations = 0
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{market: market, opts: opts, logger: logger}
}

func (e *Engine) normalize(req Request) Request {
	if req.Depth <= 0 {
		req.Depth = e.opts.Depth
	}
	if req.MaxKeywords <= 0 {
		req.MaxKeywords = e.opts.MaxKeywords
	}
	return req
}

// sink dedupes, filters, and caps emitted keywords.
type sink struct {
	emit     EmitFunc
	exclude  func(string) bool
	seen     map[string]struct{}
	max      int
	emitted  int
	excluded int
}

func newSink(req Request, emit EmitFunc, reserved ...string) *sink {
	s := &sink{emit: emit, exclude: req.Exclude, seen: make(map[string]struct{}), max: req.MaxKeywords}
	for _, r := range reserved {
		if n := textutil.NormalizeKeyword(r); n != "" {
			s.seen[n] = struct{}{}
		}
	}
	return s
}

func (s *sink) full() bool {
	return s.max > 0 && s.emitted >= s.max
}

// claim marks keyword as visited. It returns false when already seen.
func (s *sink) claim(keyword string) bool {
	if keyword == "" {
		return false
	}
	if _, ok := s.seen[keyword]; ok {
		return false
	}
	s.seen[keyword] = struct{}{}
	return true
}

// offer emits a claimed keyword unless it is excluded or the cap is reached.
func (s *sink) offer(k Keyword) error {
	if s.full() {
		return nil
	}
	if s.exclude != nil && s.exclude(k.Keyword) {
		s.excluded++
		return nil
	}
	if err := s.emit(k); err != nil {
		return err
	}
	s.emitted++
	return nil
}

func (s *sink) result() Result {
	return Result{Emitted: s.emitted, Excluded: s.excluded}
}

// emitError marks errors returned by the caller's EmitFunc so they are never
// mistaken for a primary strategy failure.
type emitError struct{ err error }

func (e emitError) Error() string { return e.err.Error() }
func (e emitError) Unwrap() error { return e.err }

func (s *sink) push(k Keyword) error {
	if err := s.offer(k); err != nil {
		return emitError{err}
	}
	return nil
}

// ExpandSeed walks autosuggest breadth-first from seed. Depth 1 emits the
// seed's direct suggestions; each further level expands the previous one. The
// seed itself is never emitted and cycles terminate through the visited set.
func (e *Engine) ExpandSeed(ctx context.Context, seed string, req Request, emit EmitFunc) (Result, error) {
	req = e.normalize(req)
	root := textutil.NormalizeKeyword(seed)
	if root == "" {
		return Result{}, services.Wrap(services.ErrValidation, "discovery", "seed", "seed is empty", nil)
	}
	s := newSink(req, emit, root)
	primaryErr := e.expand(ctx, s, root, req, func(term string) Keyword {
		return Keyword{Keyword: term, Via: ViaAutosuggest, SourceSeed: root}
	})
	return e.finish(ctx, s, primaryErr, root, req, func(term string) Keyword {
		return Keyword{Keyword: term, Via: ViaCatalogSearch, SourceSeed: root}
	})
}

type queued struct {
	term  string
	depth int
}

// expand runs the BFS for root into s. Only a failure on the root request is
// returned; deeper failures are logged and that branch is skipped.
func (e *Engine) expand(ctx context.Context, s *sink, root string, req Request, build func(string) Keyword) error {
	queue := []queued{{term: root}}
	for len(queue) > 0 && !s.full() {
		if err := ctx.Err(); err != nil {
			return err
		}
		next := queue[0]
		queue = queue[1:]
		if next.depth >= req.Depth {
			continue
		}
		hints, err := e.market.Autosuggest(ctx, next.term, req.Country)
		if err != nil {
			if next.term == root || errors.Is(err, context.Canceled) {
				return err
			}
			e.logger.Warn("autosuggest failed; skipping branch",
				logging.String(logging.FieldKeyword, next.term),
				logging.String(logging.FieldEventType, "autosuggest_failed"),
				logging.String(logging.FieldImpact, "suggestions below this term are not explored"),
				logging.Error(err),
			)
			continue
		}
		for _, hint := range hints {
			term := textutil.NormalizeKeyword(hint)
			if !s.claim(term) {
				continue
			}
			if err := s.push(build(term)); err != nil {
				return err
			}
			if s.full() {
				break
			}
			queue = append(queue, queued{term: term, depth: next.depth + 1})
		}
	}
	return nil
}

// finish applies the fallback policy after a primary strategy ran.
func (e *Engine) finish(ctx context.Context, s *sink, primaryErr error, term string, req Request, build func(string) Keyword) (Result, error) {
	var emitErr emitError
	if errors.As(primaryErr, &emitErr) {
		return s.result(), emitErr.err
	}
	if errors.Is(primaryErr, context.Canceled) || (errors.Is(primaryErr, context.DeadlineExceeded) && ctx.Err() != nil) {
		return s.result(), primaryErr
	}
	if primaryErr == nil && s.emitted > 0 {
		return s.result(), nil
	}
	if primaryErr != nil && (s.emitted > 0 || e.opts.Policy == FallbackOnEmpty) {
		if s.emitted > 0 {
			e.logger.Warn("discovery strategy failed after partial output",
				logging.String(logging.FieldKeyword, term),
				logging.String(logging.FieldEventType, "discovery_partial"),
				logging.Int("emitted", s.emitted),
				logging.Error(primaryErr),
			)
			result := s.result()
			result.PrimaryErr = primaryErr
			return result, nil
		}
		return s.result(), primaryErr
	}
	if primaryErr != nil && services.IsJobFatal(primaryErr) {
		return s.result(), primaryErr
	}

	e.logger.Info("primary discovery produced nothing new; extracting catalog terms",
		logging.String(logging.FieldKeyword, term),
		logging.String(logging.FieldEventType, "discovery_fallback"),
		logging.Bool("primary_failed", primaryErr != nil),
	)
	fallbackErr := e.fallback(ctx, s, term, req, build)
	result := s.result()
	result.FellBack = true
	result.PrimaryErr = primaryErr
	if fallbackErr != nil {
		if errors.As(fallbackErr, &emitErr) {
			return result, emitErr.err
		}
		if primaryErr != nil {
			return result, errors.Join(primaryErr, fmt.Errorf("catalog fallback: %w", fallbackErr))
		}
		return result, fmt.Errorf("catalog fallback: %w", fallbackErr)
	}
	return result, nil
}

// fallback extracts phrases from the titles of a catalog search for term.
func (e *Engine) fallback(ctx context.Context, s *sink, term string, req Request, build func(string) Keyword) error {
	result, err := e.market.Lookup(ctx, term, req.Country, fallbackLookupLimit)
	if err != nil {
		return err
	}
	titles := make([]string, 0, len(result.Apps))
	for _, app := range result.Apps {
		titles = append(titles, app.Name)
	}
	for _, phrase := range textutil.RankPhrases(titles...) {
		if s.full() {
			break
		}
		keyword := textutil.NormalizeKeyword(phrase.Phrase)
		if !s.claim(keyword) {
			continue
		}
		if err := s.push(build(keyword)); err != nil {
			return err
		}
	}
	return nil
}

// FromCategory emits each curated seed of category, then expands it. An
// unknown category is a configuration error.
func (e *Engine) FromCategory(ctx context.Context, category string, req Request, emit EmitFunc) (Result, error) {
	req = e.normalize(req)
	category = strings.ToLower(strings.TrimSpace(category))
	seeds, ok := CategorySeeds(category)
	if !ok {
		return Result{}, services.Wrap(services.ErrConfiguration, "discovery", "category",
			fmt.Sprintf("no curated seeds for category %q", category), nil)
	}
	s := newSink(req, emit)

	var (
		failures int
		lastErr  error
	)
	for _, seed := range seeds {
		if s.full() {
			break
		}
		root := textutil.NormalizeKeyword(seed)
		if s.claim(root) {
			if err := s.push(Keyword{Keyword: root, Via: ViaCategoryCrawl, SourceCategory: category}); err != nil {
				return e.finish(ctx, s, err, category, req, nil)
			}
		}
		err := e.expand(ctx, s, root, req, func(term string) Keyword {
			return Keyword{Keyword: term, Via: ViaAutosuggest, SourceSeed: root}
		})
		var emitErr emitError
		if errors.As(err, &emitErr) || errors.Is(err, context.Canceled) {
			return e.finish(ctx, s, err, category, req, nil)
		}
		if err != nil {
			failures++
			lastErr = err
			e.logger.Warn("category seed expansion failed",
				logging.String(logging.FieldCategory, category),
				logging.String(logging.FieldKeyword, root),
				logging.String(logging.FieldEventType, "category_seed_failed"),
				logging.Error(err),
			)
		}
	}
	var primaryErr error
	if failures == len(seeds) {
		primaryErr = lastErr
	}
	return e.finish(ctx, s, primaryErr, textutil.CategoryLabel(category), req, func(term string) Keyword {
		return Keyword{Keyword: term, Via: ViaCatalogSearch, SourceCategory: category}
	})
}

package discovery

import (
	"context"
	"errors"
	"strings"

	"marketscout/internal/logging"
	"marketscout/internal/services"
	"marketscout/internal/textutil"
)

// FromCompetitor mines 1-3 word phrases from an app's name, subtitle,
// description, and reviews, ranked by frequency. The top Confirmations
// candidates are checked with a catalog search and dropped when it returns no
// results; later candidates are emitted unconfirmed. The app's own name is
// never emitted.
func (e *Engine) FromCompetitor(ctx context.Context, comp Competitor, req Request, emit EmitFunc) (Result, error) {
	req = e.normalize(req)
	comp.AppID = strings.TrimSpace(comp.AppID)
	if comp.AppID == "" && strings.TrimSpace(comp.Name+comp.Description) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "discovery", "competitor", "app id or metadata required", nil)
	}

	comp, err := e.hydrate(ctx, comp, req.Country)
	s := newSink(req, emit, comp.Name)
	build := func(term string) Keyword {
		return Keyword{Keyword: term, Via: ViaCompetitor, SourceAppID: comp.AppID}
	}
	fallbackTerm := comp.Name
	if err == nil {
		err = e.emitCompetitorPhrases(ctx, s, comp, req, build)
	}
	if fallbackTerm == "" {
		if err == nil {
			err = services.Wrap(services.ErrNotFound, "discovery", "competitor", "no name to search for", nil)
		}
		var emitErr emitError
		if errors.As(err, &emitErr) {
			return s.result(), emitErr.err
		}
		return s.result(), err
	}
	return e.finish(ctx, s, err, fallbackTerm, req, func(term string) Keyword {
		return Keyword{Keyword: term, Via: ViaCatalogSearch, SourceAppID: comp.AppID}
	})
}

// hydrate fills missing metadata and reviews from the marketplace. A failed
// metadata lookup is returned only when nothing usable was supplied; review
// failures are logged and ignored.
func (e *Engine) hydrate(ctx context.Context, comp Competitor, country string) (Competitor, error) {
	if comp.AppID == "" {
		return comp, nil
	}
	if comp.Name == "" || comp.Description == "" {
		app, err := e.market.LookupApp(ctx, comp.AppID, country)
		switch {
		case err != nil && comp.Name == "" && comp.Description == "":
			return comp, err
		case err != nil:
			e.logger.Warn("competitor lookup failed; using supplied metadata",
				logging.String("app_id", comp.AppID),
				logging.String(logging.FieldEventType, "competitor_lookup_failed"),
				logging.Error(err),
			)
		default:
			if comp.Name == "" {
				comp.Name = app.Name
			}
			if comp.Description == "" {
				comp.Description = app.Description
			}
		}
	}
	if len(comp.Reviews) == 0 {
		reviews, err := e.market.Reviews(ctx, comp.AppID, country)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return comp, err
			}
			e.logger.Warn("competitor reviews unavailable",
				logging.String("app_id", comp.AppID),
				logging.String(logging.FieldEventType, "competitor_reviews_failed"),
				logging.String(logging.FieldImpact, "phrases come from metadata only"),
				logging.Error(err),
			)
		}
		for _, review := range reviews {
			comp.Reviews = append(comp.Reviews, review.Title, review.Content)
		}
	}
	return comp, nil
}

func (e *Engine) emitCompetitorPhrases(ctx context.Context, s *sink, comp Competitor, req Request, build func(string) Keyword) error {
	texts := append([]string{comp.Name, comp.Subtitle, comp.Description}, comp.Reviews...)
	ranked := textutil.RankPhrases(texts...)
	if len(ranked) > competitorCandidates {
		ranked = ranked[:competitorCandidates]
	}
	confirmations := e.opts.Confirmations
	for _, candidate := range ranked {
		if s.full() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		keyword := textutil.NormalizeKeyword(candidate.Phrase)
		if !s.claim(keyword) {
			continue
		}
		if s.exclude != nil && s.exclude(keyword) {
			s.excluded++
			continue
		}
		if confirmations > 0 {
			confirmations--
			result, err := e.market.Lookup(ctx, keyword, req.Country, 1)
			switch {
			case err != nil && errors.Is(err, context.Canceled):
				return err
			case err != nil:
				e.logger.Debug("phrase confirmation failed; keeping phrase",
					logging.String(logging.FieldKeyword, keyword),
					logging.Error(err),
				)
			case result.ResultCount == 0 && len(result.Apps) == 0:
				continue
			}
		}
		if err := s.push(build(keyword)); err != nil {
			return err
		}
	}
	return nil
}

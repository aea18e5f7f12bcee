package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"marketscout/internal/scoring"
)

const opportunityColumns = "id, keyword, category, country, competition_gap, market_demand, revenue_potential, trend_momentum, execution_feasibility, opportunity_score, reasoning, weaknesses_json, suggested_differentiator, tier, degraded, status, discovered_via, source_job_id, scored_at, created_at, updated_at"

// statusRankSQL mirrors OpportunityStatus.Rank for conditional updates.
const statusRankSQL = `CASE %s WHEN 'scored' THEN 1 WHEN 'selected' THEN 2 WHEN 'blueprint_generated' THEN 3 ELSE 0 END`

func scanOpportunity(scanner rowScanner) (*Opportunity, error) {
	var (
		opp            Opportunity
		reasoning      sql.NullString
		weaknessesJSON sql.NullString
		differentiator sql.NullString
		tier           string
		degraded       int
		status         string
		discoveredVia  sql.NullString
		sourceJobID    sql.NullString
		scoredRaw      string
		createdRaw     string
		updatedRaw     string
	)
	if err := scanner.Scan(
		&opp.ID,
		&opp.Keyword,
		&opp.Category,
		&opp.Country,
		&opp.CompetitionGap,
		&opp.MarketDemand,
		&opp.RevenuePotential,
		&opp.TrendMomentum,
		&opp.ExecutionFeasibility,
		&opp.OpportunityScore,
		&reasoning,
		&weaknessesJSON,
		&differentiator,
		&tier,
		&degraded,
		&status,
		&discoveredVia,
		&sourceJobID,
		&scoredRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	opp.Reasoning = reasoning.String
	opp.SuggestedDifferentiator = differentiator.String
	opp.Tier = scoring.Tier(tier)
	opp.Degraded = degraded != 0
	opp.Status = OpportunityStatus(status)
	opp.DiscoveredVia = discoveredVia.String
	opp.SourceJobID = sourceJobID.String
	if weaknessesJSON.Valid && weaknessesJSON.String != "" {
		if err := json.Unmarshal([]byte(weaknessesJSON.String), &opp.TopCompetitorWeaknesses); err != nil {
			return nil, fmt.Errorf("decode weaknesses: %w", err)
		}
	}
	if t, err := parseTimeString(scoredRaw); err == nil {
		opp.ScoredAt = t
	}
	if t, err := parseTimeString(createdRaw); err == nil {
		opp.CreatedAt = t
	}
	if t, err := parseTimeString(updatedRaw); err == nil {
		opp.UpdatedAt = t
	}
	return &opp, nil
}

// UpsertOpportunity inserts or refreshes the opportunity for the score's
// natural key and appends a score history row in the same transaction. The
// stored status never regresses.
func (s *Store) UpsertOpportunity(ctx context.Context, score scoring.KeywordScore, meta OpportunityMeta) (*Opportunity, error) {
	ctx = ensureContext(ctx)
	if score.Keyword == "" {
		return nil, errors.New("upsert opportunity: keyword is empty")
	}
	weaknesses, err := json.Marshal(score.TopCompetitorWeaknesses)
	if err != nil {
		return nil, fmt.Errorf("encode weaknesses: %w", err)
	}
	now := s.clock()
	scoredAt := score.ScoredAt
	if scoredAt.IsZero() {
		scoredAt = now
	}

	var opp *Opportunity
	err = retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(
			ctx,
			`INSERT INTO opportunities (
                keyword, category, country, competition_gap, market_demand, revenue_potential,
                trend_momentum, execution_feasibility, opportunity_score, reasoning, weaknesses_json,
                suggested_differentiator, tier, degraded, status, discovered_via, source_job_id,
                scored_at, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
            ON CONFLICT(keyword, category, country) DO UPDATE SET
                competition_gap = excluded.competition_gap,
                market_demand = excluded.market_demand,
                revenue_potential = excluded.revenue_potential,
                trend_momentum = excluded.trend_momentum,
                execution_feasibility = excluded.execution_feasibility,
                opportunity_score = excluded.opportunity_score,
                reasoning = excluded.reasoning,
                weaknesses_json = excluded.weaknesses_json,
                suggested_differentiator = excluded.suggested_differentiator,
                tier = excluded.tier,
                degraded = excluded.degraded,
                discovered_via = COALESCE(excluded.discovered_via, opportunities.discovered_via),
                source_job_id = COALESCE(excluded.source_job_id, opportunities.source_job_id),
                scored_at = excluded.scored_at,
                updated_at = excluded.updated_at
            RETURNING `+opportunityColumns,
			score.Keyword,
			score.Category,
			score.Country,
			score.CompetitionGap,
			score.MarketDemand,
			score.RevenuePotential,
			score.TrendMomentum,
			score.ExecutionFeasibility,
			score.OpportunityScore,
			nullableString(score.Reasoning),
			string(weaknesses),
			nullableString(score.SuggestedDifferentiator),
			score.Tier,
			boolToInt(score.Degraded),
			OpportunityScored,
			nullableString(meta.DiscoveredVia),
			nullableString(meta.SourceJobID),
			formatTime(scoredAt),
			formatTime(now),
			formatTime(now),
		)
		upserted, err := scanOpportunity(row)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO score_history (
                keyword, category, country, opportunity_score, competition_gap, market_demand,
                revenue_potential, trend_momentum, execution_feasibility, tier, recorded_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			score.Keyword,
			score.Category,
			score.Country,
			score.OpportunityScore,
			score.CompetitionGap,
			score.MarketDemand,
			score.RevenuePotential,
			score.TrendMomentum,
			score.ExecutionFeasibility,
			score.Tier,
			formatTime(scoredAt),
		); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		opp = upserted
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upsert opportunity %q: %w", score.Keyword, err)
	}
	return opp, nil
}

// GetOpportunity fetches an opportunity by id; missing rows return nil.
func (s *Store) GetOpportunity(ctx context.Context, id int64) (*Opportunity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+opportunityColumns+` FROM opportunities WHERE id = ?`, id)
	opp, err := scanOpportunity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get opportunity: %w", err)
	}
	return opp, nil
}

// FindOpportunity fetches an opportunity by its natural key.
func (s *Store) FindOpportunity(ctx context.Context, keyword, category, country string) (*Opportunity, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+opportunityColumns+` FROM opportunities WHERE keyword = ? AND category = ? AND country = ?`,
		keyword,
		category,
		country,
	)
	opp, err := scanOpportunity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find opportunity: %w", err)
	}
	return opp, nil
}

// HasKeyword reports whether keyword was already scored for country in any category.
func (s *Store) HasKeyword(ctx context.Context, keyword, country string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM opportunities WHERE keyword = ? AND country = ?)`,
		keyword,
		country,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check keyword: %w", err)
	}
	return exists == 1, nil
}

// ListOpportunities returns opportunities ordered by score, highest first.
func (s *Store) ListOpportunities(ctx context.Context, filter OpportunityFilter) ([]*Opportunity, error) {
	query := `SELECT ` + opportunityColumns + ` FROM opportunities WHERE 1 = 1`
	var args []any
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Country != "" {
		query += ` AND country = ?`
		args = append(args, filter.Country)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY opportunity_score DESC, market_demand DESC, keyword ASC, category ASC, country ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	defer rows.Close()

	var out []*Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		out = append(out, opp)
	}
	return out, rows.Err()
}

// AdvanceOpportunityStatus moves an opportunity forward to status. Requests
// that would keep or lower the current status are ignored and reported as not
// applied.
func (s *Store) AdvanceOpportunityStatus(ctx context.Context, id int64, status OpportunityStatus) (bool, error) {
	if status.Rank() == 0 {
		return false, fmt.Errorf("advance opportunity: unknown status %q", status)
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE opportunities SET status = ?, updated_at = ?
         WHERE id = ? AND `+fmt.Sprintf(statusRankSQL, "status")+` < ?`,
		status,
		formatTime(s.clock()),
		id,
		status.Rank(),
	)
	if err != nil {
		return false, fmt.Errorf("advance opportunity: %w", err)
	}
	return affected(res)
}

// ScoreHistory returns every recorded score for the natural key, oldest first.
func (s *Store) ScoreHistory(ctx context.Context, keyword, category, country string) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT keyword, category, country, opportunity_score, competition_gap, market_demand,
                revenue_potential, trend_momentum, execution_feasibility, tier, recorded_at
         FROM score_history WHERE keyword = ? AND category = ? AND country = ?
         ORDER BY recorded_at, id`,
		keyword,
		category,
		country,
	)
	if err != nil {
		return nil, fmt.Errorf("score history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			entry       HistoryEntry
			tier        string
			recordedRaw string
		)
		if err := rows.Scan(
			&entry.Keyword,
			&entry.Category,
			&entry.Country,
			&entry.OpportunityScore,
			&entry.Dimensions.CompetitionGap,
			&entry.Dimensions.MarketDemand,
			&entry.Dimensions.RevenuePotential,
			&entry.Dimensions.TrendMomentum,
			&entry.Dimensions.ExecutionFeasibility,
			&tier,
			&recordedRaw,
		); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entry.Tier = scoring.Tier(tier)
		if t, err := parseTimeString(recordedRaw); err == nil {
			entry.RecordedAt = t
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/grantseeker/subsidy-bot/internal/domain"
)

// ValidationRepo persists feedback-loop diagnostics. Critique payloads go
// into JSONB columns; the queryable fields get their own columns.
type ValidationRepo struct {
	db *DB
}

func NewValidationRepo(db *DB) *ValidationRepo {
	return &ValidationRepo{db: db}
}

func (r *ValidationRepo) SaveLoop(ctx context.Context, threadID, question string, loop domain.ValidationLoop) error {
	critique, err := json.Marshal(loop.Critique)
	if err != nil {
		return fmt.Errorf("marshal critique: %w", err)
	}
	hints, err := json.Marshal(loop.ImprovementHints)
	if err != nil {
		return fmt.Errorf("marshal hints: %w", err)
	}

	query := `
		INSERT INTO validation_loops
			(thread_id, question, loop_number, critique, improvement_hints, score_improvement, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.Pool.Exec(ctx, query,
		threadID,
		question,
		loop.LoopNumber,
		critique,
		hints,
		loop.ScoreImprovement,
		loop.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("save validation loop: %w", err)
	}
	return nil
}

func (r *ValidationRepo) SaveResult(ctx context.Context, threadID, question string, result *domain.ValidationResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	query := `
		INSERT INTO validation_results
			(thread_id, question, state, final_loop, total_improvement, best_sum, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`

	_, err = r.db.Pool.Exec(ctx, query,
		threadID,
		question,
		string(result.State),
		result.FinalLoop,
		result.TotalImprovement,
		result.BestScores.Sum(),
		payload,
	)
	if err != nil {
		return fmt.Errorf("save validation result: %w", err)
	}
	return nil
}

func (r *ValidationRepo) RecentResults(ctx context.Context, threadID string, limit int) ([]domain.ValidationResult, error) {
	query := `
		SELECT payload
		FROM validation_results
		WHERE thread_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent results: %w", err)
	}
	defer rows.Close()

	var results []domain.ValidationResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		var result domain.ValidationResult
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

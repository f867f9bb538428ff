package repository

import (
	"context"

	"github.com/grantseeker/subsidy-bot/internal/domain"
)

// ValidationRepository is the append-only diagnostic sink for feedback-loop
// records. Writes are best-effort; callers must treat failures as non-fatal.
type ValidationRepository interface {
	SaveLoop(ctx context.Context, threadID, question string, loop domain.ValidationLoop) error
	SaveResult(ctx context.Context, threadID, question string, result *domain.ValidationResult) error
	RecentResults(ctx context.Context, threadID string, limit int) ([]domain.ValidationResult, error)
}

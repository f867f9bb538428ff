package repository

import (
	"context"
	"sync"

	"github.com/grantseeker/subsidy-bot/internal/domain"
)

// MockValidationRepository records writes in memory for tests.
type MockValidationRepository struct {
	mu      sync.Mutex
	Loops   []domain.ValidationLoop
	Results []*domain.ValidationResult

	SaveLoopErr   error
	SaveResultErr error
}

func NewMockValidationRepository() *MockValidationRepository {
	return &MockValidationRepository{}
}

func (m *MockValidationRepository) SaveLoop(ctx context.Context, threadID, question string, loop domain.ValidationLoop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveLoopErr != nil {
		return m.SaveLoopErr
	}
	m.Loops = append(m.Loops, loop)
	return nil
}

func (m *MockValidationRepository) SaveResult(ctx context.Context, threadID, question string, result *domain.ValidationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveResultErr != nil {
		return m.SaveResultErr
	}
	m.Results = append(m.Results, result)
	return nil
}

func (m *MockValidationRepository) RecentResults(ctx context.Context, threadID string, limit int) ([]domain.ValidationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ValidationResult
	for i := len(m.Results) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.Results[i])
	}
	return out, nil
}

func (m *MockValidationRepository) LoopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Loops)
}

func (m *MockValidationRepository) ResultCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Results)
}

var _ ValidationRepository = (*MockValidationRepository)(nil)

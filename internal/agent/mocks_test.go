package agent

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/pilot/api/schemas"
)

// MockModel mocks schemas.ModelInvoker.
type MockModel struct {
	mock.Mock
}

func (m *MockModel) Invoke(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// MockResolver mocks schemas.ContextResolver.
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) ActiveTarget(ctx context.Context) (schemas.Target, error) {
	args := m.Called(ctx)
	return args.Get(0).(schemas.Target), args.Error(1)
}

// MockHistory mocks schemas.HistoryStore.
type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) SaveRun(ctx context.Context, rec schemas.RunRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockHistory) RecentRuns(ctx context.Context, limit int) ([]schemas.RunRecord, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]schemas.RunRecord), args.Error(1)
}

// scriptedTransport answers requests with a function and records them.
type scriptedTransport struct {
	mu       sync.Mutex
	requests []schemas.PerformRequest
	answer   func(n int, req schemas.PerformRequest) (schemas.PerformResponse, error)
}

func (s *scriptedTransport) Send(_ context.Context, _ schemas.Target, req schemas.PerformRequest) (schemas.PerformResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	n := len(s.requests)
	s.mu.Unlock()
	return s.answer(n, req)
}

func (s *scriptedTransport) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// okTransport acknowledges every action with a fixed log line.
func okTransport() *scriptedTransport {
	return &scriptedTransport{answer: func(_ int, req schemas.PerformRequest) (schemas.PerformResponse, error) {
		return schemas.PerformResponse{ID: req.ID, OK: true, Log: "done"}, nil
	}}
}

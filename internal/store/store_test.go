package store

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/pilot/api/schemas"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// ArgumentMatcherFunc is a helper to create inline mock matchers.
type ArgumentMatcherFunc func(interface{}) bool

func (f ArgumentMatcherFunc) Match(v interface{}) bool {
	return f(v)
}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	s, err := New(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)
	return s, mockPool
}

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestEnsureSchema(t *testing.T) {
	t.Run("creates table and index", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateRuns)).WillReturnResult(pgxmock.NewResult("CREATE", 0))
		mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateRunsIndex)).WillReturnResult(pgxmock.NewResult("CREATE", 0))

		require.NoError(t, s.EnsureSchema(context.Background()))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateRuns)).WillReturnError(errors.New("permission denied"))

		err := s.EnsureSchema(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "permission denied")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestSaveRun(t *testing.T) {
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	t.Run("inserts the encoded result", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		rec := schemas.RunRecord{
			ID:      "run-1",
			Command: "open example.com",
			Result: schemas.RunResult{
				Plan: schemas.Plan{Actions: []json.RawMessage{json.RawMessage(`{"type":"navigate","url":"https://example.com"}`)}},
				OK:   true,
				Logs: []string{"Navigating to https://example.com"},
			},
			CreatedAt: createdAt,
		}
		resultMatcher := ArgumentMatcherFunc(func(v interface{}) bool {
			b, ok := v.([]byte)
			return ok && strings.Contains(string(b), `"logs":["Navigating to https://example.com"]`)
		})

		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs("run-1", "open example.com", true, resultMatcher, createdAt.UTC()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, s.SaveRun(context.Background(), rec))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("error shape is stored as not ok", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		rec := schemas.RunRecord{
			ID:        "run-2",
			Command:   "do it",
			Result:    schemas.RunResult{Error: "no active context"},
			CreatedAt: createdAt,
		}
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs("run-2", "do it", false, []byte(`{"error":"no active context"}`), createdAt.UTC()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, s.SaveRun(context.Background(), rec))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("zero timestamp is filled in", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		before := time.Now().UTC()
		anyRecentTime := ArgumentMatcherFunc(func(v interface{}) bool {
			ts, ok := v.(time.Time)
			return ok && !ts.Before(before.Add(-time.Second))
		})
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs("run-3", "x", true, pgxmock.AnyArg(), anyRecentTime).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, s.SaveRun(context.Background(), schemas.RunRecord{ID: "run-3", Command: "x", Result: schemas.RunResult{OK: true}}))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("insert failure is wrapped", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		dbErr := errors.New("connection reset")
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs("run-4", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(dbErr)

		err := s.SaveRun(context.Background(), schemas.RunRecord{ID: "run-4"})
		require.Error(t, err)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), "failed to insert run run-4")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestRecentRuns(t *testing.T) {
	columns := []string{"id", "command", "result", "created_at"}
	newer := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	t.Run("returns rows newest first", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		rows := pgxmock.NewRows(columns).
			AddRow("b", "second", []byte(`{"plan":{"actions":[]},"ok":true,"logs":[]}`), newer).
			AddRow("a", "first", []byte(`{"error":"no active context"}`), older)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlRecentRuns)).WithArgs(5).WillReturnRows(rows)

		runs, err := s.RecentRuns(context.Background(), 5)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "b", runs[0].ID)
		assert.True(t, runs[0].Result.OK)
		assert.Equal(t, newer, runs[0].CreatedAt)
		assert.Equal(t, "no active context", runs[1].Result.Error)
		assert.True(t, runs[1].Result.Failed())
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("non-positive limit uses default", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlRecentRuns)).
			WithArgs(DefaultRecentLimit).
			WillReturnRows(pgxmock.NewRows(columns))

		runs, err := s.RecentRuns(context.Background(), 0)
		require.NoError(t, err)
		assert.Empty(t, runs)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("corrupt result row", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		rows := pgxmock.NewRows(columns).AddRow("c", "x", []byte(`not json`), newer)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlRecentRuns)).WithArgs(1).WillReturnRows(rows)

		_, err := s.RecentRuns(context.Background(), 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode result of run c")
	})

	t.Run("query failure", func(t *testing.T) {
		s, mockPool := newMockStore(t)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlRecentRuns)).WithArgs(3).WillReturnError(errors.New("timeout"))

		_, err := s.RecentRuns(context.Background(), 3)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to query runs")
	})
}

func TestStoreLogsSaves(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	mockPool.ExpectPing()
	s, err := New(context.Background(), mockPool, zap.New(core))
	require.NoError(t, err)

	mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.SaveRun(context.Background(), schemas.RunRecord{ID: "run-9", Result: schemas.RunResult{OK: true}}))

	entries := logs.FilterMessage("Run saved.").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "run-9", entries[0].ContextMap()["run_id"])
	assert.Equal(t, "store", entries[0].LoggerName)
}

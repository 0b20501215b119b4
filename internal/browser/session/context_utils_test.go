// internal/browser/session/context_utils_test.go
package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineContext(t *testing.T) {
	type ctxKey string
	const key ctxKey = "target"

	t.Run("InheritsValuesFromSession", func(t *testing.T) {
		sessionCtx := context.WithValue(context.Background(), key, "tab-1")
		combined, cancel := CombineContext(sessionCtx, context.Background())
		defer cancel()

		assert.Equal(t, "tab-1", combined.Value(key))
		assert.NoError(t, combined.Err())
	})

	t.Run("CancelledBySession", func(t *testing.T) {
		sessionCtx, cancelSession := context.WithCancel(context.Background())
		combined, cancel := CombineContext(sessionCtx, context.Background())
		defer cancel()

		cancelSession()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("CancelledByOperation", func(t *testing.T) {
		opCtx, cancelOp := context.WithCancel(context.Background())
		combined, cancel := CombineContext(context.Background(), opCtx)
		defer cancel()

		cancelOp()
		assert.Eventually(t, func() bool {
			return combined.Err() != nil
		}, 100*time.Millisecond, 5*time.Millisecond)
	})

	t.Run("OperationDeadlineCancels", func(t *testing.T) {
		opCtx, cancelOp := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancelOp()
		combined, cancel := CombineContext(context.Background(), opCtx)
		defer cancel()

		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context was not canceled by the operation deadline")
		}
	})

	t.Run("DeadlineFromSession", func(t *testing.T) {
		deadline := time.Now().Add(time.Minute)
		sessionCtx, cancelSession := context.WithDeadline(context.Background(), deadline)
		defer cancelSession()

		combined, cancel := CombineContext(sessionCtx, context.Background())
		defer cancel()

		got, ok := combined.Deadline()
		require.True(t, ok)
		assert.Equal(t, deadline, got)
	})

	t.Run("CancelFuncIsIdempotent", func(t *testing.T) {
		combined, cancel := CombineContext(context.Background(), context.Background())
		cancel()
		cancel()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})
}

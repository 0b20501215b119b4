// internal/llmclient/lazy_test.go
package llmclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/pilot/api/schemas"
)

type echoModel struct {
	closed bool
}

func (e *echoModel) Invoke(_ context.Context, prompt string) (string, error) {
	return "echo: " + prompt, nil
}

func (e *echoModel) Close() error {
	e.closed = true
	return nil
}

func TestLazy(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("ConstructsOnceUnderConcurrency", func(t *testing.T) {
		var built int32
		model := &echoModel{}
		l := NewLazy(func(context.Context) (schemas.ModelInvoker, error) {
			atomic.AddInt32(&built, 1)
			return model, nil
		}, zaptest.NewLogger(t))

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				out, err := l.Invoke(context.Background(), "hi")
				assert.NoError(t, err)
				assert.Equal(t, "echo: hi", out)
			}()
		}
		wg.Wait()
		assert.EqualValues(t, 1, atomic.LoadInt32(&built))

		require.NoError(t, l.Close())
		assert.True(t, model.closed)
	})

	t.Run("NotBuiltUntilInvoked", func(t *testing.T) {
		called := false
		l := NewLazy(func(context.Context) (schemas.ModelInvoker, error) {
			called = true
			return &echoModel{}, nil
		}, nil)
		assert.False(t, called)
		assert.NoError(t, l.Close())
		assert.False(t, called)
	})

	t.Run("ConstructionErrorIsRemembered", func(t *testing.T) {
		var built int32
		boom := errors.New("no key")
		l := NewLazy(func(context.Context) (schemas.ModelInvoker, error) {
			atomic.AddInt32(&built, 1)
			return nil, boom
		}, zaptest.NewLogger(t))

		_, err := l.Invoke(context.Background(), "a")
		assert.ErrorIs(t, err, boom)
		_, err = l.Invoke(context.Background(), "b")
		assert.ErrorIs(t, err, boom)
		assert.EqualValues(t, 1, atomic.LoadInt32(&built))
	})
}

// internal/browser/session/manager_test.go
package session

import (
	"context"
	"testing"

	"github.com/chromedp/cdproto/target"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestManager_Prune(t *testing.T) {
	logger := zaptest.NewLogger(t)
	m := &Manager{logger: logger, sessions: make(map[target.ID]*Session)}

	keptCtx, keepCancel := context.WithCancel(context.Background())
	defer keepCancel()
	goneCtx, goneCancel := context.WithCancel(context.Background())
	defer goneCancel()

	m.sessions["kept"] = newSession(keptCtx, keepCancel, "kept", 0, logger)
	gone := newSession(goneCtx, goneCancel, "gone", 0, logger)
	m.sessions["gone"] = gone
	m.last = "gone"

	last := m.prune([]*target.Info{{TargetID: "kept", Type: "page", URL: "https://example.com/"}})

	assert.Equal(t, target.ID("gone"), last, "last-used ID is reported even when its tab closed")
	assert.Contains(t, m.sessions, target.ID("kept"))
	assert.NotContains(t, m.sessions, target.ID("gone"))
	assert.ErrorIs(t, goneCtx.Err(), context.Canceled)
	assert.NoError(t, keptCtx.Err())
}

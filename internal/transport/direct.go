package transport

import (
	"context"

	"github.com/xkilldash9x/pilot/api/schemas"
	"github.com/xkilldash9x/pilot/internal/browser"
)

// Direct delivers perform requests to an in-process Host. It never fails at
// the transport level: every failure arrives as a PerformResponse.
type Direct struct {
	host *browser.Host
}

var (
	_ schemas.Transport       = (*Direct)(nil)
	_ schemas.ContextResolver = (*Direct)(nil)
)

func NewDirect(host *browser.Host) *Direct {
	return &Direct{host: host}
}

func (d *Direct) Send(ctx context.Context, target schemas.Target, req schemas.PerformRequest) (schemas.PerformResponse, error) {
	if req.Target == nil {
		req.Target = &target
	}
	return d.host.Serve(ctx, req), nil
}

func (d *Direct) ActiveTarget(ctx context.Context) (schemas.Target, error) {
	return d.host.ActiveTarget(ctx)
}

// File: cmd/helpers_test.go
package cmd

import (
	"bytes"
	"sync"

	"github.com/xkilldash9x/pilot/api/schemas"
)

// safeBuffer is a bytes.Buffer that a running command and a test can share.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func schemasResult(ok bool, errMsg string) schemas.RunResult {
	return schemas.RunResult{OK: ok, Error: errMsg}
}

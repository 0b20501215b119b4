package dom

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/xkilldash9x/pilot/api/schemas"
)

// Pages is a set of in-memory documents with one of them active, the static
// engine's stand-in for browser tabs.
type Pages struct {
	mu     sync.RWMutex
	docs   map[string]*Document
	active string
	nextID int
}

var _ schemas.PageSource = (*Pages)(nil)

// NewPages creates an empty set. ActiveTarget fails until a document is opened.
func NewPages() *Pages {
	return &Pages{docs: make(map[string]*Document)}
}

// Open adds doc and makes it active.
func (p *Pages) Open(doc *Document) schemas.Target {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := "doc-" + strconv.Itoa(p.nextID)
	p.docs[id] = doc
	p.active = id
	u, _ := doc.URL(context.Background())
	return schemas.Target{ID: id, URL: u}
}

func (p *Pages) ActiveTarget(ctx context.Context) (schemas.Target, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	doc, ok := p.docs[p.active]
	if !ok {
		return schemas.Target{}, schemas.ErrNoActiveContext
	}
	u, _ := doc.URL(ctx)
	return schemas.Target{ID: p.active, URL: u, Title: doc.Title()}, nil
}

func (p *Pages) Page(ctx context.Context, target schemas.Target) (schemas.Page, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	doc, ok := p.docs[target.ID]
	if !ok {
		return nil, fmt.Errorf("%w: page %q is gone", schemas.ErrNoActiveContext, target.ID)
	}
	return doc, nil
}

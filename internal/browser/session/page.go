// internal/browser/session/page.go
package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xkilldash9x/pilot/api/schemas"
)

// Script results shared by the page scripts below.
const (
	resultOK        = "ok"
	resultMissing   = "missing"
	resultNotInput  = "not-input"
	resultNoForm    = "no-form"
	resultSubmitted = "submitted"
)

// Page implements schemas.Page on top of in-page JavaScript. Each operation is
// one script evaluation, so it sees the document exactly as the page does.
type Page struct {
	exec ScriptExecutor
}

var _ schemas.Page = (*Page)(nil)

// NewPage wraps a script executor (usually a *Session).
func NewPage(exec ScriptExecutor) *Page {
	return &Page{exec: exec}
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var href string
	if err := p.exec.ExecuteScript(ctx, `window.location.href`, &href); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return href, nil
}

// SetLocation assigns window.location and returns without waiting for the load.
func (p *Page) SetLocation(ctx context.Context, url string) error {
	script := fmt.Sprintf(`(function(u){ window.location.href = u; return true; })(%s)`, jsString(url))
	if err := p.exec.ExecuteScript(ctx, script, nil); err != nil {
		return fmt.Errorf("failed to set location: %w", err)
	}
	return nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	script := fmt.Sprintf(`(function(sel){
  const el = document.querySelector(sel);
  if (!el) return %q;
  el.click();
  return %q;
})(%s)`, resultMissing, resultOK, jsString(selector))

	var res string
	if err := p.exec.ExecuteScript(ctx, script, &res); err != nil {
		return fmt.Errorf("click on %s failed: %w", selector, err)
	}
	if res == resultMissing {
		return fmt.Errorf("%w %s", schemas.ErrElementNotFound, selector)
	}
	return nil
}

// Fill focuses the element, assigns its value and fires a bubbling input
// event so frameworks listening on the field pick the change up.
func (p *Page) Fill(ctx context.Context, selector, text string) error {
	script := fmt.Sprintf(`(function(sel, text){
  const el = document.querySelector(sel);
  if (!el) return %q;
  const hasValue = ('value' in el) && !(el instanceof HTMLButtonElement);
  if (!hasValue && !el.isContentEditable) return %q;
  el.focus();
  if (hasValue) { el.value = text; } else { el.textContent = text; }
  el.dispatchEvent(new Event('input', { bubbles: true }));
  return %q;
})(%s, %s)`, resultMissing, resultNotInput, resultOK, jsString(selector), jsString(text))

	var res string
	if err := p.exec.ExecuteScript(ctx, script, &res); err != nil {
		return fmt.Errorf("typing into %s failed: %w", selector, err)
	}
	switch res {
	case resultMissing:
		return fmt.Errorf("%w %s", schemas.ErrElementNotFound, selector)
	case resultNotInput:
		return fmt.Errorf("element for selector %s is not an input", selector)
	}
	return nil
}

func (p *Page) SubmitForm(ctx context.Context, selector string) (bool, error) {
	script := fmt.Sprintf(`(function(sel){
  const el = document.querySelector(sel);
  if (!el) return %q;
  const form = el.form || el.closest('form');
  if (!form) return %q;
  form.submit();
  return %q;
})(%s)`, resultMissing, resultNoForm, resultSubmitted, jsString(selector))

	var res string
	if err := p.exec.ExecuteScript(ctx, script, &res); err != nil {
		return false, fmt.Errorf("submitting form for %s failed: %w", selector, err)
	}
	switch res {
	case resultMissing:
		return false, fmt.Errorf("%w %s", schemas.ErrElementNotFound, selector)
	case resultNoForm:
		return false, nil
	}
	return true, nil
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

// api/schemas/action.go
package schemas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	jsoniter "github.com/json-iterator/go"
)

// ActionKind is the tag carried in the "type" field of every action object.
type ActionKind string

const (
	KindNavigate       ActionKind = "navigate"
	KindClick          ActionKind = "click"
	KindType           ActionKind = "type"
	KindWait           ActionKind = "wait"
	KindStarGithubRepo ActionKind = "starGithubRepo"
)

// KnownKinds lists every action kind in the closed set, in prompt order.
var KnownKinds = []ActionKind{KindNavigate, KindClick, KindType, KindWait, KindStarGithubRepo}

// Action is one unit of browser manipulation. The set of implementations is
// closed: only the types in this file satisfy it.
type Action interface {
	Kind() ActionKind
	isAction()
}

// Navigate sets the page location to URL.
type Navigate struct {
	URL string
}

// Click activates the first element matching Selector.
type Click struct {
	Selector string
}

// Type focuses the element matching Selector, replaces its value with Text and,
// when Submit is set, submits the enclosing form.
type Type struct {
	Selector string
	Text     string
	Submit   bool
}

// Wait suspends the plan. A nil MS means the executor applies its default.
type Wait struct {
	MS *int
}

// StarGithubRepo toggles the star on github.com/Owner/Repo.
type StarGithubRepo struct {
	Owner string
	Repo  string
}

func (Navigate) Kind() ActionKind       { return KindNavigate }
func (Click) Kind() ActionKind          { return KindClick }
func (Type) Kind() ActionKind           { return KindType }
func (Wait) Kind() ActionKind           { return KindWait }
func (StarGithubRepo) Kind() ActionKind { return KindStarGithubRepo }

func (Navigate) isAction()       {}
func (Click) isAction()          {}
func (Type) isAction()           {}
func (Wait) isAction()           {}
func (StarGithubRepo) isAction() {}

// actionJSON writes "type" first and leaves HTML characters alone, so a
// serialized action reads the same as what a model would have produced.
var actionJSON = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            false,
	ValidateJsonRawMessage: true,
}.Froze()

func (a Navigate) MarshalJSON() ([]byte, error) {
	return actionJSON.Marshal(struct {
		Type ActionKind `json:"type"`
		URL  string     `json:"url"`
	}{KindNavigate, a.URL})
}

func (a Click) MarshalJSON() ([]byte, error) {
	return actionJSON.Marshal(struct {
		Type     ActionKind `json:"type"`
		Selector string     `json:"selector"`
	}{KindClick, a.Selector})
}

func (a Type) MarshalJSON() ([]byte, error) {
	return actionJSON.Marshal(struct {
		Type     ActionKind `json:"type"`
		Selector string     `json:"selector"`
		Text     string     `json:"text"`
		Submit   bool       `json:"submit,omitempty"`
	}{KindType, a.Selector, a.Text, a.Submit})
}

func (a Wait) MarshalJSON() ([]byte, error) {
	return actionJSON.Marshal(struct {
		Type ActionKind `json:"type"`
		MS   *int       `json:"ms,omitempty"`
	}{KindWait, a.MS})
}

func (a StarGithubRepo) MarshalJSON() ([]byte, error) {
	return actionJSON.Marshal(struct {
		Type  ActionKind `json:"type"`
		Owner string     `json:"owner"`
		Repo  string     `json:"repo"`
	}{KindStarGithubRepo, a.Owner, a.Repo})
}

// MarshalAction serializes a typed action into its wire form.
func MarshalAction(a Action) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil action", ErrInvalidAction)
	}
	b, err := actionJSON.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s action: %w", a.Kind(), err)
	}
	return b, nil
}

// MustMarshalAction is MarshalAction for statically known actions.
func MustMarshalAction(a Action) json.RawMessage {
	b, err := MarshalAction(a)
	if err != nil {
		panic(err)
	}
	return b
}

// CanonicalJSON returns the compact form of a raw action for log lines.
// Key order and string contents are preserved as received.
func CanonicalJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// fieldKind is the primitive type a required or optional field must carry.
type fieldKind int

const (
	fieldString fieldKind = iota
	fieldBool
	fieldNonNegInt
)

type fieldRule struct {
	name     string
	kind     fieldKind
	required bool
}

// actionRules is the single table that decides which fields each kind needs.
var actionRules = map[ActionKind][]fieldRule{
	KindNavigate: {{name: "url", kind: fieldString, required: true}},
	KindClick:    {{name: "selector", kind: fieldString, required: true}},
	KindType: {
		{name: "selector", kind: fieldString, required: true},
		{name: "text", kind: fieldString, required: true},
		{name: "submit", kind: fieldBool},
	},
	KindWait: {{name: "ms", kind: fieldNonNegInt}},
	KindStarGithubRepo: {
		{name: "owner", kind: fieldString, required: true},
		{name: "repo", kind: fieldString, required: true},
	},
}

// IsValidAction reports whether raw is an action object whose tag is one of
// the known kinds and whose fields satisfy that kind.
func IsValidAction(raw json.RawMessage) bool {
	_, err := DecodeAction(raw)
	return err == nil
}

// DecodeAction validates raw and converts it into the typed Action. Unknown
// tags wrap ErrUnknownAction, any other violation wraps ErrInvalidAction.
func DecodeAction(raw json.RawMessage) (Action, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: not a JSON object: %s", ErrInvalidAction, CanonicalJSON(raw))
	}

	var kind ActionKind
	tag, ok := fields["type"]
	if !ok || json.Unmarshal(tag, (*string)(&kind)) != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, CanonicalJSON(raw))
	}
	rules, ok := actionRules[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, CanonicalJSON(raw))
	}

	// submit belongs to "type" alone.
	if _, has := fields["submit"]; has && kind != KindType {
		return nil, fmt.Errorf("%w: %q does not accept submit", ErrInvalidAction, kind)
	}

	strs := make(map[string]string)
	var submit bool
	var ms *int
	for _, rule := range rules {
		v, present := fields[rule.name]
		if !present || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			if rule.required {
				return nil, fmt.Errorf("%w: %s is missing %q", ErrInvalidAction, kind, rule.name)
			}
			continue
		}
		switch rule.kind {
		case fieldString:
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return nil, fmt.Errorf("%w: %s.%s must be a string", ErrInvalidAction, kind, rule.name)
			}
			if s == "" {
				return nil, fmt.Errorf("%w: %s.%s must not be empty", ErrInvalidAction, kind, rule.name)
			}
			strs[rule.name] = s
		case fieldBool:
			if err := json.Unmarshal(v, &submit); err != nil {
				return nil, fmt.Errorf("%w: %s.%s must be a boolean", ErrInvalidAction, kind, rule.name)
			}
		case fieldNonNegInt:
			var f float64
			if err := json.Unmarshal(v, &f); err != nil {
				return nil, fmt.Errorf("%w: %s.%s must be a number", ErrInvalidAction, kind, rule.name)
			}
			if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
				return nil, fmt.Errorf("%w: %s.%s must be a non-negative integer", ErrInvalidAction, kind, rule.name)
			}
			n := int(f)
			ms = &n
		}
	}

	switch kind {
	case KindNavigate:
		return Navigate{URL: strs["url"]}, nil
	case KindClick:
		return Click{Selector: strs["selector"]}, nil
	case KindType:
		return Type{Selector: strs["selector"], Text: strs["text"], Submit: submit}, nil
	case KindWait:
		return Wait{MS: ms}, nil
	case KindStarGithubRepo:
		return StarGithubRepo{Owner: strs["owner"], Repo: strs["repo"]}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownAction, CanonicalJSON(raw))
}

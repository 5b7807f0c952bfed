// Package expand implements the {{var}} interpolation scheme from
// spec.md §4.8: left-to-right scanning, unresolved names left verbatim,
// a lone "{" that isn't the start of "{{" treated as a literal byte.
package expand

import "strings"

// Scope resolves a variable name to its value during expansion. The
// executors back this with a ChainScope: recipe parameters (sequential
// executor only), then jakefile variables, then the ambient
// environment. @export'd names have no layer of their own.
type Scope interface {
	Lookup(name string) (string, bool)
}

// MapScope is the simplest Scope: a plain name->value map.
type MapScope map[string]string

func (m MapScope) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// ChainScope tries each Scope in order, first hit wins.
type ChainScope []Scope

func (c ChainScope) Lookup(name string) (string, bool) {
	for _, s := range c {
		if v, ok := s.Lookup(name); ok {
			return v, true
		}
	}
	return "", false
}

// Expand replaces every {{name}} in s with its resolved value. A name
// that fails to resolve is left untouched, literal braces and all.
// Re-expanding the output of a prior call is a no-op, since every
// {{name}} remaining in it failed to resolve the first time too.
func Expand(s string, scope Scope) string {
	if !strings.Contains(s, "{{") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	i := 0
	for i < len(s) {
		if s[i] == '{' && i+1 < len(s) && s[i+1] == '{' {
			end := strings.Index(s[i+2:], "}}")
			if end < 0 {
				// Unterminated "{{" — write out the rest verbatim.
				b.WriteString(s[i:])
				return b.String()
			}
			name := s[i+2 : i+2+end]
			if v, ok := lookupBuiltin(name, scope); ok {
				b.WriteString(v)
			} else {
				b.WriteString("{{")
				b.WriteString(name)
				b.WriteString("}}")
			}
			i = i + 2 + end + 2
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

// HookContext carries the hook-only builtin keys from spec.md §4.6:
// {{name}}, {{status}}, {{error}}.
type HookContext struct {
	RecipeName string
	Success    bool
	Err        error
}

type hookScope struct {
	ctx   HookContext
	inner Scope
}

// WithHookContext wraps inner so {{name}}, {{status}} and {{error}}
// resolve before falling through to the ordinary variable scope.
func WithHookContext(ctx HookContext, inner Scope) Scope {
	return hookScope{ctx: ctx, inner: inner}
}

func (h hookScope) Lookup(name string) (string, bool) {
	switch name {
	case "name":
		return h.ctx.RecipeName, true
	case "status":
		if h.ctx.Success {
			return "success", true
		}
		return "failed", true
	case "error":
		if h.ctx.Err != nil {
			return h.ctx.Err.Error(), true
		}
		return "", true
	}
	if h.inner != nil {
		return h.inner.Lookup(name)
	}
	return "", false
}

func lookupBuiltin(name string, scope Scope) (string, bool) {
	if scope == nil {
		return "", false
	}
	return scope.Lookup(name)
}

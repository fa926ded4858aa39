package mvc

import (
	"fmt"
	"strings"
)

// DefaultPattern is the conventional route. Existing links depend on it.
const DefaultPattern = "{controller=Home}/{action=Index}/{id?}"

type segment struct {
	literal  string
	param    string
	def      string
	hasDef   bool
	optional bool
}

func (s segment) isParam() bool { return s.param != "" }

// RoutePattern is a parsed route template made of literal segments and
// {name}, {name=default} or {name?} parameters.
type RoutePattern struct {
	template string
	segments []segment
}

func ParsePattern(template string) (*RoutePattern, error) {
	trimmed := strings.Trim(template, "/")
	p := &RoutePattern{template: template}
	if trimmed == "" {
		return p, nil
	}

	seen := map[string]bool{}
	tail := false // a defaulted or optional segment was seen
	for _, raw := range strings.Split(trimmed, "/") {
		seg, err := parseSegment(raw)
		if err != nil {
			return nil, fmt.Errorf("mvc: route %q: %w", template, err)
		}
		if seg.isParam() {
			key := strings.ToLower(seg.param)
			if seen[key] {
				return nil, fmt.Errorf("mvc: route %q: parameter %q used twice", template, seg.param)
			}
			seen[key] = true
		}
		canBeOmitted := seg.hasDef || seg.optional
		if tail && !canBeOmitted {
			return nil, fmt.Errorf("mvc: route %q: segment %q follows an optional segment", template, raw)
		}
		tail = tail || canBeOmitted
		p.segments = append(p.segments, seg)
	}
	return p, nil
}

// MustParsePattern is ParsePattern for templates known at compile time.
func MustParsePattern(template string) *RoutePattern {
	p, err := ParsePattern(template)
	if err != nil {
		panic(err)
	}
	return p
}

func parseSegment(raw string) (segment, error) {
	if raw == "" {
		return segment{}, fmt.Errorf("empty segment")
	}
	if !strings.HasPrefix(raw, "{") {
		if strings.ContainsAny(raw, "{}") {
			return segment{}, fmt.Errorf("malformed segment %q", raw)
		}
		return segment{literal: raw}, nil
	}
	if !strings.HasSuffix(raw, "}") {
		return segment{}, fmt.Errorf("unterminated parameter %q", raw)
	}

	inner := raw[1 : len(raw)-1]
	var s segment
	if name, def, ok := strings.Cut(inner, "="); ok {
		s.param, s.def, s.hasDef = name, def, true
	} else if name, ok := strings.CutSuffix(inner, "?"); ok {
		s.param, s.optional = name, true
	} else {
		s.param = inner
	}
	if !validParamName(s.param) {
		return segment{}, fmt.Errorf("invalid parameter name %q", s.param)
	}
	return s, nil
}

func validParamName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func (p *RoutePattern) Template() string { return p.template }

// Match resolves a request path against the pattern. Literal segments compare
// case-insensitively; omitted trailing parameters take their defaults.
func (p *RoutePattern) Match(urlPath string) (RouteValues, bool) {
	trimmed := strings.Trim(urlPath, "/")
	var parts []string
	if trimmed != "" {
		parts = strings.Split(trimmed, "/")
	}
	if len(parts) > len(p.segments) {
		return nil, false
	}

	values := RouteValues{}
	for i, seg := range p.segments {
		if i < len(parts) {
			part := parts[i]
			if part == "" {
				return nil, false
			}
			if !seg.isParam() {
				if !strings.EqualFold(part, seg.literal) {
					return nil, false
				}
				continue
			}
			values[seg.param] = part
			continue
		}

		switch {
		case !seg.isParam():
			return nil, false
		case seg.hasDef:
			values[seg.param] = seg.def
		case seg.optional:
		default:
			return nil, false
		}
	}
	return values, true
}

// RouteValues are the parameter values of a matched route.
type RouteValues map[string]string

func (v RouteValues) Get(name string) (string, bool) {
	val, ok := v[name]
	return val, ok
}

func (v RouteValues) Controller() string { return v["controller"] }
func (v RouteValues) Action() string     { return v["action"] }

// ID returns the optional id segment.
func (v RouteValues) ID() (string, bool) { return v.Get("id") }

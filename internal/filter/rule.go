package filter

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Restriction names understood by the rules file.
const (
	RestrictionAfter    = "after"
	RestrictionBefore   = "before"
	RestrictionContains = "contains"
	RestrictionEquals   = "equals"
	RestrictionHas      = "has"
	RestrictionMatches  = "matches"
)

var validRestrictions = map[string]struct{}{
	RestrictionAfter:    {},
	RestrictionBefore:   {},
	RestrictionContains: {},
	RestrictionEquals:   {},
	RestrictionHas:      {},
	RestrictionMatches:  {},
}

// Config is one rule as it appears in the rules file. Value requirements
// depend on the restriction; Keep sets the retention polarity without
// changing the restriction semantics.
type Config struct {
	Restriction string `json:"restriction"`
	Path        string `json:"path"`
	Value       any    `json:"value,omitempty"`
	Keep        bool   `json:"keep"`
}

// ValidationError reports a malformed rule. It is raised once when the
// chain is built, never per record.
type ValidationError struct {
	Rule   int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("rule %d: %s", e.Rule, e.Reason)
}

// matcher computes the match outcome for one restriction. Retention
// polarity is applied by the chain, not here.
type matcher interface {
	match(rec Record, now time.Time) (bool, error)
}

// compile validates one rule config and returns its matcher. Validation
// failures carry the reason only; the chain wraps them with the rule index.
func compile(cfg Config) (matcher, error) {
	if _, ok := validRestrictions[cfg.Restriction]; !ok {
		return nil, fmt.Errorf("unknown restriction %q", cfg.Restriction)
	}
	if err := validatePath(cfg.Path); err != nil {
		return nil, err
	}

	switch cfg.Restriction {
	case RestrictionHas:
		return &hasMatcher{path: cfg.Path}, nil

	case RestrictionEquals:
		if !isPrimitive(cfg.Value) {
			return nil, fmt.Errorf("equals requires a primitive value, got %T", cfg.Value)
		}
		return &equalsMatcher{path: cfg.Path, want: cfg.Value}, nil

	case RestrictionContains:
		if !isPrimitive(cfg.Value) {
			return nil, fmt.Errorf("contains requires a primitive value, got %T", cfg.Value)
		}
		return &containsMatcher{path: cfg.Path, want: cfg.Value}, nil

	case RestrictionMatches:
		pattern, ok := cfg.Value.(string)
		if !ok {
			return nil, fmt.Errorf("matches requires a string pattern, got %T", cfg.Value)
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %v", pattern, err)
		}
		return &matchesMatcher{path: cfg.Path, re: re}, nil

	default: // after, before
		hours, ok := asFloat(cfg.Value)
		if !ok {
			return nil, fmt.Errorf("%s requires a numeric value in hours, got %T", cfg.Restriction, cfg.Value)
		}
		return &windowMatcher{
			path:   cfg.Path,
			offset: time.Duration(hours * float64(time.Hour)),
			after:  cfg.Restriction == RestrictionAfter,
		}, nil
	}
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path must not be empty")
	}
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return fmt.Errorf("path %q has an empty segment", path)
		}
	}
	return nil
}

// isPrimitive reports whether v is a comparable leaf value. nil means the
// rule omitted its value, which counts as missing here.
func isPrimitive(v any) bool {
	switch v.(type) {
	case string, bool, float64, float32, int, int32, int64:
		return true
	}
	return false
}

// asFloat widens any numeric primitive so values from the rules file
// (always float64 after JSON decoding) and values built in code compare
// consistently.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// primitiveEqual compares primitives the way the rules file means it:
// numerics numerically, strings, bools and null with plain equality.
// Containers never compare equal to anything.
func primitiveEqual(a, b any) bool {
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}
	switch a.(type) {
	case string, bool, nil:
		return a == b
	}
	return false
}

type hasMatcher struct {
	path string
}

func (m *hasMatcher) match(rec Record, _ time.Time) (bool, error) {
	_, ok := Resolve(rec, m.path)
	return ok, nil
}

type equalsMatcher struct {
	path string
	want any
}

func (m *equalsMatcher) match(rec Record, _ time.Time) (bool, error) {
	got, ok := Resolve(rec, m.path)
	if !ok {
		return false, nil
	}
	return primitiveEqual(got, m.want), nil
}

type containsMatcher struct {
	path string
	want any
}

func (m *containsMatcher) match(rec Record, _ time.Time) (bool, error) {
	resolved, ok := Resolve(rec, m.path)
	if !ok {
		return false, nil
	}
	list, ok := resolved.([]any)
	if !ok {
		return false, nil
	}
	for _, member := range list {
		if primitiveEqual(member, m.want) {
			return true, nil
		}
	}
	return false, nil
}

type matchesMatcher struct {
	path string
	re   *regexp.Regexp
}

func (m *matchesMatcher) match(rec Record, _ time.Time) (bool, error) {
	resolved, ok := Resolve(rec, m.path)
	if !ok {
		return false, nil
	}
	s, ok := resolved.(string)
	if !ok {
		return false, nil
	}
	return m.re.MatchString(s), nil
}

// windowMatcher handles after and before: the resolved timestamp is
// compared against now shifted by the configured number of hours.
type windowMatcher struct {
	path   string
	offset time.Duration
	after  bool
}

func (m *windowMatcher) match(rec Record, now time.Time) (bool, error) {
	resolved, ok := Resolve(rec, m.path)
	if !ok {
		return false, nil
	}
	t, err := asTime(resolved)
	if err != nil {
		return false, &PathTypeError{Path: m.path, Value: resolved}
	}
	threshold := now.Add(m.offset)
	if m.after {
		return t.After(threshold), nil
	}
	return t.Before(threshold), nil
}

func asTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(time.RFC3339, t)
	}
	return time.Time{}, fmt.Errorf("value %v is not a timestamp", v)
}

package filter

import (
	"fmt"
	"time"
)

// PathTypeError reports a date restriction whose path resolved to a value
// that cannot be read as a timestamp. It aborts the whole batch rather than
// silently dropping one record.
type PathTypeError struct {
	Path  string
	Value any
}

func (e *PathTypeError) Error() string {
	return fmt.Sprintf("path %q: value %v is not parseable as a timestamp", e.Path, e.Value)
}

// compiledRule pairs a matcher with its retention polarity.
type compiledRule struct {
	matcher matcher
	keep    bool
}

// Chain is an ordered conjunction of rules: a record survives only if every
// rule's retention decision holds.
type Chain struct {
	rules []compiledRule
}

// NewChain compiles and validates every rule up front. It fails with a
// *ValidationError on the first malformed rule, so a bad rules file never
// reaches evaluation.
func NewChain(configs []Config) (*Chain, error) {
	rules := make([]compiledRule, 0, len(configs))
	for i, cfg := range configs {
		m, err := compile(cfg)
		if err != nil {
			return nil, &ValidationError{Rule: i, Reason: err.Error()}
		}
		rules = append(rules, compiledRule{matcher: m, keep: cfg.Keep})
	}
	return &Chain{rules: rules}, nil
}

// Len returns the number of rules in the chain.
func (c *Chain) Len() int {
	return len(c.rules)
}

// Apply evaluates every record against every rule and returns the survivors
// in their original order. The reference instant for the date restrictions
// is captured once for the whole batch, so every record in it is compared
// against the same now.
func (c *Chain) Apply(records []Record) ([]Record, error) {
	return c.ApplyAt(records, time.Now())
}

// ApplyAt is Apply with an explicit reference instant.
func (c *Chain) ApplyAt(records []Record, now time.Time) ([]Record, error) {
	if len(c.rules) == 0 {
		return records, nil
	}
	kept := make([]Record, 0, len(records))
	for _, rec := range records {
		retained, err := c.retains(rec, now)
		if err != nil {
			return nil, err
		}
		if retained {
			kept = append(kept, rec)
		}
	}
	return kept, nil
}

// retains short-circuits on the first rule that rejects the record; the
// result is a conjunction, so evaluation order cannot change it.
func (c *Chain) retains(rec Record, now time.Time) (bool, error) {
	for _, rule := range c.rules {
		matched, err := rule.matcher.match(rec, now)
		if err != nil {
			return false, err
		}
		if matched != rule.keep {
			return false, nil
		}
	}
	return true, nil
}

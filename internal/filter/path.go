// Package filter reduces raw alert records to the subset worth publishing,
// driven by a declarative rule chain loaded from configuration.
package filter

import "strings"

// Record is one alert as decoded from the feed: a nested string-keyed tree
// whose values are primitives, nested objects, or lists.
type Record = map[string]any

// Resolve walks rec along the dot-separated path one segment at a time.
// The second return is false when a segment is missing or the current node
// is not a traversable object. Absence is a normal outcome, not an error;
// the has restriction and the presence checks of the other restrictions
// consume it directly.
func Resolve(rec Record, path string) (any, bool) {
	var current any = rec
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

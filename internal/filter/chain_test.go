package filter

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func sampleRecords(now time.Time) []Record {
	return []Record{
		{
			"id": "alert-1",
			"properties": map[string]any{
				"event":    "Tornado Warning",
				"severity": "Extreme",
				"expires":  now.Add(10 * time.Hour).Format(time.RFC3339),
			},
		},
		{
			"id": "alert-2",
			"properties": map[string]any{
				"event":      "Flood Advisory",
				"severity":   "Minor",
				"expires":    now.Add(5 * time.Hour).Format(time.RFC3339),
				"replacedBy": "alert-3",
			},
		},
		{
			"id": "alert-3",
			"properties": map[string]any{
				"event":    "Flood Advisory",
				"severity": "Minor",
				"expires":  now.Add(30 * time.Minute).Format(time.RFC3339),
			},
		},
	}
}

func TestEmptyChainIsIdentity(t *testing.T) {
	now := time.Now()
	records := sampleRecords(now)

	chain, err := NewChain(nil)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	kept, err := chain.ApplyAt(records, now)
	if err != nil {
		t.Fatalf("ApplyAt: %v", err)
	}
	if !reflect.DeepEqual(kept, records) {
		t.Error("empty chain must return the input unchanged")
	}
}

func TestComplementaryRulesCancel(t *testing.T) {
	now := time.Now()
	records := sampleRecords(now)

	configs := []struct {
		name string
		cfg  Config
	}{
		{name: "has", cfg: Config{Restriction: "has", Path: "properties.replacedBy"}},
		{name: "equals", cfg: Config{Restriction: "equals", Path: "properties.severity", Value: "Minor"}},
		{name: "matches", cfg: Config{Restriction: "matches", Path: "properties.event", Value: "Warning"}},
		{name: "after", cfg: Config{Restriction: "after", Path: "properties.expires", Value: 1}},
	}

	for _, tc := range configs {
		t.Run(tc.name, func(t *testing.T) {
			rule := tc.cfg
			rule.Keep = true
			twin := tc.cfg
			twin.Keep = false

			chain, err := NewChain([]Config{rule, twin})
			if err != nil {
				t.Fatalf("NewChain: %v", err)
			}
			kept, err := chain.ApplyAt(records, now)
			if err != nil {
				t.Fatalf("ApplyAt: %v", err)
			}
			if len(kept) != 0 {
				t.Errorf("a rule and its polarity twin must cancel, kept %d records", len(kept))
			}
		})
	}
}

func TestChainConjunctionAndOrder(t *testing.T) {
	now := time.Now()
	records := sampleRecords(now)

	chain, err := NewChain([]Config{
		{Restriction: "has", Path: "properties.replacedBy", Keep: false},
		{Restriction: "after", Path: "properties.expires", Value: 0, Keep: true},
	})
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	kept, err := chain.ApplyAt(records, now)
	if err != nil {
		t.Fatalf("ApplyAt: %v", err)
	}

	// alert-2 is superseded; alert-1 and alert-3 survive in input order.
	if len(kept) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(kept))
	}
	if kept[0]["id"] != "alert-1" || kept[1]["id"] != "alert-3" {
		t.Errorf("survivors out of order: %v, %v", kept[0]["id"], kept[1]["id"])
	}
}

func TestUnparseableTimestampAbortsBatch(t *testing.T) {
	now := time.Now()
	records := []Record{
		{"properties": map[string]any{"expires": now.Add(time.Hour).Format(time.RFC3339)}},
		{"properties": map[string]any{"expires": "not-a-timestamp"}},
	}

	chain, err := NewChain([]Config{
		{Restriction: "after", Path: "properties.expires", Value: 0, Keep: true},
	})
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	kept, err := chain.ApplyAt(records, now)
	if err == nil {
		t.Fatal("expected the batch to abort on the unparseable timestamp")
	}
	var perr *PathTypeError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PathTypeError, got %T: %v", err, err)
	}
	if perr.Path != "properties.expires" {
		t.Errorf("unexpected path in error: %q", perr.Path)
	}
	if kept != nil {
		t.Error("an aborted batch must not return partial survivors")
	}
}

func TestNonStringTimestampAbortsBatch(t *testing.T) {
	chain, err := NewChain([]Config{
		{Restriction: "before", Path: "properties.expires", Value: 0, Keep: true},
	})
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}

	records := []Record{
		{"properties": map[string]any{"expires": float64(1717243200)}},
	}
	_, err = chain.ApplyAt(records, time.Now())
	var perr *PathTypeError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PathTypeError for a numeric expires, got %v", err)
	}
}

func TestChainLen(t *testing.T) {
	chain, err := NewChain([]Config{
		{Restriction: "has", Path: "a", Keep: true},
		{Restriction: "has", Path: "b", Keep: false},
	})
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	if chain.Len() != 2 {
		t.Errorf("Len = %d, want 2", chain.Len())
	}
}

// Package message renders forecast and alert posts for the status platform.
package message

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"stormcrier/internal/feed"
	"stormcrier/internal/filter"
)

// MaxLength is the platform's post length limit, counted in characters.
const MaxLength = 500

// maxPeriods bounds how many forecast windows fit in one post.
const maxPeriods = 3

// lateLine replaces sampled content on catch-up runs, so a late post never
// presents stale sampling as current.
const lateLine = "Catch-up report. Stay weather aware."

type weightedLine struct {
	text   string
	weight int
}

// defaultTrivia are the closing lines sampled onto forecast posts. Safety
// reminders carry more weight than the fun facts.
var defaultTrivia = []weightedLine{
	{text: "Tip: turn around, don't drown. Six inches of moving water can knock you over.", weight: 4},
	{text: "Tip: when thunder roars, go indoors.", weight: 4},
	{text: "Trivia: lightning strikes the planet about eight million times a day.", weight: 2},
	{text: "Trivia: a typical cumulus cloud weighs over a million pounds.", weight: 2},
	{text: "Trivia: snowflakes can take up to an hour to reach the ground.", weight: 1},
	{text: "Trivia: the fastest surface wind gust on record is 253 mph.", weight: 1},
}

// Builder renders posts. Construct with NewBuilder; the zero value panics
// on first sample.
type Builder struct {
	location string
	rng      *rand.Rand
	trivia   []weightedLine
}

// NewBuilder returns a Builder for the given location. Pass seed 0 to seed
// the trivia sampler from the clock; tests pass a fixed seed.
func NewBuilder(location string, seed int64) *Builder {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Builder{
		location: location,
		rng:      rand.New(rand.NewSource(seed)),
		trivia:   defaultTrivia,
	}
}

// Forecast renders the next periods with one closing line. Late runs get
// the generic line instead of a sampled one.
func (b *Builder) Forecast(fc *feed.Forecast, late bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Forecast for %s:\n", b.location)
	for i, p := range fc.Periods {
		if i == maxPeriods {
			break
		}
		fmt.Fprintf(&sb, "%s: %s, %.0f°%s, wind %s\n", p.Name, p.ShortForecast, p.Temperature, p.TemperatureUnit, p.WindSpeed)
	}
	sb.WriteString(b.Trivia(late))
	return Truncate(sb.String())
}

// Alert renders one surviving alert record. Missing fields fall back to
// generic wording instead of failing the cycle.
func (b *Builder) Alert(rec filter.Record) string {
	event := stringAt(rec, "properties.event", "Weather alert")
	area := stringAt(rec, "properties.areaDesc", b.location)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s for %s", event, area)
	if headline := stringAt(rec, "properties.headline", ""); headline != "" {
		sb.WriteString("\n")
		sb.WriteString(headline)
	}
	if instruction := stringAt(rec, "properties.instruction", ""); instruction != "" {
		sb.WriteString("\n")
		sb.WriteString(instruction)
	}
	return Truncate(sb.String())
}

// Trivia returns one sampled closing line, or the generic line on late
// runs.
func (b *Builder) Trivia(late bool) string {
	if late {
		return lateLine
	}
	return b.sample()
}

// sample walks the cumulative weight distribution.
func (b *Builder) sample() string {
	total := 0
	for _, line := range b.trivia {
		total += line.weight
	}
	n := b.rng.Intn(total)
	for _, line := range b.trivia {
		n -= line.weight
		if n < 0 {
			return line.text
		}
	}
	return b.trivia[len(b.trivia)-1].text
}

// Truncate enforces the platform length limit, ellipsizing on overflow.
func Truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxLength {
		return s
	}
	return string(runes[:MaxLength-1]) + "…"
}

func stringAt(rec filter.Record, path, fallback string) string {
	v, ok := filter.Resolve(rec, path)
	if !ok {
		return fallback
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return fallback
	}
	return s
}

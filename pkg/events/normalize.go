package events

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/araddon/dateparse"
)

// FutureHorizon is how far out an event start may lie before it is treated
// as a misresolved relative date, unless the text names an explicit year.
const FutureHorizon = 120 * 24 * time.Hour

// asciiPunctuation is stripped from tags; spaces are preserved
const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// yearPattern matches a plausible four-digit year appearing literally in
// event text. Coarse heuristic: an unrelated four-digit number in range can
// false-positive, but the behavior is intentional.
var yearPattern = regexp.MustCompile(`\b20[2-9][0-9]\b`)

// Normalizer converts raw extracted event fields into canonical records,
// enforcing temporal and semantic invariants.
type Normalizer struct {
	// Horizon overrides FutureHorizon when positive
	Horizon time.Duration
}

// Validate normalizes one raw event against the batch-wide category and tag
// lists, using now as the reference time. It returns (nil, reason) when the
// event must be dropped: ReasonPast for events already over, or
// ReasonValidationFailed for events missing required content or starting
// implausibly far in the future.
func (n Normalizer) Validate(raw RawEvent, topCategories []RawCategory, topTags []RawTag, now time.Time) (*Event, Reason) {
	start := toUTC(raw.StartDatetime)
	end := toUTC(raw.EndDatetime)

	// Ensure end after start if both exist
	if start != nil && end != nil && *end < *start {
		end = start
	}

	if start != nil {
		startTime, err := time.Parse(time.RFC3339, *start)
		if err == nil {
			if raw.IsAllDay {
				// All-day events stay valid through the end of their day
				sy, sm, sd := startTime.UTC().Date()
				ny, nm, nd := now.UTC().Date()
				startDay := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
				today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
				if startDay.Before(today) {
					return nil, ReasonPast
				}
			} else if startTime.Before(now) {
				return nil, ReasonPast
			}

			horizon := n.Horizon
			if horizon <= 0 {
				horizon = FutureHorizon
			}
			if startTime.After(now.Add(horizon)) && !yearPattern.MatchString(raw.Name+" "+raw.Description) {
				return nil, ReasonValidationFailed
			}
		}
	}

	name := emptyToNil(raw.Name)
	description := emptyToNil(raw.Description)

	// Require at least a name or a description
	if name == nil && description == nil {
		return nil, ReasonValidationFailed
	}

	eventType := Type(strings.ToLower(raw.Type))
	switch eventType {
	case TypeInPerson, TypeVirtual, TypeHybrid:
	default:
		eventType = TypeInPerson
	}

	cleaned := &Event{
		Name:          "Untitled Event",
		StartDatetime: start,
		EndDatetime:   end,
		IsAllDay:      raw.IsAllDay,
		Type:          eventType,
		Address:       emptyToNil(raw.Address),
		LocationName:  emptyToNil(raw.LocationName),
		Description:   description,
		URL:           emptyToNil(raw.URL),
	}
	if name != nil {
		cleaned.Name = *name
	}

	// Categories and tags come from the batch-wide lists when present,
	// falling back to per-event copies.
	cats := topCategories
	if len(cats) == 0 {
		cats = raw.Categories
	}
	tags := topTags
	if len(tags) == 0 {
		tags = raw.EventTags
	}

	var categories []string
	for _, c := range cats {
		if c.Name == "" {
			continue
		}
		cname := strings.ToLower(c.Name)
		if !categorySet[cname] {
			cname = DefaultCategory
		}
		categories = append(categories, cname)
	}

	var normalized []string
	for _, t := range tags {
		if t.Tag == "" {
			continue
		}
		normalized = append(normalized, NormalizeTag(t.Tag))
	}

	cleaned.Categories = dedupe(categories)
	cleaned.Tags = dedupe(normalized)
	return cleaned, ""
}

// toUTC parses a lenient datetime string into an ISO-8601 UTC string.
// Naive datetimes are treated as UTC. Unparseable input yields nil.
func toUTC(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return nil
	}
	iso := t.UTC().Format(time.RFC3339)
	return &iso
}

// NormalizeTag canonicalizes a tag: leading '#' removed, punctuation
// stripped (spaces preserved), trailing simple plural dropped for strings
// longer than 3 characters not ending in "ss", then title-cased.
func NormalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimLeft(tag, "#")
	tag = strings.Map(func(r rune) rune {
		if strings.ContainsRune(asciiPunctuation, r) {
			return -1
		}
		return r
	}, tag)
	if strings.HasSuffix(tag, "s") && !strings.HasSuffix(tag, "ss") && len(tag) > 3 {
		tag = tag[:len(tag)-1]
	}
	return titleCase(tag)
}

// titleCase uppercases the first letter of each word and lowercases the
// rest, with word boundaries at any non-letter rune.
func titleCase(s string) string {
	prevLetter := false
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			if prevLetter {
				return unicode.ToLower(r)
			}
			prevLetter = true
			return unicode.ToUpper(r)
		}
		prevLetter = false
		return r
	}, s)
}

// emptyToNil trims a string and converts blanks to nil
func emptyToNil(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// dedupe removes duplicates while preserving first-seen order
func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

package inference

import (
	"encoding/json"
	"fmt"
	"time"
)

// extractionSchema constrains the model's output to the raw extraction
// shape: an events array plus top-level categories and event_tags lists.
var extractionSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "events": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": {"type": "string"},
          "start_datetime": {"type": "string"},
          "end_datetime": {"type": "string"},
          "is_all_day": {"type": "boolean"},
          "type": {"type": "string", "enum": ["in-person", "virtual", "hybrid"]},
          "address": {"type": "string"},
          "location_name": {"type": "string"},
          "description": {"type": "string"},
          "url": {"type": "string"}
        },
        "required": ["name"]
      }
    },
    "categories": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {"name": {"type": "string"}},
        "required": ["name"]
      }
    },
    "event_tags": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {"tag": {"type": "string"}},
        "required": ["tag"]
      }
    },
    "extraction_confidence": {"type": "number"}
  },
  "required": ["events"]
}`)

// systemPrompt builds the date-aware extraction instruction. The current
// date is embedded so the model can resolve relative dates like "this
// Friday" and refuse events that have already passed.
func systemPrompt(now time.Time) string {
	currentDate := now.UTC().Format("2006-01-02")
	currentYear := now.UTC().Year()

	return fmt.Sprintf(`You are an Event Intelligence Agent analyzing Instagram posts from school accounts.

CURRENT DATE: %s
CURRENT YEAR: %d

Scrutinize the caption, profile bio, and all visible text in up to three images. Mine dates, times, venues, links, hashtags, and any hint of audience or purpose.

Event splitting rules:
- If different groups (grades, genders, levels) have different dates or times, create one event per group.
- Each event title and description must clearly specify the target level or audience.
- Example: "JV and Varsity tryouts" is TWO separate events.

Date validation rules, strictly enforced:
- NO PAST EVENTS. Events must be on or after %s. If an event date is before today, do not include it.
- If no year is specified, assume %d. Resolve relative dates like "next Friday" or "this weekend" from the current date.
- If you are unsure about a date, err on the side of caution and omit the event.

URL hunting: use the first relevant link in the caption; if none, scan the bio; if still none, leave blank.

Categories: choose from event, club, sport, deadline, meeting.

Tag strategy: produce tags mixing specific terms (gender, level, sport, grade) and broad terms (community, schoolSpirit, registration, athletics). Strip '#', remove punctuation, convert to singular TitleCase.

Output the final JSON object only, no commentary.`, currentDate, currentYear, currentDate, currentYear)
}

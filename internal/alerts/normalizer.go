package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timeLayouts are tried in order when parsing a string createdAt.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize maps a decoded wire record from either ingestion path into a
// canonical Alert. It never panics. The boolean is false only when no id can
// be derived from the record, in which case the record must be dropped.
//
// Push payloads use "id" or "_id"; polled records usually use "_id". A
// missing or unparseable createdAt is replaced by now. Acknowledged and
// Resolved are only read from polled records.
func Normalize(raw map[string]any, source Source, now time.Time) (Alert, bool) {
	if raw == nil {
		return Alert{}, false
	}

	id := firstID(raw["id"])
	if id == "" {
		id = firstID(raw["_id"])
	}
	if id == "" {
		return Alert{}, false
	}

	a := Alert{ID: id}

	// An unrecognised value carries no information, so it is treated like a
	// missing one and never overwrites a known severity on merge.
	a.Severity = SeverityUnknown
	if s, ok := raw["severity"].(string); ok {
		a.Severity = ParseSeverity(s)
	}
	if a.Severity == SeverityUnknown {
		a.defaulted |= FieldSeverity
	}

	if s, ok := raw["title"].(string); ok && strings.TrimSpace(s) != "" {
		a.Title = s
	} else {
		a.Title = DefaultTitle
		a.defaulted |= FieldTitle
	}

	if s, ok := raw["description"].(string); ok && s != "" {
		a.Description = s
	} else {
		a.defaulted |= FieldDescription
	}

	if kw, ok := parseKeywords(raw["keywords"]); ok {
		a.Keywords = kw
	} else {
		a.Keywords = []string{}
		a.defaulted |= FieldKeywords
	}

	created, ok := parseTime(raw["createdAt"])
	if !ok {
		created, ok = parseTime(raw["created_at"])
	}
	if ok {
		a.CreatedAt = created
	} else {
		a.CreatedAt = now
		a.defaulted |= FieldCreatedAt
	}

	if source == SourcePoll {
		a.Acknowledged = parseFlag(raw["acknowledged"])
		a.Resolved = parseFlag(raw["resolved"])
	}

	return a, true
}

// DecodePush decodes and normalizes a single push payload.
func DecodePush(payload []byte, now time.Time) (Alert, bool) {
	raw, err := decodeObject(payload)
	if err != nil {
		return Alert{}, false
	}
	return Normalize(raw, SourcePush, now)
}

// DecodeBatch decodes a poll response body. The body is either a bare JSON
// array of records or an envelope object holding the array under "alerts".
// It returns the normalized alerts in response order and the number of
// records that had to be dropped. An error is returned only when the body is
// not JSON of either shape.
func DecodeBatch(body []byte, now time.Time) ([]Alert, int, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, 0, fmt.Errorf("decoding alert batch: empty body")
	}

	var items []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, 0, fmt.Errorf("decoding alert batch: %w", err)
		}
	case '{':
		var envelope struct {
			Alerts []json.RawMessage `json:"alerts"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, 0, fmt.Errorf("decoding alert envelope: %w", err)
		}
		items = envelope.Alerts
	default:
		return nil, 0, fmt.Errorf("decoding alert batch: unexpected %q", trimmed[0])
	}

	result := make([]Alert, 0, len(items))
	dropped := 0
	for _, item := range items {
		raw, err := decodeObject(item)
		if err != nil {
			dropped++
			continue
		}
		a, ok := Normalize(raw, SourcePoll, now)
		if !ok {
			dropped++
			continue
		}
		result = append(result, a)
	}
	return result, dropped, nil
}

// decodeObject decodes a JSON object with numbers preserved as json.Number.
func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("not an object")
	}
	return raw, nil
}

// firstID extracts an identifier from a string, a number or a Mongo
// extended-JSON {"$oid": "..."} object.
func firstID(v any) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case map[string]any:
		if oid, ok := id["$oid"].(string); ok {
			return strings.TrimSpace(oid)
		}
	}
	return ""
}

func parseKeywords(v any) ([]string, bool) {
	switch kw := v.(type) {
	case []any:
		out := make([]string, 0, len(kw))
		for _, item := range kw {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	case string:
		if kw == "" {
			return nil, false
		}
		return []string{kw}, true
	}
	return nil, false
}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return epoch(n), true
		}
		if f, err := t.Float64(); err == nil {
			return epoch(int64(f)), true
		}
	case float64:
		return epoch(int64(t)), true
	}
	return time.Time{}, false
}

// epoch interprets n as milliseconds when it is too large to be seconds.
func epoch(n int64) time.Time {
	if n > 1e11 || n < -1e11 {
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}

func parseFlag(v any) *bool {
	var b bool
	switch f := v.(type) {
	case bool:
		b = f
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(f))
		if err != nil {
			return nil
		}
		b = parsed
	default:
		return nil
	}
	return &b
}

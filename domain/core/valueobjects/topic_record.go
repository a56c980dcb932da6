package valueobjects

import (
	"bytes"
	"encoding/json"
	"strings"
)

// DefaultRelationshipType is used when an extraction record names no type.
const DefaultRelationshipType = "RELATES_TO"

// TopicRecord is one unit of extraction output: a main topic, the topics it
// relates to, and the label for those relations.
type TopicRecord struct {
	Topic            string   `json:"topic"`
	RelatedTopics    []string `json:"related_topics"`
	RelationshipType string   `json:"relationship_type,omitempty"`
}

// MainTopic returns the topic name with surrounding whitespace removed.
// An empty result means the record must be skipped.
func (r TopicRecord) MainTopic() string {
	return strings.TrimSpace(r.Topic)
}

// RelationType returns the relationship label, defaulting to RELATES_TO.
func (r TopicRecord) RelationType() string {
	if t := strings.TrimSpace(r.RelationshipType); t != "" {
		return t
	}
	return DefaultRelationshipType
}

// ParseTopicRecords validates raw model output against the extraction
// schema: a JSON array of objects with a string "topic", an optional array
// of strings "related_topics" and an optional string "relationship_type".
// Markdown code fences around the array are tolerated. Any mismatch yields
// an empty, non-nil slice.
func ParseTopicRecords(raw string) []TopicRecord {
	payload := stripCodeFence(raw)
	if payload == "" {
		return []TopicRecord{}
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return []TopicRecord{}
	}

	records := make([]TopicRecord, 0, len(items))
	for _, item := range items {
		record, ok := parseTopicRecord(item)
		if !ok {
			return []TopicRecord{}
		}
		records = append(records, record)
	}
	return records
}

func parseTopicRecord(item json.RawMessage) (TopicRecord, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
		return TopicRecord{}, false
	}

	var record TopicRecord
	if rawTopic, ok := fields["topic"]; ok && !isNull(rawTopic) {
		if err := json.Unmarshal(rawTopic, &record.Topic); err != nil {
			return TopicRecord{}, false
		}
	}

	if rawRelated, ok := fields["related_topics"]; ok && !isNull(rawRelated) {
		if err := json.Unmarshal(rawRelated, &record.RelatedTopics); err != nil {
			return TopicRecord{}, false
		}
	}

	if rawType, ok := fields["relationship_type"]; ok && !isNull(rawType) {
		if err := json.Unmarshal(rawType, &record.RelationshipType); err != nil {
			return TopicRecord{}, false
		}
	}

	return record, true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// stripCodeFence removes a surrounding ```json ... ``` block if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

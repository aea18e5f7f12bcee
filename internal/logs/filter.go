package logs

import (
	"encoding/json"
	"strings"
)

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "warning": 2, "error": 3}

// Filter selects log lines. Zero fields match everything.
type Filter struct {
	Component string
	// MinLevel drops records below this level.
	MinLevel string
	Keyword  string
}

// Match reports whether line passes the filter.
func (f Filter) Match(line string) bool {
	if f == (Filter{}) {
		return true
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return f.matchText(line)
	}
	if f.Component != "" && !strings.EqualFold(stringField(record, "component"), f.Component) {
		return false
	}
	if f.Keyword != "" && !strings.EqualFold(stringField(record, "keyword"), f.Keyword) {
		return false
	}
	if floor, ok := levelRank[strings.ToLower(f.MinLevel)]; ok {
		if rank, known := levelRank[strings.ToLower(stringField(record, "level"))]; known && rank < floor {
			return false
		}
	}
	return true
}

func (f Filter) matchText(line string) bool {
	lower := strings.ToLower(line)
	if f.Component != "" && !strings.Contains(lower, strings.ToLower(f.Component)) {
		return false
	}
	if f.Keyword != "" && !strings.Contains(lower, strings.ToLower(f.Keyword)) {
		return false
	}
	if floor, ok := levelRank[strings.ToLower(f.MinLevel)]; ok && floor > 0 {
		for label, rank := range levelRank {
			if rank < floor && strings.Contains(line, strings.ToUpper(label)+" ") {
				return false
			}
		}
	}
	return true
}

func stringField(record map[string]any, key string) string {
	value, _ := record[key].(string)
	return value
}

package cqlresult

import (
	"encoding/json"
	"regexp"
	"strings"
)

// cqf-ruler renders resources in a list as "Type(id=value, ...)".
var renderedResource = regexp.MustCompile(`^([A-Za-z]+)\s*\(\s*id=([^,\s)]+)`)

// ParseList returns the item identifiers of a List value in source order.
// The value may be a JSON array or the bracketed rendering cqf-ruler uses
// for CQL lists. "null" and "[]" yield an empty, non-nil slice; a value that
// is not bracketed is treated as a single item.
func ParseList(value string) []string {
	v := strings.TrimSpace(value)
	if v == "" || v == "null" {
		return []string{}
	}
	if strings.HasPrefix(v, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(v), &items); err == nil {
			ids := make([]string, 0, len(items))
			for _, item := range items {
				ids = append(ids, jsonItemID(item))
			}
			return ids
		}
		if strings.HasSuffix(v, "]") {
			v = v[1 : len(v)-1]
		}
	}
	parts := splitTopLevel(v)
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		ids = append(ids, renderedItemID(p))
	}
	return ids
}

func jsonItemID(item json.RawMessage) string {
	var s string
	if err := json.Unmarshal(item, &s); err == nil {
		return s
	}
	var res struct {
		ResourceType string `json:"resourceType"`
		ID           string `json:"id"`
	}
	if err := json.Unmarshal(item, &res); err == nil && res.ID != "" {
		if res.ResourceType != "" {
			return res.ResourceType + "/" + res.ID
		}
		return res.ID
	}
	return string(item)
}

func renderedItemID(item string) string {
	if m := renderedResource.FindStringSubmatch(item); m != nil {
		return m[1] + "/" + m[2]
	}
	return item
}

// splitTopLevel splits s on commas that are not nested in brackets,
// parentheses or braces. Empty items are dropped.
func splitTopLevel(s string) []string {
	var (
		parts []string
		depth int
		start int
	)
	add := func(p string) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	for i, r := range s {
		switch r {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				add(s[start:i])
				start = i + 1
			}
		}
	}
	add(s[start:])
	return parts
}

// Package results models the test result tree returned by the bug testing
// service and summarizes it for display.
//
// A TestResultDocument maps defect family -> item -> test -> result string.
// Result strings look like "Passed - element visible". The reserved test key
// "code_snippet" carries the offending HTML fragment and is never counted.
package results

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"bughunter/apperr"
)

// CodeSnippetKey is the reserved test name holding an item's HTML fragment.
const CodeSnippetKey = "code_snippet"

// ItemResult maps test name to result string for one element under test.
type ItemResult map[string]string

// FamilyResult maps item identifier (a link URL, a button id) to its results.
type FamilyResult map[string]ItemResult

// TestResultDocument maps family name ("links", "buttons", ...) to its results.
type TestResultDocument map[string]FamilyResult

// Snippet returns the item's code snippet, if any.
func (it ItemResult) Snippet() string {
	return it[CodeSnippetKey]
}

// Tests returns the non-snippet test names in sorted order.
func (it ItemResult) Tests() []string {
	names := make([]string, 0, len(it))
	for name := range it {
		if name == CodeSnippetKey {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Families returns family names in sorted order.
func (d TestResultDocument) Families() []string {
	return sortedKeys(d)
}

// Items returns item identifiers in sorted order.
func (f FamilyResult) Items() []string {
	return sortedKeys(f)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseDocument decodes and validates a result document. Every leaf must be
// a string; anything else is reported with its family/item/test path.
func ParseDocument(data []byte) (TestResultDocument, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeDocument, "result document is not a JSON object", err)
	}
	doc := make(TestResultDocument, len(raw))
	for family, familyRaw := range raw {
		fr, err := parseFamily(family, familyRaw)
		if err != nil {
			return nil, err
		}
		doc[family] = fr
	}
	return doc, nil
}

func parseFamily(family string, data json.RawMessage) (FamilyResult, error) {
	var raw map[string]json.RawMessage
	if err := decodeObject(data, &raw); err != nil {
		return nil, invalidPath(err, family)
	}
	fr := make(FamilyResult, len(raw))
	for item, itemRaw := range raw {
		var tests map[string]json.RawMessage
		if err := decodeObject(itemRaw, &tests); err != nil {
			return nil, invalidPath(err, family, item)
		}
		ir := make(ItemResult, len(tests))
		for test, valueRaw := range tests {
			var value string
			if err := decodeString(valueRaw, &value); err != nil {
				return nil, invalidPath(err, family, item, test)
			}
			ir[test] = value
		}
		fr[item] = ir
	}
	return fr, nil
}

func decodeObject(data json.RawMessage, v *map[string]json.RawMessage) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("expected object, got %s", describe(trimmed))
	}
	return json.Unmarshal(trimmed, v)
}

func decodeString(data json.RawMessage, v *string) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return fmt.Errorf("expected string, got %s", describe(trimmed))
	}
	return json.Unmarshal(trimmed, v)
}

func describe(data []byte) string {
	if len(data) == 0 {
		return "nothing"
	}
	switch data[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

func invalidPath(err error, path ...string) error {
	return apperr.Wrap(apperr.ErrCodeDocument, "invalid result document at "+strings.Join(path, "/"), err)
}

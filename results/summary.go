package results

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"bughunter/apperr"
)

// ErrNoTests is returned by Score for a family without any non-snippet test.
var ErrNoTests = errors.New("family has no tests")

// Status is the classified outcome of a single test.
type Status string

const (
	StatusPassed  Status = "Passed"
	StatusFailed  Status = "Failed"
	StatusUnknown Status = "Unknown"
)

// Color is the badge color of a score band. Values are CSS color names.
type Color string

const (
	ColorRed        Color = "red"
	ColorOrange     Color = "orange"
	ColorYellow     Color = "yellow"
	ColorLightGreen Color = "lightgreen"
	ColorGreen      Color = "green"
)

// Mode selects which items FilterByStatus keeps.
type Mode string

const (
	ModeAll    Mode = "all"
	ModePassed Mode = "passed"
	ModeFailed Mode = "failed"
)

// ParseMode accepts all, passed or failed in any case. Empty means all.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAll:
		return ModeAll, nil
	case ModePassed:
		return ModePassed, nil
	case ModeFailed:
		return ModeFailed, nil
	}
	return "", apperr.Validation(fmt.Sprintf("unknown filter %q (want all, passed or failed)", s))
}

func isPassed(result string) bool {
	return strings.Contains(strings.ToLower(result), "passed")
}

// itemPassed reports whether every non-snippet test of the item passed.
// An item without tests counts as passed.
func itemPassed(item ItemResult) bool {
	for name, result := range item {
		if name == CodeSnippetKey {
			continue
		}
		if !isPassed(result) {
			return false
		}
	}
	return true
}

// CountPassed counts non-snippet tests across all items of a family.
func CountPassed(family FamilyResult) (passed, total int) {
	for _, item := range family {
		for name, result := range item {
			if name == CodeSnippetKey {
				continue
			}
			total++
			if isPassed(result) {
				passed++
			}
		}
	}
	return passed, total
}

// CountValidItems counts items whose tests all passed.
func CountValidItems(family FamilyResult) (valid, total int) {
	for _, item := range family {
		total++
		if itemPassed(item) {
			valid++
		}
	}
	return valid, total
}

// Score is the rounded percentage of passed tests, or ErrNoTests.
func Score(family FamilyResult) (int, error) {
	passed, total := CountPassed(family)
	return percent(passed, total)
}

func percent(passed, total int) (int, error) {
	if total == 0 {
		return 0, ErrNoTests
	}
	return int(math.Round(100 * float64(passed) / float64(total))), nil
}

// ColorForScore maps a score to its band. Lower bounds are inclusive.
func ColorForScore(score int) Color {
	switch {
	case score < 30:
		return ColorRed
	case score < 60:
		return ColorOrange
	case score < 80:
		return ColorYellow
	case score < 90:
		return ColorLightGreen
	default:
		return ColorGreen
	}
}

// FormattedResult is a result string split into status and description.
type FormattedResult struct {
	Status      Status `json:"status"`
	Description string `json:"description"`
}

// FormatResult splits raw on its first "-" and classifies the leading token.
// Anything not led by passed/failed is Unknown and keeps the whole value.
func FormatResult(raw string) FormattedResult {
	head, tail, _ := strings.Cut(raw, "-")
	head = strings.TrimSpace(head)
	switch {
	case strings.EqualFold(head, "passed"):
		return FormattedResult{Status: StatusPassed, Description: strings.TrimSpace(tail)}
	case strings.EqualFold(head, "failed"):
		return FormattedResult{Status: StatusFailed, Description: strings.TrimSpace(tail)}
	}
	return FormattedResult{Status: StatusUnknown, Description: strings.TrimSpace(raw)}
}

// FilterByStatus returns the items of family matching mode. The input is not
// modified; ModeAll returns a copy of every item.
func FilterByStatus(family FamilyResult, mode Mode) FamilyResult {
	out := make(FamilyResult, len(family))
	for id, item := range family {
		keep := true
		switch mode {
		case ModePassed:
			keep = itemPassed(item)
		case ModeFailed:
			keep = !itemPassed(item)
		}
		if keep {
			out[id] = item
		}
	}
	return out
}

// TitleCase upper-cases the first letter of each whitespace-delimited token
// and lower-cases the rest. Whitespace is kept as is.
func TitleCase(text string) string {
	title := cases.Title(language.Und)
	lower := cases.Lower(language.Und)

	var b strings.Builder
	b.Grow(len(text))
	start := -1
	flush := func(end int) {
		token := text[start:end]
		r, size := utf8.DecodeRuneInString(token)
		if r == utf8.RuneError && size == 1 {
			b.WriteString(token[:1])
		} else {
			b.WriteString(title.String(string(r)))
		}
		b.WriteString(lower.String(token[size:]))
	}
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				flush(i)
				start = -1
			}
			b.WriteRune(r)
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		flush(len(text))
	}
	return b.String()
}

// TestLine is one formatted test of an item.
type TestLine struct {
	Name string `json:"name"`
	FormattedResult
}

// ItemSummary is a display-ready item.
type ItemSummary struct {
	ID      string     `json:"id"`
	Valid   bool       `json:"valid"`
	Snippet string     `json:"code_snippet,omitempty"`
	Tests   []TestLine `json:"tests"`
}

// FamilySummary carries the counts and score of a family plus its items
// after filtering. Counts always cover the whole family.
type FamilySummary struct {
	Name       string        `json:"name"`
	Title      string        `json:"title"`
	Passed     int           `json:"passed"`
	Total      int           `json:"total"`
	ValidItems int           `json:"valid_items"`
	TotalItems int           `json:"total_items"`
	Score      int           `json:"score"`
	Color      Color         `json:"color,omitempty"`
	Empty      bool          `json:"empty"`
	Items      []ItemSummary `json:"items"`
}

// Overall aggregates every family of a report.
type Overall struct {
	Passed int   `json:"passed"`
	Total  int   `json:"total"`
	Score  int   `json:"score"`
	Color  Color `json:"color,omitempty"`
	Empty  bool  `json:"empty"`
}

// Report is a summarized document.
type Report struct {
	Mode     Mode            `json:"mode"`
	Families []FamilySummary `json:"families"`
	Overall  Overall         `json:"overall"`
}

// Summarize scores every family of doc and formats the items kept by mode.
// Families with no tests are marked Empty and left unscored.
func Summarize(doc TestResultDocument, mode Mode) Report {
	rep := Report{Mode: mode, Families: make([]FamilySummary, 0, len(doc))}
	for _, name := range doc.Families() {
		family := doc[name]
		fs := FamilySummary{Name: name, Title: TitleCase(name)}
		fs.Passed, fs.Total = CountPassed(family)
		fs.ValidItems, fs.TotalItems = CountValidItems(family)
		if score, err := percent(fs.Passed, fs.Total); err == nil {
			fs.Score = score
			fs.Color = ColorForScore(score)
		} else {
			fs.Empty = true
		}

		filtered := FilterByStatus(family, mode)
		fs.Items = make([]ItemSummary, 0, len(filtered))
		for _, id := range filtered.Items() {
			fs.Items = append(fs.Items, summarizeItem(id, filtered[id]))
		}

		rep.Overall.Passed += fs.Passed
		rep.Overall.Total += fs.Total
		rep.Families = append(rep.Families, fs)
	}

	if score, err := percent(rep.Overall.Passed, rep.Overall.Total); err == nil {
		rep.Overall.Score = score
		rep.Overall.Color = ColorForScore(score)
	} else {
		rep.Overall.Empty = true
	}
	return rep
}

func summarizeItem(id string, item ItemResult) ItemSummary {
	is := ItemSummary{ID: id, Valid: itemPassed(item), Snippet: item.Snippet()}
	for _, name := range item.Tests() {
		is.Tests = append(is.Tests, TestLine{Name: name, FormattedResult: FormatResult(item[name])})
	}
	return is
}

package results

import (
	"bytes"

	"github.com/goccy/go-json"

	"bughunter/apperr"
)

// Source says what a test run was pointed at.
type Source string

const (
	SourceHTML Source = "html"
	SourceURL  Source = "url"
)

// Outcome is what the results view displays: a document or an error message.
type Outcome struct {
	Source  Source             `json:"source,omitempty"`
	Target  string             `json:"target,omitempty"`
	Results TestResultDocument `json:"results,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// ErrorOutcome builds an outcome carrying only an error message.
func ErrorOutcome(src Source, target, message string) Outcome {
	return Outcome{Source: src, Target: target, Error: message}
}

// Failed reports whether the outcome is an error.
func (o Outcome) Failed() bool {
	return o.Error != ""
}

// MarshalJSON writes "results" on every outcome that is not an error, so an
// empty document reads back as an empty document.
func (o Outcome) MarshalJSON() ([]byte, error) {
	type plain Outcome
	if o.Failed() {
		return json.Marshal(plain(o))
	}
	doc := o.Results
	if doc == nil {
		doc = TestResultDocument{}
	}
	return json.Marshal(struct {
		Source  Source             `json:"source,omitempty"`
		Target  string             `json:"target,omitempty"`
		Results TestResultDocument `json:"results"`
	}{o.Source, o.Target, doc})
}

// Encode serializes the outcome for session storage or export.
func (o Outcome) Encode() ([]byte, error) {
	return json.Marshal(o)
}

// DecodeOutcome reads an encoded outcome back, validating its document.
func DecodeOutcome(data []byte) (Outcome, error) {
	var raw struct {
		Source  Source          `json:"source"`
		Target  string          `json:"target"`
		Results json.RawMessage `json:"results"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Outcome{}, apperr.Wrap(apperr.ErrCodeDocument, "stored outcome is not valid JSON", err)
	}
	out := Outcome{Source: raw.Source, Target: raw.Target, Error: raw.Error}
	if r := bytes.TrimSpace(raw.Results); len(r) > 0 && !bytes.Equal(r, []byte("null")) {
		doc, err := ParseDocument(r)
		if err != nil {
			return Outcome{}, err
		}
		out.Results = doc
	}
	return out, nil
}

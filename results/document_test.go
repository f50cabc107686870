package results

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bughunter/apperr"
)

const sampleDocument = `{
  "links": {
    "http://127.0.0.1:8000/404.html": {
      "code_snippet": "<a href=\"404.html\">Another Broken Link</a>",
      "check broken link": "failed - Status Code: 404"
    }
  },
  "W3C Validation Report": {
    "buggy_website.html": {"doctype": "Failed - Start tag seen without seeing a doctype first"}
  }
}`

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(sampleDocument))
	require.NoError(t, err)

	assert.Equal(t, []string{"W3C Validation Report", "links"}, doc.Families())
	item := doc["links"]["http://127.0.0.1:8000/404.html"]
	assert.Equal(t, `<a href="404.html">Another Broken Link</a>`, item.Snippet())
	assert.Equal(t, []string{"check broken link"}, item.Tests())
}

func TestParseDocument_RejectsMalformedTrees(t *testing.T) {
	cases := map[string]string{
		"not json":      `{"links":`,
		"array root":    `[1,2]`,
		"family string": `{"links": "none"}`,
		"item array":    `{"links": {"a": ["passed"]}}`,
		"number leaf":   `{"links": {"a": {"status": 200}}}`,
		"null leaf":     `{"links": {"a": {"status": null}}}`,
		"object leaf":   `{"links": {"a": {"status": {"ok": true}}}}`,
	}
	for name, input := range cases {
		_, err := ParseDocument([]byte(input))
		assert.True(t, apperr.Is(err, apperr.ErrCodeDocument), name)
	}

	_, err := ParseDocument([]byte(`{"links": {"a": {"status": 200}}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "links/a/status")
	assert.Contains(t, err.Error(), "expected string, got number")
}

func TestOutcome_RoundTrip(t *testing.T) {
	doc, err := ParseDocument([]byte(sampleDocument))
	require.NoError(t, err)

	in := Outcome{Source: SourceURL, Target: "https://example.com", Results: doc}
	data, err := in.Encode()
	require.NoError(t, err)

	out, err := DecodeOutcome(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.False(t, out.Failed())
}

func TestOutcome_ErrorRoundTrip(t *testing.T) {
	in := ErrorOutcome(SourceHTML, "generated_html/buggy_website.html", "File not found")
	data, err := in.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"html","target":"generated_html/buggy_website.html","error":"File not found"}`, string(data))

	out, err := DecodeOutcome(data)
	require.NoError(t, err)
	assert.True(t, out.Failed())
	assert.Nil(t, out.Results)
	assert.Equal(t, in, out)
}

func TestOutcome_EmptyDocumentRoundTrip(t *testing.T) {
	in := Outcome{Source: SourceURL, Target: "https://example.com", Results: TestResultDocument{}}
	data, err := in.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"source":"url","target":"https://example.com","results":{}}`, string(data))

	out, err := DecodeOutcome(data)
	require.NoError(t, err)
	assert.NotNil(t, out.Results)
	assert.Equal(t, in, out)

	data, err = Outcome{}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":{}}`, string(data))
}

func TestDecodeOutcome_Invalid(t *testing.T) {
	_, err := DecodeOutcome([]byte("not json"))
	assert.True(t, apperr.Is(err, apperr.ErrCodeDocument))

	_, err = DecodeOutcome([]byte(`{"results": {"links": {"a": {"t": 1}}}}`))
	assert.True(t, apperr.Is(err, apperr.ErrCodeDocument))
}

package toolkit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bughunter/apperr"
	"bughunter/config"
	"bughunter/results"
)

// fakeService records the last request per path and answers with canned bodies.
type fakeService struct {
	t        *testing.T
	status   map[string]int
	body     map[string]string
	lastJSON map[string]map[string]any
	lastAuth string
	upload   string
}

func newFakeService(t *testing.T) (*fakeService, *Client) {
	f := &fakeService{
		t:        t,
		status:   map[string]int{},
		body:     map[string]string{},
		lastJSON: map[string]map[string]any{},
	}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, NewClient(config.ServiceConfig{BaseURL: srv.URL + "/", AuthToken: "tok", Timeout: 5 * time.Second})
}

func (f *fakeService) serve(w http.ResponseWriter, r *http.Request) {
	f.lastAuth = r.Header.Get("Authorization")
	if r.URL.Path == "/upload" {
		file, header, err := r.FormFile("file")
		if !assert.NoError(f.t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		f.upload = header.Filename + ":" + string(data)
	} else {
		var payload map[string]any
		assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&payload))
		f.lastJSON[r.URL.Path] = payload
	}
	status := f.status[r.URL.Path]
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(f.body[r.URL.Path]))
}

func TestGenerate(t *testing.T) {
	f, c := newFakeService(t)
	f.body["/generate"] = `{"url": "http://127.0.0.1:8000/generated_html/buggy_website.html"}`

	out, err := c.Generate(context.Background(), []string{"broken_link", "missing_alt"})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8000/generated_html/buggy_website.html", out.URL)
	assert.Equal(t, []any{"broken_link", "missing_alt"}, f.lastJSON["/generate"]["bugs"])
	assert.Equal(t, "Bearer tok", f.lastAuth)
}

func TestGenerate_StatusErrorCarriesDetail(t *testing.T) {
	f, c := newFakeService(t)
	f.status["/generate"] = http.StatusUnprocessableEntity
	f.body["/generate"] = `{"detail": "bugs field required"}`

	_, err := c.Generate(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.ErrCodeStatus))
	assert.Equal(t, "bugs field required", apperr.UserMessage(err))
}

func TestGenerate_DecodeError(t *testing.T) {
	f, c := newFakeService(t)
	f.body["/generate"] = `<html>oops</html>`

	_, err := c.Generate(context.Background(), []string{"empty_button"})
	assert.True(t, apperr.Is(err, apperr.ErrCodeDecode))
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(config.ServiceConfig{BaseURL: srv.URL})

	_, err := c.Generate(context.Background(), []string{"empty_button"})
	assert.True(t, apperr.Is(err, apperr.ErrCodeTransport))
}

func TestUpload(t *testing.T) {
	f, c := newFakeService(t)
	f.body["/upload"] = `{"file_path": "uploads/landing.html"}`

	out, err := c.Upload(context.Background(), "landing.html", strings.NewReader("<a>hi</a>"))
	require.NoError(t, err)
	assert.Equal(t, "uploads/landing.html", out.FilePath)
	assert.Equal(t, "landing.html:<a>hi</a>", f.upload)
}

func TestUpload_MissingPath(t *testing.T) {
	f, c := newFakeService(t)
	f.body["/upload"] = `{}`

	_, err := c.Upload(context.Background(), "x.html", strings.NewReader(""))
	assert.True(t, apperr.Is(err, apperr.ErrCodeDecode))
}

func TestTestHTML_BareDocument(t *testing.T) {
	f, c := newFakeService(t)
	f.body["/test_html"] = `{"buttons": {"submit": {"clickable": "Failed - nothing happens", "code_snippet": "<button>Submit</button>"}}}`

	out, err := c.TestHTML(context.Background(), "generated_html/buggy_website.html")
	require.NoError(t, err)
	assert.Equal(t, results.SourceHTML, out.Source)
	assert.Equal(t, "generated_html/buggy_website.html", out.Target)
	assert.Equal(t, "Failed - nothing happens", out.Results["buttons"]["submit"]["clickable"])
	assert.Equal(t, "generated_html/buggy_website.html", f.lastJSON["/test_html"]["file_path"])
}

func TestTestURL_ResultsWrapper(t *testing.T) {
	f, c := newFakeService(t)
	f.body["/test_url"] = `{"results": {"links": {"https://example.com/a": {"check broken link": "passed"}}}}`

	out, err := c.TestURL(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.False(t, out.Failed())
	assert.Equal(t, results.SourceURL, out.Source)
	assert.Equal(t, "passed", out.Results["links"]["https://example.com/a"]["check broken link"])
	assert.Equal(t, "https://example.com", f.lastJSON["/test_url"]["url"])
}

func TestTestHTML_FamilyNamedResults(t *testing.T) {
	f, c := newFakeService(t)
	f.body["/test_html"] = `{"results": {"item1": {"check": "Passed - ok"}}, "links": {"/a": {"href": "Failed - empty"}}}`

	out, err := c.TestHTML(context.Background(), "x.html")
	require.NoError(t, err)
	assert.Equal(t, "Passed - ok", out.Results["results"]["item1"]["check"])
	assert.Equal(t, "Failed - empty", out.Results["links"]["/a"]["href"])
}

func TestTestURL_BareDocumentFallback(t *testing.T) {
	f, c := newFakeService(t)
	f.body["/test_url"] = `{"links": {"/a": {"href": "passed"}}}`

	out, err := c.TestURL(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "passed", out.Results["links"]["/a"]["href"])
}

func TestTestURL_ErrorPayload(t *testing.T) {
	f, c := newFakeService(t)
	f.body["/test_url"] = `{"error": "Unable to reach https://down.example"}`

	out, err := c.TestURL(context.Background(), "https://down.example")
	require.NoError(t, err)
	assert.True(t, out.Failed())
	assert.Equal(t, "Unable to reach https://down.example", out.Error)
	assert.Nil(t, out.Results)
}

func TestTestHTML_InvalidDocument(t *testing.T) {
	f, c := newFakeService(t)
	f.body["/test_html"] = `{"links": {"a": {"status": 404}}}`

	_, err := c.TestHTML(context.Background(), "x.html")
	assert.True(t, apperr.Is(err, apperr.ErrCodeDocument))
}

func TestSuggestFix(t *testing.T) {
	f, c := newFakeService(t)
	f.body["/suggest_fix"] = `{"suggestion": "Suggested Fix:\n\nAdd an href attribute."}`

	out, err := c.SuggestFix(context.Background(), FixRequest{
		Category:    "links",
		Description: "Link Without Href",
		Item:        "<a>Link Without Href</a>",
		Test:        "check broken link",
		CodeSnippet: "<a>Link Without Href</a>",
	})
	require.NoError(t, err)
	assert.Contains(t, out.Suggestion, "Add an href")

	sent := f.lastJSON["/suggest_fix"]
	assert.Equal(t, "links", sent["category"])
	assert.Equal(t, "Link Without Href", sent["description"])
	assert.Equal(t, "<a>Link Without Href</a>", sent["code_snippet"])
}

func TestExtractErrorHint(t *testing.T) {
	assert.Equal(t, "nope", genericErrorHint([]byte(`{"error": "nope"}`)))
	assert.Equal(t, `[{"loc":["body"]}]`, genericErrorHint([]byte(`{"detail": [{"loc": ["body"]}]}`)))
	assert.Equal(t, "", genericErrorHint([]byte(`not json`)))
	assert.Equal(t, "", genericErrorHint(nil))
}

func TestTruncateForLog(t *testing.T) {
	assert.Equal(t, "abc", truncateForLog([]byte("abc"), 5))
	assert.Equal(t, "ab...", truncateForLog([]byte("abcdef"), 2))
}

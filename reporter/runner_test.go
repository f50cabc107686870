package reporter

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bughunter/apperr"
	"bughunter/appstate"
	"bughunter/results"
	"bughunter/toolkit"
)

type fakeService struct {
	generateURL string
	generateErr error
	uploadPath  string
	uploadErr   error
	outcome     results.Outcome
	testErr     error
	suggestion  string

	gotBugs     []string
	gotUpload   string
	gotTestPath string
	gotTestURL  string
	gotFix      toolkit.FixRequest
	calls       int
}

func (f *fakeService) Generate(_ context.Context, bugs []string) (toolkit.GenerateResponse, error) {
	f.calls++
	f.gotBugs = bugs
	return toolkit.GenerateResponse{URL: f.generateURL}, f.generateErr
}

func (f *fakeService) Upload(_ context.Context, filename string, r io.Reader) (toolkit.UploadResponse, error) {
	f.calls++
	b, _ := io.ReadAll(r)
	f.gotUpload = filename + ":" + string(b)
	return toolkit.UploadResponse{FilePath: f.uploadPath}, f.uploadErr
}

func (f *fakeService) TestHTML(_ context.Context, filePath string) (results.Outcome, error) {
	f.calls++
	f.gotTestPath = filePath
	return f.outcome, f.testErr
}

func (f *fakeService) TestURL(_ context.Context, url string) (results.Outcome, error) {
	f.calls++
	f.gotTestURL = url
	return f.outcome, f.testErr
}

func (f *fakeService) SuggestFix(_ context.Context, req toolkit.FixRequest) (toolkit.FixResponse, error) {
	f.calls++
	f.gotFix = req
	return toolkit.FixResponse{Suggestion: f.suggestion}, nil
}

func TestGenerate_UsesEnteredURL(t *testing.T) {
	svc := &fakeService{}
	st := appstate.New()
	st.SetInputURL(" https://example.com ")

	require.NoError(t, NewActions(svc, nil).Generate(context.Background(), st))
	assert.Equal(t, "https://example.com", st.GeneratedURL)
	assert.Zero(t, svc.calls)
}

func TestGenerate_RequiresSelection(t *testing.T) {
	svc := &fakeService{}
	err := NewActions(svc, nil).Generate(context.Background(), appstate.New())
	assert.True(t, apperr.Is(err, apperr.ErrCodeValidation))
	assert.Zero(t, svc.calls)
}

func TestGenerate_Success(t *testing.T) {
	svc := &fakeService{generateURL: "http://127.0.0.1:8000/generated_html/buggy_website.html"}
	st := appstate.New()
	require.NoError(t, st.ToggleBug("broken_link", true))
	require.NoError(t, st.ToggleBug("missing_alt", true))
	st.MarkUploaded("uploads/old.html")

	require.NoError(t, NewActions(svc, nil).Generate(context.Background(), st))
	assert.Equal(t, []string{"broken_link", "missing_alt"}, svc.gotBugs)
	assert.Equal(t, svc.generateURL, st.GeneratedURL)
	assert.Empty(t, st.FileLocation)
	assert.Equal(t, appstate.DefaultUploadButtonText, st.UploadButtonText)
}

func TestGenerate_EmptyURL(t *testing.T) {
	st := appstate.New()
	require.NoError(t, st.ToggleBug("empty_button", true))

	err := NewActions(&fakeService{}, nil).Generate(context.Background(), st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no URL returned")
	assert.Empty(t, st.GeneratedURL)
}

func TestGenerate_ServiceError(t *testing.T) {
	st := appstate.New()
	require.NoError(t, st.ToggleBug("empty_button", true))
	svc := &fakeService{generateErr: apperr.New(apperr.ErrCodeTransport, "connection refused")}

	err := NewActions(svc, nil).Generate(context.Background(), st)
	assert.True(t, apperr.Is(err, apperr.ErrCodeTransport))
}

func TestUpload(t *testing.T) {
	svc := &fakeService{uploadPath: "uploads/page.html"}
	st := appstate.New()

	err := NewActions(svc, nil).Upload(context.Background(), st, "/home/me/page.html", strings.NewReader("<html></html>"))
	require.NoError(t, err)
	assert.Equal(t, "page.html:<html></html>", svc.gotUpload)
	assert.Equal(t, "uploads/page.html", st.FileLocation)
	assert.Equal(t, appstate.UploadedButtonText, st.UploadButtonText)
	assert.Equal(t, appstate.StartTestButtonText, st.HTMLButtonText)

	err = NewActions(svc, nil).Upload(context.Background(), st, " ", strings.NewReader(""))
	assert.True(t, apperr.Is(err, apperr.ErrCodeValidation))
}

func TestTestHTML_DefaultPathAndErrorOutcome(t *testing.T) {
	svc := &fakeService{testErr: apperr.New(apperr.ErrCodeStatus, "test_html: status=500").WithDetails("file not found")}
	out := NewActions(svc, nil).TestHTML(context.Background(), appstate.New())

	assert.Equal(t, appstate.DefaultGeneratedPath, svc.gotTestPath)
	assert.True(t, out.Failed())
	assert.Equal(t, "file not found", out.Error)
	assert.Equal(t, results.SourceHTML, out.Source)
}

func TestTestURL(t *testing.T) {
	doc := results.TestResultDocument{"links": {"a": {"check": "Passed - ok"}}}
	svc := &fakeService{outcome: results.Outcome{Source: results.SourceURL, Results: doc}}
	actions := NewActions(svc, nil)

	_, err := actions.TestURL(context.Background(), appstate.New())
	assert.True(t, apperr.Is(err, apperr.ErrCodeValidation))

	st := appstate.New()
	st.SetInputURL("https://example.com")
	out, err := actions.TestURL(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, doc, out.Results)
	assert.Equal(t, "https://example.com", svc.gotTestURL)

	svc.testErr = errors.New("dial tcp: refused")
	out, err = actions.TestURL(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, "dial tcp: refused", out.Error)
}

func TestSuggestFix(t *testing.T) {
	svc := &fakeService{suggestion: "add an href"}
	actions := NewActions(svc, nil)

	_, err := actions.SuggestFix(context.Background(), toolkit.FixRequest{Category: "links"})
	assert.True(t, apperr.Is(err, apperr.ErrCodeValidation))

	got, err := actions.SuggestFix(context.Background(), toolkit.FixRequest{Category: "links", Item: "a", Test: "has href"})
	require.NoError(t, err)
	assert.Equal(t, "add an href", got)
	assert.Equal(t, "has href", svc.gotFix.Test)
}

func TestBuildReport(t *testing.T) {
	_, err := BuildReport(results.ErrorOutcome(results.SourceURL, "x", "boom"), results.ModeAll)
	assert.Error(t, err)

	doc := results.TestResultDocument{"forms": {"f1": {"submit": "Failed - nothing happens"}}}
	rep, err := BuildReport(results.Outcome{Results: doc}, results.ModeFailed)
	require.NoError(t, err)
	require.Len(t, rep.Families, 1)
	assert.Len(t, rep.Families[0].Items, 1)
}

func TestWriteJSONAndReadOutcomeFile(t *testing.T) {
	dir := t.TempDir()
	doc := results.TestResultDocument{"images": {"logo.png": {"has alt": "Failed - missing", results.CodeSnippetKey: "<img src=logo.png>"}}}

	outcomePath := filepath.Join(dir, "nested", "outcome.json")
	require.NoError(t, WriteJSON(outcomePath, results.Outcome{Source: results.SourceHTML, Target: "a.html", Results: doc}))
	out, err := ReadOutcomeFile(outcomePath)
	require.NoError(t, err)
	assert.Equal(t, doc, out.Results)
	assert.Equal(t, results.SourceHTML, out.Source)

	barePath := filepath.Join(dir, "bare.json")
	require.NoError(t, WriteJSON(barePath, doc))
	out, err = ReadOutcomeFile(barePath)
	require.NoError(t, err)
	assert.Equal(t, doc, out.Results)

	_, err = ReadOutcomeFile(filepath.Join(dir, "missing.json"))
	assert.True(t, apperr.Is(err, apperr.ErrCodeNotFound))
}

func TestReadOutcomeFile_EmptyDocument(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "empty.json")
	in := results.Outcome{Source: results.SourceURL, Target: "http://x", Results: results.TestResultDocument{}}
	require.NoError(t, WriteJSON(path, in))
	out, err := ReadOutcomeFile(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	legacy := filepath.Join(dir, "legacy.json")
	require.NoError(t, os.WriteFile(legacy, []byte(`{"source":"url","target":"http://x"}`), 0o644))
	out, err = ReadOutcomeFile(legacy)
	require.NoError(t, err)
	assert.Equal(t, "http://x", out.Target)
	assert.Empty(t, out.Results)
}

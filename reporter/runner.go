package reporter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"bughunter/apperr"
	"bughunter/appstate"
	"bughunter/logger"
	"bughunter/results"
	"bughunter/toolkit"
)

// Service is the subset of the bug injection service the actions use.
// *toolkit.Client implements it.
type Service interface {
	Generate(ctx context.Context, bugs []string) (toolkit.GenerateResponse, error)
	Upload(ctx context.Context, filename string, r io.Reader) (toolkit.UploadResponse, error)
	TestHTML(ctx context.Context, filePath string) (results.Outcome, error)
	TestURL(ctx context.Context, url string) (results.Outcome, error)
	SuggestFix(ctx context.Context, req toolkit.FixRequest) (toolkit.FixResponse, error)
}

// Actions are the user actions of the form, applied to an explicit state.
type Actions struct {
	svc  Service
	http *http.Client
}

// NewActions wires actions to a service. pageClient fetches generated pages
// for Preview; nil means http.DefaultClient.
func NewActions(svc Service, pageClient *http.Client) *Actions {
	if pageClient == nil {
		pageClient = http.DefaultClient
	}
	return &Actions{svc: svc, http: pageClient}
}

// Generate produces a page for the selected bugs. When the user typed a URL,
// that URL becomes the page and the service is not called.
func (a *Actions) Generate(ctx context.Context, st *appstate.State) error {
	if st.InputURL != "" {
		logger.Info("runner.generate: using entered url", zap.String("url", st.InputURL))
		st.GeneratedURL = st.InputURL
		return nil
	}
	if len(st.SelectedBugs) == 0 {
		return apperr.Validation("select at least one bug")
	}

	logger.Info("runner.generate: start", zap.Int("bugs", len(st.SelectedBugs)))
	resp, err := a.svc.Generate(ctx, st.SelectedBugs)
	if err != nil {
		logger.Warn("runner.generate: failed", zap.Error(err))
		return err
	}
	if strings.TrimSpace(resp.URL) == "" {
		return apperr.New(apperr.ErrCodeDecode, "failed to generate HTML: no URL returned")
	}
	st.MarkGenerated(resp.URL)
	logger.Info("runner.generate: completed", zap.String("page_url", resp.URL))
	return nil
}

// Upload sends a local HTML file to the service and remembers its path.
func (a *Actions) Upload(ctx context.Context, st *appstate.State, filename string, r io.Reader) error {
	if strings.TrimSpace(filename) == "" {
		return apperr.Validation("choose an HTML file to upload")
	}
	resp, err := a.svc.Upload(ctx, filepath.Base(filename), r)
	if err != nil {
		logger.Warn("runner.upload: failed", zap.String("file", filename), zap.Error(err))
		return err
	}
	st.MarkUploaded(resp.FilePath)
	logger.Info("runner.upload: completed", zap.String("file_path", resp.FilePath))
	return nil
}

// TestHTML tests the uploaded file, or the last generated page. Service
// failures come back as an error outcome so the results view can show them.
func (a *Actions) TestHTML(ctx context.Context, st *appstate.State) results.Outcome {
	path := st.HTMLTestPath()
	logger.Info("runner.test_html: start", zap.String("file_path", path))
	out, err := a.svc.TestHTML(ctx, path)
	if err != nil {
		logger.Warn("runner.test_html: failed", zap.Error(err))
		return results.ErrorOutcome(results.SourceHTML, path, apperr.UserMessage(err))
	}
	return out
}

// TestURL tests the URL the user typed.
func (a *Actions) TestURL(ctx context.Context, st *appstate.State) (results.Outcome, error) {
	if st.InputURL == "" {
		return results.Outcome{}, apperr.Validation("please enter a URL")
	}
	logger.Info("runner.test_url: start", zap.String("url", st.InputURL))
	out, err := a.svc.TestURL(ctx, st.InputURL)
	if err != nil {
		logger.Warn("runner.test_url: failed", zap.Error(err))
		return results.ErrorOutcome(results.SourceURL, st.InputURL, apperr.UserMessage(err)), nil
	}
	return out, nil
}

// SuggestFix asks for a fix to one test of one item.
func (a *Actions) SuggestFix(ctx context.Context, req toolkit.FixRequest) (string, error) {
	if req.Category == "" || req.Item == "" || req.Test == "" {
		return "", apperr.Validation("category, item and test are required")
	}
	resp, err := a.svc.SuggestFix(ctx, req)
	if err != nil {
		return "", err
	}
	return resp.Suggestion, nil
}

// BuildReport summarizes a successful outcome.
func BuildReport(out results.Outcome, mode results.Mode) (results.Report, error) {
	if out.Failed() {
		return results.Report{}, apperr.New(apperr.ErrCodeStatus, out.Error)
	}
	return results.Summarize(out.Results, mode), nil
}

// WriteJSON writes data as indented JSON, creating parent directories.
func WriteJSON(path string, data any) error {
	logger.Info("runner.write_json: writing file", zap.String("file", path))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare output directory for %q: %w", path, err)
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json %q: %w", path, err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write json file %q: %w", path, err)
	}
	return nil
}

// ReadOutcomeFile loads an outcome or a bare result document from disk.
func ReadOutcomeFile(path string) (results.Outcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return results.Outcome{}, apperr.Wrap(apperr.ErrCodeNotFound, fmt.Sprintf("read %q", path), err)
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return results.Outcome{}, apperr.Wrap(apperr.ErrCodeDocument, fmt.Sprintf("%q is not a JSON object", path), err)
	}
	if isOutcome(probe) {
		return results.DecodeOutcome(data)
	}
	doc, err := results.ParseDocument(data)
	if err != nil {
		return results.Outcome{}, err
	}
	return results.Outcome{Results: doc}, nil
}

// isOutcome tells an exported outcome from a bare document. Families are
// always objects, so a string "source" or "target" marks an outcome.
func isOutcome(top map[string]json.RawMessage) bool {
	if _, ok := top["results"]; ok {
		return true
	}
	if _, ok := top["error"]; ok {
		return true
	}
	for _, key := range []string{"source", "target"} {
		if raw, ok := top[key]; ok && bytes.HasPrefix(bytes.TrimSpace(raw), []byte(`"`)) {
			return true
		}
	}
	return false
}

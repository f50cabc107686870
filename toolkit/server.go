package toolkit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"bughunter/apperr"
	"bughunter/config"
	"bughunter/logger"
	"bughunter/results"
)

// This module calls the bug injection service: page generation, file upload,
// test runs against HTML or a URL, and fix suggestions.

// Client talks to one bug injection service.
type Client struct {
	baseURL   string
	authToken string
	http      *http.Client
}

// NewClient builds a client from the service configuration.
func NewClient(cfg config.ServiceConfig) *Client {
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		authToken: strings.TrimSpace(cfg.AuthToken),
		http:      &http.Client{Timeout: cfg.Timeout},
	}
}

// BaseURL returns the service root the client posts to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Generate asks the service for a page containing the selected bugs.
func (c *Client) Generate(ctx context.Context, bugs []string) (GenerateResponse, error) {
	URL := c.baseURL + "/generate"
	logger.Info("toolkit.generate: start", zap.String("url", URL), zap.Strings("bugs", bugs))

	status, body, err := c.postJSON(ctx, URL, BugSelection{Bugs: bugs})
	if err != nil {
		logger.Warn("toolkit.generate: request failed", zap.String("url", URL), zap.Error(err))
		return GenerateResponse{}, apperr.Wrap(apperr.ErrCodeTransport, "generate request failed", err)
	}
	if err := checkStatus("generate", status, body); err != nil {
		return GenerateResponse{}, err
	}

	var out GenerateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		logger.Warn("toolkit.generate: decode failed", zap.Error(err), zap.String("body", truncateForLog(body, 300)))
		return GenerateResponse{}, apperr.Wrap(apperr.ErrCodeDecode, "generate response is not valid JSON", err)
	}
	logger.Info("toolkit.generate: done", zap.String("page_url", out.URL))
	return out, nil
}

// Upload sends an HTML file as multipart field "file".
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (UploadResponse, error) {
	URL := c.baseURL + "/upload"
	logger.Info("toolkit.upload: start", zap.String("url", URL), zap.String("file", filename))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return UploadResponse{}, apperr.Wrap(apperr.ErrCodeInternal, "build upload form", err)
	}
	n, err := io.Copy(part, r)
	if err != nil {
		return UploadResponse{}, apperr.Wrap(apperr.ErrCodeInternal, "read upload file", err)
	}
	if err := mw.Close(); err != nil {
		return UploadResponse{}, apperr.Wrap(apperr.ErrCodeInternal, "build upload form", err)
	}

	status, body, err := c.do(ctx, URL, mw.FormDataContentType(), &buf)
	if err != nil {
		logger.Warn("toolkit.upload: request failed", zap.String("url", URL), zap.Error(err))
		return UploadResponse{}, apperr.Wrap(apperr.ErrCodeTransport, "upload request failed", err)
	}
	if err := checkStatus("upload", status, body); err != nil {
		return UploadResponse{}, err
	}

	var out UploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return UploadResponse{}, apperr.Wrap(apperr.ErrCodeDecode, "upload response is not valid JSON", err)
	}
	if strings.TrimSpace(out.FilePath) == "" {
		return UploadResponse{}, apperr.New(apperr.ErrCodeDecode, "upload response has no file_path")
	}
	logger.Info("toolkit.upload: done", zap.String("file_path", out.FilePath), zap.Int64("bytes", n))
	return out, nil
}

// TestHTML runs the test suite against a file the service can read. The
// body is the document itself. A {"error": ...} body yields an error
// outcome, not an error.
func (c *Client) TestHTML(ctx context.Context, filePath string) (results.Outcome, error) {
	return c.runTests(ctx, "test_html", results.SourceHTML, filePath, TestHTMLRequest{FilePath: filePath}, false)
}

// TestURL runs the test suite against a live URL.
func (c *Client) TestURL(ctx context.Context, url string) (results.Outcome, error) {
	return c.runTests(ctx, "test_url", results.SourceURL, url, TestURLRequest{URL: url}, true)
}

func (c *Client) runTests(ctx context.Context, op string, src results.Source, target string, payload any, wrapped bool) (results.Outcome, error) {
	URL := c.baseURL + "/" + op
	logger.Info("toolkit."+op+": start", zap.String("url", URL), zap.String("target", target))

	status, body, err := c.postJSON(ctx, URL, payload)
	if err != nil {
		logger.Warn("toolkit."+op+": request failed", zap.String("url", URL), zap.Error(err))
		return results.Outcome{}, apperr.Wrap(apperr.ErrCodeTransport, op+" request failed", err)
	}
	if err := checkStatus(op, status, body); err != nil {
		return results.Outcome{}, err
	}

	out, err := decodeResultsBody(body, wrapped)
	if err != nil {
		logger.Warn("toolkit."+op+": decode failed", zap.Error(err), zap.String("body", truncateForLog(body, 300)))
		return results.Outcome{}, err
	}
	out.Source = src
	out.Target = target
	if out.Failed() {
		logger.Warn("toolkit."+op+": service reported error", zap.String("error", out.Error))
	} else {
		logger.Info("toolkit."+op+": done", zap.Int("families", len(out.Results)))
	}
	return out, nil
}

// SuggestFix asks for a fix to one failed test.
func (c *Client) SuggestFix(ctx context.Context, req FixRequest) (FixResponse, error) {
	URL := c.baseURL + "/suggest_fix"
	logger.Info("toolkit.suggest_fix: start", zap.String("category", req.Category), zap.String("item", req.Item), zap.String("test", req.Test))

	status, body, err := c.postJSON(ctx, URL, req)
	if err != nil {
		logger.Warn("toolkit.suggest_fix: request failed", zap.String("url", URL), zap.Error(err))
		return FixResponse{}, apperr.Wrap(apperr.ErrCodeTransport, "suggest_fix request failed", err)
	}
	if err := checkStatus("suggest_fix", status, body); err != nil {
		return FixResponse{}, err
	}

	var out FixResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return FixResponse{}, apperr.Wrap(apperr.ErrCodeDecode, "suggest_fix response is not valid JSON", err)
	}
	logger.Info("toolkit.suggest_fix: done", zap.Int("suggestion_bytes", len(out.Suggestion)))
	return out, nil
}

// ---------- helpers

// decodeResultsBody accepts {"error": ...} or a bare document. When wrapped
// is set, a {"results": {...}} envelope is unwrapped first.
func decodeResultsBody(body []byte, wrapped bool) (results.Outcome, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return results.Outcome{}, apperr.Wrap(apperr.ErrCodeDecode, "test response is not a JSON object", err)
	}

	if raw, ok := top["error"]; ok {
		var msg string
		if err := json.Unmarshal(raw, &msg); err == nil && msg != "" {
			return results.Outcome{Error: msg}, nil
		}
	}

	if raw, ok := top["results"]; ok && wrapped {
		doc, err := results.ParseDocument(raw)
		if err != nil {
			return results.Outcome{}, err
		}
		return results.Outcome{Results: doc}, nil
	}

	doc, err := results.ParseDocument(body)
	if err != nil {
		return results.Outcome{}, err
	}
	return results.Outcome{Results: doc}, nil
}

func checkStatus(op string, status int, body []byte) error {
	if status >= 200 && status <= 299 {
		return nil
	}
	logger.Warn("toolkit."+op+": non-2xx", zap.Int("status", status), zap.String("body", truncateForLog(body, 500)))
	err := apperr.New(apperr.ErrCodeStatus, fmt.Sprintf("%s request failed with status=%d", op, status))
	if hint := genericErrorHint(body); hint != "" {
		err = err.WithDetails(hint)
	}
	return err
}

func genericErrorHint(body []byte) string {
	if len(bytes.TrimSpace(body)) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return ""
	}
	return extractErrorHint(v)
}

func extractErrorHint(v any) string {
	obj, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"detail", "error", "message", "msg", "reason"} {
		val, ok := obj[key]
		if !ok {
			continue
		}
		if s, ok := val.(string); ok {
			return s
		}
		return compactForReport(val)
	}
	return ""
}

func compactForReport(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func truncateForLog(body []byte, max int) string {
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}

func (c *Client) postJSON(ctx context.Context, url string, payload any) (int, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal payload: %w", err)
	}
	return c.do(ctx, url, "application/json", bytes.NewReader(raw))
}

func (c *Client) do(ctx context.Context, url, contentType string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return 0, nil, fmt.Errorf("NewRequest: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, respBody, nil
}

package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bughunter/apperr"
	"bughunter/appstate"
	"bughunter/logger"
	"bughunter/results"
	"bughunter/session"
	"bughunter/toolkit"
)

// parseFailedMessage is shown when a stored result cannot be read back.
const parseFailedMessage = "Failed to parse content"

type indexData struct {
	State      *appstate.State
	Catalog    []appstate.Section
	Flash      string
	HasResults bool
	ServiceURL string
}

type resultsData struct {
	Flash   string
	Mode    results.Mode
	Modes   []results.Mode
	Outcome results.Outcome
	Report  *results.Report
	Missing bool
}

var filterModes = []results.Mode{results.ModeAll, results.ModePassed, results.ModeFailed}

func statusOf(err error) int {
	if appErr, ok := apperr.As(err); ok {
		return appErr.HTTPStatus()
	}
	if errors.Is(err, session.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) state(c *gin.Context) (*appstate.State, bool) {
	st, err := s.store.State(sessionID(c))
	if err != nil {
		logger.Warn("web.state: load failed", zap.Error(err))
		c.String(statusOf(err), "session expired, reload the page")
		return nil, false
	}
	return st, true
}

func (s *Server) renderIndex(c *gin.Context, status int, st *appstate.State, flash string) {
	_, hasResults, _ := s.store.Outcome(sessionID(c))
	c.HTML(status, "index.html", indexData{
		State:      st,
		Catalog:    appstate.Catalog,
		Flash:      flash,
		HasResults: hasResults,
		ServiceURL: s.cfg.Service.BaseURL,
	})
}

// fail shows err on the form, keeping whatever state the user had.
func (s *Server) fail(c *gin.Context, st *appstate.State, err error) {
	if st == nil {
		st = appstate.New()
	}
	s.renderIndex(c, statusOf(err), st, apperr.UserMessage(err))
}

// applyForm copies the checkbox selection and URL input from a form post.
// The "selection" marker tells an empty selection apart from a post that
// did not carry the checkboxes at all.
func applyForm(c *gin.Context, st *appstate.State) error {
	if url, ok := c.GetPostForm("url"); ok {
		st.SetInputURL(url)
	}
	if c.PostForm("selection") == "1" {
		return st.SetSelection(c.PostFormArray("bug"))
	}
	return nil
}

// runAction flags the session as loading while fn talks to the service,
// then stores st whatever the outcome.
func (s *Server) runAction(c *gin.Context, st *appstate.State, fn func() error) error {
	sid := sessionID(c)
	if _, err := s.store.Update(sid, func(cur *appstate.State) error {
		cur.Loading = true
		return nil
	}); err != nil {
		return err
	}
	err := fn()
	st.Loading = false
	if saveErr := s.store.SaveState(sid, st); saveErr != nil {
		logger.Warn("web.action: save state failed", zap.Error(saveErr))
		if err == nil {
			err = saveErr
		}
	}
	return err
}

func (s *Server) handleIndex(c *gin.Context) {
	st, ok := s.state(c)
	if !ok {
		return
	}
	s.renderIndex(c, http.StatusOK, st, "")
}

func (s *Server) handleBugs(c *gin.Context) {
	st, err := s.store.Update(sessionID(c), func(st *appstate.State) error {
		if id := c.PostForm("id"); id != "" {
			checked := c.PostForm("checked")
			return st.ToggleBug(id, checked == "on" || checked == "true" || checked == "1")
		}
		return applyForm(c, st)
	})
	if err != nil {
		s.fail(c, st, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleGenerate(c *gin.Context) {
	st, ok := s.state(c)
	if !ok {
		return
	}
	if err := applyForm(c, st); err != nil {
		s.fail(c, st, err)
		return
	}
	err := s.runAction(c, st, func() error {
		return s.actions.Generate(c.Request.Context(), st)
	})
	if err != nil {
		s.fail(c, st, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleUpload(c *gin.Context) {
	st, ok := s.state(c)
	if !ok {
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		s.fail(c, st, apperr.Validation("choose an HTML file to upload"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		s.fail(c, st, apperr.Wrap(apperr.ErrCodeInternal, "open uploaded file", err))
		return
	}
	defer f.Close()

	err = s.runAction(c, st, func() error {
		return s.actions.Upload(c.Request.Context(), st, fh.Filename, f)
	})
	if err != nil {
		s.fail(c, st, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleTestHTML(c *gin.Context) {
	st, ok := s.state(c)
	if !ok {
		return
	}
	err := s.runAction(c, st, func() error {
		out := s.actions.TestHTML(c.Request.Context(), st)
		return s.store.SaveOutcome(sessionID(c), out)
	})
	if err != nil {
		s.fail(c, st, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/results")
}

func (s *Server) handleTestURL(c *gin.Context) {
	st, ok := s.state(c)
	if !ok {
		return
	}
	if err := applyForm(c, st); err != nil {
		s.fail(c, st, err)
		return
	}
	err := s.runAction(c, st, func() error {
		out, err := s.actions.TestURL(c.Request.Context(), st)
		if err != nil {
			return err
		}
		return s.store.SaveOutcome(sessionID(c), out)
	})
	if err != nil {
		s.fail(c, st, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/results")
}

func (s *Server) handleResults(c *gin.Context) {
	data := resultsData{Modes: filterModes, Mode: results.ModeAll}

	mode, err := results.ParseMode(c.Query("filter"))
	if err != nil {
		data.Flash = apperr.UserMessage(err)
		c.HTML(http.StatusBadRequest, "results.html", data)
		return
	}
	data.Mode = mode

	out, ok, err := s.store.Outcome(sessionID(c))
	switch {
	case err != nil && ok:
		logger.Warn("web.results: stored outcome unreadable", zap.Error(err))
		data.Flash = parseFailedMessage
	case err != nil:
		data.Flash = apperr.UserMessage(err)
		c.HTML(statusOf(err), "results.html", data)
		return
	case !ok:
		data.Missing = true
	default:
		data.Outcome = out
		if !out.Failed() {
			rep := results.Summarize(out.Results, mode)
			data.Report = &rep
		}
	}
	c.HTML(http.StatusOK, "results.html", data)
}

func (s *Server) handleClearResults(c *gin.Context) {
	s.store.ClearOutcome(sessionID(c))
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) handleToggleSection(c *gin.Context) {
	id := c.Param("id")
	st, err := s.store.Update(sessionID(c), func(st *appstate.State) error {
		if err := applyForm(c, st); err != nil {
			return err
		}
		return st.ToggleSection(id)
	})
	if err != nil {
		s.fail(c, st, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/#"+id)
}

func (s *Server) handleExpand(c *gin.Context) {
	s.setSections(c, (*appstate.State).ExpandAll)
}

func (s *Server) handleMinimize(c *gin.Context) {
	s.setSections(c, (*appstate.State).MinimizeAll)
}

func (s *Server) setSections(c *gin.Context, apply func(*appstate.State)) {
	st, err := s.store.Update(sessionID(c), func(st *appstate.State) error {
		if err := applyForm(c, st); err != nil {
			return err
		}
		apply(st)
		return nil
	})
	if err != nil {
		s.fail(c, st, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// -- JSON API

func (s *Server) apiState(c *gin.Context) {
	st, err := s.store.State(sessionID(c))
	if err != nil {
		_ = c.Error(apperr.Wrap(apperr.ErrCodeNotFound, "session not found", err))
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) apiResults(c *gin.Context) {
	mode, err := results.ParseMode(c.Query("filter"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	out, ok, err := s.store.Outcome(sessionID(c))
	switch {
	case err != nil && ok:
		_ = c.Error(apperr.Wrap(apperr.ErrCodeDocument, parseFailedMessage, err))
		return
	case err != nil:
		_ = c.Error(apperr.Wrap(apperr.ErrCodeNotFound, "session not found", err))
		return
	case !ok:
		_ = c.Error(apperr.New(apperr.ErrCodeNotFound, "no results yet"))
		return
	}

	if out.Failed() {
		c.JSON(http.StatusOK, gin.H{"source": out.Source, "target": out.Target, "error": out.Error})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"source": out.Source,
		"target": out.Target,
		"report": results.Summarize(out.Results, mode),
	})
}

func (s *Server) apiPreview(c *gin.Context) {
	st, err := s.store.State(sessionID(c))
	if err != nil {
		_ = c.Error(apperr.Wrap(apperr.ErrCodeNotFound, "session not found", err))
		return
	}
	if st.GeneratedURL == "" {
		_ = c.Error(apperr.Validation("generate a page first"))
		return
	}
	p, err := s.actions.Preview(c.Request.Context(), st.GeneratedURL)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) apiSuggestFix(c *gin.Context) {
	var req toolkit.FixRequest
	if err := c.ShouldBind(&req); err != nil {
		_ = c.Error(apperr.Wrap(apperr.ErrCodeValidation, "invalid fix request", err))
		return
	}
	suggestion, err := s.actions.SuggestFix(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, toolkit.FixResponse{Suggestion: suggestion})
}

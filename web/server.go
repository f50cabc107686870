// Package web serves the bug selection form and the results view.
// State lives in a per-browser session addressed by a signed cookie.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bughunter/config"
	"bughunter/logger"
	"bughunter/reporter"
	"bughunter/results"
	"bughunter/session"
)

// HTTP server timeouts. The write timeout covers a full test run on the
// service side.
const (
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 5 * time.Minute
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

//go:embed templates/*.html
var templateFS embed.FS

// Server is the web UI.
type Server struct {
	cfg        *config.Config
	actions    *reporter.Actions
	store      *session.Store
	tokens     *session.Tokens
	router     *gin.Engine
	httpServer *http.Server
}

// New builds the server and its routes.
func New(cfg *config.Config, actions *reporter.Actions) (*Server, error) {
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	tokens, err := session.NewTokens(cfg.Server.SessionSecret, cfg.Server.SessionTTL)
	if err != nil {
		return nil, err
	}
	if cfg.Server.SessionSecret == "" {
		logger.Warn("web.new: no session secret configured, sessions end on restart")
	}

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		actions: actions,
		store:   session.NewStore(cfg.Server.SessionTTL),
		tokens:  tokens,
		router:  gin.New(),
	}
	s.router.SetHTMLTemplate(tmpl)
	s.setupRoutes()
	return s, nil
}

var templateFuncs = template.FuncMap{
	"titleCase":   results.TitleCase,
	"statusClass": statusClass,
}

func statusClass(st results.Status) string {
	return strings.ToLower(string(st))
}

// Router returns the underlying gin engine.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Store returns the session store.
func (s *Server) Store() *session.Store {
	return s.store
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(Recovery())
	r.Use(Logger(s.cfg.Logging.AccessLog))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	ui := r.Group("/", Session(s.store, s.tokens, s.cfg.Server.SessionTTL))
	{
		ui.GET("/", s.handleIndex)
		ui.POST("/bugs", s.handleBugs)
		ui.POST("/generate", s.handleGenerate)
		ui.POST("/upload", s.handleUpload)
		ui.POST("/test/html", s.handleTestHTML)
		ui.POST("/test/url", s.handleTestURL)
		ui.GET("/results", s.handleResults)
		ui.POST("/results/clear", s.handleClearResults)
		ui.POST("/sections/expand", s.handleExpand)
		ui.POST("/sections/minimize", s.handleMinimize)
		ui.POST("/sections/:id/toggle", s.handleToggleSection)
	}

	api := r.Group("/api", Session(s.store, s.tokens, s.cfg.Server.SessionTTL), ErrorHandler(s.cfg.Server.Debug))
	{
		api.GET("/state", s.apiState)
		api.GET("/results", s.apiResults)
		api.GET("/preview", s.apiPreview)
		api.POST("/suggest_fix", s.apiSuggestFix)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.Listen,
		Handler:      s.router,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	go s.sweep(ctx)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("web.run: listening",
			zap.String("address", s.cfg.Server.Listen),
			zap.String("service", s.cfg.Service.BaseURL),
			zap.Bool("debug", s.cfg.Server.Debug),
		)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("web.run: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("web.run: forced shutdown", zap.Error(err))
		return err
	}
	logger.Info("web.run: stopped")
	return nil
}

// sweep drops idle sessions periodically until ctx ends.
func (s *Server) sweep(ctx context.Context) {
	interval := s.cfg.Server.SessionTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.store.Sweep(); n > 0 {
				logger.Debug("web.sweep: expired sessions", zap.Int("count", n))
			}
		}
	}
}

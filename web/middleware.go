package web

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bughunter/apperr"
	"bughunter/logger"
	"bughunter/session"
)

const (
	sessionCookie = "bughunter_session"
	sessionKey    = "session_id"
)

// Logger logs every request that ends with an error status, and successful
// ones too when accessLog is set.
func Logger(accessLog bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("web.request: server error", fields...)
		case status >= 400:
			logger.Warn("web.request: client error", fields...)
		default:
			if accessLog {
				logger.Info("web.request: done", fields...)
			}
		}
	}
}

// Recovery turns a panic into a 500 response.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("web.request: panic recovered",
					zap.Any("error", err),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    apperr.ErrCodeInternal,
					"message": "Internal server error",
				})
			}
		}()
		c.Next()
	}
}

// ErrorHandler writes the last handler error as JSON. Internal error text is
// only exposed in debug mode.
func ErrorHandler(debugMode bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		if appErr, ok := apperr.As(err); ok {
			status := appErr.HTTPStatus()
			msg := apperr.UserMessage(appErr)
			if status >= http.StatusInternalServerError && status != http.StatusBadGateway && !debugMode {
				msg = "Internal server error"
			}
			c.JSON(status, gin.H{"code": appErr.Code, "message": msg})
			return
		}

		msg := "Internal server error"
		if debugMode {
			msg = err.Error()
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": apperr.ErrCodeInternal, "message": msg})
	}
}

// Session attaches a session to every request. A missing, invalid or expired
// cookie starts a new session. The cookie is reissued on each request so its
// lifetime follows the store's idle timeout.
func Session(store *session.Store, tokens *session.Tokens, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ""
		if raw, err := c.Cookie(sessionCookie); err == nil {
			if sid, err := tokens.Verify(raw); err == nil && store.Exists(sid) {
				id = sid
			}
		}
		if id == "" {
			sid, err := store.Create()
			if err != nil {
				logger.Error("web.session: create failed", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"code":    apperr.ErrCodeInternal,
					"message": "Internal server error",
				})
				return
			}
			id = sid
			logger.Debug("web.session: created", zap.String("session_id", id))
		}

		token, err := tokens.Issue(id)
		if err != nil {
			logger.Error("web.session: issue token failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    apperr.ErrCodeInternal,
				"message": "Internal server error",
			})
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(sessionCookie, token, int(ttl.Seconds()), "/", "", false, true)

		c.Set(sessionKey, id)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}

package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"sidehustle-shop/internal/config"
	"sidehustle-shop/internal/logger"
	"sidehustle-shop/internal/metrics"
)

const (
	requestIDHeader = "X-Request-ID"
	sessionIDKey    = "sid"
	ctxSessionID    = "session_id"
)

func requestIDMiddleware(logg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logg.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func accessLogMiddleware(logg *logger.Logger, m *metrics.ShopMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		m.ObserveRequest(route, status, elapsed)

		ctx := logg.WithFields(c.Request.Context(), map[string]any{
			"method":      c.Request.Method,
			"route":       route,
			"status":      status,
			"duration_ms": elapsed.Milliseconds(),
		})
		if status >= http.StatusInternalServerError {
			logg.Warn(ctx, "http request failed")
			return
		}
		logg.Debug(ctx, "http request")
	}
}

func newCookieStore(cfg config.SessionConfig) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.Secret))
	store.Options.Path = "/"
	store.Options.MaxAge = cfg.MaxAge()
	store.Options.HttpOnly = true
	store.Options.Secure = cfg.Secure
	store.Options.SameSite = http.SameSiteLaxMode
	return store
}

// sessionMiddleware gives every visitor a stable random id kept in a signed cookie.
// The id scopes the visitor's storage keys and events.
func sessionMiddleware(store sessions.Store, name string, logg *logger.Logger) gin.HandlerFunc {
	if name == "" {
		name = "sidehustle_session"
	}
	return func(c *gin.Context) {
		// A tampered or expired cookie yields a fresh session.
		sess, _ := store.Get(c.Request, name)
		id, _ := sess.Values[sessionIDKey].(string)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			sess.Values[sessionIDKey] = id
			if err := sess.Save(c.Request, c.Writer); err != nil {
				logg.Error(c.Request.Context(), "session: save cookie", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "session unavailable"})
				return
			}
		}
		c.Set(ctxSessionID, id)
		c.Request = c.Request.WithContext(logg.WithSessionID(c.Request.Context(), id))
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(ctxSessionID)
}

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	sessionCookieName = "quiz_session"
	sessionIDKey      = "sid"
	jobIDKey          = "job_id"
)

// requestLogger logs one line per request, at warn or error level for failed requests.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []zap.Field{
			zap.String("method", strings.ToUpper(c.Request.Method)),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		}
		if id := c.GetString(sessionIDKey); id != "" {
			fields = append(fields, zap.String("session_id", id))
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

// sessionID makes sure the cookie session carries an id and exposes it as sessionIDKey.
func sessionID(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		id, _ := sess.Get(sessionIDKey).(string)
		if id == "" {
			id = uuid.NewString()
			sess.Set(sessionIDKey, id)
			if err := sess.Save(); err != nil {
				log.Error("save session cookie", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not start session"})
				return
			}
		}
		c.Set(sessionIDKey, id)
		c.Next()
	}
}

// exclusive claims the session for the rest of the request and answers 409 when another
// mutating request already holds it.
func (s *Server) exclusive(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetString(sessionIDKey)
		job, release, ok := s.jobs.Begin(id, kind)
		if !ok {
			s.log.Warn("session busy", zap.String("session_id", id), zap.String("kind", kind), zap.String("holder", job.Kind))
			s.conflict(c, job)
			c.Abort()
			return
		}
		defer release()
		c.Set(jobIDKey, job.ID)
		c.Next()
	}
}

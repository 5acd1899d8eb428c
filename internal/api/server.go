package api

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"quiz-ai/internal/models"
	"quiz-ai/internal/services"
	"quiz-ai/internal/session"
)

const maxMultipartMemory = 8 << 20 // 8 MB

//go:embed templates/*.tmpl
var templateFS embed.FS

type Options struct {
	SessionSecret  []byte
	SessionTTL     time.Duration
	SecureCookie   bool
	MaxUploadBytes int64
}

type Server struct {
	router    *gin.Engine
	documents *services.DocumentService
	quiz      *services.QuizService
	store     session.Store
	jobs      *JobManager
	log       *zap.Logger
	opts      Options
}

func NewServer(
	documents *services.DocumentService,
	quiz *services.QuizService,
	store session.Store,
	log *zap.Logger,
	opts Options,
) *Server {
	s := &Server{
		router:    gin.New(),
		documents: documents,
		quiz:      quiz,
		store:     store,
		jobs:      NewJobManager(),
		log:       log.Named("api"),
		opts:      opts,
	}

	cookies := cookie.NewStore(opts.SessionSecret)
	cookies.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(opts.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	s.router.MaxMultipartMemory = maxMultipartMemory
	s.router.SetHTMLTemplate(template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.tmpl")))
	s.router.Use(gin.Recovery(), sessions.Sessions(sessionCookieName, cookies), sessionID(s.log), requestLogger(s.log))
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	s.router.GET("/", s.handleIndex)
	s.router.POST("/upload", s.exclusive(JobUpload), s.handleUpload)
	s.router.POST("/generate", s.exclusive(JobGenerate), s.handleGenerate)
	s.router.POST("/questions/:index/answer", s.exclusive(JobAnswer), s.handleAnswer)
	s.router.POST("/reset", s.exclusive(JobReset), s.handleReset)
	s.router.POST("/clear", s.exclusive(JobClear), s.handleClear)

	api := s.router.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/session", s.handleSession)
	api.GET("/session/export", s.handleExport)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "generating": s.jobs.Generating()})
}

func (s *Server) handleIndex(c *gin.Context) {
	snap, ok := s.loadSnapshot(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "index.tmpl", s.newPageView(snap))
}

func (s *Server) handleSession(c *gin.Context) {
	snap, ok := s.loadSnapshot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, s.newSessionView(snap))
}

// handleExport returns the current quiz in the same text format the agent produces.
func (s *Server) handleExport(c *gin.Context) {
	snap, ok := s.loadSnapshot(c)
	if !ok {
		return
	}
	if snap.Result == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no quiz has been generated"})
		return
	}
	out, err := services.FormatAgentOutput(snap.Result)
	if err != nil {
		s.internalError(c, "format quiz", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="quiz.md"`)
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(out))
}

func (s *Server) handleUpload(c *gin.Context) {
	id := c.GetString(sessionIDKey)
	snap, ok := s.loadSnapshot(c)
	if !ok {
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		s.saveAndRedirect(c, snap.WithError(msgNoFile))
		return
	}
	if s.opts.MaxUploadBytes > 0 && header.Size > s.opts.MaxUploadBytes {
		s.saveAndRedirect(c, snap.WithError(uploadMessage(services.ErrUploadTooLarge)))
		return
	}
	src, err := header.Open()
	if err != nil {
		s.internalError(c, "open upload", err)
		return
	}
	defer src.Close()

	doc, err := s.documents.Create(c.Request.Context(), id, header.Filename, src)
	if err != nil {
		if errors.Is(err, services.ErrNotPDF) || errors.Is(err, services.ErrUploadTooLarge) {
			s.log.Warn("upload rejected", zap.String("file", header.Filename), zap.Error(err))
			s.saveAndRedirect(c, snap.WithError(uploadMessage(err)))
			return
		}
		s.internalError(c, "store upload", err)
		return
	}

	next, err := snap.Upload(doc.Ref())
	if err != nil {
		s.saveAndRedirect(c, snap.WithError(actionMessage(err)))
		return
	}
	s.log.Info("document uploaded", zap.String("session_id", id), zap.String("file", doc.OriginalName), zap.Int("pages", doc.PageCount))
	s.saveAndRedirect(c, next)
}

func (s *Server) handleGenerate(c *gin.Context) {
	snap, ok := s.loadSnapshot(c)
	if !ok {
		return
	}

	if snap.Document == nil {
		s.saveAndRedirect(c, snap.WithError(msgNoDocument))
		return
	}
	opts, err := parseQuizOptions(c)
	if err != nil {
		s.saveAndRedirect(c, snap.WithError(sentence(err.Error())))
		return
	}
	next, err := snap.BeginGenerate(opts)
	if err != nil {
		s.saveAndRedirect(c, snap.WithError(actionMessage(err)))
		return
	}

	// The run is bounded by the quiz service timeout, not by the client connection.
	ctx := context.WithoutCancel(c.Request.Context())
	if err := s.store.Save(ctx, next); err != nil {
		s.internalError(c, "save session", err)
		return
	}
	final := s.generate(ctx, next)
	if err := s.store.Save(ctx, final); err != nil {
		s.internalError(c, "save session", err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// generate runs the agent for a snapshot in the generating phase and returns the snapshot
// to show afterwards.
func (s *Server) generate(ctx context.Context, snap session.Snapshot) session.Snapshot {
	fail := func(msg, fallback string) session.Snapshot {
		next, err := snap.FailGenerate(msg, fallback)
		if err != nil {
			s.log.Error("roll back generation", zap.Error(err))
		}
		return next
	}

	doc, err := s.documents.Get(ctx, snap.ID, snap.Document.ID)
	if err != nil {
		s.log.Error("load document", zap.String("session_id", snap.ID), zap.Error(err))
		if errors.Is(err, services.ErrDocumentNotFound) {
			return fail(msgDocumentGone, "")
		}
		return fail(msgDocumentUnreadable, "")
	}

	gen, err := s.quiz.Generate(ctx, doc, snap.Options)
	if err != nil {
		return fail(generationMessage(err), gen.Raw)
	}
	next, err := snap.CompleteGenerate(gen.Result)
	if err != nil {
		return fail(generationMessage(err), gen.Raw)
	}
	return next
}

func (s *Server) handleAnswer(c *gin.Context) {
	id := c.GetString(sessionIDKey)
	snap, ok := s.loadSnapshot(c)
	if !ok {
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		s.saveAndRedirect(c, snap.WithError(actionMessage(session.ErrQuestionOutOfRange)))
		return
	}
	choice := c.PostForm("answer")
	if strings.TrimSpace(choice) == "" {
		s.saveAndRedirect(c, snap.WithError(msgNoChoice))
		return
	}

	next, record, err := snap.Answer(index, choice)
	if err != nil {
		s.saveAndRedirect(c, snap.WithError(actionMessage(err)))
		return
	}
	s.log.Debug("question answered", zap.String("session_id", id), zap.Int("index", index), zap.Bool("correct", record.IsCorrect))
	s.saveAndRedirect(c, next)
}

func (s *Server) handleReset(c *gin.Context) {
	snap, ok := s.loadSnapshot(c)
	if !ok {
		return
	}
	next, err := snap.StartOver()
	if err != nil {
		next = snap.WithError(actionMessage(err))
	}
	s.saveAndRedirect(c, next)
}

func (s *Server) handleClear(c *gin.Context) {
	id := c.GetString(sessionIDKey)
	snap, ok := s.loadSnapshot(c)
	if !ok {
		return
	}
	next, err := snap.Clear()
	if err != nil {
		s.saveAndRedirect(c, snap.WithError(actionMessage(err)))
		return
	}
	if err := s.documents.DeleteForSession(c.Request.Context(), id); err != nil {
		s.internalError(c, "delete documents", err)
		return
	}
	s.saveAndRedirect(c, next)
}

// loadSnapshot fetches the session's snapshot. A snapshot left in the generating phase by a
// run that is no longer pending is rolled back to the options form.
func (s *Server) loadSnapshot(c *gin.Context) (session.Snapshot, bool) {
	id := c.GetString(sessionIDKey)
	snap, err := s.store.Load(c.Request.Context(), id)
	if err != nil {
		s.internalError(c, "load session", err)
		return session.Snapshot{}, false
	}
	if snap.Phase == session.PhaseGenerating && !s.generationPending(c, id) {
		if next, err := snap.FailGenerate(msgInterrupted, ""); err == nil {
			snap = next
		}
	}
	return snap, true
}

// generationPending reports whether another request is running a generation for id.
func (s *Server) generationPending(c *gin.Context, id string) bool {
	job, ok := s.jobs.Get(id)
	return ok && job.Kind == JobGenerate && job.ID != c.GetString(jobIDKey)
}

func (s *Server) saveAndRedirect(c *gin.Context, snap session.Snapshot) {
	if err := s.store.Save(c.Request.Context(), snap); err != nil {
		s.internalError(c, "save session", err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) conflict(c *gin.Context, holder *Job) {
	msg := msgBusy
	if holder != nil && holder.Kind == JobGenerate {
		msg = msgGenerating
	}
	c.Negotiate(http.StatusConflict, gin.Negotiate{
		Offered:  []string{gin.MIMEJSON, gin.MIMEHTML},
		HTMLName: "error.tmpl",
		HTMLData: gin.H{"Status": http.StatusConflict, "Message": msg},
		JSONData: gin.H{"error": msg},
	})
}

func (s *Server) internalError(c *gin.Context, op string, err error) {
	s.log.Error(op, zap.String("session_id", c.GetString(sessionIDKey)), zap.Error(err))
	c.Negotiate(http.StatusInternalServerError, gin.Negotiate{
		Offered:  []string{gin.MIMEJSON, gin.MIMEHTML},
		HTMLName: "error.tmpl",
		HTMLData: gin.H{"Status": http.StatusInternalServerError, "Message": msgInternal},
		JSONData: gin.H{"error": op + " failed"},
	})
}

func parseQuizOptions(c *gin.Context) (models.QuizOptions, error) {
	quizType, err := models.ParseQuizType(c.PostForm("quiz_type"))
	if err != nil {
		return models.QuizOptions{}, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(c.PostForm("num_questions")))
	if err != nil {
		return models.QuizOptions{}, errors.New("number of questions must be a whole number")
	}
	opts := models.QuizOptions{Type: quizType, NumQuestions: n}
	if err := opts.ValidateForUI(); err != nil {
		return models.QuizOptions{}, err
	}
	return opts, nil
}

package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"auto_dialogue_document/export"
	"auto_dialogue_document/formatter"
	"auto_dialogue_document/gate"
	"auto_dialogue_document/generator"
	"auto_dialogue_document/pipeline"
	"auto_dialogue_document/session"
)

const defaultTimeout = 60 * time.Second

type Server struct {
	pipe     *pipeline.Pipeline
	store    session.Store
	exporter *export.Exporter
	timeout  time.Duration
	verbose  bool
	logger   *log.Logger
	router   *gin.Engine
}

type Option func(*Server)

func WithExporter(e *export.Exporter) Option {
	return func(s *Server) {
		if e != nil {
			s.exporter = e
		}
	}
}

// WithTimeout bounds the time spent drafting and rendering one document.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(logger *log.Logger, verbose bool) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
		s.verbose = verbose
	}
}

func New(pipe *pipeline.Pipeline, store session.Store, opts ...Option) (*Server, error) {
	if pipe == nil {
		return nil, errors.New("pipeline required")
	}
	if store == nil {
		return nil, errors.New("session store required")
	}
	s := &Server{
		pipe:     pipe,
		store:    store,
		exporter: export.New(),
		timeout:  defaultTimeout,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.logMiddleware())
	r.GET("/healthz", s.handleHealth)
	r.POST("/api/render", s.handleRender)

	api := r.Group("/api/sessions")
	{
		api.POST("", s.handleSessionCreate)
		api.GET("/:id", s.handleSessionGet)
		api.POST("/:id/utterances", s.handleUtterance)
		api.POST("/:id/rounds", s.handleAdvanceRound)
		api.GET("/:id/gate", s.handleGate)
		api.POST("/:id/documents", s.handleDocument)
	}
	s.router = r
	return s, nil
}

func (s *Server) Routes() http.Handler {
	return s.router
}

// --- Handlers ---

type utteranceReq struct {
	Speaker      string `json:"speaker"`
	Text         string `json:"text"`
	AdvanceRound bool   `json:"advance_round"`
}

type renderReq struct {
	Markdown string   `json:"markdown"`
	Context  string   `json:"context"`
	Authors  []string `json:"authors"`
}

func (s *Server) handleHealth(c *gin.Context) {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleSessionCreate(c *gin.Context) {
	st, err := s.store.Create(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	s.infof("session created id=%s", st.ID)
	c.JSON(http.StatusCreated, st)
}

func (s *Server) handleSessionGet(c *gin.Context) {
	st, err := s.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleUtterance(c *gin.Context) {
	var req utteranceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Speaker, req.Text = strings.TrimSpace(req.Speaker), strings.TrimSpace(req.Text)
	if req.Speaker == "" || req.Text == "" || strings.Contains(req.Speaker, ":") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "speaker and text are required; speaker must not contain ':'"})
		return
	}

	ctx := c.Request.Context()
	id := c.Param("id")
	st, err := s.store.Append(ctx, id, gate.Utterance{Speaker: req.Speaker, Text: req.Text})
	if err == nil && req.AdvanceRound {
		st, err = s.store.AdvanceRound(ctx, id)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleAdvanceRound(c *gin.Context) {
	st, err := s.store.AdvanceRound(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleGate(c *gin.Context) {
	d, err := s.pipe.Evaluate(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) handleDocument(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	id := c.Param("id")
	res, err := s.pipe.Run(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.infof("session=%s created=%v reason=%q", id, res.Created, res.Decision.Reason)
	s.respond(ctx, c, res)
}

func (s *Server) handleRender(c *gin.Context) {
	var req renderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	parsed, err := generator.ParseMarkdown(req.Markdown)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	draft := formatter.Draft{
		Title:    parsed.Title,
		Authors:  req.Authors,
		Category: parsed.Category,
		Body:     parsed.Body,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()
	res, err := s.pipe.Synthesize(ctx, draft, req.Context)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respond(ctx, c, res)
}

// respond writes the result as JSON, or the document itself when
// ?format=html or ?format=pdf is given.
func (s *Server) respond(ctx context.Context, c *gin.Context, res pipeline.Result) {
	format := export.Format(c.Query("format"))
	if format == "" || res.Document == nil {
		c.JSON(http.StatusOK, res)
		return
	}
	out, err := s.exporter.Export(ctx, *res.Document, format)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+out.Filename+`"`)
	c.Data(http.StatusOK, out.MimeType, out.Data)
}

// --- Helpers ---

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrRoundClaimed):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrDraft):
		return http.StatusBadGateway
	case errors.Is(err, pipeline.ErrRender):
		return http.StatusUnprocessableEntity
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Printf("[server] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

func (s *Server) infof(format string, args ...interface{}) {
	if !s.verbose {
		return
	}
	s.logger.Printf("[server] "+format, args...)
}

func (s *Server) logMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.infof("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}

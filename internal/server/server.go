// Package server exposes tracking and reframing over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kikiluvv/clipcraft/internal/config"
	"github.com/kikiluvv/clipcraft/internal/logging"
	"github.com/kikiluvv/clipcraft/internal/pipeline"
	"github.com/kikiluvv/clipcraft/internal/tracker"
	"github.com/kikiluvv/clipcraft/pkg/util"
)

// Version is reported by /health.
var Version = "dev"

// Service runs tracking passes. *pipeline.Pipeline implements it.
type Service interface {
	Track(ctx context.Context, req pipeline.Request) (*pipeline.Outcome, error)
	Reframe(ctx context.Context, req pipeline.Request) (*pipeline.Outcome, error)
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

type TrackRequest struct {
	Path        string `json:"path" binding:"required"`
	AspectRatio string `json:"aspect_ratio" binding:"required"`
	Resolution  string `json:"resolution,omitempty"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
}

type TrackResponse struct {
	RequestID string          `json:"request_id"`
	Tracked   bool            `json:"tracked"`
	Result    *tracker.Result `json:"result"`
	Filter    string          `json:"filter"`
	Complex   bool            `json:"complex"`
}

type ReframeRequest struct {
	TrackRequest
	Output string `json:"output" binding:"required"`
}

type ReframeResponse struct {
	JobID   string       `json:"job_id"`
	Output  string       `json:"output"`
	Mode    tracker.Mode `json:"mode"`
	Tracked bool         `json:"tracked"`
}

// Server is the HTTP front of the reframer.
type Server struct {
	logger    zerolog.Logger
	svc       Service
	mediaRoot string
	listen    string
	router    *gin.Engine
}

// New builds the router. metrics may be nil to disable /metrics.
func New(logger zerolog.Logger, svc Service, metrics http.Handler, cfg config.ServerConfig) (*Server, error) {
	root, err := filepath.Abs(cfg.MediaRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid media root: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		logger:    logging.Component(logger, "server"),
		svc:       svc,
		mediaRoot: root,
		listen:    cfg.Listen,
		router:    gin.New(),
	}

	s.router.Use(gin.Recovery())
	s.router.Use(s.requestLogger())

	s.router.GET("/health", s.health)
	if metrics != nil {
		s.router.GET("/metrics", gin.WrapH(metrics))
	}
	api := s.router.Group("/api")
	api.POST("/track", s.track)
	api.POST("/reframe", s.reframe)

	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("listen", s.listen).Str("media_root", s.mediaRoot).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.logger.Info().Msg("server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   Version,
	})
}

func (s *Server) track(c *gin.Context) {
	var body TrackRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}
	req, err := s.buildRequest(body)
	if err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}

	id := uuid.New().String()
	logger := s.logger.With().Str("request_id", id).Logger()
	logger.Info().Str("path", req.Input).Str("ratio", string(req.AspectRatio)).Msg("track request")

	out, err := s.svc.Track(c.Request.Context(), req)
	if err != nil {
		logger.Warn().Err(err).Msg("track failed")
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, TrackResponse{
		RequestID: id,
		Tracked:   out.Tracked,
		Result:    out.Result,
		Filter:    out.Filter.Graph,
		Complex:   out.Filter.Complex,
	})
}

func (s *Server) reframe(c *gin.Context) {
	var body ReframeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}
	req, err := s.buildRequest(body.TrackRequest)
	if err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}
	if req.Output, err = s.resolve(body.Output); err != nil {
		badRequest(c, "invalid_path", err.Error())
		return
	}

	id := uuid.New().String()
	logger := s.logger.With().Str("job_id", id).Logger()
	logger.Info().Str("path", req.Input).Str("output", req.Output).Msg("reframe request")

	out, err := s.svc.Reframe(c.Request.Context(), req)
	if err != nil {
		logger.Warn().Err(err).Msg("reframe failed")
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, ReframeResponse{
		JobID:   id,
		Output:  body.Output,
		Mode:    out.Result.Mode,
		Tracked: out.Tracked,
	})
}

func (s *Server) buildRequest(body TrackRequest) (pipeline.Request, error) {
	input, err := s.resolve(body.Path)
	if err != nil {
		return pipeline.Request{}, err
	}
	ratio, err := tracker.ParseAspectRatio(body.AspectRatio)
	if err != nil {
		return pipeline.Request{}, err
	}
	var res tracker.Resolution
	if body.Resolution != "" {
		if res, err = tracker.ParseResolution(body.Resolution); err != nil {
			return pipeline.Request{}, err
		}
	}

	req := pipeline.Request{Input: input, AspectRatio: ratio, Resolution: res}
	if body.Start != "" {
		if req.Start, err = util.ParseTimestamp(body.Start); err != nil {
			return pipeline.Request{}, err
		}
	}
	if body.End != "" {
		if req.End, err = util.ParseTimestamp(body.End); err != nil {
			return pipeline.Request{}, err
		}
	}
	return req, nil
}

// resolve maps a client path into the media root. Paths that escape it are
// rejected.
func (s *Server) resolve(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	full := p
	if !filepath.IsAbs(full) {
		full = filepath.Join(s.mediaRoot, full)
	}
	full = filepath.Clean(full)

	rel, err := filepath.Rel(s.mediaRoot, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the media root", p)
	}
	return full, nil
}

func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tracker.ErrUnsupportedAspectRatio), errors.Is(err, tracker.ErrInvalidClip):
		badRequest(c, "invalid_request", err.Error())
	case errors.Is(err, tracker.ErrSourceUnreadable):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "source_unreadable", Message: err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "cancelled", Message: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: err.Error()})
	}
}

func badRequest(c *gin.Context, code, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: code, Message: msg})
}

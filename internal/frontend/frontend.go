// Package frontend serves the browser page and relays the generation
// service's line stream to it as Server-Sent Events.
package frontend

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/samcharles93/streamgen/internal/api"
	"github.com/samcharles93/streamgen/internal/logger"
	"github.com/samcharles93/streamgen/internal/metrics"
	"github.com/samcharles93/streamgen/internal/stream"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// SSE event names sent to the page.
const (
	EventText  = "streamed-text"
	EventDone  = "done"
	EventError = "error"
)

type Server struct {
	backend *Backend
	buffer  int
	log     logger.Logger
}

func NewServer(backend *Backend, buffer int, log logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	return &Server{backend: backend, buffer: buffer, log: log}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/", s.handleHome)
	e.POST("/start", s.handleStart)
	e.GET("/generate", s.handleGenerate)
}

// NewEcho builds the frontend's echo instance.
func NewEcho(s *Server) *echo.Echo {
	e := echo.New()
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(api.RequestID(s.log))
	s.Register(e)
	return e
}

type homeData struct {
	Title string
}

func (s *Server) handleHome(c *echo.Context) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(res, "home.html", homeData{Title: "streamgen"}); err != nil {
		logger.FromContext(c.Request().Context()).Error("render home", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "render failed")
	}
	return nil
}

func (s *Server) handleStart(c *echo.Context) error {
	msg, err := api.ParseStartMessage(c.Request().Body)
	if err != nil {
		if errors.Is(err, api.ErrInvalidRequest) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		}
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "Message received",
		"message": msg,
	})
}

func (s *Server) handleGenerate(c *echo.Context) error {
	metrics.RecordRequest("frontend_generate")
	message := c.QueryParam("message")
	if message == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message is required"})
	}

	ctx := c.Request().Context()
	log := logger.FromContext(ctx)
	w := newEventWriter(c)

	st := stream.Start(ctx, func(ctx context.Context, emit func(string) error) error {
		return s.backend.Lines(ctx, message, emit)
	}, stream.Options{Buffer: s.buffer, Logger: log})

	n, err := stream.Relay(ctx, st, func(line string) error {
		return w.Event(EventText, line)
	}, stream.RelayOptions{Logger: log})

	switch {
	case err == nil:
		log.Info("stream ended", "events", n)
		return w.Event(EventDone, "")
	case ctx.Err() != nil:
		log.Info("client disconnected", "events", n)
		return nil
	default:
		metrics.RecordError(metrics.ErrorBackend)
		log.Error("backend stream failed", "error", err, "events", n)
		return w.Event(EventError, err.Error())
	}
}

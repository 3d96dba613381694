// Package api serves streaming text generation over HTTP.
package api

import (
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/samcharles93/streamgen/internal/inference"
	"github.com/samcharles93/streamgen/internal/logger"
	"github.com/samcharles93/streamgen/internal/metrics"
)

// DefaultIndexPrompt is the fixed prompt streamed by GET /.
const DefaultIndexPrompt = "An increasing sequence: one,"

type Config struct {
	// ModelName is reported by /healthz.
	ModelName string

	IndexPrompt    string
	IndexMaxTokens int
	// IndexPace is the minimum spacing between fragments on GET /.
	IndexPace time.Duration

	GenerateMaxTokens int
	GeneratePace      time.Duration

	// Buffer is the handoff channel capacity per generation.
	Buffer int
}

// DefaultConfig returns the settings of the reference service.
func DefaultConfig() Config {
	return Config{
		IndexPrompt:       DefaultIndexPrompt,
		IndexMaxTokens:    50,
		IndexPace:         200 * time.Millisecond,
		GenerateMaxTokens: 20,
		Buffer:            64,
	}
}

type Server struct {
	engine   inference.Engine
	defaults inference.GenDefaults
	cfg      Config
	log      logger.Logger
	clock    func() time.Time
	started  time.Time
}

func NewServer(engine inference.Engine, defaults inference.GenDefaults, cfg Config, log logger.Logger) *Server {
	if log == nil {
		log = logger.Default()
	}
	d := DefaultConfig()
	if cfg.IndexPrompt == "" {
		cfg.IndexPrompt = d.IndexPrompt
	}
	if cfg.IndexMaxTokens <= 0 {
		cfg.IndexMaxTokens = d.IndexMaxTokens
	}
	if cfg.GenerateMaxTokens <= 0 {
		cfg.GenerateMaxTokens = d.GenerateMaxTokens
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = d.Buffer
	}
	return &Server{
		engine:   engine,
		defaults: defaults,
		cfg:      cfg,
		log:      log,
		clock:    time.Now,
		started:  time.Now(),
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/", s.handleIndex)
	e.POST("/start", s.handleStart)
	e.GET("/generate", s.handleGenerate)
	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", func(c *echo.Context) error {
		metrics.Handler().ServeHTTP(c.Response(), c.Request())
		return nil
	})
}

// NewEcho builds an echo instance with the standard middleware chain and
// the server's routes.
func NewEcho(s *Server) *echo.Echo {
	e := echo.New()
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(RequestID(s.log))
	s.Register(e)
	return e
}

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/streamgen/internal/inference"
	"github.com/samcharles93/streamgen/internal/logger"
	"github.com/samcharles93/streamgen/internal/metrics"
	"github.com/samcharles93/streamgen/internal/stream"
	"github.com/samcharles93/streamgen/internal/version"
)

func (s *Server) handleIndex(c *echo.Context) error {
	metrics.RecordRequest("index")
	maxTokens := s.cfg.IndexMaxTokens
	req := inference.ResolveRequest(inference.RequestOptions{
		Prompt:       s.cfg.IndexPrompt,
		MaxNewTokens: &maxTokens,
	}, s.defaults)
	return s.streamText(c, "index", req, s.cfg.IndexPace)
}

func (s *Server) handleStart(c *echo.Context) error {
	metrics.RecordRequest("start")
	msg, err := ParseStartMessage(c.Request().Body)
	if err != nil {
		metrics.RecordError(metrics.ErrorValidation)
		var inv invalidRequestError
		if errors.As(err, &inv) {
			return writeError(c, http.StatusOK, inv.msg)
		}
		return writeError(c, http.StatusOK, err.Error())
	}
	logger.FromContext(c.Request().Context()).Info("message received", "length", len(msg))
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "Message received",
		"message": msg,
	})
}

func (s *Server) handleGenerate(c *echo.Context) error {
	metrics.RecordRequest("generate")
	message := c.QueryParam("message")
	if message == "" {
		metrics.RecordError(metrics.ErrorValidation)
		return writeValidationDetail(c, msgFieldRequired)
	}
	maxTokens := s.cfg.GenerateMaxTokens
	skip := true
	req := inference.ResolveRequest(inference.RequestOptions{
		Prompt:       message,
		MaxNewTokens: &maxTokens,
		SkipPrompt:   &skip,
	}, s.defaults)
	return s.streamText(c, "generate", req, s.cfg.GeneratePace)
}

// streamText runs req on a worker and relays its fragments as text/plain
// lines. The response is committed only when the first fragment arrives.
func (s *Server) streamText(c *echo.Context, endpoint string, req inference.Request, pace time.Duration) error {
	ctx := c.Request().Context()
	log := logger.FromContext(ctx).With("endpoint", endpoint)
	log.Debug("generation started", "max_new_tokens", req.MaxNewTokens, "skip_prompt", req.SkipPrompt)

	finished := metrics.GenerationStarted(endpoint)
	st := stream.Start(ctx, s.producer(req), stream.Options{Buffer: s.cfg.Buffer, Logger: log})
	w := newLineWriter(c)
	n, err := stream.Relay(ctx, st, w.WriteLine, stream.RelayOptions{Delay: pace, Logger: log})
	finished(n)

	switch {
	case err == nil:
		w.Finish(nil)
		log.Info("generation complete", "fragments", n)
		return nil
	case ctx.Err() != nil:
		log.Info("client disconnected", "fragments", n)
		return nil
	case !w.Started():
		metrics.RecordError(metrics.ErrorPreStream)
		log.Error("generation failed", "error", err)
		return writeError(c, http.StatusOK, msgGenerationError)
	default:
		metrics.RecordError(metrics.ErrorMidStream)
		log.Error("generation failed after streaming started", "error", err, "fragments", n)
		w.Finish(err)
		return nil
	}
}

func (s *Server) producer(req inference.Request) stream.Producer {
	return func(ctx context.Context, emit func(string) error) error {
		_, err := s.engine.Generate(ctx, &req, emit)
		return err
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Model   string `json:"model"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:  "ok",
		Model:   s.cfg.ModelName,
		Version: version.String(),
		Uptime:  s.clock().Sub(s.started).Round(time.Second).String(),
	})
}

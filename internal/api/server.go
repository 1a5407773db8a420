// Package api exposes the import pipeline over HTTP: trigger imports,
// retrain the model, and request predictions for committed entries.
package api

import (
	"bytes"
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/beanflow/beanflow/internal/classify"
	"github.com/beanflow/beanflow/internal/common"
	"github.com/beanflow/beanflow/internal/config"
	"github.com/beanflow/beanflow/internal/engine"
	"github.com/beanflow/beanflow/internal/importer"
)

// Server wraps a fiber app serving the import API.
type Server struct {
	app    *fiber.App
	engine *engine.Engine
	cfg    *config.Config
	logger *slog.Logger
}

// NewServer builds the HTTP server around an assembled engine.
func NewServer(eng *engine.Engine, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{engine: eng, cfg: cfg, logger: logger}
	s.app = fiber.New(fiber.Config{
		AppName:               "beanflow",
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	s.app.Use(recover.New())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.handleHealth)

	v1 := s.app.Group("/api/v1")
	v1.Post("/import/:source", s.handleImport)
	v1.Post("/train", s.handleTrain)
	v1.Post("/predict", s.handlePredict)
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until the listener fails or Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("API server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	switch {
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
	case errors.Is(err, classify.ErrUntrainedModel):
		code = fiber.StatusConflict
	case errors.Is(err, common.ErrNotFound):
		code = fiber.StatusNotFound
	}

	if code >= fiber.StatusInternalServerError {
		s.logger.Error("Request failed", "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleImport runs one import batch. The request body is the raw bank
// export for the named source; ?dry_run=true runs the pipeline without
// committing.
func (s *Server) handleImport(c *fiber.Ctx) error {
	name := c.Params("source")
	sourceCfg, ok := s.cfg.FindSource(name)
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown source: "+name)
	}
	if len(c.Body()) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "empty request body")
	}

	source := importer.Source{
		Name:     sourceCfg.Name,
		Format:   sourceCfg.Format,
		Account:  sourceCfg.Account,
		Currency: sourceCfg.Currency,
	}
	opts := engine.ImportOptions{
		File:   c.Get("X-Filename"),
		DryRun: c.QueryBool("dry_run"),
	}

	report, err := s.engine.Import(c.Context(), source, bytes.NewReader(c.Body()), opts)
	if err != nil {
		return err
	}
	return c.JSON(report)
}

func (s *Server) handleTrain(c *fiber.Ctx) error {
	result, err := s.engine.Train(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"examples":    result.Examples,
		"accounts":    result.Stats.Accounts,
		"fingerprint": result.Fingerprint,
		"trained_at":  result.Stats.TrainedAt,
	})
}

type predictRequest struct {
	IDs []string `json:"ids"`
}

type predictionResponse struct {
	EntryID string   `json:"entry_id"`
	Account *string  `json:"account"`
	Score   *float64 `json:"score,omitempty"`
}

// handlePredict predicts counter accounts for committed entries by id.
// Entries whose best score sits below the confidence floor come back with a
// null account.
func (s *Server) handlePredict(c *fiber.Ctx) error {
	var req predictRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}
	if len(req.IDs) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "ids must not be empty")
	}

	predictions, err := s.engine.Predict(c.Context(), req.IDs)
	if err != nil {
		return err
	}

	out := make([]predictionResponse, 0, len(predictions))
	for _, p := range predictions {
		resp := predictionResponse{EntryID: p.EntryID}
		if p.Predicted {
			account, score := p.Account, p.Score
			resp.Account = &account
			resp.Score = &score
		}
		out = append(out, resp)
	}
	return c.JSON(fiber.Map{"predictions": out})
}

package bootstrap

import (
	"github.com/gofiber/fiber/v2"
	"github.com/varpsim/varp/pkg/mlog"
	"github.com/varpsim/varp/pkg/mrabbitmq"

	"github.com/varpsim/varp/components/dashboard/internal/services"
)

// Server exposes the aggregator snapshots and exports over HTTP. The charting
// front end consumes this API; the server itself only serves data.
type Server struct {
	app    *fiber.App
	dm     *services.DataManager
	pool   *mrabbitmq.Pool
	logger mlog.Logger
}

// NewServer builds the HTTP layer on top of the data manager.
func NewServer(dm *services.DataManager, pool *mrabbitmq.Pool, logger mlog.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "varp-dashboard",
		DisableStartupMessage: true,
	})

	s := &Server{
		app:    app,
		dm:     dm,
		pool:   pool,
		logger: logger,
	}

	s.routes()

	return s
}

func (s *Server) routes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := s.app.Group("/api")

	api.Get("/resumen", func(c *fiber.Ctx) error {
		return c.JSON(s.dm.Snapshot())
	})

	api.Get("/productor", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"actual":    s.dm.StatsProductor(),
			"historico": s.dm.HistoricoProductor(),
		})
	})

	api.Get("/consumidores", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"actual":    s.dm.StatsConsumidores(),
			"historico": s.dm.HistoricoConsumidores(),
		})
	})

	api.Get("/estadisticas", func(c *fiber.Ctx) error {
		return c.JSON(s.dm.Estadisticas())
	})

	api.Get("/convergencia", func(c *fiber.Ctx) error {
		return c.JSON(s.dm.Convergencia())
	})

	api.Get("/normalidad", func(c *fiber.Ctx) error {
		return c.JSON(s.dm.Normalidad())
	})

	api.Get("/colas", func(c *fiber.Ctx) error {
		return c.JSON(s.dm.QueueSizes())
	})

	api.Get("/modelo", func(c *fiber.Ctx) error {
		return c.JSON(s.dm.Modelo())
	})

	api.Get("/pool", func(c *fiber.Ctx) error {
		return c.JSON(s.pool.Stats())
	})

	export := api.Group("/export")

	export.Get("/json", func(c *fiber.Ctx) error {
		doc, err := s.dm.ExportJSON()
		if err != nil {
			s.logger.Errorf("Error building JSON export: %v", err)

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="resultados.json"`)

		return c.Send(doc)
	})

	export.Get("/resultados.csv", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/csv")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="resultados.csv"`)

		return c.SendString(s.dm.ExportResultadosCSV())
	})

	export.Get("/estadisticas.csv", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/csv")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="estadisticas.csv"`)

		return c.SendString(s.dm.ExportEstadisticasCSV())
	})

	export.Get("/convergencia.csv", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "text/csv")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="convergencia.csv"`)

		return c.SendString(s.dm.ExportConvergenciaCSV())
	})
}

// Listen serves the API on addr, blocking until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Infof("Dashboard API listening on http://%s", addr)

	return s.app.Listen(addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

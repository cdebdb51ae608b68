package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/hazardmap/internal/core/domain"
	"github.com/samirrijal/hazardmap/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	validator := deps.Validator
	if validator == nil {
		v, err := NewSubmissionValidator()
		if err != nil {
			panic("submission schemas: " + err.Error())
		}
		validator = v
	}

	app.Use(recover.New())

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins(deps.AllowOrigins),
		AllowMethods: "GET,POST,DELETE,OPTIONS",
	}))

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per client
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())
	app.Use(DeprecationMiddleware(legacyRoutes))

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	withTimeout := func(h fiber.Handler) fiber.Handler {
		return timeout.NewWithContext(h, requestTimeout)
	}

	v1 := app.Group("/v1")
	v1.Get("/records", withTimeout(ListAllRecordsHandler(deps)))
	v1.Get("/records/nearby", withTimeout(NearbyRecordsHandler(deps)))

	for segment, kind := range collectionKinds {
		v1.Get("/"+segment, withTimeout(ListRecordsHandler(deps, kind)))
		v1.Get("/"+segment+"/:id", withTimeout(GetRecordHandler(deps, kind)))
		v1.Post("/"+segment, withTimeout(CreateRecordHandler(deps, kind, validator)))
		v1.Delete("/"+segment+"/:id", withTimeout(DeleteRecordHandler(deps, kind)))
	}

	// Pre-v1 spelling, see legacyRoutes
	v1.Get("/hazardzones", withTimeout(ListRecordsHandler(deps, domain.KindHazardZone)))
	v1.Get("/hazardzones/:id", withTimeout(GetRecordHandler(deps, domain.KindHazardZone)))

	v1.Post("/geometry/parse", ParseGeometryHandler())
	v1.Post("/geometry/distance", DistanceHandler())
	v1.Post("/geometry/centroid", CentroidHandler())
	if deps.Normalizer != nil {
		v1.Post("/normalize", NormalizeHandler(deps))
	}

	if deps.Places != nil {
		v1.Get("/places/search", withTimeout(SearchPlacesHandler(deps)))
	}

	v1.Get("/export.kml", withTimeout(ExportKMLHandler(deps)))
	v1.Get("/export.geojson", withTimeout(ExportGeoJSONHandler(deps)))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app, deps.DocsPath)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}

func allowOrigins(configured string) string {
	if configured == "" {
		return "*"
	}
	return configured
}

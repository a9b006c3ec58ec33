package routes

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/sirupsen/logrus"

	"github.com/example/bloodlink/internal/config"
	"github.com/example/bloodlink/internal/handlers"
	"github.com/example/bloodlink/internal/middleware"
	"github.com/example/bloodlink/internal/services"
)

// Deps carries everything the route table needs.
type Deps struct {
	Config   *config.Config
	Log      logrus.FieldLogger
	Donors   *services.DonorService
	Requests *services.RequestService
	SMS      services.SMSGateway
	Ping     handlers.PingFunc
}

// NewApp builds the Fiber app with its middleware stack and routes.
func NewApp(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Bloodlink",
		ErrorHandler:          middleware.ErrorHandler(d.Log),
		DisableStartupMessage: true,
	})

	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(d.Log))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(d.Config.AllowedOrigins(), ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	Register(app, d)
	return app
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, d Deps) {
	donorHandler := handlers.NewDonorHandler(d.Donors, d.Requests)
	requestHandler := handlers.NewRequestHandler(d.Requests)
	resetHandler := handlers.NewPasswordResetHandler(d.Donors)
	otpHandler := handlers.NewOTPHandler(d.SMS)
	healthHandler := handlers.NewHealthHandler(d.Config, d.Ping)

	protect := middleware.Protect(d.Donors)
	admin := middleware.AdminOnly()

	api := app.Group("/api")
	api.Get("/health", healthHandler.Health)

	// Donor routes
	donors := api.Group("/donors")
	donors.Post("/register", donorHandler.Register)
	donors.Post("/login", donorHandler.Login)
	donors.Get("/nearby", donorHandler.Nearby)
	donors.Post("/password/forgot", resetHandler.ForgotPassword)
	donors.Post("/password/reset", resetHandler.ResetPassword)

	donors.Get("/profile", protect, donorHandler.GetProfile)
	donors.Put("/profile", protect, donorHandler.UpdateProfile)
	donors.Get("/donations", protect, donorHandler.GetDonations)
	donors.Post("/donations", protect, donorHandler.AddDonation)
	donors.Get("/:donorId/requests", protect, donorHandler.DonorRequests)
	donors.Put("/:donorId/requests/:requestId/:status", protect, donorHandler.UpdateRequestStatus)

	donors.Get("/", protect, admin, donorHandler.ListDonors)
	donors.Get("/:id", protect, admin, donorHandler.GetDonor)
	donors.Put("/:id", protect, admin, donorHandler.UpdateDonor)
	donors.Delete("/:id", protect, admin, donorHandler.DeleteDonor)

	// Blood request routes
	requests := api.Group("/requests")
	requests.Post("/", protect, requestHandler.Create)
	requests.Get("/", requestHandler.List)
	requests.Get("/user", protect, requestHandler.ListMine)
	requests.Get("/status", requestHandler.Status)
	requests.Get("/:id", requestHandler.Get)
	requests.Put("/:id", protect, requestHandler.Update)
	requests.Delete("/:id", protect, requestHandler.Delete)

	requests.Post("/:id/donors/:donorId/notify", protect, requestHandler.NotifyDonor)
	requests.Post("/:id/respond", protect, requestHandler.Respond)
	requests.Put("/:id/donors/:donorId/status", protect, requestHandler.UpdateDonationStatus)
	requests.Post("/:id/match", protect, requestHandler.Match)

	// Phone verification
	otp := api.Group("/otp")
	otp.Post("/send", otpHandler.Send)
	otp.Post("/verify", otpHandler.Verify)

	api.Use(notFound)

	serveFrontend(app, d.Config.StaticDir, d.Log)
	app.Use(notFound)
}

func notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"success": false,
		"error":   "Route not found: " + c.Method() + " " + c.OriginalURL(),
	})
}

// serveFrontend serves the built SPA with an index.html fallback for
// client-side routes. Nothing is mounted when the build is missing.
func serveFrontend(app *fiber.App, dir string, log logrus.FieldLogger) {
	if dir == "" {
		return
	}
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		log.WithField("dir", dir).Info("frontend build not found, static serving disabled")
		return
	}

	app.Static("/", dir)
	app.Get("/*", func(c *fiber.Ctx) error {
		return c.SendFile(index)
	})
}

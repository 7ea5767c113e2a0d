package router

import (
	"net/http"

	"github.com/redis/go-redis/v9"

	contractsvc "github.com/steeldragon666/abfi-nextgen-sub001/internal/application/contracts"
	demandsvc "github.com/steeldragon666/abfi-nextgen-sub001/internal/application/demand"
	matchsvc "github.com/steeldragon666/abfi-nextgen-sub001/internal/application/matching"
	supplysvc "github.com/steeldragon666/abfi-nextgen-sub001/internal/application/supply"
	authsvc "github.com/steeldragon666/abfi-nextgen-sub001/internal/auth"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/config"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/infrastructure/database"
	authhandler "github.com/steeldragon666/abfi-nextgen-sub001/internal/interfaces/handlers/auth"
	contracthandler "github.com/steeldragon666/abfi-nextgen-sub001/internal/interfaces/handlers/contracts"
	demandhandler "github.com/steeldragon666/abfi-nextgen-sub001/internal/interfaces/handlers/demand"
	healthhandler "github.com/steeldragon666/abfi-nextgen-sub001/internal/interfaces/handlers/health"
	matchhandler "github.com/steeldragon666/abfi-nextgen-sub001/internal/interfaces/handlers/matching"
	supplyhandler "github.com/steeldragon666/abfi-nextgen-sub001/internal/interfaces/handlers/supply"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/middleware"
	"github.com/steeldragon666/abfi-nextgen-sub001/internal/pkg/constants"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	sessionHandler, redisClient, err := middleware.Session(middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.Env == "production",
	})
	if err != nil {
		return nil, nil, nil, err
	}
	rdb := redisClient
	app.Use(sessionHandler)
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.ResponseFormatter())
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	app.Use(func(c *fiber.Ctx) error {
		user := c.Locals("user")
		if user == nil {
			c.Locals("user", nil)
		}
		return c.Next()
	})

	hh := &healthhandler.Handlers{
		Rdb:            rdb,
		DB:             nil,
		HealthAdminKey: cfg.HealthAdminKey,
	}
	app.Get("/", hh.JSON)
	app.Get("/reset", hh.Reset)
	app.Get("/health/json", hh.JSON)
	app.Get("/health/errors", hh.Errors)

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		var errDB error
		db, errDB = database.Open(cfg.DatabaseURL)
		if errDB != nil {
			return nil, nil, nil, errDB
		}
		hh.DB = &gormDBPinger{db: db}
	}

	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.Env == "production",
	}

	var userFinder authsvc.UserFinder
	if db != nil {
		userFinder = &authsvc.GormUserFinder{DB: db}
	}
	ah := &authhandler.Handlers{
		UserFinder: userFinder,
		Rdb:        rdb,
		Config:     sessionCfg,
	}
	authGroup := app.Group("/api/v1/auth")
	authGroup.Post("/login", ah.Login)
	authGroup.Get("/me", ah.Me)
	authGroup.Delete("/logout", ah.Logout)

	if db != nil && rdb != nil {
		// Demand
		ds := &demandsvc.Service{DB: db}
		dh := &demandhandler.Handlers{Service: ds}
		dg := app.Group("/api/v1/demand", middleware.RequireAuth())
		dg.Post("/publish-signal", middleware.AuthorizePermission(constants.PublishDemand), dh.PublishSignal)
		dg.Get("/get-org-signals", middleware.AuthorizePermission(constants.ViewData), dh.GetOrgSignals)
		dg.Get("/get-signal/:signal_id", middleware.AuthorizePermission(constants.ViewData), dh.GetSignal)
		dg.Patch("/withdraw-signal/:signal_id", middleware.AuthorizePermission(constants.WithdrawDemand), dh.WithdrawSignal)

		// Supply
		ss := &supplysvc.Service{DB: db}
		sh := &supplyhandler.Handlers{Service: ss}
		sg := app.Group("/api/v1/supply", middleware.RequireAuth())
		sg.Post("/create-listing", middleware.AuthorizePermission(constants.CreateSupplyListing), sh.CreateListing)
		sg.Get("/get-org-listings", middleware.AuthorizePermission(constants.ViewData), sh.GetOrgListings)
		sg.Get("/get-active-listings", middleware.AuthorizePermission(constants.ViewData), sh.GetActiveListings)
		sg.Patch("/pause-listing/:supply_id", middleware.AuthorizePermission(constants.CreateSupplyListing), sh.PauseListing)

		// Matching
		msv := &matchsvc.Service{
			DB:         db,
			Policy:     matchsvc.DefaultScoringPolicy(),
			DefaultLat: cfg.DefaultDeliveryLat,
			DefaultLng: cfg.DefaultDeliveryLng,
		}
		mh := &matchhandler.Handlers{Service: msv}
		mg := app.Group("/api/v1/matching", middleware.RequireAuth())
		mg.Post("/generate-matches", middleware.AuthorizePermission(constants.GenerateMatches), mh.GenerateMatches)
		mg.Get("/get-demand-matches/:demand_signal_id", middleware.AuthorizePermission(constants.ViewData), mh.GetDemandMatches)
		mg.Get("/get-grower-matches", middleware.AuthorizePermission(constants.ViewData), mh.GetGrowerMatches)
		mg.Post("/view-match", middleware.AuthorizePermission(constants.RespondToMatch), mh.ViewMatch)
		mg.Post("/start-negotiation", middleware.AuthorizePermission(constants.RespondToMatch), mh.StartNegotiation)
		mg.Post("/accept-match", middleware.AuthorizePermission(constants.AcceptMatch), mh.AcceptMatch)
		mg.Post("/reject-match", middleware.AuthorizePermission(constants.RespondToMatch), mh.RejectMatch)
		mg.Post("/expire-old-matches", middleware.AuthorizePermission(constants.ExpireMatches), mh.ExpireOldMatches)

		// Contracts
		cs := &contractsvc.Service{DB: db}
		ch := &contracthandler.Handlers{Service: cs}
		cg := app.Group("/api/v1/contracts", middleware.RequireAuth())
		cg.Post("/sign-contract", middleware.AuthorizePermission(constants.SignContract), ch.SignContract)
		cg.Get("/get-contract/:contract_number", middleware.AuthorizePermission(constants.ViewData), ch.GetContract)
		cg.Get("/list-contracts", middleware.AuthorizePermission(constants.ViewData), ch.ListContracts)
		cg.Get("/get-contract-deliveries/:contract_number", middleware.AuthorizePermission(constants.ViewData), ch.GetContractDeliveries)
		cg.Post("/update-delivery-status", middleware.AuthorizePermission(constants.UpdateDelivery), ch.UpdateDeliveryStatus)
	}

	return app, db, rdb, nil
}

func Handler(app *fiber.App) http.Handler {
	return adaptor.FiberApp(app)
}

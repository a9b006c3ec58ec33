package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/example/bloodlink/internal/config"
	"github.com/example/bloodlink/internal/database"
	"github.com/example/bloodlink/internal/handlers"
	"github.com/example/bloodlink/internal/logger"
	"github.com/example/bloodlink/internal/routes"
	"github.com/example/bloodlink/internal/services"
	"github.com/example/bloodlink/internal/store"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "Start the HTTP server",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "port",
			Usage: "Preferred port, overrides PORT",
		},
	},
	Action: serve,
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cCtx.IsSet("port") {
		cfg.Port = cCtx.Int("port")
	}

	log := newLogger(cfg)

	stores, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := stores.close(closeCtx); err != nil {
			log.WithError(err).Warn("failed to close database")
		}
	}()

	sms := services.NewTwilioGateway(twilioConfig(cfg), log)
	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, log)
	tokens := services.TokenConfig{Secret: cfg.JWTSecret, TTL: cfg.TokenExpires}

	app := routes.NewApp(routes.Deps{
		Config:   cfg,
		Log:      log,
		Donors:   services.NewDonorService(stores.donors, stores.requests, sms, tokens, log),
		Requests: services.NewRequestService(stores.requests, stores.donors, sms, telegram, log),
		SMS:      sms,
		Ping:     stores.ping,
	})

	ln, port, err := listen(cfg.Port, log)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"port":   port,
			"env":    cfg.Env,
			"driver": cfg.DatabaseDriver,
		}).Infof("server starting http://localhost:%d", port)
		errCh <- app.Listener(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutdown signal received")

	return app.ShutdownWithTimeout(10 * time.Second)
}

func newLogger(cfg *config.Config) *logrus.Logger {
	return logger.New(logger.Options{
		Level: cfg.LogLevel,
		JSON:  cfg.IsProduction(),
		File:  cfg.LogFile,
	})
}

func twilioConfig(cfg *config.Config) services.TwilioConfig {
	return services.TwilioConfig{
		AccountSID:  cfg.TwilioAccountSID,
		AuthToken:   cfg.TwilioAuthToken,
		FromNumber:  cfg.TwilioPhoneNumber,
		VerifySID:   cfg.TwilioVerifySID,
		APIBase:     cfg.TwilioAPIBase,
		VerifyBase:  cfg.TwilioVerifyBase,
		CountryCode: cfg.SMSCountryCode,
		TestPhone:   cfg.OTPTestPhone,
		Production:  cfg.IsProduction(),
	}
}

type backend struct {
	donors   store.DonorStore
	requests store.RequestStore
	ping     handlers.PingFunc
	close    func(context.Context) error
}

func openBackend(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*backend, error) {
	switch cfg.DatabaseDriver {
	case config.DriverMongo:
		client, db, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, log)
		if err != nil {
			return nil, err
		}
		return &backend{
			donors:   store.NewMongoDonors(db, log),
			requests: store.NewMongoRequests(db, log),
			ping:     func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close:    func(ctx context.Context) error { return database.CloseMongo(ctx, client) },
		}, nil

	case config.DriverMemory:
		log.Warn("using in-memory store, data is lost on restart")
		mem := store.NewMemory()
		return &backend{
			donors:   mem.Donors(),
			requests: mem.Requests(),
			close:    func(context.Context) error { return nil },
		}, nil

	default:
		conn, err := database.ConnectPostgres(cfg.DatabaseURL, log)
		if err != nil {
			return nil, err
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, err
		}
		return &backend{
			donors:   store.NewPostgresDonors(conn, log),
			requests: store.NewPostgresRequests(conn, log),
			ping:     sqlDB.PingContext,
			close:    func(context.Context) error { return database.ClosePostgres(conn) },
		}, nil
	}
}

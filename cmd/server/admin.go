package main

import (
	"context"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/example/bloodlink/internal/config"
	"github.com/example/bloodlink/internal/services"
)

var promoteAdminCommand = &cli.Command{
	Name:  "promote-admin",
	Usage: "Grant admin rights to a registered donor",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "phone",
			Usage:    "10-digit phone number of the donor",
			Required: true,
		},
	},
	Action: promoteAdmin,
}

func promoteAdmin(cCtx *cli.Context) error {
	ctx, cancel := context.WithTimeout(cCtx.Context, 30*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	stores, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = stores.close(context.Background()) }()

	tokens := services.TokenConfig{Secret: cfg.JWTSecret, TTL: cfg.TokenExpires}
	donors := services.NewDonorService(stores.donors, stores.requests, services.NewTwilioGateway(twilioConfig(cfg), log), tokens, log)

	donor, err := donors.PromoteAdmin(ctx, cCtx.String("phone"))
	if err != nil {
		return err
	}
	log.WithField("donor_id", donor.ID).Infof("%s is now an admin", donor.Name)
	return nil
}

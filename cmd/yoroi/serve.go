package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yoroi/admin"
	"yoroi/config"
	"yoroi/gateway"
	"yoroi/metrics"
	"yoroi/middleware"
	"yoroi/registry"
)

func serveCmd() *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()
			if address != "" {
				cfg.Gateway.Address = address
			}
			return runGateway(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().StringVarP(&address, "address", "a", "", "listen address, overrides gateway.address")
	return cmd
}

func runGateway(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := metrics.New()
	mws := []middleware.Middleware{middleware.Logging(log.Named("access"))}
	if cfg.Gateway.RateLimit > 0 {
		mws = append(mws, middleware.RateLimit(cfg.Gateway.RateLimit, cfg.Gateway.RateBurst))
	}
	srv := gateway.New(
		gateway.WithLogger(log),
		gateway.WithMetrics(m),
		gateway.WithMiddleware(mws...),
		gateway.WithMissStatus(cfg.Gateway.MissStatus),
		gateway.WithPreservePath(cfg.Gateway.PreservePath),
		gateway.WithDrainTimeout(cfg.Gateway.DrainTimeout),
		gateway.WithSignalDelay(cfg.Gateway.ShutdownDelay),
		gateway.WithDialTimeout(cfg.Gateway.DialTimeout),
	)

	reg := srv.Registry()
	for _, s := range cfg.Services {
		reg.Register(s.ID, s.Name, s.Endpoints)
		log.Info("service registered", zap.String("id", s.ID), zap.Strings("endpoints", s.Endpoints))
	}
	if len(cfg.Etcd.Endpoints) > 0 {
		if err := seedFromEtcd(ctx, cfg, reg, log); err != nil {
			return err
		}
	}

	if cfg.Admin.Address != "" {
		h := admin.NewRouter(admin.Options{
			Registry: reg,
			Metrics:  m,
			State:    func() string { return srv.State().String() },
			Logger:   log,
		})
		go func() {
			if err := admin.Serve(ctx, cfg.Admin.Address, h, log); err != nil {
				log.Error("admin server failed", zap.Error(err))
			}
		}()
	}

	return srv.Serve(cfg.Gateway.Address)
}

func seedFromEtcd(ctx context.Context, cfg *config.Config, reg registry.Registry, log *zap.Logger) error {
	etcd, err := registry.NewEtcdRegistry(cfg.Etcd.Endpoints, cfg.Etcd.Prefix, cfg.Etcd.DialTimeout)
	if err != nil {
		return err
	}
	defer etcd.Close()

	seedCtx := ctx
	if cfg.Etcd.DialTimeout > 0 {
		var cancel context.CancelFunc
		seedCtx, cancel = context.WithTimeout(ctx, cfg.Etcd.DialTimeout)
		defer cancel()
	}
	n, err := etcd.Seed(seedCtx, reg)
	if err != nil {
		return err
	}
	log.Info("registry seeded from etcd", zap.Int("instances", n), zap.String("prefix", cfg.Etcd.Prefix))
	return nil
}

package main

import (
	"context"
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yoroi/cache"
	"yoroi/config"
	"yoroi/kyc"
	"yoroi/registry"
	"yoroi/shutdown"
	"yoroi/signal"
)

func kycCmd() *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "kyc",
		Short: "Run the kyc.Kyc gRPC service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()
			if address != "" {
				cfg.Kyc.Address = address
			}
			return runKyc(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().StringVarP(&address, "address", "a", "", "listen address, overrides kyc.address")
	return cmd
}

func runKyc(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var store kyc.Store
	if cfg.Kyc.DatabaseURL != "" {
		gs, err := kyc.OpenGormStore(cfg.Kyc.DatabaseURL, log)
		if err != nil {
			return err
		}
		store = gs
	} else {
		log.Warn("kyc.database_url not set, accounts are kept in memory")
		store = kyc.NewMemoryStore()
	}

	var events kyc.Publisher
	if cfg.Kyc.RedisURL != "" {
		r, err := cache.NewRedis(cfg.Kyc.RedisURL)
		if err != nil {
			return err
		}
		defer r.Close()
		events = r
	}

	ln, err := net.Listen("tcp", cfg.Kyc.Address)
	if err != nil {
		return err
	}
	srv := kyc.NewGRPCServer(kyc.NewService(store, events, log), log)

	if len(cfg.Etcd.Endpoints) > 0 {
		etcd, err := registry.NewEtcdRegistry(cfg.Etcd.Endpoints, cfg.Etcd.Prefix, cfg.Etcd.DialTimeout)
		if err != nil {
			ln.Close()
			return err
		}
		defer etcd.Close()
		inst := registry.Instance{ID: cfg.Kyc.AnnounceID, Name: "kyc", Endpoint: ln.Addr().String()}
		if err := etcd.Announce(ctx, inst, cfg.Kyc.AnnounceTTL); err != nil {
			ln.Close()
			return err
		}
		defer func() {
			if err := etcd.Withdraw(context.Background(), inst.ID, inst.Endpoint); err != nil {
				log.Warn("withdraw from etcd", zap.Error(err))
			}
		}()
		log.Info("announced in etcd", zap.String("id", inst.ID), zap.String("endpoint", inst.Endpoint))
	}

	handle, receiver := shutdown.New()
	go signal.Listen(ctx, handle.Request, cfg.Gateway.ShutdownDelay)
	go func() {
		select {
		case <-receiver.C():
			log.Info("stopping kyc")
			srv.GracefulStop()
		case <-ctx.Done():
		}
	}()

	log.Info("kyc listening", zap.String("address", ln.Addr().String()))
	return srv.Serve(ln)
}

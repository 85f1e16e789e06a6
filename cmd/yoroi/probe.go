package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"yoroi/client"
	"yoroi/kyc"
)

func gatewayAddress(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	cfg, _, err := setup()
	if err != nil {
		return "", err
	}
	return cfg.Gateway.Address, nil
}

func probeCmd() *cobra.Command {
	var (
		gw      string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "probe <path>",
		Short: "GET a path through the gateway and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := gatewayAddress(gw)
			if err != nil {
				return err
			}
			c := client.New(addr)
			defer c.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			resp, err := c.Get(ctx, args[0])
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			fmt.Fprintln(cmd.OutOrStdout(), resp.Status)
			_, err = io.Copy(cmd.OutOrStdout(), resp.Body)
			return err
		},
	}
	cmd.Flags().StringVarP(&gw, "gateway", "g", "", "gateway address (default gateway.address)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")
	return cmd
}

func pingCmd() *cobra.Command {
	var (
		gw      string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Call kyc.Kyc/Ping through the gateway (needs gateway.preserve_path)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, err := gatewayAddress(gw)
			if err != nil {
				return err
			}
			cc, err := grpc.NewClient("passthrough:///"+addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return err
			}
			defer cc.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			reply, err := kyc.NewKycClient(cc).Ping(ctx, &kyc.PingRequest{Message: "ping"})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply.Message)
			return nil
		},
	}
	cmd.Flags().StringVarP(&gw, "gateway", "g", "", "gateway address (default gateway.address)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "call timeout")
	return cmd
}

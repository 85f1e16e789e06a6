package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "yoroi",
	Short: "yoroi is a lightweight HTTP/2 service gateway",
	Long: `yoroi routes HTTP/2 requests to registered backend services by the first
path segment, and relays CONNECT requests as raw TCP tunnels.
`,
	SilenceUsage: true,
}

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(kycCmd())
	rootCmd.AddCommand(probeCmd())
	rootCmd.AddCommand(pingCmd())
	rootCmd.AddCommand(secretCmd())
	rootCmd.AddCommand(versionCmd())
}

var version = "0.0.0"

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(version)
		},
	}
}

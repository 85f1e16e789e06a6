package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"yoroi/secret"
)

func secretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Hash and encrypt values the way the services store them",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "hash <text>",
		Short: "Print the bcrypt hash of text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := secret.Hash(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "encrypt <text>",
		Short: "AES-256-CBC encrypt text with secret.aes_key/aes_iv, base64 output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := configuredAES()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.EncodeString(args[0]))
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "decrypt <base64>",
		Short: "Reverse encrypt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := configuredAES()
			if err != nil {
				return err
			}
			text, err := a.DecodeString(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	})
	return cmd
}

func configuredAES() (*secret.AES, error) {
	cfg, _, err := setup()
	if err != nil {
		return nil, err
	}
	if cfg.Secret.AESKey == "" || cfg.Secret.AESIV == "" {
		return nil, errors.New("secret.aes_key and secret.aes_iv must be set")
	}
	return secret.NewAES([]byte(cfg.Secret.AESKey), []byte(cfg.Secret.AESIV))
}

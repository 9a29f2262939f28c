package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/image-tattoo/internal/service"
)

var embedCmd = &cobra.Command{
	Use:   "embed <source> <target>",
	Short: "Write a token into a copy of an image",
	Long: `Write a token into a copy of an image without touching the database.

Example:
  image-tattoo embed scan.png tatouee_scan.png --token ID_Patient:42`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		codec, err := newCodec(cfg)
		if err != nil {
			return err
		}
		token, _ := cmd.Flags().GetString("token")
		used, err := service.NewWatermarkService(codec, cfg.DefaultToken).Watermark(cmd.Context(), args[0], token, args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[1], used)
		return nil
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Print the token embedded in an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		codec, err := newCodec(cfg)
		if err != nil {
			return err
		}
		token, found, err := service.NewVerifyService(codec).Verify(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%s: no metadata found", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(embedCmd, extractCmd)
	embedCmd.Flags().StringP("token", "t", "", "token to embed (defaults to DEFAULT_TOKEN)")
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	httpclient "gitlab.citydrive.tech/back-end/go/pkg/discord-http-client"
)

func newGatewayCommand(cfg *cliConfig) *cobra.Command {
	var (
		bot      bool
		encoding string
		zlib     bool
	)

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Print the gateway URL, with shard info for --bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := cfg.client()
			if err != nil {
				return err
			}
			defer client.Close()
			if err := cfg.login(cmd.Context(), client); err != nil {
				return err
			}

			if !bot {
				u, err := client.GetGateway(cmd.Context(), encoding, zlib)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), u)
				return err
			}

			gw, err := client.GetBotGateway(cmd.Context(), encoding, zlib)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), map[string]any{
				"url":    gw.URL,
				"shards": gw.Shards,
				"session_start_limit": map[string]any{
					"total":           gw.SessionStartLimit.Total,
					"remaining":       gw.SessionStartLimit.Remaining,
					"reset_after":     gw.SessionStartLimit.ResetAfter.String(),
					"max_concurrency": gw.SessionStartLimit.MaxConcurrency,
				},
			})
		},
	}

	cmd.Flags().BoolVar(&bot, "bot", false, "query /gateway/bot (requires a token)")
	cmd.Flags().StringVar(&encoding, "encoding", httpclient.EncodingJSON, "gateway encoding: json or etf")
	cmd.Flags().BoolVar(&zlib, "zlib", false, "request zlib-stream compression")
	return cmd
}

func newWhoAmICommand(cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Validate the token and print the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.v.GetString(tokenKey) == "" {
				return fmt.Errorf("a token is required (--%s or DISCORD_TOKEN)", tokenKey)
			}
			client, err := cfg.client()
			if err != nil {
				return err
			}
			defer client.Close()

			me, err := client.Login(cmd.Context(), cfg.v.GetString(tokenKey))
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), me)
		},
	}
}

func newCDNCommand(cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "cdn URL",
		Short: "Download an asset from the CDN to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := cfg.client()
			if err != nil {
				return err
			}
			defer client.Close()
			client.Recreate()

			data, err := client.GetFromCDN(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

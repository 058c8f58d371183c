package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	httpclient "gitlab.citydrive.tech/back-end/go/pkg/discord-http-client"
)

func newRequestCommand(cfg *cliConfig) *cobra.Command {
	var (
		params []string
		body   string
		reason string
		locale string
	)

	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Send a request to a templated route, e.g. GET /channels/{channel_id}",
		Example: `  discordctl request GET '/channels/{channel_id}/messages' -p channel_id=123
  discordctl request POST '/channels/{channel_id}/messages' -p channel_id=123 --json '{"content":"hi"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams(params)
			if err != nil {
				return err
			}
			route, err := httpclient.NewRoute(strings.ToUpper(args[0]), args[1], p)
			if err != nil {
				return err
			}

			var opts []httpclient.RequestOption
			if body != "" {
				var payload any
				if err := json.Unmarshal([]byte(body), &payload); err != nil {
					return fmt.Errorf("invalid --json: %w", err)
				}
				opts = append(opts, httpclient.WithJSON(payload))
			}
			if reason != "" {
				opts = append(opts, httpclient.WithReason(reason))
			}
			if locale != "" {
				opts = append(opts, httpclient.WithLocale(locale))
			}

			client, err := cfg.client()
			if err != nil {
				return err
			}
			defer client.Close()
			if err := cfg.login(cmd.Context(), client); err != nil {
				return err
			}

			data, err := client.Request(cmd.Context(), route, opts...)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), data)
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "route parameter as name=value, repeatable")
	cmd.Flags().StringVar(&body, "json", "", "JSON payload")
	cmd.Flags().StringVar(&reason, "reason", "", "audit log reason")
	cmd.Flags().StringVar(&locale, "locale", "", "X-Discord-Locale header")
	return cmd
}

func parseParams(raw []string) (httpclient.Params, error) {
	params := make(httpclient.Params, len(raw))
	for _, kv := range raw {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid route parameter %q, expected name=value", kv)
		}
		params[name] = value
	}
	return params, nil
}

func printResult(w io.Writer, data any) error {
	if s, ok := data.(string); ok {
		if s == "" {
			return nil
		}
		_, err := fmt.Fprintln(w, s)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

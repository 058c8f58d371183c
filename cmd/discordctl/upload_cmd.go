package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	httpclient "gitlab.citydrive.tech/back-end/go/pkg/discord-http-client"
)

func newUploadCommand(cfg *cliConfig) *cobra.Command {
	var (
		content string
		body    string
	)

	cmd := &cobra.Command{
		Use:   "upload CHANNEL_ID FILE...",
		Short: "Post a message with attachments to a channel",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{}
			if body != "" {
				if err := json.Unmarshal([]byte(body), &payload); err != nil {
					return fmt.Errorf("invalid --json: %w", err)
				}
			}
			if content != "" {
				payload["content"] = content
			}

			route, err := httpclient.NewRoute("POST", "/channels/{channel_id}/messages", httpclient.Params{"channel_id": args[0]})
			if err != nil {
				return err
			}

			client, err := cfg.client()
			if err != nil {
				return err
			}
			defer client.Close()
			if err := cfg.login(cmd.Context(), client); err != nil {
				return err
			}

			files := make([]*httpclient.File, 0, len(args)-1)
			for _, path := range args[1:] {
				f, err := httpclient.OpenFile(path)
				if err != nil {
					for _, opened := range files {
						_ = opened.Close()
					}
					return err
				}
				files = append(files, f)
			}

			data, err := client.SendFiles(cmd.Context(), route, payload, files)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), data)
		},
	}

	cmd.Flags().StringVar(&content, "content", "", "message text")
	cmd.Flags().StringVar(&body, "json", "", "message payload as a JSON object")
	return cmd
}

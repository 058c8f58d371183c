package main

import (
	"fmt"

	"github.com/spf13/cobra"

	httpclient "gitlab.citydrive.tech/back-end/go/pkg/discord-http-client"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version and User-Agent",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", httpclient.Version, httpclient.DefaultUserAgent())
			return err
		},
	}
}

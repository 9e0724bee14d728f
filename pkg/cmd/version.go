package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telekom/exception-subscriptions/pkg/output"
	"github.com/telekom/exception-subscriptions/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the version of the binary, or of the server with --remote",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			info := version.GetBuildInfo()
			if remote {
				c, err := rt.Client()
				if err != nil {
					return err
				}
				serverInfo, err := c.Version(cmd.Context())
				if err != nil {
					return err
				}
				info = *serverInfo
			}

			format, err := rt.OutputFormat()
			if err != nil {
				return err
			}
			switch format {
			case output.FormatTable, output.FormatText:
				_, _ = fmt.Fprintln(rt.Writer(), info.String())
				return nil
			default:
				return output.WriteObject(rt.Writer(), format, info)
			}
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Query the server instead")

	return cmd
}

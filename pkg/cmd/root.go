package cmd

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/telekom/exception-subscriptions/pkg/client"
	"github.com/telekom/exception-subscriptions/pkg/output"
)

type Config struct {
	OutputWriter io.Writer
}

type runtimeState struct {
	outputFormat string
	server       string
	token        string
	caFile       string
	insecure     bool
	writer       io.Writer
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{OutputWriter: os.Stdout}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{writer: cfg.OutputWriter}

	root := &cobra.Command{
		Use:           "subscriptions",
		Short:         "Culprit-pattern email subscriptions for error events",
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.outputFormat == "" {
				rt.outputFormat = os.Getenv("SUBSCRIPTIONS_OUTPUT")
			}
			if rt.server == "" {
				rt.server = os.Getenv("SUBSCRIPTIONS_SERVER")
			}
			if rt.token == "" {
				rt.token = os.Getenv("SUBSCRIPTIONS_TOKEN")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, json, yaml, text")
	root.PersistentFlags().StringVar(&rt.server, "server", "", "Server URL of the admin API, e.g. http://localhost:8080")
	root.PersistentFlags().StringVar(&rt.token, "token", "", "Bearer token for the admin API")
	root.PersistentFlags().StringVar(&rt.caFile, "ca-file", "", "CA bundle to verify the server certificate")
	root.PersistentFlags().BoolVar(&rt.insecure, "insecure-skip-tls-verify", false, "Skip server certificate verification")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewServeCommand(),
		NewValidateCommand(),
		NewMatchCommand(),
		NewGateCommand(),
		NewGetCommand(),
		NewApplyCommand(),
		NewDeleteCommand(),
		NewMatchesCommand(),
		NewSendEventCommand(),
		NewTokenCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) OutputFormat() (output.Format, error) {
	return output.ParseFormat(rt.outputFormat)
}

func (rt *runtimeState) Client() (*client.Client, error) {
	if rt.server == "" {
		return nil, errors.New("no server configured: use --server or SUBSCRIPTIONS_SERVER")
	}
	return client.New(
		client.WithServer(rt.server),
		client.WithToken(rt.token),
		client.WithTLSConfig(rt.caFile, rt.insecure),
	)
}

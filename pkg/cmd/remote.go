package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/telekom/exception-subscriptions/pkg/event"
	"github.com/telekom/exception-subscriptions/pkg/output"
)

func NewGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get PROJECT",
		Short: "Show the subscriptions of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			c, err := rt.Client()
			if err != nil {
				return err
			}
			resp, err := c.GetSubscriptions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeRules(rt, resp.Rules, resp.Subscriptions)
		},
	}
}

func NewApplyCommand() *cobra.Command {
	var (
		file   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "apply PROJECT",
		Short: "Replace the subscriptions of a project with a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			text, err := readText(cmd, file)
			if err != nil {
				return err
			}
			c, err := rt.Client()
			if err != nil {
				return err
			}
			if dryRun {
				resp, err := c.ValidateSubscriptions(cmd.Context(), args[0], text)
				if err != nil {
					return err
				}
				return writeRules(rt, resp.Rules, strings.TrimSpace(text))
			}
			resp, err := c.ApplySubscriptions(cmd.Context(), args[0], text)
			if err != nil {
				return err
			}
			return writeRules(rt, resp.Rules, resp.Subscriptions)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Subscription file, - for stdin")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only validate on the server")

	return cmd
}

func NewDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete PROJECT",
		Short: "Remove all subscriptions of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			c, err := rt.Client()
			if err != nil {
				return err
			}
			if err := c.DeleteSubscriptions(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(rt.Writer(), "subscriptions of project %s deleted\n", args[0])
			return nil
		},
	}
}

func NewMatchesCommand() *cobra.Command {
	var culprit string

	cmd := &cobra.Command{
		Use:   "matches PROJECT",
		Short: "Show who the server would notify for a culprit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if culprit == "" {
				return errors.New("--culprit is required")
			}
			c, err := rt.Client()
			if err != nil {
				return err
			}
			resp, err := c.Matches(cmd.Context(), args[0], culprit)
			if err != nil {
				return err
			}
			return writeMatch(rt, matchResult{Culprit: resp.Culprit, Patterns: resp.Patterns, Recipients: resp.Recipients})
		},
	}
	cmd.Flags().StringVar(&culprit, "culprit", "", "Culprit of the event")

	return cmd
}

func NewSendEventCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "send-event",
		Short: "Post an event envelope (JSON) to the event hook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			raw, err := readText(cmd, file)
			if err != nil {
				return err
			}
			var env event.Envelope
			if err := json.Unmarshal([]byte(raw), &env); err != nil {
				return fmt.Errorf("decoding event: %w", err)
			}
			c, err := rt.Client()
			if err != nil {
				return err
			}
			res, err := c.SendEvent(cmd.Context(), env)
			if err != nil {
				return err
			}
			format, err := rt.OutputFormat()
			if err != nil {
				return err
			}
			if format == output.FormatTable || format == output.FormatText {
				_, _ = fmt.Fprintf(rt.Writer(), "notified=%t reason=%s recipients=%s\n",
					res.Notified, res.Reason, strings.Join(res.Recipients, ","))
				return nil
			}
			return output.WriteObject(rt.Writer(), format, res)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Event envelope file, - for stdin")

	return cmd
}

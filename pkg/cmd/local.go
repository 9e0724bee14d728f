package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/telekom/exception-subscriptions/pkg/output"
	"github.com/telekom/exception-subscriptions/pkg/subscription"
)

// readText reads path, or stdin when path is "-".
func readText(cmd *cobra.Command, path string) (string, error) {
	if path == "" {
		return "", errors.New("--file is required")
	}
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func parseFile(cmd *cobra.Command, path string) (*subscription.Set, error) {
	text, err := readText(cmd, path)
	if err != nil {
		return nil, err
	}
	set, err := subscription.Parse(text)
	if err != nil {
		var verr *subscription.ValidationError
		if errors.As(err, &verr) {
			return nil, fmt.Errorf("%s:%d: %s", path, verr.Line, verr.Message)
		}
		return nil, err
	}
	return set, nil
}

func writeRules(rt *runtimeState, rules []subscription.Rule, text string) error {
	format, err := rt.OutputFormat()
	if err != nil {
		return err
	}
	switch format {
	case output.FormatTable:
		output.WriteRulesTable(rt.Writer(), rules)
		return nil
	case output.FormatText:
		_, err := fmt.Fprintln(rt.Writer(), text)
		return err
	default:
		if rules == nil {
			rules = []subscription.Rule{}
		}
		return output.WriteObject(rt.Writer(), format, rules)
	}
}

func NewValidateCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a subscription file without a server",
		Long: "Parses a file with one \"<pattern> <email1,email2,...>\" line per subscription " +
			"and reports the first invalid line.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			set, err := parseFile(cmd, file)
			if err != nil {
				return err
			}
			return writeRules(rt, set.Rules(), set.Text())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Subscription file, - for stdin")

	return cmd
}

type matchResult struct {
	Culprit    string   `json:"culprit" yaml:"culprit"`
	Patterns   []string `json:"patterns" yaml:"patterns"`
	Recipients []string `json:"recipients" yaml:"recipients"`
}

func writeMatch(rt *runtimeState, m matchResult) error {
	format, err := rt.OutputFormat()
	if err != nil {
		return err
	}
	switch format {
	case output.FormatTable, output.FormatText:
		output.WriteMatchTable(rt.Writer(), m.Culprit, m.Patterns, m.Recipients)
		return nil
	default:
		if m.Patterns == nil {
			m.Patterns = []string{}
		}
		if m.Recipients == nil {
			m.Recipients = []string{}
		}
		return output.WriteObject(rt.Writer(), format, m)
	}
}

func NewMatchCommand() *cobra.Command {
	var (
		file    string
		culprit string
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Show who a subscription file would notify for a culprit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			if culprit == "" {
				return errors.New("--culprit is required")
			}
			set, err := parseFile(cmd, file)
			if err != nil {
				return err
			}
			return writeMatch(rt, matchResult{
				Culprit:    culprit,
				Patterns:   set.MatchingPatterns(culprit),
				Recipients: set.Match(culprit),
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Subscription file, - for stdin")
	cmd.Flags().StringVar(&culprit, "culprit", "", "Culprit of the event, e.g. shop.views.checkout")

	return cmd
}

type gateResult struct {
	IsNew     bool                  `json:"isNew" yaml:"isNew"`
	TimesSeen int64                 `json:"timesSeen" yaml:"timesSeen"`
	Decision  subscription.Decision `json:"decision" yaml:"decision"`
}

func NewGateCommand() *cobra.Command {
	var (
		isNew   bool
		count   int64
		noGroup bool
	)

	cmd := &cobra.Command{
		Use:   "gate",
		Short: "Show whether an occurrence would trigger a notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			format, err := rt.OutputFormat()
			if err != nil {
				return err
			}
			d := subscription.Gate(isNew, !noGroup, count)
			switch format {
			case output.FormatTable, output.FormatText:
				output.WriteGateTable(rt.Writer(), isNew, count, d)
				return nil
			default:
				return output.WriteObject(rt.Writer(), format, gateResult{IsNew: isNew, TimesSeen: count, Decision: d})
			}
		},
	}
	cmd.Flags().BoolVar(&isNew, "new", false, "The event opened a new group")
	cmd.Flags().Int64Var(&count, "count", 1, "Occurrences of the group including this one")
	cmd.Flags().BoolVar(&noGroup, "no-group", false, "The event carries no group")

	return cmd
}

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/telekom/exception-subscriptions/pkg/api"
)

func NewTokenCommand() *cobra.Command {
	var (
		subject string
		email   string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an admin token with the shared secret",
		Long:  "Signs an HS256 admin token. The secret is read from SUBSCRIPTIONS_JWT_SECRET.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}
			secret := os.Getenv("SUBSCRIPTIONS_JWT_SECRET")
			if secret == "" {
				return errors.New("SUBSCRIPTIONS_JWT_SECRET is not set")
			}
			tok, err := api.IssueToken(secret, subject, email, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(rt.Writer(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Subject of the token, e.g. a user name")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Validity of the token")

	return cmd
}

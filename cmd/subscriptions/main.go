package main

import (
	"os"

	subscriptionscmd "github.com/telekom/exception-subscriptions/pkg/cmd"
)

func main() {
	root := subscriptionscmd.NewRootCommand(subscriptionscmd.DefaultConfig())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

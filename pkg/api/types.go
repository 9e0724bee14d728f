package api

import "github.com/telekom/exception-subscriptions/pkg/subscription"

// SubscriptionsRequest is the body of PUT and validate requests. Subscriptions
// holds the multi-line "pattern emails" text of the admin form.
type SubscriptionsRequest struct {
	Subscriptions string `json:"subscriptions"`
}

type SubscriptionsResponse struct {
	Project       string              `json:"project"`
	Subscriptions string              `json:"subscriptions"`
	Rules         []subscription.Rule `json:"rules"`
}

type ValidateResponse struct {
	Valid bool                `json:"valid"`
	Rules []subscription.Rule `json:"rules"`
}

type MatchesResponse struct {
	Project    string   `json:"project"`
	Culprit    string   `json:"culprit"`
	Patterns   []string `json:"patterns"`
	Recipients []string `json:"recipients"`
}

func rulesOf(set *subscription.Set) []subscription.Rule {
	rules := set.Rules()
	if rules == nil {
		rules = []subscription.Rule{}
	}
	return rules
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// SPDX-FileCopyrightText: 2024 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package notification

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/telekom/exception-subscriptions/pkg/config"
	"github.com/telekom/exception-subscriptions/pkg/event"
	"github.com/telekom/exception-subscriptions/pkg/mail"
	"github.com/telekom/exception-subscriptions/pkg/metrics"
	"github.com/telekom/exception-subscriptions/pkg/subscription"
)

// Outcome reasons reported in Result.Reason besides the gate reasons.
const (
	ReasonEmptyCulprit  = "empty_culprit"
	ReasonNotConfigured = "not_configured"
	ReasonNoMatches     = "no_matches"
	ReasonSent          = "sent"
	ReasonSendFailed    = "send_failed"
)

// Mail headers attached to every notification.
const (
	HeaderLogger      = "X-Sentry-Logger"
	HeaderLoggerLevel = "X-Sentry-Logger-Level"
	HeaderProject     = "X-Sentry-Project"
	HeaderServer      = "X-Sentry-Server"
)

// SubscriptionLoader returns the subscriptions of a project.
type SubscriptionLoader interface {
	Load(ctx context.Context, project string) (*subscription.Set, error)
}

// Dispatcher delivers a rendered message.
type Dispatcher interface {
	Deliver(ctx context.Context, msg mail.Message) error
}

type Options struct {
	SubjectPrefix string
	// BaseURL of the error tracker UI without trailing slash.
	BaseURL      string
	SettingsPath string
	FailSilently bool
}

// OptionsFromConfig extracts notifier options from the service config.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		SubjectPrefix: cfg.Mail.SubjectPrefix,
		BaseURL:       strings.TrimSuffix(cfg.Frontend.BaseURL, "/"),
		SettingsPath:  cfg.Frontend.SettingsPath,
		FailSilently:  cfg.Mail.FailSilently,
	}
}

// Result describes what PostProcess did with an event.
type Result struct {
	Notified   bool     `json:"notified"`
	Reason     string   `json:"reason"`
	Recipients []string `json:"recipients,omitempty"`
}

type Notifier struct {
	subs       SubscriptionLoader
	dispatcher Dispatcher
	opts       Options
	log        *zap.SugaredLogger
}

func NewNotifier(subs SubscriptionLoader, dispatcher Dispatcher, opts Options, log *zap.SugaredLogger) *Notifier {
	return &Notifier{
		subs:       subs,
		dispatcher: dispatcher,
		opts:       opts,
		log:        log.Named("notifier"),
	}
}

// IsConfigured reports whether the project has at least one subscription and
// returns the loaded set.
func (n *Notifier) IsConfigured(ctx context.Context, project string) (bool, *subscription.Set, error) {
	set, err := n.subs.Load(ctx, project)
	if err != nil {
		return false, nil, err
	}
	return !set.Empty(), set, nil
}

// PostProcess handles one processed event. env.IsSample is accepted but has
// no influence on the decision.
func (n *Notifier) PostProcess(ctx context.Context, env event.Envelope) (Result, error) {
	if err := env.Validate(); err != nil {
		return Result{}, err
	}
	log := n.log.With("project", env.Project.ID, "event", env.Event.ID)

	if env.Event.Culprit == "" {
		return n.skip(log, ReasonEmptyCulprit), nil
	}

	configured, set, err := n.IsConfigured(ctx, env.Project.ID)
	if err != nil {
		return Result{}, fmt.Errorf("loading subscriptions: %w", err)
	}
	if !configured {
		return n.skip(log, ReasonNotConfigured), nil
	}

	decision := subscription.Gate(env.IsNew, env.Group != nil, env.TimesSeen())
	if !decision.Notify {
		metrics.GateDecisions.WithLabelValues("skip", string(decision.Reason)).Inc()
		return n.skip(log, string(decision.Reason)), nil
	}
	metrics.GateDecisions.WithLabelValues("notify", string(decision.Reason)).Inc()

	recipients := set.Match(env.Event.Culprit)
	if len(recipients) == 0 {
		return n.skip(log, ReasonNoMatches), nil
	}
	metrics.PatternMatches.Add(float64(len(set.MatchingPatterns(env.Event.Culprit))))

	if err := n.deliver(ctx, recipients, env); err != nil {
		res := Result{Reason: ReasonSendFailed, Recipients: recipients}
		return res, n.handleFailure(env, recipients, err, n.opts.FailSilently)
	}
	return Result{Notified: true, Reason: ReasonSent, Recipients: recipients}, nil
}

func (n *Notifier) skip(log *zap.SugaredLogger, reason string) Result {
	log.Debugw("Skipping notification", "reason", reason)
	metrics.EventsSkipped.WithLabelValues(reason).Inc()
	return Result{Reason: reason}
}

// SendNotification renders the error mail for env and delivers it to
// recipients. With failSilently set, delivery errors are logged and counted
// but not returned.
func (n *Notifier) SendNotification(ctx context.Context, recipients []string, env event.Envelope, failSilently bool) error {
	return n.handleFailure(env, recipients, n.deliver(ctx, recipients, env), failSilently)
}

func (n *Notifier) deliver(ctx context.Context, recipients []string, env event.Envelope) error {
	msg, err := n.BuildMessage(recipients, env)
	if err != nil {
		return err
	}

	metrics.NotificationRecipients.Observe(float64(len(recipients)))
	if err := n.dispatcher.Deliver(ctx, msg); err != nil {
		return fmt.Errorf("sending notification for event %s: %w", env.Event.ID, err)
	}

	n.log.Infow("Notification sent",
		"project", env.Project.ID,
		"event", env.Event.ID,
		"culprit", env.Event.Culprit,
		"recipients", len(recipients))
	metrics.NotificationsSent.Inc()
	return nil
}

func (n *Notifier) handleFailure(env event.Envelope, recipients []string, err error, failSilently bool) error {
	if err == nil {
		return nil
	}
	if failSilently {
		n.log.Warnw("Failed to send notification, suppressed",
			"project", env.Project.ID,
			"event", env.Event.ID,
			"recipients", len(recipients),
			"error", err)
		metrics.NotificationsSuppressed.Inc()
		return nil
	}
	n.log.Errorw("Failed to send notification",
		"project", env.Project.ID,
		"event", env.Event.ID,
		"error", err)
	metrics.NotificationsFailed.Inc()
	return err
}

// BuildMessage renders subject, bodies and headers for env.
func (n *Notifier) BuildMessage(recipients []string, env event.Envelope) (mail.Message, error) {
	ev := env.Event
	project := env.Project.DisplayName()
	level := ev.LevelDisplay()
	firstLine := ev.FirstLine()

	params := mail.ErrorMailParams{
		ProjectName:  project,
		Level:        level,
		Culprit:      ev.Culprit,
		Message:      ev.Message,
		FirstLine:    firstLine,
		Logger:       ev.Logger,
		ServerName:   ev.ServerName,
		Interfaces:   ev.RenderedInterfaces(),
		Link:         n.groupLink(env),
		SettingsLink: n.settingsLink(),
	}

	text, err := mail.RenderErrorText(params)
	if err != nil {
		return mail.Message{}, fmt.Errorf("rendering text body: %w", err)
	}
	html, err := mail.RenderErrorHTML(params)
	if err != nil {
		return mail.Message{}, fmt.Errorf("rendering html body: %w", err)
	}

	headers := map[string]string{
		HeaderLoggerLevel: level,
		HeaderProject:     project,
	}
	if ev.Logger != "" {
		headers[HeaderLogger] = ev.Logger
	}
	if ev.ServerName != "" {
		headers[HeaderServer] = ev.ServerName
	}

	return mail.Message{
		ID:      mail.NewMessageID(),
		To:      append([]string(nil), recipients...),
		Subject: mail.Subject(n.opts.SubjectPrefix, project, level, ev.Culprit, firstLine),
		Text:    text,
		HTML:    html,
		Headers: headers,
	}, nil
}

// groupLink prefers the absolute URL sent by the host and otherwise builds
// "<base>/<project slug>/issues/<group id>/".
func (n *Notifier) groupLink(env event.Envelope) string {
	if env.Group == nil {
		return ""
	}
	if env.Group.URL != "" {
		return env.Group.URL
	}
	if n.opts.BaseURL == "" || env.Group.ID == "" {
		return ""
	}
	slug := env.Project.Slug
	if slug == "" {
		slug = env.Project.ID
	}
	return fmt.Sprintf("%s/%s/issues/%s/", n.opts.BaseURL, url.PathEscape(slug), url.PathEscape(env.Group.ID))
}

func (n *Notifier) settingsLink() string {
	if n.opts.BaseURL == "" {
		return ""
	}
	return n.opts.BaseURL + n.opts.SettingsPath
}

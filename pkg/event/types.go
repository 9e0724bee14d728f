// SPDX-FileCopyrightText: 2024 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"errors"
	"strings"
)

// Level is the severity of an event.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

// DefaultLevel is used when the host does not report a level.
const DefaultLevel = LevelError

// Project identifies the project an event belongs to.
type Project struct {
	ID   string `json:"id"`
	Slug string `json:"slug,omitempty"`
	Name string `json:"name"`
}

// Group aggregates repeated occurrences of the same error signature.
type Group struct {
	ID string `json:"id"`
	// TimesSeen is the running occurrence counter, including this event.
	TimesSeen int64 `json:"times_seen"`
	// URL is the absolute link to the group in the host UI, if the host knows it.
	URL string `json:"url,omitempty"`
}

// Interface is a rendered event interface (stack trace, request, user, ...).
type Interface struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Event is a single processed occurrence.
type Event struct {
	ID         string      `json:"id"`
	Culprit    string      `json:"culprit"`
	Message    string      `json:"message"`
	Level      Level       `json:"level,omitempty"`
	Logger     string      `json:"logger,omitempty"`
	ServerName string      `json:"server_name,omitempty"`
	Interfaces []Interface `json:"interfaces,omitempty"`
}

// Envelope is what the host posts for each processed event: the
// post_process(group, event, is_new, is_sample) arguments plus the project.
type Envelope struct {
	Project  Project `json:"project"`
	Group    *Group  `json:"group,omitempty"`
	Event    Event   `json:"event"`
	IsNew    bool    `json:"is_new"`
	IsSample bool    `json:"is_sample"`
}

var (
	ErrMissingProject = errors.New("project id is required")
	ErrMissingEvent   = errors.New("event id is required")
)

// Validate checks the fields the service cannot work without.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.Project.ID) == "" {
		return ErrMissingProject
	}
	if strings.TrimSpace(e.Event.ID) == "" {
		return ErrMissingEvent
	}
	return nil
}

// TimesSeen returns the group counter, or 0 when the event has no group.
func (e Envelope) TimesSeen() int64 {
	if e.Group == nil {
		return 0
	}
	return e.Group.TimesSeen
}

// DisplayName returns the project name, falling back to slug and id.
func (p Project) DisplayName() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.Slug != "":
		return p.Slug
	default:
		return p.ID
	}
}

// LevelDisplay returns the lowercase level name, defaulting to "error".
func (e Event) LevelDisplay() string {
	l := strings.ToLower(strings.TrimSpace(string(e.Level)))
	if l == "" {
		return string(DefaultLevel)
	}
	return l
}

// FirstLine returns the first line of the error message.
func (e Event) FirstLine() string {
	msg := strings.TrimLeft(e.Message, "\r\n")
	if i := strings.IndexAny(msg, "\r\n"); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

// RenderedInterfaces returns the interfaces that have a non-empty body.
func (e Event) RenderedInterfaces() []Interface {
	out := make([]Interface, 0, len(e.Interfaces))
	for _, iface := range e.Interfaces {
		if strings.TrimSpace(iface.Body) == "" {
			continue
		}
		out = append(out, iface)
	}
	return out
}

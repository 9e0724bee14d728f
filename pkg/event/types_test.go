package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvelopeValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     Envelope
		wantErr error
	}{
		{
			name: "valid",
			env:  Envelope{Project: Project{ID: "1"}, Event: Event{ID: "e1"}},
		},
		{
			name:    "missing project",
			env:     Envelope{Event: Event{ID: "e1"}},
			wantErr: ErrMissingProject,
		},
		{
			name:    "blank project",
			env:     Envelope{Project: Project{ID: "  "}, Event: Event{ID: "e1"}},
			wantErr: ErrMissingProject,
		},
		{
			name:    "missing event",
			env:     Envelope{Project: Project{ID: "1"}},
			wantErr: ErrMissingEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.env.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestEnvelopeTimesSeen(t *testing.T) {
	assert.Equal(t, int64(0), Envelope{}.TimesSeen())
	assert.Equal(t, int64(42), Envelope{Group: &Group{TimesSeen: 42}}.TimesSeen())
}

func TestProjectDisplayName(t *testing.T) {
	assert.Equal(t, "Backend", Project{ID: "1", Slug: "backend", Name: "Backend"}.DisplayName())
	assert.Equal(t, "backend", Project{ID: "1", Slug: "backend"}.DisplayName())
	assert.Equal(t, "1", Project{ID: "1"}.DisplayName())
}

func TestEventLevelDisplay(t *testing.T) {
	assert.Equal(t, "error", Event{}.LevelDisplay())
	assert.Equal(t, "warning", Event{Level: "WARNING"}.LevelDisplay())
	assert.Equal(t, "fatal", Event{Level: LevelFatal}.LevelDisplay())
}

func TestEventFirstLine(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{message: "", want: ""},
		{message: "ValueError: bad", want: "ValueError: bad"},
		{message: "ValueError: bad\nTraceback...", want: "ValueError: bad"},
		{message: "KeyError\r\nmore", want: "KeyError"},
		{message: "\n\nZeroDivisionError\nx", want: "ZeroDivisionError"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Event{Message: tt.message}.FirstLine(), "message %q", tt.message)
	}
}

func TestEventRenderedInterfaces(t *testing.T) {
	e := Event{Interfaces: []Interface{
		{Title: "Stacktrace", Body: "File a.py, line 1"},
		{Title: "User", Body: "   "},
		{Title: "Request", Body: "GET /"},
	}}

	got := e.RenderedInterfaces()
	assert.Len(t, got, 2)
	assert.Equal(t, "Stacktrace", got[0].Title)
	assert.Equal(t, "Request", got[1].Title)
}

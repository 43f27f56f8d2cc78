package core

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEvent(t *testing.T) {
	t.Parallel()

	now := time.Now()

	tests := []struct {
		name    string
		event   Event
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid event",
			event: Event{
				Title:     "Annual checkup",
				StartTime: now,
				EndTime:   now.Add(time.Hour),
			},
			wantErr: false,
		},
		{
			name: "blank title",
			event: Event{
				Title:     "   ",
				StartTime: now,
				EndTime:   now.Add(time.Hour),
			},
			wantErr: true,
			errMsg:  "title is required",
		},
		{
			name: "title too long",
			event: Event{
				Title:     strings.Repeat("a", 201),
				StartTime: now,
				EndTime:   now.Add(time.Hour),
			},
			wantErr: true,
			errMsg:  "title is too long (200 characters tops)",
		},
		{
			name: "description too long",
			event: Event{
				Title:       "Checkup",
				Description: strings.Repeat("d", 2001),
				StartTime:   now,
				EndTime:     now.Add(time.Hour),
			},
			wantErr: true,
			errMsg:  "description is too long (2000 characters tops)",
		},
		{
			name: "missing start time",
			event: Event{
				Title:   "Checkup",
				EndTime: now,
			},
			wantErr: true,
			errMsg:  "start_time is required",
		},
		{
			name: "end time before start time",
			event: Event{
				Title:     "Checkup",
				StartTime: now,
				EndTime:   now.Add(-time.Hour),
			},
			wantErr: true,
			errMsg:  "end time must be after start time",
		},
		{
			name: "empty interval",
			event: Event{
				Title:     "Checkup",
				StartTime: now,
				EndTime:   now,
			},
			wantErr: true,
			errMsg:  "end time must be after start time",
		},
		{
			name: "invalid inline attendee",
			event: Event{
				Title:     "Checkup",
				StartTime: now,
				EndTime:   now.Add(time.Hour),
				Attendees: []Attendee{{Name: "Jane", Email: "not-an-email"}},
			},
			wantErr: true,
			errMsg:  "attendees[0].email must be a valid email address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateEvent(tt.event)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrValidation)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestValidateAttendee(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		attendee Attendee
		errMsg   string
	}{
		{
			name:     "valid attendee",
			attendee: Attendee{Name: "Jane Doe", Email: "jane@example.com", Status: Accepted},
		},
		{
			name:     "surrounding spaces are ignored",
			attendee: Attendee{Name: "  Jane  ", Email: " jane@example.com "},
		},
		{
			name:     "missing name",
			attendee: Attendee{Email: "jane@example.com"},
			errMsg:   "name is required",
		},
		{
			name:     "name too long",
			attendee: Attendee{Name: strings.Repeat("n", 101), Email: "jane@example.com"},
			errMsg:   "name is too long (100 characters tops)",
		},
		{
			name:     "missing email",
			attendee: Attendee{Name: "Jane"},
			errMsg:   "email is required",
		},
		{
			name:     "malformed email",
			attendee: Attendee{Name: "Jane", Email: "jane.example.com"},
			errMsg:   "email must be a valid email address",
		},
		{
			name:     "unknown status",
			attendee: Attendee{Name: "Jane", Email: "jane@example.com", Status: AttendanceStatus(9)},
			errMsg:   "unknown attendance status 9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateAttendee(tt.attendee)
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateInterval(t *testing.T) {
	t.Parallel()

	start := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, ValidateInterval(start, start.Add(time.Minute)))
	require.ErrorIs(t, ValidateInterval(start, start), ErrValidation)
	require.ErrorIs(t, ValidateInterval(start, start.Add(-time.Minute)), ErrValidation)
}

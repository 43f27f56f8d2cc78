package core

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

var (
	appointmentTypes = []string{
		"Checkup", "Follow-up", "Consultation", "Examination", "Screening",
		"Vaccination", "Treatment", "Therapy", "Surgery", "Emergency",
	}
	firstNames = []string{"Jane", "John", "Maria", "Ahmed", "Wei", "Olga", "Luis", "Aisha", "Tom", "Priya"}
	lastNames  = []string{"Doe", "Smith", "Garcia", "Khan", "Chen", "Ivanova", "Lopez", "Okafor", "Brown", "Patel"}
	durations  = []int{15, 30, 45, 60, 90}
)

// GenerateSeedEvents returns count non-overlapping appointments starting on the
// day of from, laid out within 08:00-18:00 UTC. The same seed always yields the
// same events.
func GenerateSeedEvents(seed uint64, count int, from time.Time) []Event {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	cursor := day.Add(8 * time.Hour)

	events := make([]Event, 0, max(count, 0))

	for len(events) < count {
		cursor = cursor.Add(time.Duration(rng.IntN(4)*15) * time.Minute)
		duration := time.Duration(durations[rng.IntN(len(durations))]) * time.Minute

		closing := time.Date(cursor.Year(), cursor.Month(), cursor.Day(), 18, 0, 0, 0, time.UTC)
		if cursor.Add(duration).After(closing) {
			day = day.AddDate(0, 0, 1)
			cursor = day.Add(8 * time.Hour)

			continue
		}

		kind := appointmentTypes[rng.IntN(len(appointmentTypes))]

		event := Event{
			Title:       fmt.Sprintf("%s appointment", kind),
			Description: fmt.Sprintf("%s scheduled for %d minutes.", kind, int(duration.Minutes())),
			StartTime:   cursor,
			EndTime:     cursor.Add(duration),
		}

		for range 1 + rng.IntN(5) {
			first := firstNames[rng.IntN(len(firstNames))]
			last := lastNames[rng.IntN(len(lastNames))]

			event.Attendees = append(event.Attendees, Attendee{
				Name:   first + " " + last,
				Email:  fmt.Sprintf("%s.%s%d@example.com", strings.ToLower(first), strings.ToLower(last), rng.IntN(1000)),
				Status: AttendanceStatus(rng.IntN(4)),
			})
		}

		events = append(events, event)
		cursor = event.EndTime
	}

	return events
}

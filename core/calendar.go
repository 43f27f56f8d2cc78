package core

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"
)

const calendarProductId = "-//appointments//EN"

var partStat = map[AttendanceStatus]string{
	NotResponded: "NEEDS-ACTION",
	Accepted:     "ACCEPTED",
	Declined:     "DECLINED",
	Tentative:    "TENTATIVE",
}

// WriteCalendar encodes events as a VCALENDAR with one VEVENT each.
func WriteCalendar(w io.Writer, events []Event, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, calendarProductId)

	for i := range events {
		cal.Children = append(cal.Children, toVEvent(&events[i], stamp))
	}

	err := ical.NewEncoder(w).Encode(cal)
	if err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}

	return nil
}

func toVEvent(event *Event, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, event.Id)
	ve.Props.SetText(ical.PropSummary, event.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, event.StartTime.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, event.EndTime.UTC())

	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}

	for _, attendee := range event.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.Value = "mailto:" + attendee.Email
		p.Params.Set(ical.ParamCommonName, attendee.Name)
		p.Params.Set(ical.ParamParticipationStatus, partStat[attendee.Status])
		ve.Props.Add(p)
	}

	return ve
}

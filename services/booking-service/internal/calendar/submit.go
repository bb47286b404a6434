package calendar

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

// Submit inserts the appointment as a calendar event and returns the event id.
// A zero End is filled in with the configured slot duration.
func (c *Client) Submit(ctx context.Context, appt model.Appointment) (_ string, err error) {
	ctx, span := tracer.Start(ctx, "calendar.Submit")
	defer func() { endSpan(span, err) }()

	if appt.End.IsZero() {
		appt.End = appt.Start.Add(c.slot)
	}
	span.SetAttributes(attribute.String("appointment.start", appt.Start.Format(time.RFC3339)))

	created, err := c.srv.Events.Insert(c.calendarID, c.buildEvent(appt)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	return created.Id, nil
}

func (c *Client) buildEvent(appt model.Appointment) *gcal.Event {
	zone := c.loc.String()
	return &gcal.Event{
		Summary:     "Consulta Agendada - " + appt.PatientName,
		Description: fmt.Sprintf("Paciente: %s\nData de Nascimento: %s\nAgendado pelo site.", appt.PatientName, appt.PatientBirthdate),
		Start: &gcal.EventDateTime{
			DateTime: appt.Start.In(c.loc).Format(time.RFC3339),
			TimeZone: zone,
		},
		End: &gcal.EventDateTime{
			DateTime: appt.End.In(c.loc).Format(time.RFC3339),
			TimeZone: zone,
		},
	}
}

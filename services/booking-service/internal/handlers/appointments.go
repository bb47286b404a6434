package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/calendar"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/events"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/locking"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/model"
)

type BusySource interface {
	BusyIntervals(ctx context.Context, day time.Time) ([]availability.Interval, error)
}

type Submitter interface {
	Submit(ctx context.Context, appt model.Appointment) (string, error)
}

type SlotChecker interface {
	IsSlotFree(ctx context.Context, start, end time.Time) (bool, error)
}

type SlotLocker interface {
	Acquire(ctx context.Context, key string) (locking.Release, error)
}

type BookedPublisher interface {
	PublishBooked(ctx context.Context, ev events.AppointmentBooked) error
}

// Options holds the optional collaborators. Nil fields switch the matching step off.
type Options struct {
	Locker    SlotLocker
	Checker   SlotChecker
	Publisher BookedPublisher
	Now       func() time.Time
}

type AppointmentHandler struct {
	engine    *availability.Engine
	source    BusySource
	submitter Submitter
	logger    *slog.Logger
	opts      Options
}

func NewAppointmentHandler(engine *availability.Engine, source BusySource, submitter Submitter, logger *slog.Logger, opts Options) *AppointmentHandler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &AppointmentHandler{
		engine:    engine,
		source:    source,
		submitter: submitter,
		logger:    logger,
		opts:      opts,
	}
}

const (
	msgDateRequired   = "date is required."
	msgDateFormat     = "date must be YYYY-MM-DD."
	msgTimeFormat     = "time must be HH:MM."
	msgFetchFailed    = "could not fetch available times."
	msgMissingFields  = "all fields are required: date, time, patientName, patientBirthdate."
	msgSlotLocked     = "this time slot is being booked, try another."
	msgSlotTaken      = "this time slot is no longer available."
	msgCreateFailed   = "failed to create appointment."
	msgBookingSuccess = "appointment confirmed."
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type slotsResponse struct {
	Slots []string `json:"slots"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *AppointmentHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: msgDateRequired})
		return
	}
	day, err := h.engine.ParseDay(date)
	if err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: msgDateFormat})
		return
	}

	busy, err := h.source.BusyIntervals(r.Context(), day)
	if err != nil {
		h.logger.Error("fetch busy intervals failed",
			"request_id", httpx.RequestIDFromContext(r.Context()),
			"date", date,
			"err", err,
		)
		httpx.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: msgFetchFailed})
		return
	}

	slots, err := h.engine.AvailableSlots(date, busy, h.opts.Now())
	if err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: msgDateFormat})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, slotsResponse{Slots: slots})
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req model.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json body."})
		return
	}
	if err := req.Normalize(); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: msgMissingFields})
		return
	}

	day, err := h.engine.ParseDay(req.Date)
	if err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: msgDateFormat})
		return
	}
	clock, err := time.Parse(availability.DefaultLayout, req.Time)
	if err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: msgTimeFormat})
		return
	}

	loc := h.engine.Location()
	start := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
	appt := model.Appointment{
		PatientName:      req.PatientName,
		PatientBirthdate: req.PatientBirthdate,
		Start:            start,
		End:              start.Add(h.engine.SlotDuration()),
	}

	ctx := r.Context()
	requestID := httpx.RequestIDFromContext(ctx)
	slotDate := start.Format(availability.DayLayout)
	slotTime := start.Format(availability.DefaultLayout)

	if h.opts.Locker != nil {
		release, err := h.opts.Locker.Acquire(ctx, locking.SlotKey(slotDate, slotTime))
		switch {
		case errors.Is(err, locking.ErrSlotLocked):
			httpx.WriteJSON(w, http.StatusConflict, errorResponse{Error: msgSlotLocked})
			return
		case err != nil:
			// The calendar stays authoritative; booking continues without the lock.
			h.logger.Warn("slot lock unavailable", "request_id", requestID, "err", err)
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					h.logger.Warn("slot lock release failed", "request_id", requestID, "err", err)
				}
			}()
		}
	}

	if h.opts.Checker != nil {
		free, err := h.opts.Checker.IsSlotFree(ctx, appt.Start, appt.End)
		if err != nil {
			h.logger.Error("conflict check failed", "request_id", requestID, "err", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: msgCreateFailed, Details: calendar.ErrorDetail(err)})
			return
		}
		if !free {
			httpx.WriteJSON(w, http.StatusConflict, errorResponse{Error: msgSlotTaken})
			return
		}
	}

	eventID, err := h.submitter.Submit(ctx, appt)
	if err != nil {
		h.logger.Error("create appointment failed", "request_id", requestID, "err", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: msgCreateFailed, Details: calendar.ErrorDetail(err)})
		return
	}
	h.logger.Info("appointment created", "request_id", requestID, "event_id", eventID, "start", appt.Start.Format(time.RFC3339))

	if h.opts.Publisher != nil {
		ev := events.AppointmentBooked{
			CalendarEventID: eventID,
			Date:            slotDate,
			Time:            slotTime,
			StartTime:       appt.Start.UTC(),
			EndTime:         appt.End.UTC(),
		}
		if err := h.opts.Publisher.PublishBooked(ctx, ev); err != nil {
			h.logger.Warn("publish appointment booked failed", "request_id", requestID, "event_id", eventID, "err", err)
		}
	}

	httpx.WriteJSON(w, http.StatusOK, messageResponse{Message: msgBookingSuccess})
}

package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	otelx "github.com/md-rashed-zaman/clinicbook/libs/otel"
)

var (
	ErrSourceUnavailable = errors.New("calendar source unavailable")
	ErrSubmissionFailed  = errors.New("calendar submission failed")
)

var tracer = otel.Tracer("github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/calendar")

// Config selects the calendar and the credentials used to reach it. CredentialsFile wins
// over the ClientEmail/PrivateKey pair when both are set.
type Config struct {
	CalendarID      string
	ClientEmail     string
	PrivateKey      string
	CredentialsFile string

	// BusinessLocation is the zone written on inserted events and used for all-day events.
	BusinessLocation *time.Location
	// WindowLocation anchors the day window of BusyIntervals. Nil means UTC.
	WindowLocation *time.Location
	SlotDuration   time.Duration

	// HTTPClient is the base client for token and API calls. Nil means http.DefaultClient.
	HTTPClient *http.Client
}

type Client struct {
	srv        *gcal.Service
	calendarID string
	loc        *time.Location
	windowLoc  *time.Location
	slot       time.Duration
}

// NewClient authenticates as a service account and returns a traced calendar client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	httpClient, err := serviceAccountClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	srv, err := gcal.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	return NewClientWithService(srv, cfg)
}

// NewClientWithService wraps an already configured service.
func NewClientWithService(srv *gcal.Service, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.CalendarID) == "" {
		return nil, errors.New("calendar id is required")
	}
	if cfg.BusinessLocation == nil {
		return nil, errors.New("business location is required")
	}
	if cfg.SlotDuration <= 0 {
		return nil, errors.New("slot duration must be positive")
	}
	windowLoc := cfg.WindowLocation
	if windowLoc == nil {
		windowLoc = time.UTC
	}
	return &Client{
		srv:        srv,
		calendarID: cfg.CalendarID,
		loc:        cfg.BusinessLocation,
		windowLoc:  windowLoc,
		slot:       cfg.SlotDuration,
	}, nil
}

func serviceAccountClient(ctx context.Context, cfg Config) (*http.Client, error) {
	var (
		jwtCfg *jwt.Config
		err    error
	)
	switch {
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		b, readErr := os.ReadFile(cfg.CredentialsFile)
		if readErr != nil {
			return nil, fmt.Errorf("read credentials file: %w", readErr)
		}
		jwtCfg, err = google.JWTConfigFromJSON(b, gcal.CalendarEventsScope)
		if err != nil {
			return nil, fmt.Errorf("parse credentials file: %w", err)
		}
	case cfg.ClientEmail != "" && cfg.PrivateKey != "":
		jwtCfg = &jwt.Config{
			Email:      cfg.ClientEmail,
			PrivateKey: []byte(UnescapePrivateKey(cfg.PrivateKey)),
			Scopes:     []string{gcal.CalendarEventsScope},
			TokenURL:   google.JWTTokenURL,
		}
	default:
		return nil, errors.New("calendar credentials missing: set a credentials file or client email and private key")
	}

	// oauth2 uses the context client both for the token endpoint and as the base transport.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, otelx.WrapClient(cfg.HTTPClient))
	return jwtCfg.Client(ctx), nil
}

// UnescapePrivateKey turns literal \n sequences, as found in single-line env vars, into newlines.
func UnescapePrivateKey(key string) string {
	return strings.ReplaceAll(key, `\n`, "\n")
}

// Ping lists at most one event to prove credentials and calendar id are usable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.srv.Events.List(c.calendarID).MaxResults(1).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return nil
}

// ErrorDetail returns the upstream message carried by err, preferring the API's own text.
func ErrorDetail(err error) string {
	if err == nil {
		return ""
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Message != "" {
			return gerr.Message
		}
		return gerr.Error()
	}
	return err.Error()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

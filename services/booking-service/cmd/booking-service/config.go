package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
)

type serviceConfig struct {
	Service  string
	Port     string
	GRPCPort string
	LogLevel string

	CalendarID      string
	ClientEmail     string
	PrivateKey      string
	CredentialsFile string

	Engine       availability.Config
	WindowLoc    *time.Location
	CheckSlots   bool
	SlotLockTTL  time.Duration
	RedisAddr    string
	RedisPass    string
	RedisDB      int
	RatePerMin   int
	RateFailOpen bool
	CORSOrigins  []string
	BodyLimit    int64
	ReqTimeout   time.Duration
	KafkaBrokers []string
	BookedTopic  string
}

func loadConfig() (serviceConfig, error) {
	var (
		cfg serviceConfig
		err error
	)
	cfg.Service = config.String("SERVICE_NAME", "booking-service")
	cfg.LogLevel = config.String("LOG_LEVEL", "info")
	if cfg.Port, err = config.Port("PORT", "8080"); err != nil {
		return cfg, err
	}
	if strings.TrimSpace(config.String("GRPC_PORT", "")) != "" {
		if cfg.GRPCPort, err = config.Port("GRPC_PORT", ""); err != nil {
			return cfg, err
		}
	}

	if cfg.CalendarID, err = config.RequiredString("GOOGLE_CALENDAR_ID"); err != nil {
		return cfg, err
	}
	cfg.ClientEmail = config.String("GOOGLE_CLIENT_EMAIL", "")
	cfg.PrivateKey = config.String("GOOGLE_PRIVATE_KEY", "")
	cfg.CredentialsFile = config.String("GOOGLE_CREDENTIALS_FILE", "")
	if cfg.CredentialsFile == "" && (cfg.ClientEmail == "" || cfg.PrivateKey == "") {
		return cfg, errors.New("GOOGLE_CREDENTIALS_FILE or GOOGLE_CLIENT_EMAIL and GOOGLE_PRIVATE_KEY are required")
	}

	loc, err := loadLocation("BUSINESS_TIMEZONE", "America/Sao_Paulo")
	if err != nil {
		return cfg, err
	}
	if cfg.WindowLoc, err = loadLocation("BUSY_WINDOW_TZ", "UTC"); err != nil {
		return cfg, err
	}
	startHour, err := config.Int("BUSINESS_START_HOUR", 8)
	if err != nil {
		return cfg, err
	}
	endHour, err := config.Int("BUSINESS_END_HOUR", 18)
	if err != nil {
		return cfg, err
	}
	slotMinutes, err := config.Int("SLOT_DURATION_MINUTES", 60)
	if err != nil {
		return cfg, err
	}
	cfg.Engine = availability.Config{
		Hours:       availability.BusinessHours{StartHour: startHour, EndHour: endHour},
		SlotMinutes: slotMinutes,
		Location:    loc,
	}

	cfg.CheckSlots = config.Bool("SUBMIT_CHECK_CONFLICTS", true)
	cfg.SlotLockTTL = config.Seconds("SLOT_LOCK_TTL_SECONDS", 30*time.Second)

	cfg.RedisAddr = config.String("REDIS_ADDR", "")
	cfg.RedisPass = config.String("REDIS_PASSWORD", "")
	if cfg.RedisDB, err = config.Int("REDIS_DB", 0); err != nil {
		return cfg, err
	}
	if cfg.RatePerMin, err = config.Int("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return cfg, err
	}
	cfg.RateFailOpen = config.Bool("RATE_LIMIT_FAIL_OPEN", false)
	cfg.CORSOrigins = config.List("CORS_ALLOWED_ORIGINS", "*")
	bodyLimit, err := config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20)
	if err != nil {
		return cfg, err
	}
	cfg.BodyLimit = int64(bodyLimit)
	cfg.ReqTimeout = config.Seconds("REQUEST_TIMEOUT_SECONDS", 15*time.Second)

	cfg.KafkaBrokers = kafkax.SplitBrokers(config.String("KAFKA_BROKERS", ""))
	cfg.BookedTopic = config.String("KAFKA_BOOKED_TOPIC", "booking.appointment.booked.v1")
	return cfg, nil
}

func loadLocation(key, fallback string) (*time.Location, error) {
	name := config.String(key, fallback)
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%s: unknown time zone %q: %w", key, name, err)
	}
	return loc, nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	TelegramToken     string
	PatientChatID     int64
	DatabasePath      string
	Timezone          *time.Location
	APIBaseURL        string
	APIToken          string
	ProbeEndpoints    []string
	ProbeTimeout      time.Duration
	PollInterval      time.Duration
	ReconcileInterval time.Duration
	CalDAVURL         string
	CalDAVUsername    string
	CalDAVPassword    string
	CalDAVCalendarID  string
	CalSyncInterval   time.Duration
}

func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	chatID, err := strconv.ParseInt(os.Getenv("PATIENT_CHAT_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("PATIENT_CHAT_ID is required and must be a number")
	}

	dbPath := os.Getenv("DATABASE_PATH")
	if dbPath == "" {
		dbPath = "./data/medremind.db"
	}

	tzName := os.Getenv("TIMEZONE")
	if tzName == "" {
		tzName = "Europe/Moscow"
	}
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	var probeEndpoints []string
	if raw := os.Getenv("PROBE_ENDPOINTS"); raw != "" {
		for _, e := range strings.Split(raw, ",") {
			if e = strings.TrimSpace(e); e != "" {
				probeEndpoints = append(probeEndpoints, e)
			}
		}
	}

	probeTimeout := durationEnv("PROBE_TIMEOUT", 10*time.Second)
	pollInterval := durationEnv("POLL_INTERVAL", 30*time.Second)
	reconcileInterval := durationEnv("RECONCILE_INTERVAL", 15*time.Minute)
	calSyncInterval := durationEnv("CALENDAR_SYNC_INTERVAL", time.Hour)

	return &Config{
		TelegramToken:     token,
		PatientChatID:     chatID,
		DatabasePath:      dbPath,
		Timezone:          tz,
		APIBaseURL:        os.Getenv("API_BASE_URL"),
		APIToken:          os.Getenv("API_TOKEN"),
		ProbeEndpoints:    probeEndpoints,
		ProbeTimeout:      probeTimeout,
		PollInterval:      pollInterval,
		ReconcileInterval: reconcileInterval,
		CalDAVURL:         os.Getenv("CALDAV_URL"),
		CalDAVUsername:    os.Getenv("CALDAV_USERNAME"),
		CalDAVPassword:    os.Getenv("CALDAV_PASSWORD"),
		CalDAVCalendarID:  os.Getenv("CALDAV_CALENDAR_ID"),
		CalSyncInterval:   calSyncInterval,
	}, nil
}

func durationEnv(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

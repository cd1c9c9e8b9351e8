package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/room-booking/internal/application"
)

// RoomSeed describes one catalog room loaded at startup.
type RoomSeed struct {
	ID        string
	Name      string
	Capacity  int
	Equipment string
}

// Config captures environment driven configuration for the booking service.
type Config struct {
	HTTPPort           int
	SQLiteDSN          string
	AdminSecret        string
	BufferMinutes      int
	OpenTime           string
	CloseTime          string
	MaxDurationMinutes int
	Weekdays           map[time.Weekday]bool
	Rooms              []RoomSeed
}

// Rules converts the scheduling related settings into the policy the
// application layer enforces.
func (c Config) Rules() (application.Rules, error) {
	rules := application.DefaultRules()
	rules.BufferMinutes = c.BufferMinutes
	rules.MaxDurationMinutes = c.MaxDurationMinutes
	if len(c.Weekdays) > 0 {
		rules.Weekdays = c.Weekdays
	}

	open, err := application.MinuteOfDay(c.OpenTime)
	if err != nil {
		return application.Rules{}, fmt.Errorf("invalid opening time %q", c.OpenTime)
	}
	close, err := application.MinuteOfDay(c.CloseTime)
	if err != nil {
		return application.Rules{}, fmt.Errorf("invalid closing time %q", c.CloseTime)
	}
	if close <= open {
		return application.Rules{}, fmt.Errorf("closing time %s must be after opening time %s", c.CloseTime, c.OpenTime)
	}
	rules.OpenMinute = open
	rules.CloseMinute = close

	return rules, nil
}

// Load parses configuration from a .env file, if present, and the process
// environment. Environment values win over .env entries. Defaults cover the
// optional fields; missing and invalid values are accumulated and reported
// together.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPPort:           8080,
		SQLiteDSN:          "file:booking.db?_pragma=busy_timeout(5000)",
		BufferMinutes:      15,
		OpenTime:           "08:00",
		CloseTime:          "18:00",
		MaxDurationMinutes: 480,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("BOOKING_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "BOOKING_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("BOOKING_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if secret := strings.TrimSpace(os.Getenv("BOOKING_ADMIN_SECRET")); secret == "" {
		missing = append(missing, "BOOKING_ADMIN_SECRET")
	} else {
		cfg.AdminSecret = secret
	}

	if bufferValue := strings.TrimSpace(os.Getenv("BOOKING_BUFFER_MINUTES")); bufferValue != "" {
		buffer, err := strconv.Atoi(bufferValue)
		if err != nil || buffer < 0 {
			invalid = append(invalid, "BOOKING_BUFFER_MINUTES")
		} else {
			cfg.BufferMinutes = buffer
		}
	}

	if open := strings.TrimSpace(os.Getenv("BOOKING_OPEN_TIME")); open != "" {
		if _, err := application.MinuteOfDay(open); err != nil {
			invalid = append(invalid, "BOOKING_OPEN_TIME")
		} else {
			cfg.OpenTime = open
		}
	}

	if close := strings.TrimSpace(os.Getenv("BOOKING_CLOSE_TIME")); close != "" {
		if _, err := application.MinuteOfDay(close); err != nil {
			invalid = append(invalid, "BOOKING_CLOSE_TIME")
		} else {
			cfg.CloseTime = close
		}
	}

	if durationValue := strings.TrimSpace(os.Getenv("BOOKING_MAX_DURATION_MINUTES")); durationValue != "" {
		duration, err := strconv.Atoi(durationValue)
		if err != nil || duration <= 0 {
			invalid = append(invalid, "BOOKING_MAX_DURATION_MINUTES")
		} else {
			cfg.MaxDurationMinutes = duration
		}
	}

	if weekdaysValue := strings.TrimSpace(os.Getenv("BOOKING_WEEKDAYS")); weekdaysValue != "" {
		weekdays, err := parseWeekdays(weekdaysValue)
		if err != nil {
			invalid = append(invalid, "BOOKING_WEEKDAYS")
		} else {
			cfg.Weekdays = weekdays
		}
	}

	if roomsValue := strings.TrimSpace(os.Getenv("BOOKING_ROOMS")); roomsValue != "" {
		rooms, err := parseRooms(roomsValue)
		if err != nil {
			invalid = append(invalid, "BOOKING_ROOMS")
		} else {
			cfg.Rooms = rooms
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// parseWeekdays accepts a comma separated list of three letter weekday
// abbreviations, for example "mon,tue,wed,thu,fri".
func parseWeekdays(value string) (map[time.Weekday]bool, error) {
	weekdays := make(map[time.Weekday]bool)
	for _, part := range strings.Split(value, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		weekday, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		weekdays[weekday] = true
	}
	if len(weekdays) == 0 {
		return nil, fmt.Errorf("no weekdays in %q", value)
	}
	return weekdays, nil
}

// parseRooms accepts a semicolon separated list of room entries, each in the
// form "id|name|capacity|equipment". Equipment is optional.
func parseRooms(value string) ([]RoomSeed, error) {
	entries := strings.Split(value, ";")
	rooms := make([]RoomSeed, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fields := strings.Split(entry, "|")
		if len(fields) < 3 {
			return nil, fmt.Errorf("room entry %q needs id, name, and capacity", entry)
		}
		capacity, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil || capacity <= 0 {
			return nil, fmt.Errorf("room entry %q has an invalid capacity", entry)
		}
		seed := RoomSeed{
			ID:       strings.TrimSpace(fields[0]),
			Name:     strings.TrimSpace(fields[1]),
			Capacity: capacity,
		}
		if seed.ID == "" || seed.Name == "" {
			return nil, fmt.Errorf("room entry %q needs id, name, and capacity", entry)
		}
		if len(fields) > 3 {
			seed.Equipment = strings.TrimSpace(fields[3])
		}
		rooms = append(rooms, seed)
	}
	if len(rooms) == 0 {
		return nil, fmt.Errorf("no rooms in %q", value)
	}
	return rooms, nil
}

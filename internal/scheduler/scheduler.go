// Package scheduler is the timer service that invokes the notification
// engine's sweep entry points on a fixed cadence. All wall-clock scheduling
// lives here; the engine only exposes the entry points.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a sweep entry point.
type Job func(ctx context.Context) error

// Service wraps a cron runner with interval and daily helpers.
type Service struct {
	c       *cron.Cron
	loc     *time.Location
	timeout time.Duration
	log     zerolog.Logger
}

// New creates a Service in the given IANA timezone (empty or invalid falls
// back to UTC). timeout bounds each job run; zero means no bound.
func New(timezone string, timeout time.Duration, log zerolog.Logger) *Service {
	loc := time.UTC
	tz := strings.TrimSpace(timezone)
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		} else {
			log.Warn().Str("tz", tz).Msg("invalid timezone, falling back to UTC")
		}
	}
	return &Service{
		c:       cron.New(cron.WithLocation(loc)),
		loc:     loc,
		timeout: timeout,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// AddInterval runs job every interval.
func (s *Service) AddInterval(name string, every time.Duration, job Job) error {
	spec := fmt.Sprintf("@every %s", every.String())
	_, err := s.c.AddFunc(spec, s.wrap(name, job))
	return err
}

// AddDaily runs job once a day at HH:MM in the service timezone.
func (s *Service) AddDaily(name, atHHMM string, job Job) error {
	h, m, err := ParseHHMM(atHHMM)
	if err != nil {
		return err
	}
	spec := fmt.Sprintf("%d %d * * *", m, h)
	_, err = s.c.AddFunc(spec, s.wrap(name, job))
	return err
}

// Start begins firing scheduled jobs.
func (s *Service) Start() {
	s.c.Start()
	s.log.Info().Str("tz", s.loc.String()).Msg("scheduler started")
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Service) Stop() {
	<-s.c.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

func (s *Service) wrap(name string, job Job) func() {
	return func() {
		ctx := context.Background()
		var cancel context.CancelFunc
		if s.timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, s.timeout)
			defer cancel()
		}
		start := time.Now()
		if err := job(ctx); err != nil {
			s.log.Warn().Str("job", name).Dur("took", time.Since(start)).Err(err).Msg("job failed")
			return
		}
		s.log.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("job ok")
	}
}

// ParseHHMM parses a 24h wall-clock time like "08:30".
func ParseHHMM(s string) (hour int, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

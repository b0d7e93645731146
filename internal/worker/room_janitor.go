package worker

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"github.com/stemsi/signquest-backend/internal/config"
)

// RoomExpirer deletes rooms past their deadline.
type RoomExpirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// RoomJanitor periodically deletes expired multiplayer rooms, whatever state
// they are in.
type RoomJanitor struct {
	scheduler *gocron.Scheduler
	rooms     RoomExpirer
	interval  time.Duration
	log       zerolog.Logger
}

// NewRoomJanitor creates a RoomJanitor sweeping every interval.
func NewRoomJanitor(rooms RoomExpirer, interval time.Duration, log zerolog.Logger) *RoomJanitor {
	return &RoomJanitor{
		scheduler: gocron.NewScheduler(time.UTC),
		rooms:     rooms,
		interval:  interval,
		log:       log.With().Str("component", "room_janitor").Logger(),
	}
}

// Start schedules the sweep and returns immediately.
func (j *RoomJanitor) Start(ctx context.Context) error {
	_, err := j.scheduler.Every(j.interval).
		Tag(config.WorkerKey.RoomJanitorTag).
		SingletonMode().
		Do(j.Sweep, ctx)
	if err != nil {
		return err
	}
	j.scheduler.StartAsync()
	j.log.Info().Dur("interval", j.interval).Msg("RoomJanitor started")
	return nil
}

// Stop terminates the schedule.
func (j *RoomJanitor) Stop() {
	j.scheduler.Stop()
}

// Sweep runs one expiry pass.
func (j *RoomJanitor) Sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	n, err := j.rooms.ExpireDue(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Room sweep failed")
		return
	}
	if n > 0 {
		j.log.Info().Int("expired", n).Msg("Expired rooms removed")
	}
}

package tasks

import (
	"github.com/hibiken/asynq"

	"hospital-booking-server/internal/config"
)

// RedisOpt builds the asynq connection options from application config.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
}

// NewScheduler registers the periodic jobs: reminders every day at 08:00
// and the monthly report fan-out on the 1st at 09:00, both in the
// configured clinic timezone.
func NewScheduler(cfg *config.Config) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(RedisOpt(cfg), &asynq.SchedulerOpts{
		Location: cfg.Location,
	})

	if _, err := scheduler.Register("0 8 * * *", NewDailyRemindersTask()); err != nil {
		return nil, err
	}
	if _, err := scheduler.Register("0 9 1 * *", NewMonthlyReportFanoutTask()); err != nil {
		return nil, err
	}
	return scheduler, nil
}

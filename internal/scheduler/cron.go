package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений.
// Пять полей плюс дескрипторы (@hourly, @daily, @every 30m).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	_, err := cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}

// NextDue вычисляет следующее время выполнения после from.
func NextDue(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

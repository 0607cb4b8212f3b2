package cli

import (
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Overseer/internal/domain"
	"github.com/shaiso/Overseer/internal/scheduler"
)

// Plan — то, что будет запущено, без запуска.
type Plan struct {
	OneShots []PlanStep    `json:"oneshots"`
	Services []PlanService `json:"services"`
	Cron     []PlanCron    `json:"cron,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

// PlanStep — one-shot задача в порядке выполнения.
type PlanStep struct {
	Order     int      `json:"order"`
	Name      string   `json:"name"`
	Command   []string `json:"command"`
	DependsOn []string `json:"depends_on,omitempty"`
	Timeout   string   `json:"timeout,omitempty"`
}

// PlanService — сервис и его политика перезапуска.
type PlanService struct {
	Name       string               `json:"name"`
	Command    []string             `json:"command"`
	Restart    domain.RestartPolicy `json:"restart"`
	StopSignal string               `json:"stop_signal"`
}

// PlanCron — периодическая задача и ближайший запуск.
type PlanCron struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Command  []string  `json:"command"`
	NextRun  time.Time `json:"next_run"`
}

// buildPlan собирает план из загруженной конфигурации.
func buildPlan(l *loaded, now time.Time) (*Plan, error) {
	plan := &Plan{
		OneShots: make([]PlanStep, 0, len(l.OneShots)),
		Services: []PlanService{},
		Warnings: l.Warnings,
	}

	for i, name := range l.OneShots {
		task := l.Spec.Task(name)
		step := PlanStep{
			Order:     i + 1,
			Name:      name,
			Command:   l.Commands[name].Args,
			DependsOn: task.DependsOn,
		}
		if task.Timeout > 0 {
			step.Timeout = task.Timeout.String()
		}
		plan.OneShots = append(plan.OneShots, step)
	}

	for _, task := range l.Spec.Services() {
		plan.Services = append(plan.Services, PlanService{
			Name:       task.Name,
			Command:    l.Commands[task.Name].Args,
			Restart:    task.Restart,
			StopSignal: task.StopSignal,
		})
	}

	for _, task := range l.Spec.CronTasks() {
		next, err := scheduler.NextDue(task.Schedule, now)
		if err != nil {
			return nil, err
		}
		plan.Cron = append(plan.Cron, PlanCron{
			Name:     task.Name,
			Schedule: task.Schedule,
			Command:  l.Commands[task.Name].Args,
			NextRun:  next,
		})
	}

	return plan, nil
}

// printPlan выводит план таблицами или JSON.
func printPlan(out *Output, plan *Plan) error {
	if out.JSONMode() {
		return out.JSON(plan)
	}

	for _, w := range plan.Warnings {
		out.Warn(w)
	}

	out.Section("One-shot steps (in order):")
	rows := make([][]string, len(plan.OneShots))
	for i, s := range plan.OneShots {
		timeout := s.Timeout
		if timeout == "" {
			timeout = "-"
		}
		rows[i] = []string{
			strconv.Itoa(s.Order),
			s.Name,
			joinOrDash(s.DependsOn),
			timeout,
			strings.Join(s.Command, " "),
		}
	}
	out.Table([]string{"#", "NAME", "DEPENDS_ON", "TIMEOUT", "COMMAND"}, rows)

	out.Section("Services:")
	rows = make([][]string, len(plan.Services))
	for i, s := range plan.Services {
		rows[i] = []string{s.Name, string(s.Restart), s.StopSignal, strings.Join(s.Command, " ")}
	}
	out.Table([]string{"NAME", "RESTART", "STOP_SIGNAL", "COMMAND"}, rows)

	if len(plan.Cron) > 0 {
		out.Section("Cron tasks:")
		rows = make([][]string, len(plan.Cron))
		for i, c := range plan.Cron {
			rows[i] = []string{c.Name, c.Schedule, c.NextRun.Format(time.RFC3339), strings.Join(c.Command, " ")}
		}
		out.Table([]string{"NAME", "SCHEDULE", "NEXT_RUN", "COMMAND"}, rows)
	}

	return nil
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}

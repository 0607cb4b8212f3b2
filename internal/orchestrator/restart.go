package orchestrator

import (
	"time"

	"github.com/shaiso/Overseer/internal/domain"
)

// RestartDecision — что делать с упавшим сервисом.
type RestartDecision struct {
	// Delay — пауза перед перезапуском (0 — сразу).
	Delay time.Duration

	// Streak — номер подряд идущего перезапуска с backoff.
	Streak int

	// GiveUp — сервис оставляется остановленным.
	GiveUp bool
}

// RestartTracker — защита от шторма перезапусков одного сервиса.
//
// Падения считаются в скользящем окне. Пока их меньше burst, сервис
// перезапускается сразу. Дальше каждый перезапуск откладывается на
// initial * 2^(streak-1), но не больше max. Серия сбрасывается, когда
// экземпляр проработал не меньше окна. Когда серия превышает giveUp,
// сервис оставляется остановленным.
type RestartTracker struct {
	window  time.Duration
	burst   int
	initial time.Duration
	max     time.Duration
	giveUp  int

	exits  []time.Time
	streak int
}

// NewRestartTracker создаёт трекер с настройками группы.
func NewRestartTracker(s domain.RestartSettings) *RestartTracker {
	burst := s.Burst
	if burst <= 0 {
		burst = domain.DefaultRestartBurst
	}
	return &RestartTracker{
		window:  s.Window.Std(),
		burst:   burst,
		initial: s.InitialBackoff.Std(),
		max:     s.MaxBackoff.Std(),
		giveUp:  s.GiveUp,
	}
}

// Next регистрирует выход экземпляра и решает, когда перезапускать.
// uptime — сколько проработал завершившийся экземпляр.
func (t *RestartTracker) Next(now time.Time, uptime time.Duration) RestartDecision {
	if uptime >= t.window {
		t.streak = 0
	}

	cutoff := now.Add(-t.window)
	kept := t.exits[:0]
	for _, at := range t.exits {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	t.exits = append(kept, now)

	if len(t.exits) < t.burst {
		return RestartDecision{}
	}

	t.streak++
	if t.giveUp > 0 && t.streak > t.giveUp {
		return RestartDecision{Streak: t.streak, GiveUp: true}
	}

	return RestartDecision{Delay: t.backoff(), Streak: t.streak}
}

// backoff вычисляет задержку для текущей серии.
func (t *RestartTracker) backoff() time.Duration {
	delay := t.initial
	for i := 1; i < t.streak; i++ {
		delay *= 2
		if t.max > 0 && delay >= t.max {
			return t.max
		}
	}
	if t.max > 0 && delay > t.max {
		return t.max
	}
	return delay
}

// Streak возвращает текущую серию перезапусков с backoff.
func (t *RestartTracker) Streak() int {
	return t.streak
}

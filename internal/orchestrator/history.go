package orchestrator

import (
	"sync"

	"github.com/shaiso/Overseer/internal/domain"
)

// defaultHistorySize — сколько последних запусков хранится в памяти.
const defaultHistorySize = 200

// history — ограниченное кольцо завершённых запусков.
type history struct {
	mu    sync.RWMutex
	items []*domain.Execution
	next  int
	full  bool
}

func newHistory(size int) *history {
	if size <= 0 {
		size = defaultHistorySize
	}
	return &history{items: make([]*domain.Execution, size)}
}

// Add сохраняет копию записи.
func (h *history) Add(exec *domain.Execution) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items[h.next] = exec.Clone()
	h.next = (h.next + 1) % len(h.items)
	if h.next == 0 {
		h.full = true
	}
}

// List возвращает записи от новых к старым.
// Если task не пустой — только записи этой задачи.
func (h *history) List(task string) []*domain.Execution {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.next
	if h.full {
		n = len(h.items)
	}

	out := make([]*domain.Execution, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.next - 1 - i + len(h.items)) % len(h.items)
		exec := h.items[idx]
		if task != "" && exec.Task != task {
			continue
		}
		out = append(out, exec.Clone())
	}
	return out
}

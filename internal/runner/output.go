package runner

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
)

const (
	// defaultTailLines — сколько последних строк вывода хранится в Execution.Output.
	defaultTailLines = 20

	// maxLineLength — строка длиннее сбрасывается в лог частями.
	maxLineLength = 64 * 1024
)

// lineWriter — io.Writer, пересылающий вывод процесса в лог построчно.
//
// exec.Cmd пишет в него из собственной горутины копирования,
// по одной на поток, поэтому буфер не защищён мьютексом.
type lineWriter struct {
	logger *slog.Logger
	stream string
	tail   *tail
	buf    []byte
}

func newLineWriter(logger *slog.Logger, stream string, t *tail) *lineWriter {
	return &lineWriter{
		logger: logger,
		stream: stream,
		tail:   t,
	}
}

// Write реализует io.Writer.
func (w *lineWriter) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			w.buf = append(w.buf, p...)
			if len(w.buf) >= maxLineLength {
				w.emit(w.buf)
				w.buf = w.buf[:0]
			}
			break
		}

		if len(w.buf) > 0 {
			w.buf = append(w.buf, p[:i]...)
			w.emit(w.buf)
			w.buf = w.buf[:0]
		} else {
			w.emit(p[:i])
		}
		p = p[i+1:]
	}
	return n, nil
}

// Flush отправляет незавершённую последнюю строку.
func (w *lineWriter) Flush() {
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = w.buf[:0]
	}
}

func (w *lineWriter) emit(line []byte) {
	line = bytes.TrimRight(line, "\r")
	s := string(line)
	w.tail.Add(s)
	w.logger.LogAttrs(context.Background(), slog.LevelInfo, s, slog.String("stream", w.stream))
}

// tail — кольцевой буфер последних строк вывода.
// Общий для stdout и stderr, поэтому защищён мьютексом.
type tail struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func newTail(size int) *tail {
	if size <= 0 {
		size = defaultTailLines
	}
	return &tail{lines: make([]string, size)}
}

// Add добавляет строку, вытесняя самую старую.
func (t *tail) Add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lines[t.next] = line
	t.next = (t.next + 1) % len(t.lines)
	if t.next == 0 {
		t.full = true
	}
}

// Lines возвращает сохранённые строки от старых к новым.
func (t *tail) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.full {
		return append([]string(nil), t.lines[:t.next]...)
	}

	out := make([]string, 0, len(t.lines))
	out = append(out, t.lines[t.next:]...)
	out = append(out, t.lines[:t.next]...)
	return out
}

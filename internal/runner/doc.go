// Package runner запускает команды задач как дочерние процессы.
//
// Каждый процесс получает собственную группу процессов, сигналы остановки
// отправляются всей группе: gunicorn или celery вместе со своими воркерами
// останавливаются целиком.
//
// Два режима:
//   - Run   — для oneshot и cron: блокируется до завершения, таймаута или отмены ctx
//   - Start — для сервисов: возвращает Handle сразу после запуска
//
// stdout и stderr построчно пересылаются в slog, последние строки
// сохраняются в Execution.Output для отчётов об ошибках.
//
// Ненулевой код выхода — обычный статус FAILED, а не ошибка.
// Ошибкой (LaunchError) считается только невозможность запустить команду.
package runner

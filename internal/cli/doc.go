// Package cli реализует командную строку overseer.
//
// # Обзор
//
//	overseer [flags] CONFIG
//
// Команда загружает конфигурацию группы, проверяет граф зависимостей
// и шаблоны команд, затем запускает оркестратор и ждёт его остановки.
// Код выхода процесса берётся из ExitError (см. ExitCode).
//
// # Ключевые компоненты
//
// ## Options
//
// Флаги командной строки. Настройки из файла (drain_timeout,
// escalation_timeout) перекрываются флагами, если те заданы.
// Адреса инфраструктуры берутся из флагов или окружения:
// HTTP_ADDR, DB_URL, RABBITMQ_URL.
//
// ## Dry run
//
// С флагом --dry-run ничего не запускается: печатается порядок
// one-shot шагов, список сервисов и ближайшие запуски cron-задач.
// С --json план выводится в JSON:
//
//	overseer --dry-run --json deploy/overseer.yaml | jq .oneshots
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, предупреждения и ошибки — в stderr.
// Логи всегда пишутся в stderr.
package cli

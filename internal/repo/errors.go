package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrNoDSN — строка подключения не задана ни флагом, ни DB_URL.
	ErrNoDSN = errors.New("database dsn is not set")
)

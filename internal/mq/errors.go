package mq

import "errors"

// Ошибки MQ.
var (
	// ErrNoURL — адрес брокера не задан ни флагом, ни RABBITMQ_URL.
	ErrNoURL = errors.New("rabbitmq url is not set")

	// ErrNoChannel — канал закрыт, идёт переподключение.
	ErrNoChannel = errors.New("no channel available")

	// ErrNotConfirmed — брокер не подтвердил публикацию.
	ErrNotConfirmed = errors.New("publish not confirmed by broker")
)

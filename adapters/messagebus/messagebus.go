// Package messagebus предоставляет адаптеры для различных шин сообщений.
package messagebus

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConnected возникает при операции на закрытом соединении
	ErrNotConnected = errors.New("message bus is not connected")
	// ErrUnknownDriver возникает при запросе неизвестного драйвера шины
	ErrUnknownDriver = errors.New("unknown message bus driver")
)

// Message сообщение шины
type Message struct {
	Subject string
	Data    []byte
	Headers map[string]string
}

// MessageHandler обработчик входящего сообщения.
// Возврат nil подтверждает сообщение (ack). Возврат ошибки приводит
// к повторной доставке, кроме PermanentError, который отправляет
// сообщение в dead-letter.
type MessageHandler func(ctx context.Context, msg Message) error

// MessageBus интерфейс шины сообщений с доставкой at-least-once
type MessageBus interface {
	// Publish публикует сообщение по указанному subject
	Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error

	// Subscribe подписывает обработчик на subject или шаблон.
	// Подписчики с одинаковым queue образуют группу с разделением нагрузки.
	Subscribe(ctx context.Context, subject, queue string, handler MessageHandler) error

	// Close закрывает соединение с шиной
	Close() error
}

// PermanentError помечает ошибку обработки как невосстановимую.
// Сообщение не будет доставлено повторно.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent оборачивает ошибку как невосстановимую
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent проверяет, является ли ошибка невосстановимой
func IsPermanent(err error) bool {
	var permanent *PermanentError
	return errors.As(err, &permanent)
}

// Clock абстракция времени для тестирования переподключения
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// SystemClock системные часы
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

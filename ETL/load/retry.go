package load

import (
	"context"
	"time"

	"github.com/LilVoxy/budget_graph/ETL/graph"
	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy параметры повтора пакета при временных ошибках хранилища
type RetryPolicy struct {
	Attempts        int           // всего попыток, включая первую
	InitialInterval time.Duration // пауза перед первым повтором
	MaxInterval     time.Duration
	BatchTimeout    time.Duration // предел одной попытки
}

// DefaultRetryPolicy возвращает политику по умолчанию: 3 попытки с экспоненциальной паузой
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:        3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		BatchTimeout:    2 * time.Minute,
	}
}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.MaxElapsedTime = 0

	retries := p.Attempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithMaxRetries(b, uint64(retries))
}

// run выполняет op, повторяя временные ошибки. Каждая попытка получает контекст,
// не зависящий от отмены ctx: начатый пакет доводится до конца.
// onRetry вызывается перед каждым повтором с номером неудачной попытки
func (p RetryPolicy) run(ctx context.Context, op func(ctx context.Context) error, onRetry func(attempt int, err error)) (int, error) {
	base := context.WithoutCancel(ctx)
	attempts := 0

	err := backoff.RetryNotify(func() error {
		attempts++
		attemptCtx := base
		if p.BatchTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(base, p.BatchTimeout)
			defer cancel()
		}

		err := op(attemptCtx)
		if err != nil && !graph.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(), func(err error, _ time.Duration) {
		if onRetry != nil {
			onRetry(attempts, err)
		}
	})
	return attempts, err
}

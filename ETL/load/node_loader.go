package load

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/LilVoxy/budget_graph/ETL/graph"
	"github.com/LilVoxy/budget_graph/ETL/models"
	"github.com/LilVoxy/budget_graph/ETL/report"
	"github.com/LilVoxy/budget_graph/ETL/schema"
	"github.com/LilVoxy/budget_graph/ETL/utils"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// NodeLoader записывает узлы одной метки пакетами фиксированного размера
type NodeLoader struct {
	store     graph.Store
	reporter  report.Reporter
	logger    *utils.ETLLogger
	batchSize int
	workers   int
	retry     RetryPolicy
	limiter   *rate.Limiter
}

// NewNodeLoader создает новый экземпляр NodeLoader.
// workers > 1 разрешает параллельную запись пакетов, limiter может быть nil
func NewNodeLoader(store graph.Store, reporter report.Reporter, logger *utils.ETLLogger, batchSize, workers int, retry RetryPolicy, limiter *rate.Limiter) *NodeLoader {
	if batchSize <= 0 {
		batchSize = DefaultNodeBatchSize
	}
	if workers <= 0 {
		workers = 1
	}
	return &NodeLoader{
		store:     store,
		reporter:  reporter,
		logger:    logger,
		batchSize: batchSize,
		workers:   workers,
		retry:     retry,
		limiter:   limiter,
	}
}

// Load записывает все элементы потока и возвращает количество обработанных записей.
// Отмена ctx проверяется только между пакетами; уже записанные пакеты остаются в хранилище
func (l *NodeLoader) Load(ctx context.Context, phase string, desc schema.Descriptor, items models.Stream[models.NodeItem]) (int, error) {
	defer items.Close()

	keyFields := desc.KeyFields()
	var processed atomic.Int64
	var failed atomic.Bool

	var g errgroup.Group
	slots := make(chan struct{}, l.workers)

	offset := 0
	var readErr error
	for {
		if err := ctx.Err(); err != nil {
			readErr = err
			break
		}
		if failed.Load() {
			// один из пакетов уже прервал фазу
			break
		}

		batch, done, err := nextBatch(items, l.batchSize)
		if err != nil {
			readErr = fmt.Errorf("ошибка при чтении записей %s: %w", desc.Label, err)
			break
		}
		if len(batch) == 0 {
			break
		}
		if l.limiter != nil {
			if err := l.limiter.Wait(ctx); err != nil {
				readErr = ctx.Err()
				if readErr == nil {
					readErr = err
				}
				break
			}
		}

		// свободный слот ждем до проверки отмены, чтобы пакет не стартовал после нее
		slots <- struct{}{}
		if err := ctx.Err(); err != nil {
			<-slots
			readErr = err
			break
		}
		if failed.Load() {
			<-slots
			break
		}

		rng := report.BatchRange{Start: offset, End: offset + len(batch)}
		offset += len(batch)

		g.Go(func() error {
			defer func() { <-slots }()
			unique, dups := dedupNodes(batch)
			res, err := l.writeBatch(ctx, phase, desc.Label, keyFields, unique, rng)
			if err != nil {
				failed.Store(true)
				return err
			}
			processed.Add(int64(len(batch)))
			l.reporter.BatchCompleted(phase, rng, report.Counts{
				Submitted:  int64(len(batch)),
				Written:    int64(res.Written()),
				Duplicates: int64(dups),
			})
			return nil
		})

		if done {
			break
		}
	}

	// начатые пакеты доводятся до конца даже при отмене
	if err := g.Wait(); err != nil {
		return int(processed.Load()), err
	}
	return int(processed.Load()), readErr
}

func (l *NodeLoader) writeBatch(ctx context.Context, phase, label string, keyFields []string, items []models.NodeItem, rng report.BatchRange) (graph.UpsertResult, error) {
	var res graph.UpsertResult
	attempts, err := l.retry.run(ctx, func(ctx context.Context) error {
		r, err := l.store.UpsertNodes(ctx, label, keyFields, items)
		if err != nil {
			return err
		}
		res = r
		return nil
	}, func(attempt int, err error) {
		l.reporter.BatchRetried(phase, rng, attempt, err)
	})
	if err != nil {
		l.reporter.BatchFailed(phase, rng, err)
		return res, &PhaseError{Phase: phase, Batch: rng, Attempts: attempts, Err: err}
	}
	return res, nil
}

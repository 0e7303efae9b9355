package load

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/LilVoxy/budget_graph/ETL/graph"
	"github.com/LilVoxy/budget_graph/ETL/models"
	"github.com/LilVoxy/budget_graph/ETL/report"
	"github.com/LilVoxy/budget_graph/ETL/utils"
	"golang.org/x/time/rate"
)

// EdgeLoader записывает связи пакетами, сгруппированными по типу связи и меткам концов.
// Пакеты пишутся последовательно
type EdgeLoader struct {
	store     graph.Store
	reporter  report.Reporter
	logger    *utils.ETLLogger
	batchSize int
	retry     RetryPolicy
	limiter   *rate.Limiter
}

// NewEdgeLoader создает новый экземпляр EdgeLoader
func NewEdgeLoader(store graph.Store, reporter report.Reporter, logger *utils.ETLLogger, batchSize int, retry RetryPolicy, limiter *rate.Limiter) *EdgeLoader {
	if batchSize <= 0 {
		batchSize = DefaultEdgeBatchSize
	}
	return &EdgeLoader{
		store:     store,
		reporter:  reporter,
		logger:    logger,
		batchSize: batchSize,
		retry:     retry,
		limiter:   limiter,
	}
}

type edgeGroup struct {
	spec   models.EdgeSpec
	items  []models.Edge
	seen   map[string]struct{}
	dups   int
	offset int
	totals report.Counts
}

func newEdgeGroup(spec models.EdgeSpec, size int) *edgeGroup {
	return &edgeGroup{spec: spec, items: make([]models.Edge, 0, size), seen: make(map[string]struct{}, size)}
}

// Load записывает все связи потока и возвращает количество обработанных связей.
// Связь, у которой в хранилище нет одного из концов, учитывается как ненайденная
func (l *EdgeLoader) Load(ctx context.Context, phase string, edges models.Stream[models.Edge]) (int, error) {
	defer edges.Close()

	groups := make(map[models.EdgeSpec]*edgeGroup)
	processed := 0

	for {
		e, err := edges.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return processed, fmt.Errorf("ошибка при выводе связей: %w", err)
		}

		g, ok := groups[e.Spec]
		if !ok {
			g = newEdgeGroup(e.Spec, l.batchSize)
			groups[e.Spec] = g
		}
		triple := e.Triple()
		if _, dup := g.seen[triple]; dup {
			g.dups++
			continue
		}
		g.seen[triple] = struct{}{}
		g.items = append(g.items, e)

		if len(g.items) >= l.batchSize {
			n, err := l.flush(ctx, phase, g)
			processed += n
			if err != nil {
				return processed, err
			}
		}
	}

	specs := make([]models.EdgeSpec, 0, len(groups))
	for spec := range groups {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].String() < specs[j].String() })

	for _, spec := range specs {
		g := groups[spec]
		n, err := l.flush(ctx, phase, g)
		processed += n
		if err != nil {
			return processed, err
		}
		if g.totals.Unresolved > 0 {
			l.logger.Warn("%s: %s не найдено концов у %d связей из %d",
				phase, spec.Type, g.totals.Unresolved, g.totals.Submitted)
		}
	}
	return processed, nil
}

// flush записывает накопленный пакет группы
func (l *EdgeLoader) flush(ctx context.Context, phase string, g *edgeGroup) (int, error) {
	if len(g.items) == 0 && g.dups == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if l.limiter != nil && len(g.items) > 0 {
		if err := l.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}

	n := len(g.items) + g.dups
	rng := report.BatchRange{Start: g.offset, End: g.offset + n}
	counts := report.Counts{Submitted: int64(n), Duplicates: int64(g.dups)}

	if len(g.items) > 0 {
		var res graph.UpsertResult
		attempts, err := l.retry.run(ctx, func(ctx context.Context) error {
			r, err := l.store.UpsertEdges(ctx, g.spec, g.items)
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
			return 0, &PhaseError{Phase: phase, Batch: rng, Attempts: attempts, Err: err}
		}
		counts.Written = int64(res.Written())
		counts.Unresolved = int64(res.Failed())
	}

	l.reporter.BatchCompleted(phase, rng, counts)
	l.reporter.EdgeTypeCounted(phase, g.spec.Type, counts)
	g.totals.Add(counts)

	g.offset += n
	g.items = g.items[:0]
	g.dups = 0
	clear(g.seen)
	return n, nil
}

package load

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LilVoxy/budget_graph/ETL/extractors"
	"github.com/LilVoxy/budget_graph/ETL/graph"
	"github.com/LilVoxy/budget_graph/ETL/models"
	"github.com/LilVoxy/budget_graph/ETL/report"
	"github.com/LilVoxy/budget_graph/ETL/schema"
	"github.com/LilVoxy/budget_graph/ETL/transform"
	"github.com/LilVoxy/budget_graph/ETL/utils"
	"golang.org/x/time/rate"
)

// Размеры пакетов по умолчанию
const (
	DefaultNodeBatchSize = 10000
	DefaultFactBatchSize = 5000
	DefaultEdgeBatchSize = 5000
)

// Options параметры загрузки
type Options struct {
	NodeBatchSize    int
	FactBatchSize    int
	EdgeBatchSize    int
	Workers          int
	Retry            RetryPolicy
	BatchesPerSecond float64 // 0 без ограничения
}

// DefaultOptions возвращает параметры по умолчанию
func DefaultOptions() Options {
	return Options{
		NodeBatchSize: DefaultNodeBatchSize,
		FactBatchSize: DefaultFactBatchSize,
		EdgeBatchSize: DefaultEdgeBatchSize,
		Workers:       1,
		Retry:         DefaultRetryPolicy(),
	}
}

// SyncManager отвечает за порядок фаз синхронизации и их зависимости
type SyncManager struct {
	registry *schema.Registry
	source   extractors.Source
	store    graph.Store
	logger   *utils.ETLLogger
	options  Options
}

// NewSyncManager создает новый экземпляр SyncManager
func NewSyncManager(registry *schema.Registry, source extractors.Source, store graph.Store, logger *utils.ETLLogger, options Options) *SyncManager {
	return &SyncManager{
		registry: registry,
		source:   source,
		store:    store,
		logger:   logger,
		options:  options,
	}
}

// Plan строит план фаз по найденным наборам фактов
func (m *SyncManager) Plan() (Plan, error) {
	sets, err := m.source.FactSets()
	if err != nil {
		return Plan{}, fmt.Errorf("ошибка при поиске наборов бюджета: %w", err)
	}
	plan := BuildPlan(m.registry, sets)
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

// run состояние одного запуска
type run struct {
	m        *SyncManager
	reporter report.Reporter
	nodes    *NodeLoader
	facts    *NodeLoader
	edges    *EdgeLoader
	failed   map[string]bool
	records  int
	checked  bool
	aborted  []string
}

// checkRecords возвращает ErrNoRecords, если фазы узлов не прочитали ни одной записи
func (r *run) checkRecords() error {
	r.checked = true
	if r.records == 0 && len(r.aborted) == 0 {
		r.m.logger.Error("Источник не вернул ни одной записи")
		return ErrNoRecords
	}
	return nil
}

// Sync выполняет все фазы плана.
// Прерванная фаза не останавливает независимые от нее фазы; зависящие от нее
// связи пропускаются. Ошибка установки ограничений и отмена ctx прекращают запуск
func (m *SyncManager) Sync(ctx context.Context, reporter report.Reporter) error {
	startTime := time.Now()
	m.logger.Info("Начало синхронизации")

	plan, err := m.Plan()
	if err != nil {
		return err
	}

	var limiter *rate.Limiter
	if m.options.BatchesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(m.options.BatchesPerSecond), 1)
	}

	r := &run{
		m:        m,
		reporter: reporter,
		nodes:    NewNodeLoader(m.store, reporter, m.logger, m.options.NodeBatchSize, m.options.Workers, m.options.Retry, limiter),
		facts:    NewNodeLoader(m.store, reporter, m.logger, m.options.FactBatchSize, m.options.Workers, m.options.Retry, limiter),
		edges:    NewEdgeLoader(m.store, reporter, m.logger, m.options.EdgeBatchSize, m.options.Retry, limiter),
		failed:   make(map[string]bool),
	}

	for i, ph := range plan.Phases {
		if err := ctx.Err(); err != nil {
			r.cancelRemaining(plan.Phases[i:], err)
			return fmt.Errorf("синхронизация прервана: %w", err)
		}

		if !r.checked && (ph.Type == PhaseHierarchyEdges || ph.Type == PhaseFactEdges) {
			if err := r.checkRecords(); err != nil {
				return err
			}
		}

		err := r.execute(ctx, ph)
		if err == nil {
			continue
		}

		var conErr *ConstraintError
		if errors.As(err, &conErr) {
			r.skipRemaining(plan.Phases[i+1:], "ограничения уникальности не установлены")
			return err
		}
		if ctx.Err() != nil {
			r.cancelRemaining(plan.Phases[i+1:], ctx.Err())
			return fmt.Errorf("синхронизация прервана: %w", ctx.Err())
		}
	}

	if !r.checked {
		if err := r.checkRecords(); err != nil {
			return err
		}
	}

	m.logger.Info("Синхронизация завершена. Длительность: %v", time.Since(startTime))
	if len(r.aborted) > 0 {
		return &SyncError{Failed: r.aborted}
	}
	return nil
}

// execute выполняет одну фазу и фиксирует ее итог в отчете
func (r *run) execute(ctx context.Context, ph Phase) error {
	kind := ph.Type.Kind()

	var excluded []string
	if ph.Type == PhaseHierarchyEdges || ph.Type == PhaseFactEdges {
		if ph.Type == PhaseFactEdges && r.failed[ph.Requires[0]] {
			r.reporter.Skipped(ph.Name, kind, fmt.Sprintf("узлы набора %s не загружены", ph.FactSet.Name()))
			return nil
		}
		for _, req := range ph.Requires {
			if r.failed[req] {
				excluded = append(excluded, req)
			}
		}
	}

	r.reporter.PhaseStarted(ph.Name, kind)

	var err error
	switch ph.Type {
	case PhaseConstraints:
		err = NewConstraintInstaller(r.m.store, r.reporter, r.m.logger, r.m.options.Retry).
			EnsureConstraints(ctx, ph.Name, r.m.registry)
	case PhaseDimensionNodes:
		err = r.dimensionNodes(ctx, ph)
	case PhaseFactNodes:
		err = r.factNodes(ctx, ph)
	case PhaseHierarchyEdges:
		err = r.hierarchyEdges(ctx, ph, excluded)
	case PhaseFactEdges:
		err = r.factEdges(ctx, ph, excluded)
	}

	switch {
	case err == nil:
		r.reporter.PhaseFinished(ph.Name, report.StatusSuccess, nil)
	case ctx.Err() != nil:
		r.reporter.PhaseFinished(ph.Name, report.StatusCanceled, err)
	default:
		r.reporter.PhaseFinished(ph.Name, report.StatusFailed, err)
		r.aborted = append(r.aborted, ph.Name)
		if ph.Provides != "" {
			r.failed[ph.Provides] = true
		}
	}
	return err
}

func (r *run) cancelRemaining(phases []Phase, cause error) {
	for _, ph := range phases {
		r.reporter.PhaseStarted(ph.Name, ph.Type.Kind())
		r.reporter.PhaseFinished(ph.Name, report.StatusCanceled, cause)
	}
}

func (r *run) skipRemaining(phases []Phase, reason string) {
	for _, ph := range phases {
		r.reporter.Skipped(ph.Name, ph.Type.Kind(), reason)
	}
}

func countInvalid(reporter report.Reporter, phase string, s any) {
	if ic, ok := s.(extractors.InvalidCounter); ok && ic.Invalid() > 0 {
		reporter.Count(phase, report.Counts{Invalid: ic.Invalid()})
	}
}

func (r *run) dimensionNodes(ctx context.Context, ph Phase) error {
	records, err := r.m.source.Dimensions(ph.Descriptor)
	if err != nil {
		return fmt.Errorf("ошибка при открытии источника %s: %w", ph.Descriptor.Source, err)
	}
	n, err := r.nodes.Load(ctx, ph.Name, ph.Descriptor, transform.DimensionNodes(ph.Descriptor, records))
	r.records += n
	countInvalid(r.reporter, ph.Name, records)
	return err
}

func (r *run) factNodes(ctx context.Context, ph Phase) error {
	facts, err := r.m.source.Facts(ph.Descriptor, ph.FactSet)
	if err != nil {
		return fmt.Errorf("ошибка при открытии набора %s: %w", ph.FactSet.Name(), err)
	}
	items := transform.FactNodes(ph.Descriptor, facts, func(f models.FactRecord) {
		r.reporter.AddAmount(ph.Name, f.Amount)
	})
	n, err := r.facts.Load(ctx, ph.Name, ph.Descriptor, items)
	r.records += n
	countInvalid(r.reporter, ph.Name, facts)
	return err
}

func (r *run) deriver(excluded []string) *transform.EdgeDeriver {
	d := transform.NewEdgeDeriver()
	if len(excluded) > 0 {
		r.m.logger.Warn("Связи с метками %v пропускаются: узлы не загружены", excluded)
		d = d.Excluding(excluded...)
	}
	return d
}

func (r *run) reportOutcome(phase string, out transform.Outcome) {
	if out.Malformed > 0 {
		r.m.logger.Warn("Фаза %s: %d кодов не соответствуют формату UACS/PSGC", phase, out.Malformed)
	}
	r.reporter.Count(phase, report.Counts{Absent: out.Absent, Malformed: out.Malformed, Skipped: out.Skipped})
}

// hierarchyEdges повторно читает записи измерения и выводит связи с родителями
func (r *run) hierarchyEdges(ctx context.Context, ph Phase, excluded []string) error {
	records, err := r.m.source.Dimensions(ph.Descriptor)
	if err != nil {
		return fmt.Errorf("ошибка при открытии источника %s: %w", ph.Descriptor.Source, err)
	}
	edges := r.deriver(excluded).HierarchyStream(ph.Descriptor, records)
	_, err = r.edges.Load(ctx, ph.Name, edges)
	r.reportOutcome(ph.Name, edges.Outcome())
	return err
}

// factEdges повторно читает строки набора и выводит связи с измерениями
func (r *run) factEdges(ctx context.Context, ph Phase, excluded []string) error {
	facts, err := r.m.source.Facts(ph.Descriptor, ph.FactSet)
	if err != nil {
		return fmt.Errorf("ошибка при открытии набора %s: %w", ph.FactSet.Name(), err)
	}
	edges := r.deriver(excluded).FactStream(ph.Descriptor, facts)
	_, err = r.edges.Load(ctx, ph.Name, edges)
	r.reportOutcome(ph.Name, edges.Outcome())
	return err
}

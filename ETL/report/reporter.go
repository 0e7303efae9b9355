// Package report отслеживает ход синхронизации по фазам и пакетам.
package report

import (
	"fmt"
	"sync"
	"time"

	"github.com/LilVoxy/budget_graph/ETL/utils"
	"github.com/shopspring/decimal"
)

// PhaseKind вид фазы
type PhaseKind string

const (
	KindConstraints PhaseKind = "constraints"
	KindNodes       PhaseKind = "nodes"
	KindEdges       PhaseKind = "edges"
)

// PhaseStatus состояние фазы
type PhaseStatus string

const (
	StatusRunning  PhaseStatus = "running"
	StatusSuccess  PhaseStatus = "success"
	StatusFailed   PhaseStatus = "failed"
	StatusSkipped  PhaseStatus = "skipped"
	StatusCanceled PhaseStatus = "canceled"
)

// BatchRange диапазон порядковых номеров записей пакета [Start, End)
type BatchRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (b BatchRange) String() string {
	if b.End <= b.Start {
		return fmt.Sprintf("%d", b.Start)
	}
	return fmt.Sprintf("%d-%d", b.Start, b.End-1)
}

// Counts счетчики фазы. Складываются при каждом событии
type Counts struct {
	Submitted  int64 `json:"submitted"`
	Written    int64 `json:"written"`
	Unresolved int64 `json:"unresolved"`
	Absent     int64 `json:"absent"`
	Malformed  int64 `json:"malformed"`
	Duplicates int64 `json:"duplicates"`
	Invalid    int64 `json:"invalid"`
	Skipped    int64 `json:"skipped"`
}

// Add прибавляет счетчики other
func (c *Counts) Add(other Counts) {
	c.Submitted += other.Submitted
	c.Written += other.Written
	c.Unresolved += other.Unresolved
	c.Absent += other.Absent
	c.Malformed += other.Malformed
	c.Duplicates += other.Duplicates
	c.Invalid += other.Invalid
	c.Skipped += other.Skipped
}

// Reporter принимает события фаз. Передается в каждую фазу явно
type Reporter interface {
	PhaseStarted(phase string, kind PhaseKind)
	BatchCompleted(phase string, batch BatchRange, c Counts)
	BatchRetried(phase string, batch BatchRange, attempt int, err error)
	BatchFailed(phase string, batch BatchRange, err error)
	EdgeTypeCounted(phase, edgeType string, c Counts)
	Count(phase string, c Counts)
	AddAmount(phase string, amount float64)
	Skipped(phase string, kind PhaseKind, reason string)
	PhaseFinished(phase string, status PhaseStatus, err error)
}

// PhaseStats итог фазы
type PhaseStats struct {
	Name   string      `json:"name"`
	Kind   PhaseKind   `json:"kind"`
	Status PhaseStatus `json:"status"`
	Counts
	ByEdgeType    map[string]Counts `json:"by_edge_type,omitempty"`
	Retries       int               `json:"retries"`
	Batches       int               `json:"batches"`
	FailedBatches []BatchRange      `json:"failed_batches,omitempty"`
	Started       time.Time         `json:"started"`
	Elapsed       time.Duration     `json:"elapsed"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	Error         string            `json:"error,omitempty"`
}

// EventType тип события
type EventType string

const (
	EventPhaseStarted   EventType = "phase_started"
	EventBatchCompleted EventType = "batch_completed"
	EventBatchRetried   EventType = "batch_retried"
	EventBatchFailed    EventType = "batch_failed"
	EventPhaseSkipped   EventType = "phase_skipped"
	EventPhaseFinished  EventType = "phase_finished"
)

// Event событие хода синхронизации для наблюдателей
type Event struct {
	Type    EventType   `json:"type"`
	Phase   string      `json:"phase"`
	Kind    PhaseKind   `json:"kind,omitempty"`
	Status  PhaseStatus `json:"status,omitempty"`
	Batch   *BatchRange `json:"batch,omitempty"`
	Counts  *Counts     `json:"counts,omitempty"`
	Attempt int         `json:"attempt,omitempty"`
	Error   string      `json:"error,omitempty"`
	Time    time.Time   `json:"time"`
}

// Observer получает события. Вызывается синхронно, реализация не должна блокироваться
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc адаптер функции к Observer
type ObserverFunc func(Event)

// OnEvent вызывает f
func (f ObserverFunc) OnEvent(e Event) { f(e) }

// RunReporter потокобезопасная реализация Reporter для одного запуска
type RunReporter struct {
	mu        sync.Mutex
	runID     string
	started   time.Time
	phases    map[string]*PhaseStats
	order     []string
	observers []Observer
	logger    *utils.ETLLogger
	now       func() time.Time
}

// NewRunReporter создает новый экземпляр RunReporter
func NewRunReporter(runID string, logger *utils.ETLLogger, observers ...Observer) *RunReporter {
	return &RunReporter{
		runID:     runID,
		started:   time.Now(),
		phases:    make(map[string]*PhaseStats),
		observers: observers,
		logger:    logger,
		now:       time.Now,
	}
}

// Subscribe добавляет наблюдателя
func (r *RunReporter) Subscribe(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// phase возвращает статистику фазы, создавая ее при первом обращении. Вызывается под r.mu
func (r *RunReporter) phase(name string, kind PhaseKind) *PhaseStats {
	p, ok := r.phases[name]
	if !ok {
		p = &PhaseStats{Name: name, Kind: kind, Status: StatusRunning, Started: r.now()}
		r.phases[name] = p
		r.order = append(r.order, name)
	}
	if p.Kind == "" {
		p.Kind = kind
	}
	return p
}

func (r *RunReporter) emit(e Event) {
	e.Time = r.now()
	for _, o := range r.observers {
		o.OnEvent(e)
	}
}

// PhaseStarted регистрирует начало фазы
func (r *RunReporter) PhaseStarted(phase string, kind PhaseKind) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.phase(phase, kind)
	p.Status = StatusRunning
	p.Started = r.now()
	if r.logger != nil {
		r.logger.LogPhaseStart(phase)
	}
	r.emit(Event{Type: EventPhaseStarted, Phase: phase, Kind: kind, Status: StatusRunning})
}

// BatchCompleted учитывает примененный пакет
func (r *RunReporter) BatchCompleted(phase string, batch BatchRange, c Counts) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.phase(phase, "")
	p.Batches++
	p.Counts.Add(c)
	if r.logger != nil {
		r.logger.Debug("%s: пакет %s записан (%d из %d)", phase, batch, c.Written, c.Submitted)
	}
	r.emit(Event{Type: EventBatchCompleted, Phase: phase, Batch: &batch, Counts: &c})
}

// BatchRetried учитывает повтор пакета после временной ошибки
func (r *RunReporter) BatchRetried(phase string, batch BatchRange, attempt int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.phase(phase, "")
	p.Retries++
	if r.logger != nil {
		r.logger.Warn("%s: повтор пакета %s (попытка %d): %v", phase, batch, attempt, err)
	}
	r.emit(Event{Type: EventBatchRetried, Phase: phase, Batch: &batch, Attempt: attempt, Error: errString(err)})
}

// BatchFailed учитывает пакет, исчерпавший повторы
func (r *RunReporter) BatchFailed(phase string, batch BatchRange, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.phase(phase, "")
	p.FailedBatches = append(p.FailedBatches, batch)
	if r.logger != nil {
		r.logger.Error("%s: пакет %s не записан: %v", phase, batch, err)
	}
	r.emit(Event{Type: EventBatchFailed, Phase: phase, Batch: &batch, Error: errString(err)})
}

// EdgeTypeCounted учитывает пакет связей в разбивке по типу связи
func (r *RunReporter) EdgeTypeCounted(phase, edgeType string, c Counts) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.phase(phase, KindEdges)
	if p.ByEdgeType == nil {
		p.ByEdgeType = make(map[string]Counts)
	}
	acc := p.ByEdgeType[edgeType]
	acc.Add(c)
	p.ByEdgeType[edgeType] = acc
}

// Count учитывает счетчики вне пакетов (отсутствующие и некорректные ключи, пропуски)
func (r *RunReporter) Count(phase string, c Counts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase(phase, "").Counts.Add(c)
}

// AddAmount прибавляет сумму фактов фазы
func (r *RunReporter) AddAmount(phase string, amount float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.phase(phase, "")
	p.TotalAmount = p.TotalAmount.Add(decimal.NewFromFloat(amount))
}

// Skipped отмечает фазу пропущенной
func (r *RunReporter) Skipped(phase string, kind PhaseKind, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.phase(phase, kind)
	p.Status = StatusSkipped
	p.Error = reason
	if r.logger != nil {
		r.logger.Warn("Фаза %s пропущена: %s", phase, reason)
	}
	r.emit(Event{Type: EventPhaseSkipped, Phase: phase, Kind: kind, Status: StatusSkipped, Error: reason})
}

// PhaseFinished фиксирует итог фазы
func (r *RunReporter) PhaseFinished(phase string, status PhaseStatus, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.phase(phase, "")
	p.Status = status
	p.Elapsed = r.now().Sub(p.Started)
	if err != nil {
		p.Error = err.Error()
	}
	if r.logger != nil {
		if status == StatusSuccess {
			r.logger.LogPhaseComplete(phase, p.Submitted, p.Written, p.Elapsed)
		} else {
			r.logger.Error("Фаза %s завершена со статусом %s: %v", phase, status, err)
		}
	}
	c := p.Counts
	r.emit(Event{Type: EventPhaseFinished, Phase: phase, Kind: p.Kind, Status: status, Counts: &c, Error: errString(err)})
}

// Phase возвращает копию статистики фазы
func (r *RunReporter) Phase(name string) (PhaseStats, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.phases[name]
	if !ok {
		return PhaseStats{}, false
	}
	return copyStats(p), true
}

// Snapshot возвращает текущую сводку запуска
func (r *RunReporter) Snapshot() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{RunID: r.runID, Started: r.started, Elapsed: r.now().Sub(r.started)}
	for _, name := range r.order {
		s.Phases = append(s.Phases, copyStats(r.phases[name]))
	}
	return s
}

func copyStats(p *PhaseStats) PhaseStats {
	c := *p
	c.FailedBatches = append([]BatchRange(nil), p.FailedBatches...)
	if p.ByEdgeType != nil {
		c.ByEdgeType = make(map[string]Counts, len(p.ByEdgeType))
		for k, v := range p.ByEdgeType {
			c.ByEdgeType[k] = v
		}
	}
	return c
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Package load записывает узлы и связи в графовое хранилище пакетами.
package load

import (
	"errors"
	"fmt"
	"strings"

	"github.com/LilVoxy/budget_graph/ETL/report"
)

// ErrNoRecords источник не вернул ни одной записи
var ErrNoRecords = errors.New("источник не вернул ни одной записи")

// PhaseError пакет фазы не записан после всех повторов. Фаза прерывается
type PhaseError struct {
	Phase    string
	Batch    report.BatchRange
	Attempts int
	Err      error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("фаза %s: пакет %s не записан после %d попыток: %v", e.Phase, e.Batch, e.Attempts, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// ConstraintError ограничение уникальности не установлено. Синхронизация прекращается
type ConstraintError struct {
	Label string
	Err   error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("ошибка при установке ограничения для %s: %v", e.Label, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// SyncError синхронизация завершилась, но часть фаз прервана
type SyncError struct {
	Failed []string
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("прервано фаз: %d (%s)", len(e.Failed), strings.Join(e.Failed, ", "))
}

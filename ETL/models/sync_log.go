package models

import (
	"time"
)

// Статусы запуска синхронизации
const (
	RunStatusInProgress = "in_progress"
	RunStatusSuccess    = "success"
	RunStatusPartial    = "partial"
	RunStatusFailed     = "failed"
)

// SyncRunLog представляет запись о запуске синхронизации графа
type SyncRunLog struct {
	ID                   int       `json:"id"`
	RunID                string    `json:"run_id"`
	StartTime            time.Time `json:"start_time"`
	EndTime              time.Time `json:"end_time"`
	Status               string    `json:"status"` // "success", "partial", "failed", "in_progress"
	NodesWritten         int64     `json:"nodes_written"`
	EdgesWritten         int64     `json:"edges_written"`
	Unresolved           int64     `json:"unresolved"`
	FailedPhases         int       `json:"failed_phases"`
	ErrorMessage         string    `json:"error_message,omitempty"`
	ExecutionTimeSeconds float64   `json:"execution_time_seconds"`
}

// PhaseLog итог отдельной фазы запуска
type PhaseLog struct {
	RunID          string  `json:"run_id"`
	Phase          string  `json:"phase"`
	Kind           string  `json:"kind"`
	Status         string  `json:"status"`
	Submitted      int64   `json:"submitted"`
	Written        int64   `json:"written"`
	Unresolved     int64   `json:"unresolved"`
	Absent         int64   `json:"absent"`
	Malformed      int64   `json:"malformed"`
	Duplicates     int64   `json:"duplicates"`
	FailedBatches  string  `json:"failed_batches,omitempty"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

// SyncLogRepository представляет репозиторий журнала синхронизаций
type SyncLogRepository interface {
	// CreateLogEntry создает новую запись о запуске
	CreateLogEntry(runID string, startTime time.Time) (int, error)

	// UpdateLogEntry фиксирует итог запуска
	UpdateLogEntry(run *SyncRunLog) error

	// RecordPhases сохраняет итоги фаз запуска
	RecordPhases(phases []PhaseLog) error

	// GetLastSuccessfulRun получает информацию о последнем успешном запуске
	GetLastSuccessfulRun() (*SyncRunLog, error)

	// GetSyncRunStats получает запуски за последние days дней
	GetSyncRunStats(days int) ([]SyncRunLog, error)
}

// SyncStateMonitor предоставляет сводку о состоянии синхронизаций
type SyncStateMonitor struct {
	LastSuccessfulRun       *SyncRunLog `json:"last_successful_run"`
	CurrentRun              *SyncRunLog `json:"current_run,omitempty"`
	TotalSuccessfulRuns     int         `json:"total_successful_runs"`
	TotalFailedRuns         int         `json:"total_failed_runs"`
	AvgExecutionTimeSeconds float64     `json:"avg_execution_time_seconds"`
}

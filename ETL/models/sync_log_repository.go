package models

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// MySQLSyncLogRepository реализация SyncLogRepository для MySQL
type MySQLSyncLogRepository struct {
	db *sql.DB
}

// NewMySQLSyncLogRepository создает новый экземпляр MySQLSyncLogRepository
func NewMySQLSyncLogRepository(db *sql.DB) *MySQLSyncLogRepository {
	return &MySQLSyncLogRepository{
		db: db,
	}
}

// CreateSyncLogTables создает таблицы журнала, если они не существуют
func (r *MySQLSyncLogRepository) CreateSyncLogTables() error {
	runTable := `
	CREATE TABLE IF NOT EXISTS sync_run_log (
		id INT AUTO_INCREMENT PRIMARY KEY,
		run_id CHAR(36) NOT NULL UNIQUE,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NULL,
		status ENUM('success', 'partial', 'failed', 'in_progress') NOT NULL DEFAULT 'in_progress',
		nodes_written BIGINT DEFAULT 0,
		edges_written BIGINT DEFAULT 0,
		unresolved BIGINT DEFAULT 0,
		failed_phases INT DEFAULT 0,
		error_message TEXT,
		execution_time_seconds FLOAT
	);
	`
	if _, err := r.db.Exec(runTable); err != nil {
		return fmt.Errorf("ошибка при создании таблицы sync_run_log: %w", err)
	}

	phaseTable := `
	CREATE TABLE IF NOT EXISTS sync_phase_log (
		id INT AUTO_INCREMENT PRIMARY KEY,
		run_id CHAR(36) NOT NULL,
		phase VARCHAR(128) NOT NULL,
		kind VARCHAR(32) NOT NULL,
		status VARCHAR(32) NOT NULL,
		submitted BIGINT DEFAULT 0,
		written BIGINT DEFAULT 0,
		unresolved BIGINT DEFAULT 0,
		absent BIGINT DEFAULT 0,
		malformed BIGINT DEFAULT 0,
		duplicates BIGINT DEFAULT 0,
		failed_batches TEXT,
		elapsed_seconds FLOAT,
		INDEX idx_sync_phase_run (run_id)
	);
	`
	if _, err := r.db.Exec(phaseTable); err != nil {
		return fmt.Errorf("ошибка при создании таблицы sync_phase_log: %w", err)
	}

	return nil
}

// CreateLogEntry создает новую запись о запуске синхронизации
func (r *MySQLSyncLogRepository) CreateLogEntry(runID string, startTime time.Time) (int, error) {
	query := `
	INSERT INTO sync_run_log (run_id, start_time, status)
	VALUES (?, ?, 'in_progress')
	`

	result, err := r.db.Exec(query, runID, startTime)
	if err != nil {
		return 0, fmt.Errorf("ошибка при создании записи о запуске синхронизации: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ошибка при получении ID созданной записи: %w", err)
	}

	return int(id), nil
}

// UpdateLogEntry фиксирует итог запуска
func (r *MySQLSyncLogRepository) UpdateLogEntry(run *SyncRunLog) error {
	// Рассчитываем время выполнения в секундах
	executionTime := run.EndTime.Sub(run.StartTime).Seconds()

	query := `
	UPDATE sync_run_log
	SET
		end_time = ?,
		status = ?,
		nodes_written = ?,
		edges_written = ?,
		unresolved = ?,
		failed_phases = ?,
		error_message = ?,
		execution_time_seconds = ?
	WHERE run_id = ?
	`

	_, err := r.db.Exec(
		query,
		run.EndTime,
		run.Status,
		run.NodesWritten,
		run.EdgesWritten,
		run.Unresolved,
		run.FailedPhases,
		run.ErrorMessage,
		executionTime,
		run.RunID,
	)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении записи о запуске синхронизации: %w", err)
	}

	return nil
}

// RecordPhases сохраняет итоги фаз одной транзакцией
func (r *MySQLSyncLogRepository) RecordPhases(phases []PhaseLog) error {
	if len(phases) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("ошибка при начале транзакции: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO sync_phase_log
		(run_id, phase, kind, status, submitted, written, unresolved,
		absent, malformed, duplicates, failed_batches, elapsed_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("ошибка при подготовке запроса: %w", err)
	}
	defer stmt.Close()

	for _, p := range phases {
		_, err := stmt.Exec(
			p.RunID,
			p.Phase,
			p.Kind,
			p.Status,
			p.Submitted,
			p.Written,
			p.Unresolved,
			p.Absent,
			p.Malformed,
			p.Duplicates,
			p.FailedBatches,
			p.ElapsedSeconds,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("ошибка при сохранении фазы %s: %w", p.Phase, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ошибка при фиксации транзакции: %w", err)
	}

	return nil
}

const selectRunColumns = `
	SELECT
		id, run_id, start_time, end_time, status,
		nodes_written, edges_written, unresolved, failed_phases,
		IFNULL(error_message, ''), IFNULL(execution_time_seconds, 0)
	FROM sync_run_log
`

func scanRun(row interface{ Scan(...any) error }) (*SyncRunLog, error) {
	var run SyncRunLog
	var endTime sql.NullTime
	err := row.Scan(
		&run.ID, &run.RunID, &run.StartTime, &endTime, &run.Status,
		&run.NodesWritten, &run.EdgesWritten, &run.Unresolved, &run.FailedPhases,
		&run.ErrorMessage, &run.ExecutionTimeSeconds,
	)
	if err != nil {
		return nil, err
	}
	if endTime.Valid {
		run.EndTime = endTime.Time
	}
	return &run, nil
}

// GetLastSuccessfulRun получает информацию о последнем успешном запуске
func (r *MySQLSyncLogRepository) GetLastSuccessfulRun() (*SyncRunLog, error) {
	query := selectRunColumns + `
	WHERE status = 'success'
	ORDER BY end_time DESC
	LIMIT 1
	`

	run, err := scanRun(r.db.QueryRow(query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Успешных запусков еще не было
		}
		return nil, fmt.Errorf("ошибка при получении последнего успешного запуска: %w", err)
	}

	return run, nil
}

// GetSyncRunStats получает запуски за последние days дней
func (r *MySQLSyncLogRepository) GetSyncRunStats(days int) ([]SyncRunLog, error) {
	query := selectRunColumns + `
	WHERE start_time >= DATE_SUB(NOW(), INTERVAL ? DAY)
	ORDER BY start_time DESC
	`

	rows, err := r.db.Query(query, days)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении статистики запусков: %w", err)
	}
	defer rows.Close()

	var runs []SyncRunLog
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка при сканировании записи о запуске: %w", err)
		}
		runs = append(runs, *run)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка после итерации по записям о запусках: %w", err)
	}

	return runs, nil
}

// GetSyncStateMonitor получает сводку о состоянии синхронизаций
func (r *MySQLSyncLogRepository) GetSyncStateMonitor() (*SyncStateMonitor, error) {
	lastSuccessful, err := r.GetLastSuccessfulRun()
	if err != nil {
		return nil, err
	}

	// Текущий запуск (если есть)
	var currentRun *SyncRunLog
	run, err := scanRun(r.db.QueryRow(selectRunColumns + `
	WHERE status = 'in_progress'
	ORDER BY start_time DESC
	LIMIT 1
	`))
	if err == nil {
		currentRun = run
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ошибка при получении текущего запуска: %w", err)
	}

	var totalSuccess, totalFailed sql.NullInt64
	var avgExecutionTime sql.NullFloat64
	err = r.db.QueryRow(`
		SELECT
			SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status IN ('failed', 'partial') THEN 1 ELSE 0 END),
			AVG(CASE WHEN status = 'success' THEN execution_time_seconds ELSE NULL END)
		FROM sync_run_log
	`).Scan(&totalSuccess, &totalFailed, &avgExecutionTime)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении статистики запусков: %w", err)
	}

	return &SyncStateMonitor{
		LastSuccessfulRun:       lastSuccessful,
		CurrentRun:              currentRun,
		TotalSuccessfulRuns:     int(totalSuccess.Int64),
		TotalFailedRuns:         int(totalFailed.Int64),
		AvgExecutionTimeSeconds: avgExecutionTime.Float64,
	}, nil
}

package models

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var runColumns = []string{
	"id", "run_id", "start_time", "end_time", "status",
	"nodes_written", "edges_written", "unresolved", "failed_phases",
	"error_message", "execution_time_seconds",
}

func newMockRepo(t *testing.T) (*MySQLSyncLogRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMySQLSyncLogRepository(db), mock
}

func TestCreateSyncLogTables(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sync_run_log").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sync_phase_log").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.CreateSyncLogTables())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLogEntry(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO sync_run_log").
		WithArgs("run-1", start).
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, err := repo.CreateLogEntry("run-1", start)
	require.NoError(t, err)
	assert.Equal(t, 7, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLogEntry(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	run := &SyncRunLog{
		RunID:        "run-1",
		StartTime:    start,
		EndTime:      start.Add(90 * time.Second),
		Status:       RunStatusPartial,
		NodesWritten: 100,
		EdgesWritten: 40,
		Unresolved:   3,
		FailedPhases: 1,
	}

	mock.ExpectExec("UPDATE sync_run_log").
		WithArgs(run.EndTime, "partial", int64(100), int64(40), int64(3), 1, "", 90.0, "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateLogEntry(run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPhases(t *testing.T) {
	repo, mock := newMockRepo(t)
	phases := []PhaseLog{
		{RunID: "run-1", Phase: "nodes:Region", Kind: "nodes", Status: "success", Submitted: 17, Written: 17},
		{RunID: "run-1", Phase: "edges:location", Kind: "edges", Status: "failed", FailedBatches: "0-4999"},
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare("INSERT INTO sync_phase_log")
	for _, p := range phases {
		prep.ExpectExec().
			WithArgs(p.RunID, p.Phase, p.Kind, p.Status, p.Submitted, p.Written, p.Unresolved,
				p.Absent, p.Malformed, p.Duplicates, p.FailedBatches, p.ElapsedSeconds).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.RecordPhases(phases))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPhasesEmpty(t *testing.T) {
	repo, mock := newMockRepo(t)
	require.NoError(t, repo.RecordPhases(nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLastSuccessfulRun(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("WHERE status = 'success'").
		WillReturnRows(sqlmock.NewRows(runColumns).
			AddRow(3, "run-3", start, start.Add(time.Minute), "success", 10, 20, 0, 0, "", 60.0))

	run, err := repo.GetLastSuccessfulRun()
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "run-3", run.RunID)
	assert.Equal(t, int64(20), run.EdgesWritten)
	assert.Equal(t, start.Add(time.Minute), run.EndTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLastSuccessfulRunNone(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("WHERE status = 'success'").WillReturnRows(sqlmock.NewRows(runColumns))

	run, err := repo.GetLastSuccessfulRun()
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestGetSyncRunStats(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery("DATE_SUB").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows(runColumns).
			AddRow(2, "run-2", start, nil, "in_progress", 0, 0, 0, 0, "", 0.0).
			AddRow(1, "run-1", start, start, "failed", 5, 0, 0, 2, "boom", 1.5))

	runs, err := repo.GetSyncRunStats(7)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].EndTime.IsZero())
	assert.Equal(t, "boom", runs[1].ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

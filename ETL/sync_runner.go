package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/LilVoxy/budget_graph/ETL/config"
	"github.com/LilVoxy/budget_graph/ETL/extractors"
	"github.com/LilVoxy/budget_graph/ETL/graph"
	"github.com/LilVoxy/budget_graph/ETL/load"
	"github.com/LilVoxy/budget_graph/ETL/models"
	"github.com/LilVoxy/budget_graph/ETL/report"
	"github.com/LilVoxy/budget_graph/ETL/schema"
	"github.com/LilVoxy/budget_graph/ETL/utils"
	"github.com/LilVoxy/budget_graph/routes"
	"github.com/LilVoxy/budget_graph/websocket"
	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Коды завершения процесса
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// Режимы работы
const (
	modeOnce      = "once"
	modeScheduled = "scheduled"
)

// cliOptions параметры командной строки
type cliOptions struct {
	Mode       string
	DataDir    string
	DryRun     bool
	Validate   bool
	StatusAddr string
	Workers    int
}

// parseFlags разбирает аргументы; пустые значения оставляют настройки окружения
func parseFlags(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("budget-graph-sync", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.Mode, "mode", modeOnce, "Режим работы: once или scheduled")
	fs.StringVar(&opts.DataDir, "data-dir", "", "Каталог с результатами конвертеров")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Синхронизация в память без подключения к Neo4j")
	fs.BoolVar(&opts.Validate, "validate", false, "Проверить размер графа после синхронизации")
	fs.StringVar(&opts.StatusAddr, "status-addr", "", "Адрес HTTP API состояния, например :8090")
	fs.IntVar(&opts.Workers, "workers", 0, "Число параллельных пакетов узлов")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	if fs.NArg() > 0 {
		return cliOptions{}, fmt.Errorf("лишние аргументы: %s", strings.Join(fs.Args(), " "))
	}
	if opts.Mode != modeOnce && opts.Mode != modeScheduled {
		return cliOptions{}, fmt.Errorf("неизвестный режим работы %q, доступные режимы: once, scheduled", opts.Mode)
	}
	if opts.Workers < 0 {
		return cliOptions{}, fmt.Errorf("-workers не может быть отрицательным: %d", opts.Workers)
	}
	return opts, nil
}

// apply переносит флаги в конфигурацию
func (o cliOptions) apply(c *config.SyncConfig) {
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if o.StatusAddr != "" {
		c.StatusAddr = o.StatusAddr
	}
	if o.Workers > 0 {
		c.Workers = o.Workers
	}
	if o.DryRun {
		c.JournalEnabled = false
	}
}

// SyncRunner связывает источник, хранилище, журнал и API состояния
type SyncRunner struct {
	config    config.SyncConfig
	logger    *utils.ETLLogger
	registry  *schema.Registry
	store     graph.Store
	counter   graph.Counter
	journalDB *sql.DB
	journal   models.SyncLogRepository
	history   routes.RunHistory
	manager   *load.SyncManager
	latest    *report.Latest
	progress  *websocket.Manager
	validate  bool
	stdout    io.Writer
}

// NewSyncRunner создает новый экземпляр SyncRunner
func NewSyncRunner(ctx context.Context, cfg config.SyncConfig, opts cliOptions, stdout io.Writer) (*SyncRunner, error) {
	logger, err := utils.NewETLLogger(cfg.LogDir, cfg.EnableDetailedLogging)
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании логгера: %w", err)
	}
	logger.Info("Инициализация Sync Runner")

	registry := schema.Default()

	extractor, err := extractors.NewExtractor(cfg.DataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("ошибка при открытии каталога данных: %w", err)
	}

	r := &SyncRunner{
		config:   cfg,
		logger:   logger,
		registry: registry,
		latest:   &report.Latest{},
		validate: opts.Validate,
		stdout:   stdout,
	}

	if opts.DryRun {
		logger.Info("Пробный запуск: запись в память, журнал отключен")
		mem := graph.NewMemoryStore()
		r.store, r.counter = mem, mem
	} else {
		driver, err := config.ConnectGraph(ctx, cfg.Graph)
		if err != nil {
			return nil, err
		}
		neo := graph.NewNeo4jStore(driver, cfg.Graph.Database, cfg.BatchTimeout)
		r.store, r.counter = neo, neo
	}

	if cfg.JournalEnabled {
		db, err := config.ConnectJournal(cfg.Journal)
		if err != nil {
			r.Close()
			return nil, err
		}
		repo := models.NewMySQLSyncLogRepository(db)
		if err := repo.CreateSyncLogTables(); err != nil {
			config.CloseJournal(db)
			r.Close()
			return nil, fmt.Errorf("ошибка при создании таблиц журнала: %w", err)
		}
		r.journalDB, r.journal, r.history = db, repo, repo
	}

	r.manager = load.NewSyncManager(registry, extractor, r.store, logger, load.Options{
		NodeBatchSize: cfg.NodeBatchSize,
		FactBatchSize: cfg.FactBatchSize,
		EdgeBatchSize: cfg.EdgeBatchSize,
		Workers:       cfg.Workers,
		Retry: load.RetryPolicy{
			Attempts:        cfg.RetryAttempts,
			InitialInterval: cfg.RetryInterval,
			MaxInterval:     load.DefaultRetryPolicy().MaxInterval,
			BatchTimeout:    cfg.BatchTimeout,
		},
		BatchesPerSecond: cfg.BatchesPerSecond,
	})
	r.progress = websocket.NewManager(r.latest, logger)

	return r, nil
}

// Close закрывает соединения с хранилищем и журналом
func (r *SyncRunner) Close() {
	r.logger.Info("Завершение работы Sync Runner")
	if r.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.store.Close(ctx); err != nil {
			r.logger.Error("Ошибка при закрытии графового хранилища: %v", err)
		}
	}
	config.CloseJournal(r.journalDB)
}

// ExecuteSync выполняет один запуск синхронизации и фиксирует его в журнале
func (r *SyncRunner) ExecuteSync(ctx context.Context) (report.Summary, error) {
	runID := uuid.NewString()
	startTime := time.Now()
	r.logger.LogSyncStart(runID)

	reporter := report.NewRunReporter(runID, r.logger, r.progress)
	r.latest.Begin(reporter)
	defer r.latest.End()

	// Без журнала запуск продолжается
	journaled := false
	if r.journal != nil {
		if _, err := r.journal.CreateLogEntry(runID, startTime); err != nil {
			r.logger.Error("Ошибка при создании записи в журнале: %v", err)
		} else {
			journaled = true
		}
	}

	syncErr := r.manager.Sync(ctx, reporter)
	summary := reporter.Snapshot()
	totals := summary.Totals()

	r.progress.PublishSummary(summary)
	if journaled {
		r.recordRun(summary, startTime, syncErr)
	}

	r.logger.LogSyncComplete(startTime, totals.NodesWritten, totals.EdgesWritten)
	if syncErr != nil {
		r.logger.Error("Синхронизация %s завершилась с ошибкой: %v", runID, syncErr)
	}

	if _, err := summary.WriteTo(r.stdout); err != nil {
		r.logger.Warn("Ошибка при выводе сводки: %v", err)
	}
	if r.validate && !errors.Is(syncErr, context.Canceled) {
		r.validateGraph(ctx)
	}
	return summary, syncErr
}

// recordRun сохраняет итог запуска и его фаз
func (r *SyncRunner) recordRun(summary report.Summary, startTime time.Time, syncErr error) {
	totals := summary.Totals()
	runLog := &models.SyncRunLog{
		RunID:        summary.RunID,
		StartTime:    startTime,
		EndTime:      time.Now(),
		Status:       runStatus(summary, syncErr),
		NodesWritten: totals.NodesWritten,
		EdgesWritten: totals.EdgesWritten,
		Unresolved:   totals.Unresolved,
		FailedPhases: totals.FailedPhases,
	}
	if syncErr != nil {
		runLog.ErrorMessage = syncErr.Error()
	}

	if err := r.journal.UpdateLogEntry(runLog); err != nil {
		r.logger.Error("Ошибка при обновлении записи в журнале: %v", err)
	}
	if err := r.journal.RecordPhases(phaseLogs(summary)); err != nil {
		r.logger.Error("Ошибка при сохранении фаз в журнале: %v", err)
	}
}

// validateGraph печатает размер графа и пустые ожидаемые метки и связи
func (r *SyncRunner) validateGraph(ctx context.Context) {
	var labels []string
	for _, c := range r.registry.Constraints() {
		labels = append(labels, c.Label)
	}

	v, err := graph.Validate(ctx, r.counter, labels, r.registry.EdgeSpecs())
	if err != nil {
		r.logger.Error("Ошибка проверки графа: %v", err)
		return
	}
	if !v.OK() {
		r.logger.Warn("В графе нет %d меток и %d типов связей", len(v.EmptyLabels), len(v.EmptyEdges))
	}
	fmt.Fprintln(r.stdout)
	if _, err := v.WriteTo(r.stdout); err != nil {
		r.logger.Warn("Ошибка при выводе проверки: %v", err)
	}
}

// runStatus статус запуска для журнала
func runStatus(summary report.Summary, syncErr error) string {
	var syncFailure *load.SyncError
	switch {
	case syncErr == nil && !summary.HasFailures():
		return models.RunStatusSuccess
	case errors.As(syncErr, &syncFailure):
		return models.RunStatusPartial
	default:
		return models.RunStatusFailed
	}
}

// phaseLogs переводит сводку в строки журнала фаз
func phaseLogs(summary report.Summary) []models.PhaseLog {
	logs := make([]models.PhaseLog, 0, len(summary.Phases))
	for _, p := range summary.Phases {
		batches := make([]string, len(p.FailedBatches))
		for i, b := range p.FailedBatches {
			batches[i] = b.String()
		}
		logs = append(logs, models.PhaseLog{
			RunID:          summary.RunID,
			Phase:          p.Name,
			Kind:           string(p.Kind),
			Status:         string(p.Status),
			Submitted:      p.Submitted,
			Written:        p.Written,
			Unresolved:     p.Unresolved,
			Absent:         p.Absent,
			Malformed:      p.Malformed,
			Duplicates:     p.Duplicates,
			FailedBatches:  strings.Join(batches, ","),
			ElapsedSeconds: p.Elapsed.Seconds(),
		})
	}
	return logs
}

// exitCode код завершения по итогу запуска
func exitCode(summary report.Summary, err error) int {
	if err != nil || summary.HasFailures() {
		return exitFailed
	}
	return exitOK
}

// StartStatusServer запускает API состояния и ленту хода синхронизации до отмены ctx
func (r *SyncRunner) StartStatusServer(ctx context.Context) {
	if r.config.StatusAddr == "" {
		return
	}

	go r.progress.Run(ctx)

	router := mux.NewRouter()
	routes.SetupRoutes(router, routes.Dependencies{
		Status:   r.latest,
		Journal:  r.history,
		Graph:    r.counter,
		Progress: r.progress,
	})

	server := &http.Server{
		Addr:         r.config.StatusAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		r.logger.Info("API состояния запущено на %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("Ошибка запуска API состояния: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("Ошибка остановки API состояния: %v", err)
		}
	}()
}

// StartScheduler запускает синхронизацию по расписанию до отмены ctx
func (r *SyncRunner) StartScheduler(ctx context.Context) error {
	scheduler := gocron.NewScheduler(time.UTC)
	// Следующий запуск не начинается, пока идет предыдущий
	scheduler.SingletonModeAll()

	r.logger.Info("Запуск планировщика синхронизации с интервалом %v", r.config.RunInterval)

	_, err := scheduler.Every(r.config.RunInterval).Do(func() {
		r.logger.Info("Запланированный запуск синхронизации")
		if _, err := r.ExecuteSync(ctx); err != nil {
			r.logger.Error("Ошибка при выполнении запланированной синхронизации: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("ошибка при настройке планировщика: %w", err)
	}

	scheduler.StartAsync()

	<-ctx.Done()

	scheduler.Stop()
	r.logger.Info("Планировщик синхронизации остановлен")
	return nil
}

// run разбирает аргументы, выполняет синхронизацию и возвращает код завершения
func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	opts.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	// Отмена по сигналу останавливает запуск между пакетами
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner, err := NewSyncRunner(ctx, cfg, opts, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Ошибка при создании Sync Runner: %v\n", err)
		return exitFailed
	}
	defer runner.Close()

	runner.StartStatusServer(ctx)

	if opts.Mode == modeScheduled {
		if err := runner.StartScheduler(ctx); err != nil {
			fmt.Fprintln(stderr, err)
			return exitFailed
		}
		return exitOK
	}

	summary, err := runner.ExecuteSync(ctx)
	return exitCode(summary, err)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

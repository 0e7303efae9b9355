package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// ETLLogger представляет логгер для процесса синхронизации
type ETLLogger struct {
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
	debugLogger *log.Logger
	isVerbose   bool
	echo        bool
}

// NewETLLogger создает новый экземпляр логгера.
// Если logDir не пуст, сообщения дополнительно пишутся в дневной файл sync_log_<дата>.log
func NewETLLogger(logDir string, verbose bool) (*ETLLogger, error) {
	if logDir == "" {
		l := NewETLLoggerWithWriter(io.Discard, verbose)
		l.echo = true
		return l, nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог логов: %w", err)
	}

	// Создаем или открываем лог-файл для записи
	currentTime := time.Now().Format("2006-01-02")
	logFileName := filepath.Join(logDir, fmt.Sprintf("sync_log_%s.log", currentTime))

	file, err := os.OpenFile(logFileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть или создать файл лога: %w", err)
	}

	l := NewETLLoggerWithWriter(file, verbose)
	l.echo = true
	return l, nil
}

// NewETLLoggerWithWriter создает логгер, пишущий только в w
func NewETLLoggerWithWriter(w io.Writer, verbose bool) *ETLLogger {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	return &ETLLogger{
		infoLogger:  log.New(w, "INFO: ", flags),
		warnLogger:  log.New(w, "WARN: ", flags),
		errorLogger: log.New(w, "ERROR: ", flags),
		debugLogger: log.New(w, "DEBUG: ", flags),
		isVerbose:   verbose,
	}
}

func (l *ETLLogger) write(logger *log.Logger, level, format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	logger.Output(3, msg)

	// Также выводим в стандартный поток ошибок
	if l.echo {
		log.Println(level, msg)
	}
}

// Info логирует информационное сообщение
func (l *ETLLogger) Info(format string, v ...interface{}) {
	l.write(l.infoLogger, "INFO:", format, v...)
}

// Warn логирует предупреждение (проблемы качества данных, отсутствующие файлы)
func (l *ETLLogger) Warn(format string, v ...interface{}) {
	l.write(l.warnLogger, "WARN:", format, v...)
}

// Error логирует сообщение об ошибке
func (l *ETLLogger) Error(format string, v ...interface{}) {
	l.write(l.errorLogger, "ERROR:", format, v...)
}

// Debug логирует отладочное сообщение (только если включен verbose режим)
func (l *ETLLogger) Debug(format string, v ...interface{}) {
	if !l.isVerbose {
		return
	}
	l.write(l.debugLogger, "DEBUG:", format, v...)
}

// LogSyncStart логирует начало синхронизации
func (l *ETLLogger) LogSyncStart(runID string) {
	l.Info("Начало синхронизации графа (запуск %s)", runID)
}

// LogSyncComplete логирует завершение синхронизации
func (l *ETLLogger) LogSyncComplete(startTime time.Time, nodes, edges int64) {
	duration := time.Since(startTime)
	l.Info("Синхронизация завершена. Длительность: %v", duration)
	l.Info("Записано: %d узлов, %d связей", nodes, edges)
}

// LogPhaseStart логирует начало фазы
func (l *ETLLogger) LogPhaseStart(phase string) {
	l.Info("Начало фазы %s", phase)
}

// LogPhaseComplete логирует завершение фазы
func (l *ETLLogger) LogPhaseComplete(phase string, submitted, written int64, duration time.Duration) {
	l.Info("Фаза %s завершена. Длительность: %v", phase, duration)
	l.Info("Передано: %d, записано: %d", submitted, written)
}

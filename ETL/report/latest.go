package report

import "sync"

// Latest хранит репортер текущего или последнего запуска
type Latest struct {
	mu       sync.RWMutex
	reporter *RunReporter
	running  bool
}

// Begin делает r текущим запуском
func (l *Latest) Begin(r *RunReporter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reporter = r
	l.running = true
}

// End отмечает, что текущий запуск завершен
func (l *Latest) End() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.running = false
}

// Current возвращает сводку текущего или последнего запуска.
// ok равно false, если запусков еще не было
func (l *Latest) Current() (s Summary, running bool, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.reporter == nil {
		return Summary{}, false, false
	}
	return l.reporter.Snapshot(), l.running, true
}

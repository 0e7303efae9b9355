// routes/status_handlers.go
package routes

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/LilVoxy/budget_graph/ETL/graph"
	"github.com/LilVoxy/budget_graph/ETL/models"
	"github.com/LilVoxy/budget_graph/ETL/report"
	"github.com/LilVoxy/budget_graph/websocket"
)

// Период журнала по умолчанию и предел для параметра days
const (
	defaultRunDays = 7
	maxRunDays     = 365
)

// RunHistory чтение журнала запусков
type RunHistory interface {
	GetSyncRunStats(days int) ([]models.SyncRunLog, error)
	GetSyncStateMonitor() (*models.SyncStateMonitor, error)
}

// StatusResponse ответ API о текущем запуске
type StatusResponse struct {
	Running bool           `json:"running"`
	Summary report.Summary `json:"summary"`
	Totals  report.Totals  `json:"totals"`
}

// RunsResponse ответ API журнала запусков
type RunsResponse struct {
	Days int                 `json:"days"`
	Runs []models.SyncRunLog `json:"runs"`
}

// GraphCountsResponse число узлов по меткам и связей по типам
type GraphCountsResponse struct {
	Nodes         map[string]int64 `json:"nodes"`
	Relationships map[string]int64 `json:"relationships"`
}

// HealthHandler отвечает, что процесс жив
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// GetStatusHandler возвращает сводку текущего или последнего запуска
func GetStatusHandler(status websocket.SnapshotSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if status == nil {
			http.Error(w, "Состояние запусков недоступно в этом процессе", http.StatusServiceUnavailable)
			return
		}

		s, running, ok := status.Current()
		if !ok {
			http.Error(w, "Запусков еще не было", http.StatusNotFound)
			return
		}

		writeJSON(w, StatusResponse{Running: running, Summary: s, Totals: s.Totals()})
	}
}

// GetRunsHandler возвращает запуски за последние days дней
func GetRunsHandler(journal RunHistory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if journal == nil {
			http.Error(w, "Журнал запусков отключен", http.StatusServiceUnavailable)
			return
		}

		days := defaultRunDays
		if daysStr := r.URL.Query().Get("days"); daysStr != "" {
			n, err := strconv.Atoi(daysStr)
			if err != nil || n <= 0 || n > maxRunDays {
				http.Error(w, "Неверное значение параметра days", http.StatusBadRequest)
				return
			}
			days = n
		}

		runs, err := journal.GetSyncRunStats(days)
		if err != nil {
			log.Printf("❌ Ошибка при получении журнала запусков: %v", err)
			http.Error(w, "Ошибка при получении журнала запусков", http.StatusInternalServerError)
			return
		}
		if runs == nil {
			runs = []models.SyncRunLog{}
		}

		writeJSON(w, RunsResponse{Days: days, Runs: runs})
	}
}

// GetRunsSummaryHandler возвращает сводку по всем запускам
func GetRunsSummaryHandler(journal RunHistory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if journal == nil {
			http.Error(w, "Журнал запусков отключен", http.StatusServiceUnavailable)
			return
		}

		monitor, err := journal.GetSyncStateMonitor()
		if err != nil {
			log.Printf("❌ Ошибка при получении сводки запусков: %v", err)
			http.Error(w, "Ошибка при получении сводки запусков", http.StatusInternalServerError)
			return
		}

		writeJSON(w, monitor)
	}
}

// GetGraphCountsHandler возвращает размер графа
func GetGraphCountsHandler(counter graph.Counter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if counter == nil {
			http.Error(w, "Графовое хранилище недоступно", http.StatusServiceUnavailable)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		nodes, err := counter.CountNodes(ctx)
		if err != nil {
			log.Printf("❌ Ошибка при подсчете узлов: %v", err)
			http.Error(w, "Ошибка при подсчете узлов", http.StatusBadGateway)
			return
		}
		rels, err := counter.CountRelationships(ctx)
		if err != nil {
			log.Printf("❌ Ошибка при подсчете связей: %v", err)
			http.Error(w, "Ошибка при подсчете связей", http.StatusBadGateway)
			return
		}

		writeJSON(w, GraphCountsResponse{Nodes: nodes, Relationships: rels})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	// Устанавливаем заголовок для JSON
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("❌ Ошибка при кодировании JSON: %v", err)
		http.Error(w, "Ошибка при формировании ответа", http.StatusInternalServerError)
	}
}

// routes/api_routes.go
package routes

import (
	"net/http"

	"github.com/LilVoxy/budget_graph/ETL/graph"
	"github.com/LilVoxy/budget_graph/websocket"
	"github.com/gorilla/mux"
)

// Dependencies источники данных API. Любое поле может быть nil,
// тогда соответствующий маршрут отвечает 503 или не регистрируется
type Dependencies struct {
	Status   websocket.SnapshotSource
	Journal  RunHistory
	Graph    graph.Counter
	Progress *websocket.Manager
}

// SetupRoutes настраивает все маршруты API и WebSocket
func SetupRoutes(router *mux.Router, deps Dependencies) {
	// Применяем CORS middleware
	router.Use(CORSMiddleware)

	// Лента хода синхронизации
	if deps.Progress != nil {
		router.HandleFunc("/ws/progress", deps.Progress.HandleProgress)
	}

	router.HandleFunc("/api/health", HealthHandler).Methods("GET", "OPTIONS")

	// Текущий запуск
	router.HandleFunc("/api/status", GetStatusHandler(deps.Status)).Methods("GET", "OPTIONS")

	// Журнал запусков
	router.HandleFunc("/api/runs", GetRunsHandler(deps.Journal)).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/runs/summary", GetRunsSummaryHandler(deps.Journal)).Methods("GET", "OPTIONS")

	// Размер графа
	router.HandleFunc("/api/graph/counts", GetGraphCountsHandler(deps.Graph)).Methods("GET", "OPTIONS")
}

// CORSMiddleware разрешает запросы с любых источников
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

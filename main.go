// main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LilVoxy/budget_graph/ETL/config"
	"github.com/LilVoxy/budget_graph/ETL/graph"
	"github.com/LilVoxy/budget_graph/ETL/models"
	"github.com/LilVoxy/budget_graph/routes"
	"github.com/gorilla/mux"
)

// Сервер мониторинга: журнал запусков и размер графа без запуска синхронизации.
// Ход текущего запуска отдает сам процесс синхронизации (-status-addr)
func main() {
	fmt.Println("Запуск сервера мониторинга...")

	cfg, err := config.GetConfig()
	if err != nil {
		log.Fatalf("❌ Ошибка конфигурации: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var deps routes.Dependencies

	// Журнал запусков
	if cfg.JournalEnabled {
		db, err := config.ConnectJournal(cfg.Journal)
		if err != nil {
			log.Fatalf("❌ Не удалось подключиться к журналу: %v", err)
		}
		defer config.CloseJournal(db)
		deps.Journal = models.NewMySQLSyncLogRepository(db)
	} else {
		log.Println("⚠️ Журнал запусков отключен (SYNC_JOURNAL_ENABLED)")
	}

	// Графовое хранилище нужно только для подсчета узлов и связей
	driver, err := config.ConnectGraph(ctx, cfg.Graph)
	if err != nil {
		log.Printf("⚠️ Neo4j недоступен, размер графа не будет отдаваться: %v", err)
	} else {
		store := graph.NewNeo4jStore(driver, cfg.Graph.Database, cfg.BatchTimeout)
		defer store.Close(context.Background())
		deps.Graph = store
	}

	router := mux.NewRouter()
	routes.SetupRoutes(router, deps)

	addr := cfg.StatusAddr
	if addr == "" {
		addr = ":8080"
	}

	// Настраиваем сервер
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запускаем сервер в отдельной горутине
	go func() {
		log.Printf("✅ Сервер запущен на http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Ошибка запуска сервера: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()
	log.Println("⚠️ Получен сигнал завершения, закрываем соединения...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Ошибка остановки сервера: %v", err)
	}

	log.Println("👋 Сервер остановлен")
}

package config

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ConnectGraph создает драйвер Neo4j и проверяет соединение
func ConnectGraph(ctx context.Context, config GraphConfig) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(config.URI, neo4j.BasicAuth(config.User, config.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к Neo4j: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Проверка подключения
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("не удалось установить соединение с Neo4j %s: %w", config.URI, err)
	}

	log.Printf("Успешное подключение к Neo4j %s", config.URI)
	return driver, nil
}

// JournalDSN возвращает строку подключения к базе журнала
func JournalDSN(config DatabaseConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		config.User,
		config.Password,
		config.Host,
		config.Port,
		config.DBName,
	)
}

// ConnectJournal устанавливает подключение к базе журнала запусков
func ConnectJournal(config DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open(config.Driver, JournalDSN(config))
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе журнала: %w", err)
	}

	// Настройка параметров подключения
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось установить соединение с базой журнала: %w", err)
	}

	log.Println("Успешное подключение к базе журнала")
	return db, nil
}

// CloseJournal закрывает подключение к базе журнала
func CloseJournal(db *sql.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		log.Printf("Ошибка при закрытии соединения с базой журнала: %v", err)
	}
}

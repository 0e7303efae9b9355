// Package graph содержит клиентов графового хранилища: Neo4j и хранилище в памяти.
package graph

import (
	"context"

	"github.com/LilVoxy/budget_graph/ETL/models"
)

// Store минимальный набор операций, который движок синхронизации требует от хранилища
type Store interface {
	// EnsureConstraint объявляет ограничение уникальности, если его еще нет
	EnsureConstraint(ctx context.Context, label string, keyFields []string) error

	// UpsertNodes создает или обновляет узлы одной метки одной транзакцией
	UpsertNodes(ctx context.Context, label string, keyFields []string, items []models.NodeItem) (UpsertResult, error)

	// UpsertEdges создает отсутствующие связи одного типа одной транзакцией.
	// Связь, у которой не найден один из концов, не применяется
	UpsertEdges(ctx context.Context, spec models.EdgeSpec, edges []models.Edge) (UpsertResult, error)

	// Close освобождает ресурсы клиента
	Close(ctx context.Context) error
}

// Counter возвращает количество узлов по меткам и связей по типам
type Counter interface {
	CountNodes(ctx context.Context) (map[string]int64, error)
	CountRelationships(ctx context.Context) (map[string]int64, error)
}

// UpsertResult результат пакетной операции: признак применения для каждого элемента
type UpsertResult struct {
	Applied []bool
}

// Written возвращает количество примененных элементов
func (r UpsertResult) Written() int {
	n := 0
	for _, ok := range r.Applied {
		if ok {
			n++
		}
	}
	return n
}

// Failed возвращает количество неприменных элементов
func (r UpsertResult) Failed() int {
	return len(r.Applied) - r.Written()
}

func resultFromIndexes(n int, idx []int64) UpsertResult {
	applied := make([]bool, n)
	for _, i := range idx {
		if i >= 0 && int(i) < n {
			applied[i] = true
		}
	}
	return UpsertResult{Applied: applied}
}

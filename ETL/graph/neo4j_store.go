package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/LilVoxy/budget_graph/ETL/models"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jStore реализация Store поверх драйвера Neo4j
type Neo4jStore struct {
	driver    neo4j.DriverWithContext
	database  string
	txTimeout time.Duration
}

// NewNeo4jStore создает новый экземпляр Neo4jStore
func NewNeo4jStore(driver neo4j.DriverWithContext, database string, txTimeout time.Duration) *Neo4jStore {
	return &Neo4jStore{
		driver:    driver,
		database:  database,
		txTimeout: txTimeout,
	}
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

func (s *Neo4jStore) txConfig() []func(*neo4j.TransactionConfig) {
	if s.txTimeout <= 0 {
		return nil
	}
	return []func(*neo4j.TransactionConfig){neo4j.WithTxTimeout(s.txTimeout)}
}

// EnsureConstraint объявляет ограничение уникальности (CREATE CONSTRAINT IF NOT EXISTS)
func (s *Neo4jStore) EnsureConstraint(ctx context.Context, label string, keyFields []string) error {
	query, err := constraintQuery(label, keyFields)
	if err != nil {
		return err
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	res, err := session.Run(ctx, query, nil, s.txConfig()...)
	if err == nil {
		_, err = res.Consume(ctx)
	}
	if err != nil && !IsConstraintExists(err) {
		return fmt.Errorf("ошибка при создании ограничения для %s: %w", label, err)
	}
	return nil
}

// UpsertNodes выполняет UNWIND/MERGE для пакета узлов одной транзакцией
func (s *Neo4jStore) UpsertNodes(ctx context.Context, label string, keyFields []string, items []models.NodeItem) (UpsertResult, error) {
	if len(items) == 0 {
		return UpsertResult{}, nil
	}
	query, err := nodeUpsertQuery(label, keyFields)
	if err != nil {
		return UpsertResult{}, err
	}

	rows := make([]map[string]any, len(items))
	for i, item := range items {
		rows[i] = map[string]any{
			"idx":   int64(i),
			"key":   item.Key,
			"props": item.Properties,
		}
	}

	idx, err := s.writeRows(ctx, query, rows)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("ошибка при записи узлов %s: %w", label, err)
	}
	return resultFromIndexes(len(items), idx), nil
}

// UpsertEdges выполняет MATCH/MATCH/MERGE для пакета связей одной транзакцией
func (s *Neo4jStore) UpsertEdges(ctx context.Context, spec models.EdgeSpec, edges []models.Edge) (UpsertResult, error) {
	if len(edges) == 0 {
		return UpsertResult{}, nil
	}
	fromKeys := sortedKeys(edges[0].From)
	toKeys := sortedKeys(edges[0].To)

	query, err := edgeUpsertQuery(spec.Type, spec.FromLabel, fromKeys, spec.ToLabel, toKeys)
	if err != nil {
		return UpsertResult{}, err
	}

	rows := make([]map[string]any, len(edges))
	for i, e := range edges {
		rows[i] = map[string]any{
			"idx":  int64(i),
			"from": stringMap(e.From),
			"to":   stringMap(e.To),
		}
	}

	idx, err := s.writeRows(ctx, query, rows)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("ошибка при записи связей %s: %w", spec, err)
	}
	return resultFromIndexes(len(edges), idx), nil
}

// writeRows выполняет запрос с параметром $rows и собирает возвращенные idx
func (s *Neo4jStore) writeRows(ctx context.Context, query string, rows []map[string]any) ([]int64, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"rows": rows})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		idx := make([]int64, 0, len(records))
		for _, rec := range records {
			v, ok := rec.Get("idx")
			if !ok {
				continue
			}
			if i, ok := v.(int64); ok {
				idx = append(idx, i)
			}
		}
		return idx, nil
	}, s.txConfig()...)
	if err != nil {
		return nil, err
	}
	return out.([]int64), nil
}

// CountNodes возвращает количество узлов по первой метке
func (s *Neo4jStore) CountNodes(ctx context.Context) (map[string]int64, error) {
	return s.countBy(ctx, `MATCH (n) RETURN labels(n)[0] AS name, count(n) AS total`)
}

// CountRelationships возвращает количество связей по типам
func (s *Neo4jStore) CountRelationships(ctx context.Context) (map[string]int64, error) {
	return s.countBy(ctx, `MATCH ()-[r]->() RETURN type(r) AS name, count(r) AS total`)
}

func (s *Neo4jStore) countBy(ctx context.Context, query string) (map[string]int64, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		counts := make(map[string]int64, len(records))
		for _, rec := range records {
			name, _ := rec.Get("name")
			total, _ := rec.Get("total")
			n, _ := name.(string)
			c, _ := total.(int64)
			counts[n] += c
		}
		return counts, nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка при подсчете: %w", err)
	}
	return out.(map[string]int64), nil
}

// Close закрывает драйвер
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func stringMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

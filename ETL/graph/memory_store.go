package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/LilVoxy/budget_graph/ETL/models"
)

// MemoryStore хранилище графа в памяти с семантикой MERGE.
// Используется в режиме -dry-run и в тестах
type MemoryStore struct {
	mu          sync.Mutex
	constraints map[string][]string
	nodes       map[string]map[string]map[string]any // метка -> ключ -> свойства
	edges       map[string]map[string]struct{}       // тип связи -> тройка
	faults      map[string][]error                   // метка или тип связи -> очередь ошибок
	batches     map[string][]int
}

// NewMemoryStore создает новый экземпляр MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		constraints: make(map[string][]string),
		nodes:       make(map[string]map[string]map[string]any),
		edges:       make(map[string]map[string]struct{}),
		faults:      make(map[string][]error),
		batches:     make(map[string][]int),
	}
}

// FailNext ставит в очередь ошибки для следующих операций над меткой
// (узлы и ограничения) или типом связи
func (s *MemoryStore) FailNext(target string, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[target] = append(s.faults[target], errs...)
}

func (s *MemoryStore) popFault(target string) error {
	q := s.faults[target]
	if len(q) == 0 {
		return nil
	}
	s.faults[target] = q[1:]
	return q[0]
}

// EnsureConstraint запоминает ограничение уникальности
func (s *MemoryStore) EnsureConstraint(ctx context.Context, label string, keyFields []string) error {
	if _, err := constraintQuery(label, keyFields); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.popFault(label); err != nil {
		return err
	}
	if existing, ok := s.constraints[label]; ok && strings.Join(existing, ",") != strings.Join(keyFields, ",") {
		return fmt.Errorf("метка %s уже ограничена по %v", label, existing)
	}
	s.constraints[label] = append([]string(nil), keyFields...)
	return nil
}

// UpsertNodes создает или обновляет узлы. Без объявленного ограничения возвращает ErrNoConstraint
func (s *MemoryStore) UpsertNodes(ctx context.Context, label string, keyFields []string, items []models.NodeItem) (UpsertResult, error) {
	if err := ctx.Err(); err != nil {
		return UpsertResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.popFault(label); err != nil {
		return UpsertResult{}, err
	}
	declared, ok := s.constraints[label]
	if !ok || strings.Join(declared, ",") != strings.Join(keyFields, ",") {
		return UpsertResult{}, fmt.Errorf("%w: %s", ErrNoConstraint, label)
	}
	s.batches[label] = append(s.batches[label], len(items))

	byKey := s.nodes[label]
	if byKey == nil {
		byKey = make(map[string]map[string]any)
		s.nodes[label] = byKey
	}

	applied := make([]bool, len(items))
	for i, item := range items {
		key := models.CanonicalKey(item.Key)
		props := byKey[key]
		if props == nil {
			props = make(map[string]any, len(item.Properties)+len(item.Key))
			byKey[key] = props
		}
		for k, v := range item.Properties {
			if v == nil {
				delete(props, k)
				continue
			}
			props[k] = v
		}
		for k, v := range item.Key {
			props[k] = v
		}
		applied[i] = true
	}
	return UpsertResult{Applied: applied}, nil
}

// UpsertEdges создает отсутствующие связи; связь с ненайденным концом не применяется
func (s *MemoryStore) UpsertEdges(ctx context.Context, spec models.EdgeSpec, edges []models.Edge) (UpsertResult, error) {
	if err := ctx.Err(); err != nil {
		return UpsertResult{}, err
	}
	if _, err := edgeUpsertQuery(spec.Type, spec.FromLabel, []string{"k"}, spec.ToLabel, []string{"k"}); err != nil {
		return UpsertResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.popFault(spec.Type); err != nil {
		return UpsertResult{}, err
	}
	s.batches[spec.Type] = append(s.batches[spec.Type], len(edges))

	set := s.edges[spec.Type]
	if set == nil {
		set = make(map[string]struct{})
		s.edges[spec.Type] = set
	}

	applied := make([]bool, len(edges))
	for i, e := range edges {
		if !s.hasNode(spec.FromLabel, e.From) || !s.hasNode(spec.ToLabel, e.To) {
			continue
		}
		set[e.Triple()] = struct{}{}
		applied[i] = true
	}
	return UpsertResult{Applied: applied}, nil
}

func (s *MemoryStore) hasNode(label string, key map[string]string) bool {
	_, ok := s.nodes[label][models.CanonicalKey(key)]
	return ok
}

// Close ничего не делает
func (s *MemoryStore) Close(ctx context.Context) error { return nil }

// Constraints возвращает объявленные ограничения
func (s *MemoryStore) Constraints() map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string][]string, len(s.constraints))
	for k, v := range s.constraints {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// NodeCount возвращает количество узлов метки
func (s *MemoryStore) NodeCount(label string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes[label])
}

// Node возвращает копию свойств узла по ключу
func (s *MemoryStore) Node(label string, key map[string]string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	props, ok := s.nodes[label][models.CanonicalKey(key)]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out, true
}

// NodeKeys возвращает отсортированные ключи узлов метки
func (s *MemoryStore) NodeKeys(label string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.nodes[label]))
	for k := range s.nodes[label] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EdgeCount возвращает количество связей типа
func (s *MemoryStore) EdgeCount(edgeType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.edges[edgeType])
}

// HasEdge сообщает, что связь существует
func (s *MemoryStore) HasEdge(e models.Edge) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.edges[e.Spec.Type][e.Triple()]
	return ok
}

// BatchSizes возвращает размеры пакетов, примененных к метке или типу связи
func (s *MemoryStore) BatchSizes(target string) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.batches[target]...)
}

// CountNodes возвращает количество узлов по меткам
func (s *MemoryStore) CountNodes(ctx context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64, len(s.nodes))
	for label, byKey := range s.nodes {
		out[label] = int64(len(byKey))
	}
	return out, nil
}

// CountRelationships возвращает количество связей по типам
func (s *MemoryStore) CountRelationships(ctx context.Context) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int64, len(s.edges))
	for t, set := range s.edges {
		out[t] = int64(len(set))
	}
	return out, nil
}

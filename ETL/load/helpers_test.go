package load

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/LilVoxy/budget_graph/ETL/extractors"
	"github.com/LilVoxy/budget_graph/ETL/graph"
	"github.com/LilVoxy/budget_graph/ETL/models"
	"github.com/LilVoxy/budget_graph/ETL/report"
	"github.com/LilVoxy/budget_graph/ETL/schema"
	"github.com/LilVoxy/budget_graph/ETL/utils"
	"github.com/stretchr/testify/require"
)

var errPermanent = errors.New("синтаксическая ошибка запроса")

func testLogger() *utils.ETLLogger {
	return utils.NewETLLoggerWithWriter(io.Discard, false)
}

func fastRetry() RetryPolicy {
	return RetryPolicy{Attempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, BatchTimeout: time.Second}
}

func testOptions() Options {
	o := DefaultOptions()
	o.Retry = fastRetry()
	return o
}

func descriptorFor(t *testing.T, rt models.RecordType) schema.Descriptor {
	t.Helper()
	d, ok := schema.Default().Lookup(rt)
	require.True(t, ok)
	return d
}

// storeWithConstraints возвращает хранилище с объявленными ограничениями для всех меток
func storeWithConstraints(t *testing.T) *graph.MemoryStore {
	t.Helper()
	s := graph.NewMemoryStore()
	for _, c := range schema.Default().Constraints() {
		require.NoError(t, s.EnsureConstraint(context.Background(), c.Label, c.Fields))
	}
	return s
}

func regionItem(code, desc string) models.NodeItem {
	return models.NodeItem{
		Key:        map[string]any{"code": code},
		Properties: map[string]any{"code": code, "description": desc},
	}
}

// fakeSource источник записей в памяти
type fakeSource struct {
	dims     map[models.RecordType][]models.DimensionRecord
	sets     []extractors.FactSet
	facts    map[string][]models.FactRecord
	setsErr  error
	openErrs map[models.RecordType]error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		dims:     map[models.RecordType][]models.DimensionRecord{},
		facts:    map[string][]models.FactRecord{},
		openErrs: map[models.RecordType]error{},
	}
}

func (s *fakeSource) addDims(rt models.RecordType, recs ...models.DimensionRecord) {
	for i := range recs {
		recs[i].Type = rt
	}
	s.dims[rt] = append(s.dims[rt], recs...)
}

func (s *fakeSource) addFacts(year string, bt models.BudgetType, facts ...models.FactRecord) extractors.FactSet {
	set := extractors.FactSet{FiscalYear: year, BudgetType: bt}
	found := false
	for _, existing := range s.sets {
		if existing.Name() == set.Name() {
			found = true
		}
	}
	if !found {
		s.sets = append(s.sets, set)
	}
	s.facts[set.Name()] = append(s.facts[set.Name()], facts...)
	return set
}

func (s *fakeSource) Dimensions(desc schema.Descriptor) (models.Stream[models.DimensionRecord], error) {
	if err := s.openErrs[desc.RecordType]; err != nil {
		return nil, err
	}
	return models.NewSliceStream(s.dims[desc.RecordType]), nil
}

func (s *fakeSource) FactSets() ([]extractors.FactSet, error) {
	return s.sets, s.setsErr
}

func (s *fakeSource) Facts(desc schema.Descriptor, set extractors.FactSet) (models.Stream[models.FactRecord], error) {
	return models.NewSliceStream(s.facts[set.Name()]), nil
}

// faultyStore отказывает в записи узлов выбранных меток, не затрагивая ограничения
type faultyStore struct {
	*graph.MemoryStore
	mu        sync.Mutex
	failNodes map[string]error
}

func newFaultyStore() *faultyStore {
	return &faultyStore{MemoryStore: graph.NewMemoryStore(), failNodes: map[string]error{}}
}

func (s *faultyStore) failLabel(label string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNodes[label] = err
}

func (s *faultyStore) UpsertNodes(ctx context.Context, label string, keyFields []string, items []models.NodeItem) (graph.UpsertResult, error) {
	s.mu.Lock()
	err := s.failNodes[label]
	s.mu.Unlock()
	if err != nil {
		return graph.UpsertResult{}, err
	}
	return s.MemoryStore.UpsertNodes(ctx, label, keyFields, items)
}

func phaseStats(t *testing.T, r *report.RunReporter, name string) report.PhaseStats {
	t.Helper()
	p, ok := r.Phase(name)
	require.True(t, ok, "фаза %s не найдена", name)
	return p
}

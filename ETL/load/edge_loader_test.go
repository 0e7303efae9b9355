package load

import (
	"context"
	"fmt"
	"testing"

	"github.com/LilVoxy/budget_graph/ETL/graph"
	"github.com/LilVoxy/budget_graph/ETL/models"
	"github.com/LilVoxy/budget_graph/ETL/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fundedBy = models.EdgeSpec{Type: "FUNDED_BY", FromLabel: "BudgetRecord", ToLabel: "FundingSource"}

func fundedByEdge(id, code string) models.Edge {
	return models.Edge{Spec: fundedBy, From: map[string]string{"id": id}, To: map[string]string{"uacs_code": code}}
}

func seedBudgetAndFunding(t *testing.T, store *graph.MemoryStore, ids []string, codes []string) {
	t.Helper()
	ctx := context.Background()
	var facts []models.NodeItem
	for _, id := range ids {
		facts = append(facts, models.NodeItem{Key: map[string]any{"id": id}, Properties: map[string]any{"id": id}})
	}
	_, err := store.UpsertNodes(ctx, "BudgetRecord", []string{"id"}, facts)
	require.NoError(t, err)

	var sources []models.NodeItem
	for _, c := range codes {
		sources = append(sources, models.NodeItem{Key: map[string]any{"uacs_code": c}, Properties: map[string]any{"uacs_code": c}})
	}
	_, err = store.UpsertNodes(ctx, "FundingSource", []string{"uacs_code"}, sources)
	require.NoError(t, err)
}

func TestEdgeLoaderCountsUnresolvedEndpoints(t *testing.T) {
	store := storeWithConstraints(t)
	seedBudgetAndFunding(t, store, []string{"F1", "F2", "F3", "F4"}, []string{"01101101"})

	rep := report.NewRunReporter("run", nil)
	loader := NewEdgeLoader(store, rep, testLogger(), 100, fastRetry(), nil)

	edges := []models.Edge{
		fundedByEdge("F1", "01101101"),
		fundedByEdge("F2", "09999999"),
		fundedByEdge("F3", "09999998"),
		fundedByEdge("F4", "09999997"),
	}
	n, err := loader.Load(context.Background(), "edges:budget:2025:GAA", models.NewSliceStream(edges))
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.Equal(t, 1, store.EdgeCount("FUNDED_BY"))
	assert.True(t, store.HasEdge(edges[0]))

	p := phaseStats(t, rep, "edges:budget:2025:GAA")
	assert.Equal(t, int64(1), p.Written)
	assert.Equal(t, int64(3), p.Unresolved)
	assert.Equal(t, report.Counts{Submitted: 4, Written: 1, Unresolved: 3}, p.ByEdgeType["FUNDED_BY"])
}

func TestEdgeLoaderGroupsAndBatchesPerType(t *testing.T) {
	store := storeWithConstraints(t)
	ids := []string{"F1", "F2", "F3", "F4", "F5"}
	seedBudgetAndFunding(t, store, ids, []string{"01101101"})
	_, err := store.UpsertNodes(context.Background(), "Region", []string{"code"}, []models.NodeItem{regionItem("13", "NCR")})
	require.NoError(t, err)

	located := models.EdgeSpec{Type: "LOCATED_IN_REGION", FromLabel: "BudgetRecord", ToLabel: "Region"}
	var edges []models.Edge
	for _, id := range ids {
		edges = append(edges, fundedByEdge(id, "01101101"))
		edges = append(edges, models.Edge{Spec: located, From: map[string]string{"id": id}, To: map[string]string{"code": "13"}})
	}

	rep := report.NewRunReporter("run", nil)
	loader := NewEdgeLoader(store, rep, testLogger(), 2, fastRetry(), nil)
	_, err = loader.Load(context.Background(), "edges:budget:2025:GAA", models.NewSliceStream(edges))
	require.NoError(t, err)

	assert.Equal(t, []int{2, 2, 1}, store.BatchSizes("FUNDED_BY"))
	assert.Equal(t, []int{2, 2, 1}, store.BatchSizes("LOCATED_IN_REGION"))
	assert.Equal(t, 5, store.EdgeCount("FUNDED_BY"))
	assert.Equal(t, 5, store.EdgeCount("LOCATED_IN_REGION"))

	p := phaseStats(t, rep, "edges:budget:2025:GAA")
	assert.Equal(t, int64(10), p.Written)
	assert.Len(t, p.ByEdgeType, 2)
}

func TestEdgeLoaderDeduplicatesTriples(t *testing.T) {
	store := storeWithConstraints(t)
	seedBudgetAndFunding(t, store, []string{"F1"}, []string{"01101101"})

	rep := report.NewRunReporter("run", nil)
	loader := NewEdgeLoader(store, rep, testLogger(), 10, fastRetry(), nil)

	edges := []models.Edge{fundedByEdge("F1", "01101101"), fundedByEdge("F1", "01101101"), fundedByEdge("F1", "01101101")}
	for i := 0; i < 2; i++ {
		_, err := loader.Load(context.Background(), "edges:x", models.NewSliceStream(edges))
		require.NoError(t, err)
	}

	assert.Equal(t, 1, store.EdgeCount("FUNDED_BY"))
	assert.Equal(t, []int{1, 1}, store.BatchSizes("FUNDED_BY"))
	assert.Equal(t, int64(4), phaseStats(t, rep, "edges:x").Duplicates)
}

func TestEdgeLoaderRetryExhaustion(t *testing.T) {
	store := storeWithConstraints(t)
	seedBudgetAndFunding(t, store, []string{"F1", "F2", "F3"}, []string{"01101101"})
	store.FailNext("FUNDED_BY", graph.ErrTransient, graph.ErrTransient, graph.ErrTransient)

	rep := report.NewRunReporter("run", nil)
	loader := NewEdgeLoader(store, rep, testLogger(), 2, fastRetry(), nil)

	var edges []models.Edge
	for _, id := range []string{"F1", "F2", "F3"} {
		edges = append(edges, fundedByEdge(id, "01101101"))
	}
	_, err := loader.Load(context.Background(), "edges:x", models.NewSliceStream(edges))

	var phaseErr *PhaseError
	require.ErrorAs(t, err, &phaseErr)
	assert.Equal(t, report.BatchRange{Start: 0, End: 2}, phaseErr.Batch)
	assert.Zero(t, store.EdgeCount("FUNDED_BY"))
	assert.Equal(t, 2, phaseStats(t, rep, "edges:x").Retries)
}

func TestEdgeLoaderStopsOnCancel(t *testing.T) {
	store := storeWithConstraints(t)
	var ids []string
	for i := 0; i < 6; i++ {
		ids = append(ids, fmt.Sprintf("F%d", i))
	}
	seedBudgetAndFunding(t, store, ids, []string{"01101101"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rep := report.NewRunReporter("run", nil, report.ObserverFunc(func(e report.Event) {
		if e.Type == report.EventBatchCompleted {
			cancel()
		}
	}))

	var edges []models.Edge
	for _, id := range ids {
		edges = append(edges, fundedByEdge(id, "01101101"))
	}
	n, err := NewEdgeLoader(store, rep, testLogger(), 2, fastRetry(), nil).
		Load(ctx, "edges:x", models.NewSliceStream(edges))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, store.EdgeCount("FUNDED_BY"))
}

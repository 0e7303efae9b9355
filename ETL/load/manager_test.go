package load

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/LilVoxy/budget_graph/ETL/graph"
	"github.com/LilVoxy/budget_graph/ETL/models"
	"github.com/LilVoxy/budget_graph/ETL/report"
	"github.com/LilVoxy/budget_graph/ETL/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dim(key map[string]string, refs map[string]string, attrs map[string]any) models.DimensionRecord {
	if attrs == nil {
		attrs = map[string]any{}
	}
	return models.DimensionRecord{Key: key, ParentRefs: refs, Attributes: attrs}
}

// scenarioSource небольшой набор справочников и строк бюджета GAA 2025
func scenarioSource() *fakeSource {
	src := newFakeSource()
	src.addDims(models.RecordRegion,
		dim(map[string]string{"code": "13"}, nil, map[string]any{"description": "NCR"}),
		dim(map[string]string{"code": "01"}, nil, map[string]any{"description": "Ilocos"}),
	)
	src.addDims(models.RecordProvince,
		dim(map[string]string{"psgc_code": "1339"}, map[string]string{"region_code": "13"}, nil),
		dim(map[string]string{"psgc_code": "0128"}, map[string]string{"region_code": "01"}, nil),
		dim(map[string]string{"psgc_code": "9999"}, map[string]string{}, nil),
	)
	src.addDims(models.RecordFundingSource,
		dim(map[string]string{"uacs_code": "01101101"}, nil, map[string]any{"description": "Regular Agency Fund"}),
	)
	src.addDims(models.RecordOrganization,
		dim(map[string]string{"uacs_code": "270012200001"}, nil, nil),
	)
	src.addDims(models.RecordSubObject,
		dim(map[string]string{"uacs_code": "5020101000"}, nil, nil),
	)

	src.addFacts("2025", models.BudgetGAA,
		models.FactRecord{
			ID: "GAA-2025-0000000001", BudgetType: models.BudgetGAA, FiscalYear: "2025", Amount: 1000,
			ForeignKeys: models.ForeignKeys{
				Organization: "270012200001", Region: "13", FundingSource: "01101101", SubObject: "5020101000",
			},
		},
		models.FactRecord{
			ID: "GAA-2025-0000000002", BudgetType: models.BudgetGAA, FiscalYear: "2025", Amount: 250.5,
			ForeignKeys: models.ForeignKeys{Organization: "270012200001", Region: "00", FundingSource: "09999999"},
		},
		models.FactRecord{
			ID: "GAA-2025-0000000003", BudgetType: models.BudgetGAA, FiscalYear: "2025", Amount: 10,
			ForeignKeys: models.ForeignKeys{Organization: "123"},
		},
	)
	return src
}

func TestSyncScenario(t *testing.T) {
	store := graph.NewMemoryStore()
	rep := report.NewRunReporter("run", nil)
	m := NewSyncManager(schema.Default(), scenarioSource(), store, testLogger(), testOptions())

	require.NoError(t, m.Sync(context.Background(), rep))

	assert.Len(t, store.Constraints(), len(schema.Default().Constraints()))
	assert.Equal(t, 2, store.NodeCount("Region"))
	assert.Equal(t, 3, store.NodeCount("BudgetRecord"))

	assert.Equal(t, 2, store.EdgeCount("HAS_PROVINCE"))
	assert.Equal(t, 2, store.EdgeCount("ALLOCATED_TO"))
	assert.Equal(t, 1, store.EdgeCount("FUNDED_BY"))
	assert.Equal(t, 1, store.EdgeCount("LOCATED_IN_REGION"))
	assert.Equal(t, 1, store.EdgeCount("CLASSIFIED_AS"))
	assert.True(t, store.HasEdge(models.Edge{
		Spec: models.EdgeSpec{Type: "ALLOCATED_TO", FromLabel: "BudgetRecord", ToLabel: "Organization"},
		From: map[string]string{"id": "GAA-2025-0000000002"},
		To:   map[string]string{"uacs_code": "270012200001"},
	}))

	province := phaseStats(t, rep, "edges:Province")
	assert.Equal(t, int64(1), province.Absent)

	facts := phaseStats(t, rep, "edges:budget:2025:GAA")
	assert.Equal(t, report.StatusSuccess, facts.Status)
	assert.Equal(t, int64(1), facts.ByEdgeType["FUNDED_BY"].Unresolved)
	assert.Equal(t, int64(1), facts.Malformed)
	assert.Equal(t, int64(5), facts.Absent)

	nodes := phaseStats(t, rep, "nodes:budget:2025:GAA")
	assert.Equal(t, "1260.50", nodes.TotalAmount.StringFixed(2))

	props, ok := store.Node("BudgetRecord", map[string]string{"id": "GAA-2025-0000000001"})
	require.True(t, ok)
	assert.Equal(t, "01101101", props["funding_uacs_code"])
	assert.Equal(t, "GAA", props["budget_type"])

	assert.False(t, rep.Snapshot().HasFailures())
}

func TestSyncIsIdempotent(t *testing.T) {
	store := graph.NewMemoryStore()
	m := NewSyncManager(schema.Default(), scenarioSource(), store, testLogger(), testOptions())

	require.NoError(t, m.Sync(context.Background(), report.NewRunReporter("first", nil)))
	nodes, err := store.CountNodes(context.Background())
	require.NoError(t, err)
	edges, err := store.CountRelationships(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Sync(context.Background(), report.NewRunReporter("second", nil)))
	nodesAgain, err := store.CountNodes(context.Background())
	require.NoError(t, err)
	edgesAgain, err := store.CountRelationships(context.Background())
	require.NoError(t, err)

	assert.Equal(t, nodes, nodesAgain)
	assert.Equal(t, edges, edgesAgain)
}

func TestSyncBatchSizeDoesNotChangeGraph(t *testing.T) {
	build := func() *fakeSource {
		src := newFakeSource()
		src.addDims(models.RecordOrganization, dim(map[string]string{"uacs_code": "270012200001"}, nil, nil))
		facts := make([]models.FactRecord, 23000)
		for i := range facts {
			facts[i] = models.FactRecord{
				ID: fmt.Sprintf("NEP-2025-%010d", i), BudgetType: models.BudgetNEP, FiscalYear: "2025", Amount: 1,
				ForeignKeys: models.ForeignKeys{Organization: "270012200001"},
			}
		}
		src.addFacts("2025", models.BudgetNEP, facts...)
		return src
	}

	syncWith := func(factBatch, edgeBatch int) *graph.MemoryStore {
		store := graph.NewMemoryStore()
		opts := testOptions()
		opts.FactBatchSize = factBatch
		opts.EdgeBatchSize = edgeBatch
		require.NoError(t, NewSyncManager(schema.Default(), build(), store, testLogger(), opts).
			Sync(context.Background(), report.NewRunReporter("run", nil)))
		return store
	}

	a, b := syncWith(5000, 5000), syncWith(10000, 10000)
	assert.Equal(t, []int{5000, 5000, 5000, 5000, 3000}, a.BatchSizes("BudgetRecord"))
	assert.Equal(t, []int{10000, 10000, 3000}, b.BatchSizes("BudgetRecord"))
	assert.Equal(t, 23000, a.NodeCount("BudgetRecord"))
	assert.Equal(t, a.NodeKeys("BudgetRecord"), b.NodeKeys("BudgetRecord"))
	assert.Equal(t, 23000, a.EdgeCount("ALLOCATED_TO"))
	assert.Equal(t, a.EdgeCount("ALLOCATED_TO"), b.EdgeCount("ALLOCATED_TO"))
}

func TestSyncFailedLabelSkipsDependentEdges(t *testing.T) {
	store := newFaultyStore()
	store.failLabel("Region", errPermanent)
	rep := report.NewRunReporter("run", nil)
	m := NewSyncManager(schema.Default(), scenarioSource(), store, testLogger(), testOptions())

	err := m.Sync(context.Background(), rep)
	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, []string{"nodes:Region"}, syncErr.Failed)

	assert.Equal(t, report.StatusFailed, phaseStats(t, rep, "nodes:Region").Status)
	assert.Equal(t, report.StatusSuccess, phaseStats(t, rep, "nodes:Province").Status)

	province := phaseStats(t, rep, "edges:Province")
	assert.Equal(t, int64(2), province.Skipped)
	assert.Zero(t, store.EdgeCount("HAS_PROVINCE"))

	facts := phaseStats(t, rep, "edges:budget:2025:GAA")
	assert.Equal(t, report.StatusSuccess, facts.Status)
	assert.Equal(t, int64(1), facts.Skipped)
	assert.Equal(t, 2, store.EdgeCount("ALLOCATED_TO"))
	assert.Zero(t, store.EdgeCount("LOCATED_IN_REGION"))

	assert.True(t, rep.Snapshot().HasFailures())
}

func TestSyncFailedFactNodesSkipsFactEdges(t *testing.T) {
	store := newFaultyStore()
	store.failLabel("BudgetRecord", errPermanent)
	rep := report.NewRunReporter("run", nil)

	err := NewSyncManager(schema.Default(), scenarioSource(), store, testLogger(), testOptions()).
		Sync(context.Background(), rep)
	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)

	assert.Equal(t, report.StatusSkipped, phaseStats(t, rep, "edges:budget:2025:GAA").Status)
	assert.Equal(t, report.StatusSuccess, phaseStats(t, rep, "edges:Province").Status)
	assert.Zero(t, store.EdgeCount("ALLOCATED_TO"))
}

func TestSyncConstraintFailureIsFatal(t *testing.T) {
	store := graph.NewMemoryStore()
	store.FailNext("Region", errPermanent)
	rep := report.NewRunReporter("run", nil)

	err := NewSyncManager(schema.Default(), scenarioSource(), store, testLogger(), testOptions()).
		Sync(context.Background(), rep)
	var conErr *ConstraintError
	require.ErrorAs(t, err, &conErr)
	assert.Equal(t, "Region", conErr.Label)

	assert.Equal(t, report.StatusFailed, phaseStats(t, rep, "constraints").Status)
	assert.Equal(t, report.StatusSkipped, phaseStats(t, rep, "nodes:Region").Status)
	assert.Zero(t, store.NodeCount("Region"))
}

func TestSyncCancellationMarksRemainingPhases(t *testing.T) {
	store := graph.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rep := report.NewRunReporter("run", nil, report.ObserverFunc(func(e report.Event) {
		if e.Type == report.EventPhaseFinished && e.Phase == "nodes:Region" {
			cancel()
		}
	}))

	err := NewSyncManager(schema.Default(), scenarioSource(), store, testLogger(), testOptions()).Sync(ctx, rep)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, report.StatusSuccess, phaseStats(t, rep, "nodes:Region").Status)
	assert.Equal(t, report.StatusCanceled, phaseStats(t, rep, "nodes:Province").Status)
	assert.Equal(t, report.StatusCanceled, phaseStats(t, rep, "edges:budget:2025:GAA").Status)
	assert.Equal(t, 2, store.NodeCount("Region"))
	assert.Zero(t, store.NodeCount("Province"))
}

func TestSyncWithoutRecords(t *testing.T) {
	err := NewSyncManager(schema.Default(), newFakeSource(), graph.NewMemoryStore(), testLogger(), testOptions()).
		Sync(context.Background(), report.NewRunReporter("run", nil))
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestSyncSourceErrorAbortsPhase(t *testing.T) {
	src := scenarioSource()
	src.openErrs[models.RecordFundingSource] = errors.New("нет доступа")
	rep := report.NewRunReporter("run", nil)

	err := NewSyncManager(schema.Default(), src, graph.NewMemoryStore(), testLogger(), testOptions()).
		Sync(context.Background(), rep)
	var syncErr *SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Contains(t, syncErr.Failed, "nodes:FundingSource")
	assert.Contains(t, syncErr.Failed, "edges:FundingSource")
	assert.Equal(t, int64(2), phaseStats(t, rep, "edges:budget:2025:GAA").Skipped)
}

package extractors

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/LilVoxy/budget_graph/ETL/models"
	"github.com/LilVoxy/budget_graph/ETL/schema"
	"github.com/LilVoxy/budget_graph/ETL/utils"
	"github.com/golang/snappy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func newTestExtractor(t *testing.T, dir string) *Extractor {
	t.Helper()
	e, err := NewExtractor(dir, utils.NewETLLoggerWithWriter(io.Discard, false))
	require.NoError(t, err)
	return e
}

func descriptor(t *testing.T, rt models.RecordType) schema.Descriptor {
	t.Helper()
	d, ok := schema.Default().Lookup(rt)
	require.True(t, ok)
	return d
}

func TestDimensionsReadsArray(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "location", "cities_municipalities.json"), `[
		{"code": "01", "description": "Manila", "psgc_code": "133901", "region_code": "13", "province_code": "39", "population": 1846513},
		{"code": "02", "description": "no key"},
		{"code": "03", "description": "Quezon City", "psgc_code": "137404", "region_code": "13", "province_code": "74"}
	]`)

	e := newTestExtractor(t, dir)
	s, err := e.Dimensions(descriptor(t, models.RecordCityMunicipality))
	require.NoError(t, err)

	recs, err := models.Collect(s)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(1), s.(InvalidCounter).Invalid())

	assert.Equal(t, map[string]string{"psgc_code": "133901"}, recs[0].Key)
	assert.Equal(t, map[string]string{"region_code": "13", "province_code": "39"}, recs[0].ParentRefs)
	assert.Equal(t, int64(1846513), recs[0].Attributes["population"])
	assert.Equal(t, "Manila", recs[0].Attributes["description"])
}

func TestDimensionsCompositeKey(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "object_code", "sub_classes.json"),
		`[{"code": "02", "classification_code": "5", "description": "MOOE"}]`)

	s, err := newTestExtractor(t, dir).Dimensions(descriptor(t, models.RecordSubClass))
	require.NoError(t, err)
	recs, err := models.Collect(s)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, map[string]string{"full_code": "502"}, recs[0].Key)
	assert.Equal(t, map[string]string{"classification_code": "5"}, recs[0].ParentRefs)
}

func TestDimensionsSingleObjectAndMissingFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "location", "regions.json"), `{"code": "13", "description": "NCR"}`)

	e := newTestExtractor(t, dir)
	s, err := e.Dimensions(descriptor(t, models.RecordRegion))
	require.NoError(t, err)
	recs, err := models.Collect(s)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "13", recs[0].Key["code"])

	s, err = e.Dimensions(descriptor(t, models.RecordBarangay))
	require.NoError(t, err)
	recs, err = models.Collect(s)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDimensionsSnappyFramed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "funding_source", "fund_clusters.json.sz")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))

	f, err := os.Create(path)
	require.NoError(t, err)
	w := snappy.NewBufferedWriter(f)
	_, err = w.Write([]byte(`[{"code": "01", "description": "Regular Agency Fund"}]`))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	s, err := newTestExtractor(t, dir).Dimensions(descriptor(t, models.RecordFundCluster))
	require.NoError(t, err)
	recs, err := models.Collect(s)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Regular Agency Fund", recs[0].Attributes["description"])
}

func TestDimensionsSnappyBlock(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pap", "sector_outcomes.json.snappy")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, snappy.Encode(nil, []byte(`[{"code": "1"}, {"code": "2"}]`)), 0644))

	s, err := newTestExtractor(t, dir).Dimensions(descriptor(t, models.RecordSectorOutcome))
	require.NoError(t, err)
	recs, err := models.Collect(s)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestDimensionsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "location", "regions.json"), `[{"code": "01"}, {"code": `)

	s, err := newTestExtractor(t, dir).Dimensions(descriptor(t, models.RecordRegion))
	require.NoError(t, err)

	recs, err := models.Collect(s)
	var srcErr *SourceError
	assert.ErrorAs(t, err, &srcErr)
	assert.Len(t, recs, 1)
}

func TestFactSetsAndFacts(t *testing.T) {
	dir := t.TempDir()
	items := filepath.Join(dir, "budget", "2025", "items")
	writeFile(t, filepath.Join(items, "gaa_2025_batch_0001.json"), `[
		{"id": "GAA-2025-0000000001", "budget_type": "GAA", "fiscal_year": "2025", "amount": 1000.0,
		 "description": "Personnel services", "prexc_fpap_id": "310100000000000",
		 "org_uacs_code": "270012200001", "region_code": "13", "funding_uacs_code": "01101101",
		 "funding_conversion_type": "native", "object_uacs_code": "5010101001"}
	]`)
	writeFile(t, filepath.Join(items, "gaa_2025_batch_0002.json"), `[
		{"id": "GAA-2025-0000000002", "amount": "1,250.50"},
		{"description": "no id"}
	]`)
	writeFile(t, filepath.Join(items, "nep_2025_batch_0001.json"), `[]`)
	writeFile(t, filepath.Join(dir, "budget", "2025", "budget-mapping.json"), `{}`)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "budget", "notayear"), 0755))

	e := newTestExtractor(t, dir)
	sets, err := e.FactSets()
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "budget:2025:NEP", sets[0].Name())
	assert.Equal(t, "budget:2025:GAA", sets[1].Name())
	assert.Len(t, sets[1].Files, 2)

	s, err := e.Facts(schema.BudgetDescriptor(), sets[1])
	require.NoError(t, err)
	facts, err := models.Collect(s)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, int64(1), s.(InvalidCounter).Invalid())

	f := facts[0]
	assert.Equal(t, models.BudgetGAA, f.BudgetType)
	assert.Equal(t, 1000.0, f.Amount)
	assert.Equal(t, "270012200001", f.ForeignKeys.Organization)
	assert.Equal(t, "13", f.ForeignKeys.Region)
	assert.Equal(t, "01101101", f.ForeignKeys.FundingSource)
	assert.Equal(t, "5010101001", f.ForeignKeys.SubObject)
	assert.Equal(t, "native", f.Attributes["funding_conversion_type"])
	_, hasOrg := f.Attributes["org_uacs_code"]
	assert.False(t, hasOrg)

	assert.Equal(t, 1250.5, facts[1].Amount)
	assert.Equal(t, "2025", facts[1].FiscalYear)
	assert.Equal(t, models.BudgetGAA, facts[1].BudgetType)
}

func TestFactSetsWithoutBudgetDir(t *testing.T) {
	sets, err := newTestExtractor(t, t.TempDir()).FactSets()
	require.NoError(t, err)
	assert.Empty(t, sets)
}

func TestNewExtractorMissingDir(t *testing.T) {
	_, err := NewExtractor(filepath.Join(t.TempDir(), "missing"), utils.NewETLLoggerWithWriter(io.Discard, false))
	var srcErr *SourceError
	assert.ErrorAs(t, err, &srcErr)
}

func TestParseAmount(t *testing.T) {
	v, err := parseAmount("1,000,000.25")
	require.NoError(t, err)
	assert.Equal(t, 1000000.25, v)

	v, err = parseAmount(nil)
	require.NoError(t, err)
	assert.Zero(t, v)

	_, err = parseAmount("abc")
	assert.Error(t, err)
}

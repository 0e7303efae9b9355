package models

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBudgetType(t *testing.T) {
	bt, err := ParseBudgetType(" gaa ")
	require.NoError(t, err)
	assert.Equal(t, BudgetGAA, bt)

	_, err = ParseBudgetType("XYZ")
	assert.Error(t, err)
}

func TestForeignKeysGet(t *testing.T) {
	fk := ForeignKeys{Organization: "270012200001", Region: "13"}
	assert.Equal(t, "270012200001", fk.Get(SlotOrganization))
	assert.Equal(t, "13", fk.Get(SlotRegion))
	assert.Empty(t, fk.Get(SlotFundingSource))
	assert.Empty(t, fk.Get("unknown"))
}

func TestEdgeTripleIsOrderIndependent(t *testing.T) {
	spec := EdgeSpec{Type: "HAS_CITY", FromLabel: "Province", ToLabel: "CityMunicipality"}
	a := Edge{Spec: spec, From: map[string]string{"a": "1", "b": "2"}, To: map[string]string{"psgc_code": "130100"}}
	b := Edge{Spec: spec, From: map[string]string{"b": "2", "a": "1"}, To: map[string]string{"psgc_code": "130100"}}
	assert.Equal(t, a.Triple(), b.Triple())

	c := b
	c.To = map[string]string{"psgc_code": "130200"}
	assert.NotEqual(t, a.Triple(), c.Triple())
}

func TestMapStreamAndCollect(t *testing.T) {
	src := NewSliceStream([]int{1, 2, 3})
	doubled := MapStream[int, int](src, func(v int) (int, error) { return v * 2, nil })

	out, err := Collect(doubled)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 6}, out)

	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
}

func TestMapStreamPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	s := MapStream[int, int](NewSliceStream([]int{1, 2}), func(v int) (int, error) {
		if v == 2 {
			return 0, boom
		}
		return v, nil
	})

	out, err := Collect(s)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1}, out)
}

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceRank(t *testing.T) {
	t.Parallel()

	assert.Greater(t, SourceScraped.Rank(), SourceRentcast.Rank())
	assert.Greater(t, SourceRentcast.Rank(), SourceEstimated.Rank())
	assert.Equal(t, 0, Source("bogus").Rank())
}

func TestComputeCompleteness_Empty(t *testing.T) {
	t.Parallel()

	c := ComputeCompleteness(NewRecord())
	assert.Equal(t, 0, c.Score)
	assert.Equal(t, RequiredFields, c.MissingFields)
	assert.Equal(t, SourceCounts{}, c.Sources)
}

func TestComputeCompleteness_PriceOrAVM(t *testing.T) {
	t.Parallel()

	rec := NewRecord()
	rec.AVMValue = Ptr(310000.0)
	rec.FieldSources[FieldAVMValue] = FieldSource{Source: SourceRentcast, Confidence: ConfidenceMedium}

	c := ComputeCompleteness(rec)
	assert.Equal(t, 13, c.Score) // 1 of 8
	assert.NotContains(t, c.MissingFields, FieldPrice)
	assert.Equal(t, 1, c.Sources.Rentcast)
}

func TestComputeCompleteness_Monotonic(t *testing.T) {
	t.Parallel()

	rec := NewRecord()
	prev := ComputeCompleteness(rec).Score
	setters := []func(){
		func() { rec.Address = Ptr("1 Main St") },
		func() { rec.Price = Ptr(200000.0) },
		func() { rec.Bedrooms = Ptr(3) },
		func() { rec.Bathrooms = Ptr(2.0) },
		func() { rec.SquareFootage = Ptr(1500) },
		func() { rec.PropertyType = Ptr("Single Family") },
		func() { rec.YearBuilt = Ptr(1990) },
		func() { rec.RentEstimate = Ptr(1400.0) },
	}
	for _, set := range setters {
		set()
		score := ComputeCompleteness(rec).Score
		assert.Greater(t, score, prev)
		prev = score
	}
	assert.Equal(t, 100, prev)
	assert.Empty(t, ComputeCompleteness(rec).MissingFields)
}

func TestCheckProvenance(t *testing.T) {
	t.Parallel()

	rec := NewRecord()
	rec.Bedrooms = Ptr(3)
	require.Error(t, CheckProvenance(rec))

	rec.FieldSources[FieldBedrooms] = FieldSource{Source: SourceScraped, Confidence: ConfidenceHigh}
	require.NoError(t, CheckProvenance(rec))

	rec.FieldSources[FieldLotSize] = FieldSource{Source: SourceEstimated, Confidence: ConfidenceLow}
	err := CheckProvenance(rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orphan=[lotSize]")

	assert.Error(t, CheckProvenance(nil))
}

func TestClone_Independent(t *testing.T) {
	t.Parallel()

	rec := NewRecord()
	rec.Bedrooms = Ptr(3)
	rec.Images = []string{"a.jpg"}
	rec.FieldSources[FieldBedrooms] = FieldSource{Source: SourceScraped, Confidence: ConfidenceHigh}

	cp := rec.Clone()
	*cp.Bedrooms = 5
	cp.Images[0] = "b.jpg"
	cp.FieldSources[FieldBedrooms] = FieldSource{Source: SourceEstimated}

	assert.Equal(t, 3, *rec.Bedrooms)
	assert.Equal(t, "a.jpg", rec.Images[0])
	assert.Equal(t, SourceScraped, rec.FieldSources[FieldBedrooms].Source)
}

func TestRecordJSON_NullsForUnknownFields(t *testing.T) {
	t.Parallel()

	rec := NewRecord()
	rec.City = Ptr("Austin")
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "Austin", raw["city"])
	assert.Contains(t, raw, "bedrooms")
	assert.Nil(t, raw["bedrooms"])
	assert.NotContains(t, raw, "arv")
}

func TestComparableSale_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		comp ComparableSale
		want bool
	}{
		{"valid", ComparableSale{Price: 250000, SquareFootage: 1200, Similarity: 0.8}, true},
		{"cheap", ComparableSale{Price: 50000, SquareFootage: 1200, Similarity: 0.8}, false},
		{"no size", ComparableSale{Price: 250000, Similarity: 0.8}, false},
		{"dissimilar", ComparableSale{Price: 250000, SquareFootage: 1200, Similarity: 0.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.comp.Valid())
		})
	}
}

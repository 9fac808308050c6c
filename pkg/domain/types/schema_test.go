package types_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tracedesk/pkg/domain/types"
)

func TestLookupSchema(t *testing.T) {
	t.Run("v1", func(t *testing.T) {
		s, err := types.LookupSchema(types.SchemaVersionV1)
		gt.NoError(t, err).Required()
		gt.B(t, s.IsValidTool("Claude")).True()
		gt.B(t, s.IsValidTool("Listing-Finder")).False()
		gt.B(t, s.IsValidScenario("Code Generation")).True()
		gt.B(t, s.IsValidDataSource("Upload")).True()
	})

	t.Run("v2", func(t *testing.T) {
		s, err := types.LookupSchema(types.SchemaVersionV2)
		gt.NoError(t, err).Required()
		gt.B(t, s.IsValidTool("Valuation-Tool")).True()
		gt.B(t, s.IsValidScenario("Closing-Process")).True()
		gt.B(t, s.IsValidDataSource("Synthetic")).True()
		gt.B(t, s.IsValidDataSource("API")).False()
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := types.LookupSchema("v9")
		gt.Error(t, err)
	})
}

func TestEnumSchema_Validate(t *testing.T) {
	gt.NoError(t, types.SchemaV1.Validate())
	gt.NoError(t, types.SchemaV2.Validate())

	tests := []struct {
		name   string
		schema types.EnumSchema
	}{
		{
			name:   "missing version",
			schema: types.EnumSchema{Tools: []types.Tool{"a"}, Scenarios: []types.Scenario{"b"}, DataSources: []types.DataSource{"c"}},
		},
		{
			name:   "no tools",
			schema: types.EnumSchema{Version: "custom", Scenarios: []types.Scenario{"b"}, DataSources: []types.DataSource{"c"}},
		},
		{
			name:   "duplicate scenario",
			schema: types.EnumSchema{Version: "custom", Tools: []types.Tool{"a"}, Scenarios: []types.Scenario{"b", "b"}, DataSources: []types.DataSource{"c"}},
		},
		{
			name:   "empty data source",
			schema: types.EnumSchema{Version: "custom", Tools: []types.Tool{"a"}, Scenarios: []types.Scenario{"b"}, DataSources: []types.DataSource{""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Error(t, tt.schema.Validate())
		})
	}
}

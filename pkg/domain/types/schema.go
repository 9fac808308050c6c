package types

import (
	"slices"

	"github.com/m-mizutani/goerr/v2"
)

// SchemaVersion identifies a set of classification values
type SchemaVersion string

const (
	SchemaVersionV1 SchemaVersion = "v1"
	SchemaVersionV2 SchemaVersion = "v2"
)

// EnumSchema is the closed set of classification tags accepted for traces.
// The values changed over the life of the dataset, so every consumer asks the
// active schema instead of hardcoding a list.
type EnumSchema struct {
	Version     SchemaVersion
	Tools       []Tool
	Scenarios   []Scenario
	DataSources []DataSource
}

// SchemaV1 is the original general-purpose assistant classification
var SchemaV1 = EnumSchema{
	Version: SchemaVersionV1,
	Tools:   []Tool{"ChatGPT", "Claude", "Gemini", "Other"},
	Scenarios: []Scenario{
		"Code Generation",
		"Text Generation",
		"Data Analysis",
		"Creative Writing",
		"Other",
	},
	DataSources: []DataSource{"API", "Upload", "Manual", "Other"},
}

// SchemaV2 is the real-estate agent classification
var SchemaV2 = EnumSchema{
	Version: SchemaVersionV2,
	Tools: []Tool{
		"Listing-Finder",
		"Email-Draft",
		"Market-Analysis",
		"Offer-Generator",
		"Valuation-Tool",
		"Appointment-Scheduler",
	},
	Scenarios: []Scenario{
		"Multiple-Listings",
		"Offer-Submission",
		"Property-Analysis",
		"Client-Communication",
		"Market-Research",
		"Closing-Process",
	},
	DataSources: []DataSource{"Human", "Synthetic"},
}

// DefaultSchema is used when no schema is configured
var DefaultSchema = SchemaV2

// LookupSchema returns a builtin schema by version
func LookupSchema(version SchemaVersion) (EnumSchema, error) {
	switch version {
	case SchemaVersionV1:
		return SchemaV1, nil
	case SchemaVersionV2:
		return SchemaV2, nil
	default:
		return EnumSchema{}, goerr.New("unknown schema version", goerr.V("version", version))
	}
}

func (s EnumSchema) IsValidTool(v Tool) bool {
	return slices.Contains(s.Tools, v)
}

func (s EnumSchema) IsValidScenario(v Scenario) bool {
	return slices.Contains(s.Scenarios, v)
}

func (s EnumSchema) IsValidDataSource(v DataSource) bool {
	return slices.Contains(s.DataSources, v)
}

// Validate checks that every list is non-empty and free of duplicates
func (s EnumSchema) Validate() error {
	if s.Version == "" {
		return goerr.New("schema version is required")
	}
	if err := validateValues("tool", s.Tools); err != nil {
		return err
	}
	if err := validateValues("scenario", s.Scenarios); err != nil {
		return err
	}
	if err := validateValues("data source", s.DataSources); err != nil {
		return err
	}
	return nil
}

func validateValues[T ~string](kind string, values []T) error {
	if len(values) == 0 {
		return goerr.New("schema has no values", goerr.V("kind", kind))
	}
	seen := make(map[T]bool, len(values))
	for _, v := range values {
		if v == "" {
			return goerr.New("schema value cannot be empty", goerr.V("kind", kind))
		}
		if seen[v] {
			return goerr.New("duplicate schema value", goerr.V("kind", kind), goerr.V("value", v))
		}
		seen[v] = true
	}
	return nil
}

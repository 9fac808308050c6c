package types

// Tool is the assistant tool a trace was recorded with. The set of valid
// values depends on the active EnumSchema.
type Tool string

func (t Tool) String() string {
	return string(t)
}

// Scenario is the task scenario a trace belongs to. The set of valid values
// depends on the active EnumSchema.
type Scenario string

func (s Scenario) String() string {
	return string(s)
}

// DataSource tells where a trace came from. The set of valid values depends
// on the active EnumSchema.
type DataSource string

func (d DataSource) String() string {
	return string(d)
}

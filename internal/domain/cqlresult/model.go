package cqlresult

// Names of the defines the interpreter reads from a $cql response. All other
// defines in the library are ignored.
const (
	DefineInitialPopulation = "Initial Population"
	DefineNumerator         = "Numerator"
	DefineDenominator       = "Denominator"
)

// ResultType is the CQL type name cqf-ruler reports for a define's value.
type ResultType string

const (
	TypeBoolean ResultType = "Boolean"
	TypeList    ResultType = "List"
)

// Entry is one define of an expression result set. Exactly one of Value and
// Error is expected to be set.
type Entry struct {
	Name       string     `json:"name"`
	Value      *string    `json:"value,omitempty"`
	ResultType ResultType `json:"resultType,omitempty"`
	Error      *string    `json:"error,omitempty"`
}

// ResultSet is the ordered list of define results for one subject.
type ResultSet []Entry

// Result is the interpreted membership of one subject. Memberships are nil
// when the define was not reported or when any define failed to evaluate;
// Error then carries the failing define's message.
//
// Counts is only set for episode-of-care measures. It holds
// "<field>_episodes" (int) and "<field>_episodeIDs" ([]string) for every
// List-typed define.
type Result struct {
	InitialPopulation *bool                  `json:"initial_population"`
	Numerator         *bool                  `json:"numerator"`
	Denominator       *bool                  `json:"denominator"`
	Error             *string                `json:"error,omitempty"`
	Counts            map[string]interface{} `json:"counts,omitempty"`
}

// Episodes returns the episode count recorded for field, if any.
func (r *Result) Episodes(field string) (int, bool) {
	if r == nil || r.Counts == nil {
		return 0, false
	}
	n, ok := r.Counts[field+"_episodes"].(int)
	return n, ok
}

// EpisodeIDs returns the episode identifiers recorded for field, if any.
func (r *Result) EpisodeIDs(field string) ([]string, bool) {
	if r == nil || r.Counts == nil {
		return nil, false
	}
	ids, ok := r.Counts[field+"_episodeIDs"].([]string)
	return ids, ok
}

// Refined reports each membership narrowed by the populations it refines:
// denominator requires initial population, numerator requires both. An
// errored result has no memberships.
func (r *Result) Refined() (ipop, denom, numer bool) {
	if r == nil || r.Error != nil {
		return false, false, false
	}
	ipop = isTrue(r.InitialPopulation)
	denom = ipop && isTrue(r.Denominator)
	numer = denom && isTrue(r.Numerator)
	return ipop, denom, numer
}

func isTrue(b *bool) bool {
	return b != nil && *b
}

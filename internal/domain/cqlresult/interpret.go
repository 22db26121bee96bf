package cqlresult

import "strings"

// FieldName derives the result field for a define: lower case, with runs of
// whitespace replaced by a single underscore.
func FieldName(define string) string {
	return strings.Join(strings.Fields(strings.ToLower(define)), "_")
}

func relevant(name string) bool {
	switch name {
	case DefineInitialPopulation, DefineNumerator, DefineDenominator:
		return true
	}
	return false
}

// Interpret converts the three population defines of rs into memberships.
//
// Boolean values are true only for the literal "true". List values are
// members when non-empty, and also record their episode count and ids.
// If any of the three defines carries an error, the whole result is
// invalidated: every membership is nil and Error holds that define's
// message, even when the other defines evaluated.
func Interpret(rs ResultSet) *Result {
	res := &Result{}
	for _, e := range rs {
		if !relevant(e.Name) {
			continue
		}
		if e.Error != nil {
			msg := *e.Error
			return &Result{Error: &msg}
		}
		if e.Value == nil {
			continue
		}
		field := FieldName(e.Name)
		var member bool
		if e.ResultType == TypeList {
			ids := ParseList(*e.Value)
			member = len(ids) > 0
			if res.Counts == nil {
				res.Counts = make(map[string]interface{})
			}
			res.Counts[field+"_episodes"] = len(ids)
			res.Counts[field+"_episodeIDs"] = ids
		} else {
			member = *e.Value == "true"
		}
		res.set(e.Name, member)
	}
	return res
}

func (r *Result) set(define string, v bool) {
	switch define {
	case DefineInitialPopulation:
		r.InitialPopulation = &v
	case DefineNumerator:
		r.Numerator = &v
	case DefineDenominator:
		r.Denominator = &v
	}
}

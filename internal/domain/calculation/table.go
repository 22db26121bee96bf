package calculation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/projecttacoma/fhir-bundle-calculator/internal/domain/cqlresult"
	"github.com/projecttacoma/fhir-bundle-calculator/internal/platform/output"
)

// BuildTable lays out results as the rows of results.csv.
//
// Every row has bundle, patient and population. MeasureReport runs add the
// measure score, the observation, a value and score column per stratifier
// and a column per supplemental data element. CQL runs add the three
// membership columns and the episode counts of List-typed defines. Columns
// that depend on the data appear in the order they are first seen.
func BuildTable(mode Mode, results []SubjectResult) output.Table {
	cols := newColumnSet("bundle", "patient", "population")
	if mode == ModeCQL {
		cols.add("initial_population", "numerator", "denominator")
	} else {
		cols.add("measure_score", "observation")
	}

	rows := make([]map[string]string, 0, len(results))
	for i := range results {
		r := &results[i]
		row := map[string]string{
			"bundle":     r.Bundle,
			"patient":    r.PatientID,
			"population": r.Label(),
			"error":      r.Error,
		}
		if r.Report != nil {
			row["measure_score"] = formatScore(r.Report.MeasureScore)
			if r.Report.Observation != nil {
				row["observation"] = *r.Report.Observation
			}
			for j, st := range r.Report.Stratifiers {
				name := fmt.Sprintf("stratifier_%d", j)
				if st.Name != nil {
					name = *st.Name
				}
				cols.add(name, name+"_score")
				row[name] = string(st.Population)
				row[name+"_score"] = formatScore(st.MeasureScore)
			}
			for _, tag := range r.Report.SupplementalData {
				cols.add(tag.Name)
				row[tag.Name] = tag.Code
			}
		}
		if r.Expression != nil {
			addExpression(row, cols, r.Expression)
		}
		rows = append(rows, row)
	}

	cols.add("error")
	return output.Table{Columns: cols.names, Rows: rows}
}

func addExpression(row map[string]string, cols *columnSet, res *cqlresult.Result) {
	if res.Error != nil {
		if row["error"] == "" {
			row["error"] = *res.Error
		}
		return
	}
	ipop, denom, numer := res.Refined()
	row["initial_population"] = strconv.FormatBool(ipop)
	row["denominator"] = strconv.FormatBool(denom)
	row["numerator"] = strconv.FormatBool(numer)

	keys := make([]string, 0, len(res.Counts))
	for k := range res.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := res.Counts[k].(type) {
		case int:
			row[k] = strconv.Itoa(v)
		case []string:
			row[k] = strings.Join(v, " ")
		default:
			row[k] = fmt.Sprint(v)
		}
		cols.add(k)
	}
}

func formatScore(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

type columnSet struct {
	names []string
	seen  map[string]bool
}

func newColumnSet(names ...string) *columnSet {
	c := &columnSet{seen: make(map[string]bool)}
	c.add(names...)
	return c
}

func (c *columnSet) add(names ...string) {
	for _, n := range names {
		if !c.seen[n] {
			c.seen[n] = true
			c.names = append(c.names, n)
		}
	}
}

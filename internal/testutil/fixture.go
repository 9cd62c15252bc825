package testutil

import (
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/hubmapy/internal/errs"
	"github.com/roach88/hubmapy/internal/result"
)

// Fixture is a tiny stand-in for the reasoned CCF ontology. It answers
// the built-in queries that tests depend on and returns an empty result
// with the selected columns for every other well-formed query.
type Fixture struct {
	// TissueBlocks maps tissue block IRI to the label of the anatomical
	// structure it collides with.
	TissueBlocks map[string]string

	// Evidence maps cell type CURIE to supporting publication DOIs.
	Evidence map[string][]string

	// CellTypeLabels maps cell type CURIE to its rdfs:label.
	CellTypeLabels map[string]string
}

// DefaultFixture returns a fixture with three tissue blocks in two
// anatomical structures and two cell types, one without evidence.
func DefaultFixture() *Fixture {
	return &Fixture{
		TissueBlocks: map[string]string{
			"https://hubmapconsortium.org/tissue-block/VU-1": "left kidney",
			"https://hubmapconsortium.org/tissue-block/VU-2": "left kidney",
			"https://hubmapconsortium.org/tissue-block/RU-1": "heart",
		},
		Evidence: map[string][]string{
			"obo:CL_0000171": {"https://doi.org/10.1016/j.cels.2016.08.011", "https://doi.org/10.1038/s41586-020-2922-4"},
		},
		CellTypeLabels: map[string]string{
			"obo:CL_0000171": "pancreatic A cell",
			"obo:CL_0000787": "memory B cell",
		},
	}
}

var (
	selectRe       = regexp.MustCompile(`(?is)\bSELECT\b(.*?)\bWHERE\b`)
	aliasRe        = regexp.MustCompile(`(?i)\bAS\s+\?(\w+)\s*$`)
	varRe          = regexp.MustCompile(`\?(\w+)`)
	labelSubjectRe = regexp.MustCompile(`(\S+)\s+rdfs:label\s+\?cell_type_label\b`)
)

// Respond evaluates query against the fixture.
// Returns a QUERY error for text that is not a well-formed SELECT query.
func (f *Fixture) Respond(query string) (*result.Result, error) {
	columns, err := SelectColumns(query)
	if err != nil {
		return nil, err
	}

	switch {
	case contains(columns, "tissue_block_count"):
		return f.tissueBlockCounts(columns), nil
	case len(columns) == 2 && columns[0] == "cell_type_label" && columns[1] == "evidence":
		return f.evidenceFor(query, columns), nil
	}
	return &result.Result{Columns: columns, Rows: []result.Row{}}, nil
}

func (f *Fixture) tissueBlockCounts(columns []string) *result.Result {
	counts := map[string]int64{}
	for _, structure := range f.TissueBlocks {
		counts[structure]++
	}
	structures := make([]string, 0, len(counts))
	for s := range counts {
		structures = append(structures, s)
	}
	sort.Strings(structures)

	res := &result.Result{Columns: columns, Rows: []result.Row{}}
	for _, s := range structures {
		row := result.Row{}
		for _, c := range columns {
			row[c] = nil
		}
		row["tissue_block_count"] = counts[s]
		if _, ok := row["anatomical_structure_label"]; ok {
			row["anatomical_structure_label"] = s
		}
		res.Rows = append(res.Rows, row)
	}
	return res
}

func (f *Fixture) evidenceFor(query string, columns []string) *result.Result {
	res := &result.Result{Columns: columns, Rows: []result.Row{}}
	m := labelSubjectRe.FindStringSubmatch(query)
	if m == nil {
		return res
	}
	cellType := m[1]
	for _, doi := range f.Evidence[cellType] {
		res.Rows = append(res.Rows, result.Row{
			"cell_type_label": f.CellTypeLabels[cellType],
			"evidence":        doi,
		})
	}
	return res
}

// SelectColumns returns the projected variable names of a SELECT query,
// including aliases of projected expressions. Returns a QUERY error if
// the text has no SELECT ... WHERE clause or unbalanced brackets.
func SelectColumns(query string) ([]string, error) {
	if !balanced(query) {
		return nil, errs.New(errs.CodeQuery, "fixture", "Lexical error: unbalanced brackets")
	}
	m := selectRe.FindStringSubmatch(query)
	if m == nil {
		return nil, errs.New(errs.CodeQuery, "fixture", "Encountered unexpected token: expected SELECT ... WHERE")
	}

	clause := strings.TrimSpace(m[1])
	clause = strings.TrimPrefix(clause, "DISTINCT")
	clause = strings.TrimPrefix(clause, "distinct")

	var columns []string
	depth, groupStart := 0, 0
	for i, r := range clause {
		switch r {
		case '(':
			if depth == 0 {
				groupStart = i + 1
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				if a := aliasRe.FindStringSubmatch(clause[groupStart:i]); a != nil {
					columns = append(columns, a[1])
				}
			}
		case '?':
			if depth == 0 {
				if v := varRe.FindStringSubmatch(clause[i:]); v != nil {
					columns = append(columns, v[1])
				}
			}
		}
	}
	if len(columns) == 0 {
		return nil, errs.New(errs.CodeQuery, "fixture", "Encountered unexpected token: empty projection")
	}
	return columns, nil
}

func balanced(s string) bool {
	var stack []rune
	pairs := map[rune]rune{')': '(', '}': '{', ']': '['}
	inIRI := false
	for _, r := range s {
		switch r {
		case '<':
			inIRI = true
		case '>':
			inIRI = false
		case '(', '{', '[':
			if !inIRI {
				stack = append(stack, r)
			}
		case ')', '}', ']':
			if inIRI {
				continue
			}
			if len(stack) == 0 || stack[len(stack)-1] != pairs[r] {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

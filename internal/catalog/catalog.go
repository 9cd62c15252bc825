// Package catalog describes the supported analytical operations: which
// template each one runs and which placeholders it binds, with the
// documented default for every placeholder.
//
// The catalog is authored in CUE (catalog.cue) so that its schema
// (non-empty defaults, valid placeholder names) is enforced when it is
// compiled rather than by hand-written checks.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/hubmapy/internal/bind"
	"github.com/roach88/hubmapy/internal/template"
)

//go:embed catalog.cue
var catalogCUE []byte

// Operation names.
const (
	BiomarkersForAllCellTypes                      = "biomarkers_for_all_cell_types"
	BiomarkersForAllCellTypesInAnatomicalStructure = "biomarkers_for_all_cell_types_in_anatomical_structure"
	BiomarkersForCellTypeInAnatomicalStructure     = "biomarkers_for_cell_type_in_anatomical_structure"
	TissueBlocksInAnatomicalStructure              = "tissue_blocks_in_anatomical_structure"
	TissueBlockCountForAllAnatomicalStructures     = "tissue_block_count_for_all_anatomical_structures"
	AnatomicalStructuresInTissueBlock              = "anatomical_structures_in_tissue_block"
	LocationsOfAllCellTypes                        = "locations_of_all_cell_types"
	EvidenceForSpecificCellType                    = "evidence_for_specific_cell_type"
	EvidenceForAllCellTypes                        = "evidence_for_all_cell_types"
	CellTypesFromBiomarkers                        = "cell_types_from_biomarkers"
)

// Placeholder names.
const (
	ParamCellType            = "cell_type"
	ParamAnatomicalStructure = "anatomical_structure"
	ParamTissueBlock         = "tissue_block"
	ParamBiomarkers          = "biomarkers"
)

// Placeholder is a named template variable with its default literal.
type Placeholder struct {
	Name    string `json:"name"`
	Default string `json:"default"`
	Doc     string `json:"doc"`
}

// Operation is one supported analytical question.
type Operation struct {
	Name         string        `json:"-"`
	Summary      string        `json:"summary"`
	Template     string        `json:"template"`
	Placeholders []Placeholder `json:"placeholders"`
}

// Names returns the operation's placeholder names in declaration order.
func (o Operation) Names() []string {
	names := make([]string, len(o.Placeholders))
	for i, p := range o.Placeholders {
		names[i] = p.Name
	}
	return names
}

// Bindings merges caller-supplied values over the operation's defaults.
// Empty values and names the operation does not declare are ignored.
func (o Operation) Bindings(args map[string]string) map[string]string {
	out := make(map[string]string, len(o.Placeholders))
	for _, p := range o.Placeholders {
		out[p.Name] = p.Default
		if v := args[p.Name]; v != "" {
			out[p.Name] = v
		}
	}
	return out
}

// Catalog is an ordered set of operations.
type Catalog struct {
	ops   []Operation
	index map[string]int
}

// Error reports an invalid catalog definition.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the built-in catalog. It is compiled once per process.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Compile(catalogCUE, "catalog.cue")
	})
	return defaultCat, defaultErr
}

// Compile builds a Catalog from CUE source. The source must define an
// "operation" struct whose fields satisfy the #Operation schema.
func Compile(src []byte, filename string) (*Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	opsVal := v.LookupPath(cue.ParsePath("operation"))
	if !opsVal.Exists() {
		return nil, &Error{Field: "operation", Message: "no operations defined", Pos: v.Pos()}
	}

	iter, err := opsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	c := &Catalog{index: map[string]int{}}
	for iter.Next() {
		var op Operation
		if err := iter.Value().Decode(&op); err != nil {
			return nil, formatCUEError(err)
		}
		op.Name = iter.Label()
		if err := checkDuplicates(op); err != nil {
			return nil, &Error{Field: "operation." + op.Name, Message: err.Error(), Pos: iter.Value().Pos()}
		}
		c.index[op.Name] = len(c.ops)
		c.ops = append(c.ops, op)
	}

	if len(c.ops) == 0 {
		return nil, &Error{Field: "operation", Message: "no operations defined", Pos: opsVal.Pos()}
	}
	return c, nil
}

func checkDuplicates(op Operation) error {
	seen := map[string]bool{}
	for _, p := range op.Placeholders {
		if seen[p.Name] {
			return fmt.Errorf("placeholder %q declared twice", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// Lookup returns the named operation.
func (c *Catalog) Lookup(name string) (Operation, bool) {
	i, ok := c.index[name]
	if !ok {
		return Operation{}, false
	}
	return c.ops[i], true
}

// Operations returns all operations in declaration order.
func (c *Catalog) Operations() []Operation {
	out := make([]Operation, len(c.ops))
	copy(out, c.ops)
	return out
}

// Verify checks every operation against the template store: the template
// must exist and must contain each declared placeholder.
func (c *Catalog) Verify(store *template.Store) error {
	for _, op := range c.ops {
		tmpl, err := store.Load(op.Template)
		if err != nil {
			return fmt.Errorf("operation %s: %w", op.Name, err)
		}
		for _, p := range op.Placeholders {
			if !bind.Contains(tmpl.Body, p.Name) {
				return &Error{
					Field:   "operation." + op.Name,
					Message: fmt.Sprintf("template %s has no placeholder ?%s", op.Template, p.Name),
				}
			}
		}
	}
	return nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errList := cueerrors.Errors(err)
	if len(errList) == 0 {
		return err
	}

	first := errList[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &Error{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}

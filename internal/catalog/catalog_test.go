package catalog

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/hubmapy/internal/bind"
	"github.com/roach88/hubmapy/internal/template"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	var names []string
	for _, op := range c.Operations() {
		names = append(names, op.Name)
	}
	assert.Equal(t, []string{
		BiomarkersForAllCellTypes,
		BiomarkersForAllCellTypesInAnatomicalStructure,
		BiomarkersForCellTypeInAnatomicalStructure,
		TissueBlocksInAnatomicalStructure,
		TissueBlockCountForAllAnatomicalStructures,
		AnatomicalStructuresInTissueBlock,
		LocationsOfAllCellTypes,
		EvidenceForSpecificCellType,
		EvidenceForAllCellTypes,
		CellTypesFromBiomarkers,
	}, names)
}

func TestDefaultCatalogValues(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	tests := []struct {
		op       string
		defaults map[string]string
	}{
		{BiomarkersForAllCellTypes, map[string]string{}},
		{BiomarkersForAllCellTypesInAnatomicalStructure, map[string]string{
			ParamAnatomicalStructure: "obo:UBERON_0000006",
		}},
		{BiomarkersForCellTypeInAnatomicalStructure, map[string]string{
			ParamCellType:            "obo:CL_0000171",
			ParamAnatomicalStructure: "obo:UBERON_0000006",
		}},
		{TissueBlocksInAnatomicalStructure, map[string]string{
			ParamAnatomicalStructure: "obo:UBERON_0000948",
		}},
		{TissueBlockCountForAllAnatomicalStructures, map[string]string{}},
		{AnatomicalStructuresInTissueBlock, map[string]string{
			ParamTissueBlock: "<http://dx.doi.org/10.1016/j.trsl.2017.07.006#TissueBlock>",
		}},
		{LocationsOfAllCellTypes, map[string]string{}},
		{EvidenceForSpecificCellType, map[string]string{ParamCellType: "obo:CL_0000171"}},
		{EvidenceForAllCellTypes, map[string]string{}},
		{CellTypesFromBiomarkers, map[string]string{ParamBiomarkers: "hgnc:633,hgnc:637,hgnc:800"}},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			op, ok := c.Lookup(tt.op)
			require.True(t, ok)
			assert.Equal(t, tt.op, op.Template)
			assert.NotEmpty(t, op.Summary)
			assert.Equal(t, tt.defaults, op.Bindings(nil))
		})
	}
}

func TestBindingsOverrideDefaults(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	op, ok := c.Lookup(BiomarkersForCellTypeInAnatomicalStructure)
	require.True(t, ok)

	got := op.Bindings(map[string]string{
		ParamCellType:            "obo:CL_0000787",
		ParamAnatomicalStructure: "",
		"unrelated":              "ignored",
	})
	assert.Equal(t, map[string]string{
		ParamCellType:            "obo:CL_0000787",
		ParamAnatomicalStructure: "obo:UBERON_0000006",
	}, got)
	assert.Equal(t, []string{ParamCellType, ParamAnatomicalStructure}, op.Names())
}

func TestLookupUnknown(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	_, ok := c.Lookup("nope")
	assert.False(t, ok)
}

func TestDefaultsBindEveryPlaceholder(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	store := template.New()

	require.NoError(t, c.Verify(store))

	for _, op := range c.Operations() {
		t.Run(op.Name, func(t *testing.T) {
			tmpl, err := store.Load(op.Template)
			require.NoError(t, err)
			bound := bind.Bind(tmpl.Body, op.Bindings(nil))
			assert.NoError(t, bind.Check(bound, op.Names()))
		})
	}
}

func TestCompileRejectsEmptyDefault(t *testing.T) {
	src := `
package catalog

#Placeholder: {
	name:    =~"^[A-Za-z_][A-Za-z0-9_]*$"
	default: string & !=""
	doc:     string | *""
}

#Operation: {
	summary:      string & !=""
	template:     string & !=""
	placeholders: *[] | [...#Placeholder]
}

operation: [Name=string]: #Operation & {template: *Name | string}

operation: broken: {
	summary: "Broken"
	placeholders: [{name: "x", default: ""}]
}
`
	_, err := Compile([]byte(src), "broken.cue")
	require.Error(t, err)
}

func TestCompileRejectsDuplicatePlaceholder(t *testing.T) {
	src := `
operation: dup: {
	summary:  "Dup"
	template: "dup"
	placeholders: [{name: "x", default: "1"}, {name: "x", default: "2"}]
}
`
	_, err := Compile([]byte(src), "dup.cue")
	require.Error(t, err)
	var catErr *Error
	require.ErrorAs(t, err, &catErr)
	assert.Equal(t, "operation.dup", catErr.Field)
}

func TestCompileRequiresOperations(t *testing.T) {
	_, err := Compile([]byte(`other: 1`), "empty.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no operations defined")
}

func TestVerifyDetectsMissingPlaceholder(t *testing.T) {
	src := `
operation: q: {
	summary:  "Q"
	template: "q"
	placeholders: [{name: "cell_type", default: "obo:CL_1"}]
}
`
	c, err := Compile([]byte(src), "q.cue")
	require.NoError(t, err)

	store := template.NewFromFS(fstest.MapFS{
		"q/q.rq": {Data: []byte("SELECT ?cell_type_label WHERE {}")},
	}, "q")
	err = c.Verify(store)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no placeholder ?cell_type")
}

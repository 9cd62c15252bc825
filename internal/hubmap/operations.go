package hubmap

import (
	"context"
	"strings"

	"github.com/roach88/hubmapy/internal/catalog"
	"github.com/roach88/hubmapy/internal/result"
)

// Each method below runs the catalog operation of the same name. An empty
// argument selects the operation's documented default.

// BiomarkersForAllCellTypes lists every cell type with its biomarkers.
func (c *Client) BiomarkersForAllCellTypes(ctx context.Context) (*result.Result, error) {
	return c.Run(ctx, catalog.BiomarkersForAllCellTypes, nil)
}

// BiomarkersForAllCellTypesInAnatomicalStructure lists cell types located
// in an anatomical structure with their biomarkers. Default: obo:UBERON_0000006.
func (c *Client) BiomarkersForAllCellTypesInAnatomicalStructure(ctx context.Context, anatomicalStructure string) (*result.Result, error) {
	return c.Run(ctx, catalog.BiomarkersForAllCellTypesInAnatomicalStructure, map[string]string{
		catalog.ParamAnatomicalStructure: anatomicalStructure,
	})
}

// BiomarkersForCellTypeInAnatomicalStructure lists the biomarkers of one
// cell type in one anatomical structure.
// Defaults: obo:CL_0000171, obo:UBERON_0000006.
func (c *Client) BiomarkersForCellTypeInAnatomicalStructure(ctx context.Context, cellType, anatomicalStructure string) (*result.Result, error) {
	return c.Run(ctx, catalog.BiomarkersForCellTypeInAnatomicalStructure, map[string]string{
		catalog.ParamCellType:            cellType,
		catalog.ParamAnatomicalStructure: anatomicalStructure,
	})
}

// TissueBlocksInAnatomicalStructure lists tissue blocks collected from an
// anatomical structure. Default: obo:UBERON_0000948.
func (c *Client) TissueBlocksInAnatomicalStructure(ctx context.Context, anatomicalStructure string) (*result.Result, error) {
	return c.Run(ctx, catalog.TissueBlocksInAnatomicalStructure, map[string]string{
		catalog.ParamAnatomicalStructure: anatomicalStructure,
	})
}

// TissueBlockCountForAllAnatomicalStructures counts tissue blocks per
// anatomical structure.
func (c *Client) TissueBlockCountForAllAnatomicalStructures(ctx context.Context) (*result.Result, error) {
	return c.Run(ctx, catalog.TissueBlockCountForAllAnatomicalStructures, nil)
}

// AnatomicalStructuresInTissueBlock lists the anatomical structures a
// tissue block collides with.
func (c *Client) AnatomicalStructuresInTissueBlock(ctx context.Context, tissueBlock string) (*result.Result, error) {
	return c.Run(ctx, catalog.AnatomicalStructuresInTissueBlock, map[string]string{
		catalog.ParamTissueBlock: tissueBlock,
	})
}

// LocationsOfAllCellTypes lists where each cell type is located.
func (c *Client) LocationsOfAllCellTypes(ctx context.Context) (*result.Result, error) {
	return c.Run(ctx, catalog.LocationsOfAllCellTypes, nil)
}

// EvidenceForSpecificCellType lists publications supporting one cell
// type. Default: obo:CL_0000171.
func (c *Client) EvidenceForSpecificCellType(ctx context.Context, cellType string) (*result.Result, error) {
	return c.Run(ctx, catalog.EvidenceForSpecificCellType, map[string]string{
		catalog.ParamCellType: cellType,
	})
}

// EvidenceForAllCellTypes lists publications supporting every cell type.
func (c *Client) EvidenceForAllCellTypes(ctx context.Context) (*result.Result, error) {
	return c.Run(ctx, catalog.EvidenceForAllCellTypes, nil)
}

// CellTypesFromBiomarkers lists cell types characterized by any of the
// given biomarkers. With none, hgnc:633, hgnc:637 and hgnc:800 are used.
func (c *Client) CellTypesFromBiomarkers(ctx context.Context, biomarkers ...string) (*result.Result, error) {
	return c.Run(ctx, catalog.CellTypesFromBiomarkers, map[string]string{
		catalog.ParamBiomarkers: strings.Join(biomarkers, ","),
	})
}

// Package result materializes query results from the comma-separated
// exchange file written by the reasoning engine.
//
// The first record of the file holds the column names; every following
// record is one result row with exactly those columns. Cells are typed on
// read: an empty cell is null, integer text becomes int64, decimal text
// becomes float64 and everything else (IRIs, labels, CURIEs) stays a
// string.
//
// Row order in the file is whatever the engine produced and is not
// significant. Compare results with EqualUnordered.
package result

// Package hubmap answers questions about the HuBMAP Human Reference Atlas
// ontology.
//
// A Client owns one reasoning session: the ontology is loaded and
// classified once in New, and every operation afterwards is a single
// query round-trip against the materialized ontology. Each operation
// loads its SPARQL template, binds arguments (or the documented
// defaults), writes the engine's CSV output to the results directory and
// reads it back as a result.Result.
//
//	c, err := hubmap.New(ctx, robot.Dialer(robot.Config{}), hubmap.Options{
//		Ontology:  "ontology/ccf.owl",
//		OutputDir: "results",
//	})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	counts, err := c.TissueBlockCountForAllAnatomicalStructures(ctx)
//
// A Client serializes its calls. Use one Client per worker for
// parallelism; each pays the reasoning cost.
package hubmap

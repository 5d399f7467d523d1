// Package schema describes the local relations the lookup cache is built from.
//
// Descriptors are parsed from loosely typed configuration values (decoded
// YAML or CUE) by pure functions that never panic. Every problem found in a
// descriptor is reported, in a stable order, so a single validation pass
// gives complete feedback:
//
//	obj, errs := schema.ParseObject(raw)
//	if len(errs) > 0 {
//	    return errors.New(schema.FormatErrors(errs))
//	}
//
// Objects are built in two phases: every TableDef first, then every IndexDef,
// each phase in declaration order (see Order).
//
// Every table has a staging twin named TempPrefix+name that receives the next
// snapshot before it is swapped in. Twins are derived with StagingTwin and
// built alongside the object they shadow.
package schema

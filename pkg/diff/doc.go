// Package diff applies batches of typed edit operations to a workflow graph.
//
// A batch runs in two passes over an arena of nodes. Pass one applies every
// addNode and removeNode in submission order, so node identity and the name
// index are final before anything else runs. Pass two applies every other
// operation in submission order against that result. An operation may
// therefore reference a node that an addNode later in the same batch creates,
// while any operation on a node removed in the same batch fails wherever it
// sits in the batch. Repeated patches to one node apply in submission order,
// so the last writer in pass two wins.
//
// Batches are transactional: the engine mutates a deep copy and returns it
// only when every operation succeeded. In validate-only mode the copy is
// validated and discarded.
//
// # Usage
//
//	ops, err := diff.DecodeOperations(raw)
//	if err != nil {
//	    return err
//	}
//	engine := diff.NewEngine(validator.New(snapshot))
//	result, err := engine.Apply(wf, ops, diff.ModeValidateOnly)
package diff

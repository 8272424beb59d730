// Package autofix turns validation findings into confidence-scored diff
// operations.
//
// Fixes are leaf-scoped: each one corrects a single field of a single node
// and records the value before and after. Operations are node-scoped: all
// fixes for one node are merged into one updateNode operation. The fixer
// never invents intent, so it clears a conflicting onError instead of
// guessing an error handler to connect, and it leaves misplaced error
// outputs for the author.
//
// Confidence is a closed set of tiers. High fixes are mechanical, medium
// fixes are plausible but depend on context, and low fixes need a human to
// confirm them. The default threshold is medium.
//
// # Usage
//
//	fixer := autofix.New(snapshot)
//	res := validator.New(snapshot).ValidateWorkflow(wf, validator.Options{})
//	fixes := fixer.Generate(wf, &res, expression.ScanWorkflow(wf), autofix.Options{})
//	preview, err := diff.NewEngine(v).Apply(wf, fixes.Operations, diff.ModeValidateOnly)
package autofix

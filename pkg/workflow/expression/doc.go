// Package expression checks n8n-style interpolation expressions found in node
// parameters and evaluates the small condition language used by property
// display rules.
//
// A parameter value is live only when it starts with the evaluation prefix:
//
//	"={{ $json.url }}"          live expression
//	"{{ $json.url }}"           literal text, flagged (missing prefix)
//	"=={{ $json.url }}"         flagged (double prefix)
//	"={{ }}"                    flagged (empty expression)
//	"={{ {{ $json.url }} }}"    flagged (nested markers)
//
// Check is a pure function with a fixed confidence of 1.0; it never fails.
// Walk and Scan apply it to every leaf of a node's parameter tree, skipping
// raw code parameters such as jsCode.
//
// The condition Evaluator uses expr-lang/expr and caches compiled programs.
// Conditions see a params map and the has() helper:
//
//	has(show0, params["resource"]) && !has(hide0, params["operation"])
package expression

package expression

import (
	"github.com/tombee/flowsmith/pkg/workflow"
)

// Finding is an expression-format problem at one parameter leaf.
type Finding struct {
	NodeID      string  `json:"nodeId,omitempty"`
	NodeName    string  `json:"nodeName"`
	Path        string  `json:"path"`
	Value       string  `json:"value"`
	Verdict     Verdict `json:"verdict"`
	Addressable bool    `json:"addressable"`
}

// Scan returns the formatting findings for one node, in path order.
func Scan(node *workflow.Node) []Finding {
	var findings []Finding
	Walk("parameters", node.Parameters, func(path string, value any, addressable bool) {
		verdict := Check(value)
		if verdict.Valid {
			return
		}
		s, _ := value.(string)
		findings = append(findings, Finding{
			NodeID:      node.ID,
			NodeName:    node.Name,
			Path:        path,
			Value:       s,
			Verdict:     verdict,
			Addressable: addressable,
		})
	})
	return findings
}

// ScanWorkflow returns the formatting findings for every enabled node, in
// node order.
func ScanWorkflow(wf *workflow.Workflow) []Finding {
	if wf == nil {
		return nil
	}
	var findings []Finding
	for i := range wf.Nodes {
		if wf.Nodes[i].Disabled {
			continue
		}
		findings = append(findings, Scan(&wf.Nodes[i])...)
	}
	return findings
}

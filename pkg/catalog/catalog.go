// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package catalog describes node types: their versions, properties,
// credentials and capability flags. Validators consume a Catalog; this
// package provides an immutable in-memory Snapshot and an embedded default.
package catalog

import (
	"slices"
	"strings"
)

// Catalog is the read-only lookup the validators depend on. All lookups for
// one validation call must observe the same snapshot.
type Catalog interface {
	// Lookup returns the descriptor for an exact type identifier.
	Lookup(nodeType string) (*NodeType, bool)

	// IsToolCapable reports whether the type can feed an agent's ai_tool input.
	IsToolCapable(nodeType string) bool

	// IsTriggerCapable reports whether the type can start a workflow.
	IsTriggerCapable(nodeType string) bool

	// MaxVersion returns the highest supported typeVersion.
	MaxVersion(nodeType string) (float64, bool)
}

// Suggester is implemented by catalogs that can propose close matches for an
// unknown type identifier.
type Suggester interface {
	Suggest(nodeType string, limit int) []Suggestion
}

// Suggestion is a candidate type for an unknown identifier.
type Suggestion struct {
	Type  string  `json:"type"`
	Score float64 `json:"score"`
}

// Port types a node may emit or accept.
const (
	PortMain          = "main"
	PortAITool        = "ai_tool"
	PortAILanguage    = "ai_languageModel"
	PortAIMemory      = "ai_memory"
	PortAIOutputParse = "ai_outputParser"
	PortAIEmbedding   = "ai_embedding"
	PortAIDocument    = "ai_document"
	PortAITextSplit   = "ai_textSplitter"
	PortAIVectorStore = "ai_vectorStore"
	PortAIRetriever   = "ai_retriever"
)

// KnownPorts lists every port type the runtime understands.
var KnownPorts = []string{
	PortMain, PortAITool, PortAILanguage, PortAIMemory, PortAIOutputParse,
	PortAIEmbedding, PortAIDocument, PortAITextSplit, PortAIVectorStore, PortAIRetriever,
}

// IsKnownPort reports whether port is a known port type.
func IsKnownPort(port string) bool {
	return slices.Contains(KnownPorts, port)
}

// NodeType describes one node type.
type NodeType struct {
	Name        string    `json:"name" yaml:"name"`
	DisplayName string    `json:"displayName" yaml:"displayName"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string    `json:"category,omitempty" yaml:"category,omitempty"`
	Versions    []float64 `json:"versions,omitempty" yaml:"versions,omitempty"`

	Properties  []Property      `json:"properties,omitempty" yaml:"properties,omitempty"`
	Credentials []CredentialRef `json:"credentials,omitempty" yaml:"credentials,omitempty"`

	Trigger      bool `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	Webhook      bool `json:"webhook,omitempty" yaml:"webhook,omitempty"`
	ToolCapable  bool `json:"toolCapable,omitempty" yaml:"toolCapable,omitempty"`
	AgentCapable bool `json:"agentCapable,omitempty" yaml:"agentCapable,omitempty"`

	// Outputs is the number of regular main outputs; zero means one.
	Outputs int `json:"outputs,omitempty" yaml:"outputs,omitempty"`

	// Inputs lists accepted input port types. Nil means main, or nothing
	// for triggers; an empty list means the node accepts no inputs.
	Inputs []string `json:"inputs" yaml:"inputs"`

	// OutputTypes lists emitted port types. Empty means main.
	OutputTypes []string `json:"outputTypes,omitempty" yaml:"outputTypes,omitempty"`
}

// Property is one configurable parameter of a node type.
type Property struct {
	Name           string          `json:"name" yaml:"name"`
	DisplayName    string          `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Type           string          `json:"type" yaml:"type"`
	Required       bool            `json:"required,omitempty" yaml:"required,omitempty"`
	Default        any             `json:"default,omitempty" yaml:"default,omitempty"`
	Description    string          `json:"description,omitempty" yaml:"description,omitempty"`
	Options        []Option        `json:"options,omitempty" yaml:"options,omitempty"`
	DisplayOptions *DisplayOptions `json:"displayOptions,omitempty" yaml:"displayOptions,omitempty"`
}

// Option is one allowed value of an options property.
type Option struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"`
}

// DisplayOptions gates a property's visibility on other parameter values.
type DisplayOptions struct {
	Show map[string][]any `json:"show,omitempty" yaml:"show,omitempty"`
	Hide map[string][]any `json:"hide,omitempty" yaml:"hide,omitempty"`
}

// CredentialRef names a credential type a node can use.
type CredentialRef struct {
	Name     string `json:"name" yaml:"name"`
	Required bool   `json:"required,omitempty" yaml:"required,omitempty"`
}

// Property types with special handling.
const (
	TypeString          = "string"
	TypeNumber          = "number"
	TypeBoolean         = "boolean"
	TypeOptions         = "options"
	TypeMultiOptions    = "multiOptions"
	TypeCollection      = "collection"
	TypeFixedCollection = "fixedCollection"
	TypeJSON            = "json"
	TypeResourceLocator = "resourceLocator"
	TypeFilter          = "filter"
	TypeAssignments     = "assignmentCollection"
	TypeNotice          = "notice"
)

// MaxVersion returns the highest declared version.
func (t *NodeType) MaxVersion() (float64, bool) {
	if len(t.Versions) == 0 {
		return 0, false
	}
	return slices.Max(t.Versions), true
}

// MinVersion returns the lowest declared version.
func (t *NodeType) MinVersion() (float64, bool) {
	if len(t.Versions) == 0 {
		return 0, false
	}
	return slices.Min(t.Versions), true
}

// Versioned reports whether nodes of this type must carry a typeVersion.
func (t *NodeType) Versioned() bool {
	return len(t.Versions) > 0
}

// HasVersion reports whether v is one of the declared versions.
func (t *NodeType) HasVersion(v float64) bool {
	return slices.Contains(t.Versions, v)
}

// MainOutputs returns the number of regular main outputs.
func (t *NodeType) MainOutputs() int {
	if t.Outputs <= 0 {
		return 1
	}
	return t.Outputs
}

// AcceptsInput reports whether a connection of the given port type may
// target a node of this type.
func (t *NodeType) AcceptsInput(port string) bool {
	if t.Inputs != nil {
		return slices.Contains(t.Inputs, port)
	}
	if t.Trigger {
		return false
	}
	return port == PortMain
}

// EmitsOutput reports whether a node of this type can be the source of a
// connection of the given port type.
func (t *NodeType) EmitsOutput(port string) bool {
	if len(t.OutputTypes) > 0 {
		return slices.Contains(t.OutputTypes, port)
	}
	if port == PortAITool {
		return t.ToolCapable
	}
	return port == PortMain
}

// Property returns the named property. Several properties may share a name
// under different display conditions; the first is returned.
func (t *NodeType) Property(name string) (*Property, bool) {
	for i := range t.Properties {
		if t.Properties[i].Name == name {
			return &t.Properties[i], true
		}
	}
	return nil, false
}

// Package prefixes used in type identifiers.
const (
	packageBase      = "n8n-nodes-base."
	packageLangchain = "@n8n/n8n-nodes-langchain."
	shortBase        = "nodes-base."
	shortLangchain   = "nodes-langchain."
)

// FullForm converts the short database form of a type identifier
// ("nodes-base.slack") into the form workflows must use
// ("n8n-nodes-base.slack"). Other identifiers are returned unchanged.
func FullForm(nodeType string) string {
	switch {
	case strings.HasPrefix(nodeType, shortBase):
		return packageBase + strings.TrimPrefix(nodeType, shortBase)
	case strings.HasPrefix(nodeType, shortLangchain):
		return packageLangchain + strings.TrimPrefix(nodeType, shortLangchain)
	}
	return nodeType
}

// LocalName strips the package prefix from a type identifier.
func LocalName(nodeType string) string {
	if i := strings.LastIndex(nodeType, "."); i >= 0 {
		return nodeType[i+1:]
	}
	return nodeType
}

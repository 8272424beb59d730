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

package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/flowsmith/pkg/workflow"
)

func slackType() *NodeType {
	return &NodeType{
		Name:     "n8n-nodes-base.slack",
		Versions: []float64{1, 2, 2.2},
		Properties: []Property{
			{Name: "resource", Type: TypeOptions, Default: "message", Options: []Option{{Name: "Message", Value: "message"}, {Name: "Channel", Value: "channel"}}},
			{Name: "operation", Type: TypeOptions, Default: "post", DisplayOptions: &DisplayOptions{Show: map[string][]any{"resource": {"message"}}}},
			{Name: "operation", Type: TypeOptions, Default: "create", DisplayOptions: &DisplayOptions{Show: map[string][]any{"resource": {"channel"}}}},
			{Name: "text", Type: TypeString, Required: true, DisplayOptions: &DisplayOptions{Show: map[string][]any{"resource": {"message"}, "operation": {"post", "update"}}}},
			{Name: "blocks", Type: TypeJSON, DisplayOptions: &DisplayOptions{Show: map[string][]any{VersionKey: {2.2}}}},
			{Name: "legacy", Type: TypeString, DisplayOptions: &DisplayOptions{Hide: map[string][]any{VersionKey: {2.2}}}},
		},
	}
}

func TestVisibility(t *testing.T) {
	v := NewVisibility()
	nt := slackType()
	text := &nt.Properties[3]

	tests := []struct {
		name    string
		params  map[string]any
		version *float64
		want    map[string]bool
	}{
		{
			name:    "defaults show message post",
			params:  map[string]any{},
			version: workflow.Float(2.2),
			want:    map[string]bool{"text": true, "blocks": true, "legacy": false},
		},
		{
			name:    "channel resource hides text",
			params:  map[string]any{"resource": "channel"},
			version: workflow.Float(1),
			want:    map[string]bool{"text": false, "blocks": false, "legacy": true},
		},
		{
			name:    "update operation shows text",
			params:  map[string]any{"resource": "message", "operation": "update"},
			version: workflow.Float(2),
			want:    map[string]bool{"text": true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := EffectiveParams(nt, tt.params, tt.version)
			for name, want := range tt.want {
				var p *Property
				for i := range nt.Properties {
					if nt.Properties[i].Name == name {
						p = &nt.Properties[i]
					}
				}
				require.NotNil(t, p, name)
				got, err := v.Visible(p, params)
				require.NoError(t, err)
				assert.Equal(t, want, got, name)
			}
		})
	}

	visible, err := v.Visible(text, EffectiveParams(nt, map[string]any{"operation": "delete"}, nil))
	require.NoError(t, err)
	assert.False(t, visible)
}

func TestVisibleProperties(t *testing.T) {
	v := NewVisibility()
	nt := slackType()

	props, err := v.VisibleProperties(nt, EffectiveParams(nt, map[string]any{"resource": "channel"}, workflow.Float(1)))
	require.NoError(t, err)

	var names []string
	for _, p := range props {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"resource", "operation", "legacy"}, names)
	assert.Equal(t, "create", props[1].Default, "the visible variant of a shared name is returned")
}

func TestEffectiveParams(t *testing.T) {
	nt := slackType()
	params := EffectiveParams(nt, map[string]any{"text": "hi"}, nil)
	assert.Equal(t, "message", params["resource"])
	assert.Equal(t, "post", params["operation"])
	assert.Equal(t, "hi", params["text"])
	assert.Equal(t, 2.2, params[VersionKey], "missing version falls back to the latest")
}

func TestValueChecker(t *testing.T) {
	c := NewValueChecker()
	options := &Property{Name: "method", Type: TypeOptions, Options: []Option{{Value: "GET"}, {Value: "POST"}}}

	tests := []struct {
		name    string
		prop    *Property
		value   any
		wantErr bool
	}{
		{name: "string ok", prop: &Property{Type: TypeString}, value: "x"},
		{name: "string wrong", prop: &Property{Type: TypeString}, value: 5.0, wantErr: true},
		{name: "number ok", prop: &Property{Type: TypeNumber}, value: 5},
		{name: "number as text", prop: &Property{Type: TypeNumber}, value: "5", wantErr: true},
		{name: "expression skips check", prop: &Property{Type: TypeNumber}, value: "={{ $json.n }}"},
		{name: "option ok", prop: options, value: "POST"},
		{name: "option unknown", prop: options, value: "FETCH", wantErr: true},
		{name: "collection ok", prop: &Property{Type: TypeCollection}, value: map[string]any{}},
		{name: "collection wrong", prop: &Property{Type: TypeCollection}, value: []any{}, wantErr: true},
		{name: "locator string", prop: &Property{Type: TypeResourceLocator}, value: "C123"},
		{name: "unchecked type", prop: &Property{Type: "color"}, value: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems, err := c.Check(tt.prop, tt.value)
			require.NoError(t, err)
			if tt.wantErr {
				assert.NotEmpty(t, problems)
			} else {
				assert.Empty(t, problems)
			}
		})
	}
}

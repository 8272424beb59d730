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

package validator

import (
	"fmt"
	"strings"
)

// Profile selects how strict node configuration checks are. Structural,
// connection and expression rules are the same for every profile.
type Profile string

const (
	// ProfileMinimal checks required properties only.
	ProfileMinimal Profile = "minimal"
	// ProfileRuntime adds property value checks against the catalog.
	ProfileRuntime Profile = "runtime"
	// ProfileAIFriendly adds unknown property and credential hints.
	ProfileAIFriendly Profile = "ai-friendly"
	// ProfileStrict adds error-handling and unused property hints.
	ProfileStrict Profile = "strict"
)

// DefaultProfile is used when no profile is given.
const DefaultProfile = ProfileRuntime

var profileRank = map[Profile]int{
	ProfileMinimal:    0,
	ProfileRuntime:    1,
	ProfileAIFriendly: 2,
	ProfileStrict:     3,
}

// ParseProfile resolves a profile name. An empty name selects the default.
func ParseProfile(name string) (Profile, error) {
	if name == "" {
		return DefaultProfile, nil
	}
	p := Profile(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := profileRank[p]; !ok {
		return "", fmt.Errorf("unknown validation profile %q (expected minimal, runtime, ai-friendly or strict)", name)
	}
	return p, nil
}

// atLeast reports whether p is as strict as other.
func (p Profile) atLeast(other Profile) bool {
	return profileRank[p.orDefault()] >= profileRank[other]
}

func (p Profile) orDefault() Profile {
	if _, ok := profileRank[p]; ok {
		return p
	}
	return DefaultProfile
}

// Options select validation dimensions. A nil dimension flag means enabled.
type Options struct {
	ValidateNodes       *bool   `json:"validateNodes,omitempty" yaml:"validate_nodes,omitempty"`
	ValidateConnections *bool   `json:"validateConnections,omitempty" yaml:"validate_connections,omitempty"`
	ValidateExpressions *bool   `json:"validateExpressions,omitempty" yaml:"validate_expressions,omitempty"`
	Profile             Profile `json:"profile,omitempty" yaml:"profile,omitempty"`
}

// dimensions is the resolved form of Options.
type dimensions struct {
	structure   bool
	nodes       bool
	connections bool
	expressions bool
	profile     Profile
}

func enabled(flag *bool) bool {
	return flag == nil || *flag
}

func (o Options) resolve() dimensions {
	return dimensions{
		structure:   true,
		nodes:       enabled(o.ValidateNodes),
		connections: enabled(o.ValidateConnections),
		expressions: enabled(o.ValidateExpressions),
		profile:     o.Profile.orDefault(),
	}
}

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

package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tombee/flowsmith/internal/service"
	"github.com/tombee/flowsmith/pkg/autofix"
	flowerrors "github.com/tombee/flowsmith/pkg/errors"
	"github.com/tombee/flowsmith/pkg/validator"
)

type validateRequest struct {
	Workflow json.RawMessage   `json:"workflow"`
	Options  validator.Options `json:"options"`
}

type diffRequest struct {
	Workflow     json.RawMessage `json:"workflow"`
	Operations   json.RawMessage `json:"operations"`
	ValidateOnly bool            `json:"validateOnly"`
	Profile      string          `json:"profile"`
}

type autofixRequest struct {
	Workflow            json.RawMessage   `json:"workflow"`
	ApplyFixes          bool              `json:"applyFixes"`
	ConfidenceThreshold string            `json:"confidenceThreshold"`
	FixTypes            []autofix.FixType `json:"fixTypes"`
	MaxFixes            int               `json:"maxFixes"`
	Profile             string            `json:"profile"`
}

func (s *Server) handleValidate(r *http.Request) (any, error) {
	var req validateRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	if err := requireWorkflow(req.Workflow); err != nil {
		return nil, err
	}
	profile, err := parseProfile(string(req.Options.Profile))
	if err != nil {
		return nil, err
	}
	req.Options.Profile = profile
	return s.service.ValidateWorkflow(r.Context(), req.Workflow, req.Options)
}

func (s *Server) handleValidateConnections(r *http.Request) (any, error) {
	var req validateRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	if err := requireWorkflow(req.Workflow); err != nil {
		return nil, err
	}
	return s.service.ValidateConnections(r.Context(), req.Workflow)
}

func (s *Server) handleValidateExpressions(r *http.Request) (any, error) {
	var req validateRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	if err := requireWorkflow(req.Workflow); err != nil {
		return nil, err
	}
	return s.service.ValidateExpressions(r.Context(), req.Workflow)
}

func (s *Server) handleDiff(r *http.Request) (any, error) {
	var req diffRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	if err := requireWorkflow(req.Workflow); err != nil {
		return nil, err
	}
	profile, err := parseProfile(req.Profile)
	if err != nil {
		return nil, err
	}
	var ops any
	if len(req.Operations) > 0 {
		ops = req.Operations
	}
	return s.service.ApplyOperations(r.Context(), service.DiffRequest{
		Workflow:     req.Workflow,
		Operations:   ops,
		ValidateOnly: req.ValidateOnly,
		Profile:      profile,
	})
}

func (s *Server) handleAutofix(r *http.Request) (any, error) {
	var req autofixRequest
	if err := decodeBody(r, &req); err != nil {
		return nil, err
	}
	if err := requireWorkflow(req.Workflow); err != nil {
		return nil, err
	}
	profile, err := parseProfile(req.Profile)
	if err != nil {
		return nil, err
	}
	confidence, err := autofix.ParseConfidence(req.ConfidenceThreshold)
	if err != nil {
		return nil, &flowerrors.ValidationError{Field: "confidenceThreshold", Message: err.Error()}
	}
	return s.service.GenerateFixes(r.Context(), service.FixRequest{
		Workflow: req.Workflow,
		Options: autofix.Options{
			ConfidenceThreshold: confidence,
			FixTypes:            req.FixTypes,
			MaxFixes:            req.MaxFixes,
		},
		Profile: profile,
		Apply:   req.ApplyFixes,
	})
}

func (s *Server) handleSearchNodes(r *http.Request) (any, error) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"), "limit")
	if err != nil {
		return nil, err
	}
	hits, err := s.service.SearchNodes(r.Context(), q.Get("q"), limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"results": hits, "total": len(hits)}, nil
}

func (s *Server) handleNodeInfo(r *http.Request) (any, error) {
	q := r.URL.Query()
	return s.service.NodeInfo(r.Context(), service.NodeInfoRequest{
		Type:   chi.URLParam(r, "type"),
		Detail: service.Detail(q.Get("detail")),
		Filter: q.Get("filter"),
	})
}

func (s *Server) handleListTemplates(r *http.Request) (any, error) {
	list, err := s.service.Templates(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"templates": list, "total": len(list)}, nil
}

func (s *Server) handleGetTemplate(r *http.Request) (any, error) {
	return s.service.Template(r.Context(), chi.URLParam(r, "name"), r.URL.Query().Get("workflowName"))
}

func decodeBody(r *http.Request, dst any) error {
	body := http.MaxBytesReader(nil, r.Body, maxBodySize)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return &flowerrors.ValidationError{Field: "body", Message: fmt.Sprintf("request body exceeds %d bytes", maxBodySize)}
		case errors.Is(err, io.EOF):
			return &flowerrors.ValidationError{Field: "body", Message: "request body is empty"}
		}
		return &flowerrors.ParseError{Source: "request body", Format: "json", Cause: err}
	}
	return nil
}

func requireWorkflow(raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return &flowerrors.ValidationError{Field: "workflow", Message: "workflow is required"}
	}
	return nil
}

func parseProfile(name string) (validator.Profile, error) {
	if name == "" {
		return "", nil
	}
	p, err := validator.ParseProfile(name)
	if err != nil {
		return "", &flowerrors.ValidationError{Field: "profile", Message: err.Error()}
	}
	return p, nil
}

func queryInt(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, &flowerrors.ValidationError{Field: name, Message: fmt.Sprintf("%s must be a non-negative integer", name)}
	}
	return n, nil
}

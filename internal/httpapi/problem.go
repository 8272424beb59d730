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
	"net/http"

	"github.com/moogar0880/problems"

	flowerrors "github.com/tombee/flowsmith/pkg/errors"
)

const problemContentType = "application/problem+json"

// statusFor maps an error class to an HTTP status.
func statusFor(errType string) int {
	switch errType {
	case "validation", "parse":
		return http.StatusBadRequest
	case "not_found":
		return http.StatusNotFound
	case "timeout":
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError renders err as an RFC 7807 problem. Internal errors do not
// leak their message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	errType := flowerrors.TypeOf(err)
	status := statusFor(errType)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = "internal error"
	}
	writeProblem(w, r, status, errType, detail)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, errType, detail string) {
	problem := problems.NewStatusProblem(status).
		WithInstance(r.URL.Path).
		WithType(errType).
		WithDetail(detail)

	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

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

package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewCorrelationID(t *testing.T) {
	id := NewCorrelationID()

	if !id.IsValid() {
		t.Errorf("expected valid UUID format, got %q", id)
	}
	if len(id) != 36 {
		t.Errorf("expected length 36, got %d", len(id))
	}
	if other := NewCorrelationID(); other == id {
		t.Error("expected distinct IDs")
	}
}

func TestCorrelationID_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		id    CorrelationID
		valid bool
	}{
		{"valid UUID", "550e8400-e29b-41d4-a716-446655440000", true},
		{"valid UUID uppercase", "550E8400-E29B-41D4-A716-446655440000", true},
		{"empty", "", false},
		{"too short", "550e8400-e29b-41d4", false},
		{"missing hyphens", "550e8400e29b41d4a716446655440000", false},
		{"braced", "{550e8400-e29b-41d4-a716-446655440000}", false},
		{"invalid characters", "550e8400-e29b-41d4-a716-44665544000g", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestContextRoundTrip(t *testing.T) {
	if got := FromContext(context.Background()); got != "" {
		t.Errorf("expected empty ID, got %q", got)
	}

	id := NewCorrelationID()
	if got := FromContext(ToContext(context.Background(), id)); got != id {
		t.Errorf("expected %q, got %q", id, got)
	}
}

func TestCorrelationMiddleware(t *testing.T) {
	const valid = "550e8400-e29b-41d4-a716-446655440000"

	tests := []struct {
		name       string
		header     string
		value      string
		wantStatus int
		wantID     string
	}{
		{name: "generated", wantStatus: http.StatusOK},
		{name: "correlation header", header: HeaderCorrelationID, value: valid, wantStatus: http.StatusOK, wantID: valid},
		{name: "request id fallback", header: HeaderRequestID, value: valid, wantStatus: http.StatusOK, wantID: valid},
		{name: "invalid", header: HeaderCorrelationID, value: "not-a-uuid", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen CorrelationID
			handler := CorrelationMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = FromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if !seen.IsValid() {
				t.Errorf("expected valid ID in context, got %q", seen)
			}
			if tt.wantID != "" && seen.String() != tt.wantID {
				t.Errorf("expected ID %q, got %q", tt.wantID, seen)
			}
			if rec.Header().Get(HeaderCorrelationID) != seen.String() {
				t.Errorf("expected response header %q, got %q", seen, rec.Header().Get(HeaderCorrelationID))
			}
		})
	}
}

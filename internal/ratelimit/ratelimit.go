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

// Package ratelimit provides the token bucket shared by every tool call,
// whichever surface it arrives on.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter implements token bucket rate limiting for tool calls. A nil
// Limiter allows everything.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter refilling callsPerMinute tokens per minute into a
// bucket of burst tokens. A non-positive rate returns nil, which disables
// limiting. A non-positive burst is raised to one.
func New(callsPerMinute, burst int) *Limiter {
	if callsPerMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(callsPerMinute)), burst),
	}
}

// Allow reports whether a call may proceed now, consuming a token if so.
func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	return l.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

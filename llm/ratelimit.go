/**
 * Copyright 2026 Perl2J Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateGate spaces out backend calls across the whole run. Burst is pinned
// to 1 so the configured rate is also the minimum interval between calls:
// 0.5 per second means one call every two seconds, which is what most
// completion APIs tolerate without throttling.
type RateGate struct {
	limiter *rate.Limiter
}

// NewRateGate returns a gate admitting perSecond calls. Non-positive
// rates return nil, which Wait treats as unlimited.
func NewRateGate(perSecond float64) *RateGate {
	if perSecond <= 0 {
		return nil
	}
	return &RateGate{limiter: rate.NewLimiter(rate.Limit(perSecond), 1)}
}

// Wait blocks until a call slot frees up or ctx is done.
func (g *RateGate) Wait(ctx context.Context) error {
	if g == nil || g.limiter == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}

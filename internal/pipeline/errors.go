// Copyright 2026 Perl2J Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

// FailReason is the user-visible category attached to a Failed record.
type FailReason string

const (
	// ReasonMissingInput marks a unit whose source was absent or
	// unusable before any generation happened.
	ReasonMissingInput FailReason = "MissingInput"
	// ReasonBackendUnavailable marks a backend failure that survived the
	// retry policy, or a permanent backend rejection.
	ReasonBackendUnavailable FailReason = "BackendUnavailable"
	// ReasonAttemptsExhausted marks a record whose issues persisted after
	// the configured number of fix attempts.
	ReasonAttemptsExhausted FailReason = "AttemptsExhausted"
	// ReasonRunCanceled marks a record settled because the run context
	// was canceled before its remaining backend work could start.
	ReasonRunCanceled FailReason = "RunCanceled"
)

// MissingInputError reports a unit that cannot enter generation at all.
// It never consumes fix attempts.
type MissingInputError struct {
	Identity string
	Detail   string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input for %s: %s", e.Identity, e.Detail)
}

// IsMissingInput reports whether err is a MissingInputError anywhere in
// its chain.
func IsMissingInput(err error) bool {
	var miss *MissingInputError
	return errors.As(err, &miss)
}

// transienter is implemented by backend errors that may succeed on retry.
// The llm client classifies transport failures and exposes the result
// through this interface, so the controller never inspects raw errors.
type transienter interface {
	IsTransient() bool
}

// IsTransientBackend reports whether err is a retryable backend condition.
func IsTransientBackend(err error) bool {
	var t transienter
	if errors.As(err, &t) {
		return t.IsTransient()
	}
	return false
}

// IllegalTransitionError rejects a record update that the state machine
// does not permit.
type IllegalTransitionError struct {
	Identity string
	From     Phase
	To       Phase
	Detail   string
}

func (e *IllegalTransitionError) Error() string {
	msg := fmt.Sprintf("illegal transition %s -> %s for %s", e.From, e.To, e.Identity)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

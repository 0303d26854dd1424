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
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/perl2j/perl2j/internal/log"
	"github.com/perl2j/perl2j/llm/prompt"
)

var _ Caller = (*Client)(nil)

// Client is the shared backend handle of a conversion run. All agents go
// through one Client so the rate gate sees every call.
type Client struct {
	name    string
	chat    ChatModel
	gate    *RateGate
	retries int
	timeout time.Duration
}

// NewClient binds the configured provider. Panics on a bad config, like
// the model constructors it wraps.
func NewClient(cfg ModelConfig, gate *RateGate) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		name:    cfg.Name,
		chat:    NewChatModel(cfg),
		gate:    gate,
		retries: cfg.Retries,
		timeout: cfg.Timeout,
	}
}

// CallError is what a failed Call returns after retries are spent or a
// permanent error is hit. Transient reports whether the last failure was
// of the retryable kind.
type CallError struct {
	Model     string
	Attempts  int
	Transient bool
	Err       error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s call failed after %d attempt(s): %v", e.Model, e.Attempts, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

func (e *CallError) IsTransient() bool { return e.Transient }

// Call sends one system+user exchange. Transient failures are retried with
// exponential backoff (1s, 2s, 4s... capped at 10s) up to the configured
// retry count; permanent failures return immediately.
//
// ctx gates the backoff wait and the rate gate only. Each attempt runs
// under its own timeout context detached from ctx, so a request already
// in flight finishes even when the run is canceled.
func (c *Client) Call(ctx context.Context, system prompt.Prompt, user string, opts ...CallOption) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(system.String()),
		schema.UserMessage(user),
	}
	var settings CallSettings
	for _, opt := range opts {
		opt(&settings)
	}
	var mopts []model.Option
	if settings.Temperature != nil {
		mopts = append(mopts, model.WithTemperature(*settings.Temperature))
	}
	if settings.MaxTokens > 0 {
		mopts = append(mopts, model.WithMaxTokens(settings.MaxTokens))
	}
	log.Debug("[%s] call: %d prompt chars\n", c.name, len(user))

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			waitTime := time.Duration(1<<uint(attempt-1)) * time.Second
			if waitTime > 10*time.Second {
				waitTime = 10 * time.Second
			}
			log.Info("Retrying %s call in %s (attempt %d/%d)\n", c.name, waitTime, attempt+1, c.retries+1)
			select {
			case <-time.After(waitTime):
			case <-ctx.Done():
				return "", &CallError{Model: c.name, Attempts: attempt, Err: ctx.Err()}
			}
		}
		if err := c.gate.Wait(ctx); err != nil {
			return "", &CallError{Model: c.name, Attempts: attempt, Err: err}
		}

		attemptCtx, cancel := context.WithTimeout(context.Background(), c.timeout)
		out, err := c.chat.Generate(attemptCtx, msgs, mopts...)
		cancel()
		if err == nil {
			log.Debug("[%s] response: %d chars\n", c.name, len(out.Content))
			return out.Content, nil
		}

		lastErr = err
		if !retryable(err) {
			log.Error("Non-retryable %s error: %v\n", c.name, err)
			return "", &CallError{Model: c.name, Attempts: attempt + 1, Err: err}
		}
		log.Info("Retryable %s error (attempt %d/%d): %v\n", c.name, attempt+1, c.retries+1, err)
	}
	return "", &CallError{Model: c.name, Attempts: c.retries + 1, Transient: true, Err: lastErr}
}

// retryable classifies provider errors by message. The bindings do not
// expose typed errors, so substring matching is what there is.
func retryable(err error) bool {
	errStr := strings.ToLower(err.Error())
	for _, marker := range []string{
		"timeout",
		"connection reset",
		"connection refused",
		"operation timed out",
		"context deadline exceeded",
		"read tcp",
		"write tcp",
		"too many requests",
		"rate limit",
		"rate_limit",
		"429",
		"503",
		"overloaded",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}

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
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/perl2j/perl2j/internal/utils"
	"github.com/perl2j/perl2j/llm/prompt"
)

type stubChat struct {
	mu       sync.Mutex
	calls    int
	lastOpts int
	fn       func(call int) (*schema.Message, error)
}

func (s *stubChat) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	s.mu.Lock()
	s.calls++
	s.lastOpts = len(opts)
	n := s.calls
	s.mu.Unlock()
	return s.fn(n)
}

func (s *stubChat) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not supported in stub")
}

func (s *stubChat) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return s, nil
}

func (s *stubChat) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func stubClient(chat *stubChat, retries int) *Client {
	return &Client{
		name:    "stub",
		chat:    chat,
		retries: retries,
		timeout: time.Minute,
	}
}

func TestClientCallSuccess(t *testing.T) {
	chat := &stubChat{fn: func(int) (*schema.Message, error) {
		return schema.AssistantMessage("public class A { }", nil), nil
	}}
	c := stubClient(chat, 3)

	got, err := c.Call(context.Background(), prompt.NewTextPrompt("convert"), "sub a {}")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != "public class A { }" {
		t.Errorf("content: %q", got)
	}
	if chat.callCount() != 1 {
		t.Errorf("calls: %d", chat.callCount())
	}
}

func TestClientCallPassesOverrides(t *testing.T) {
	chat := &stubChat{fn: func(int) (*schema.Message, error) {
		return schema.AssistantMessage("ok", nil), nil
	}}
	c := stubClient(chat, 0)

	_, err := c.Call(context.Background(), prompt.NewTextPrompt("convert"), "sub a {}",
		WithTemperature(0.3), WithMaxTokens(2048))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if chat.lastOpts != 2 {
		t.Errorf("model options forwarded: %d, want 2", chat.lastOpts)
	}
}

func TestClientCallPermanentError(t *testing.T) {
	chat := &stubChat{fn: func(int) (*schema.Message, error) {
		return nil, fmt.Errorf("invalid api key")
	}}
	c := stubClient(chat, 3)

	_, err := c.Call(context.Background(), prompt.NewTextPrompt("convert"), "sub a {}")
	if err == nil {
		t.Fatal("want error")
	}
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("want CallError, got %T", err)
	}
	if callErr.Transient {
		t.Error("auth failure is not transient")
	}
	if callErr.Attempts != 1 {
		t.Errorf("attempts: %d", callErr.Attempts)
	}
	if chat.callCount() != 1 {
		t.Errorf("permanent error must not be retried, got %d calls", chat.callCount())
	}
}

func TestClientCallRetriesTransient(t *testing.T) {
	chat := &stubChat{fn: func(call int) (*schema.Message, error) {
		if call == 1 {
			return nil, fmt.Errorf("read tcp 10.0.0.1:443: connection reset by peer")
		}
		return schema.AssistantMessage("recovered", nil), nil
	}}
	c := stubClient(chat, 2)

	got, err := c.Call(context.Background(), prompt.NewTextPrompt("convert"), "sub a {}")
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != "recovered" || chat.callCount() != 2 {
		t.Errorf("got %q after %d calls", got, chat.callCount())
	}
}

func TestClientCallExhaustsRetries(t *testing.T) {
	chat := &stubChat{fn: func(int) (*schema.Message, error) {
		return nil, fmt.Errorf("429 too many requests")
	}}
	c := stubClient(chat, 1)

	_, err := c.Call(context.Background(), prompt.NewTextPrompt("convert"), "sub a {}")
	var callErr *CallError
	if !errors.As(err, &callErr) {
		t.Fatalf("want CallError, got %v", err)
	}
	if !callErr.Transient {
		t.Error("exhausted retries over a transient failure should stay transient")
	}
	if callErr.Attempts != 2 {
		t.Errorf("attempts: %d", callErr.Attempts)
	}
	if chat.callCount() != 2 {
		t.Errorf("calls: %d", chat.callCount())
	}
}

func TestClientCallCanceledDuringBackoff(t *testing.T) {
	chat := &stubChat{fn: func(int) (*schema.Message, error) {
		return nil, fmt.Errorf("operation timed out")
	}}
	c := stubClient(chat, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	_, err := c.Call(ctx, prompt.NewTextPrompt("convert"), "sub a {}")
	if err == nil {
		t.Fatal("want error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled in chain, got %v", err)
	}
	if chat.callCount() != 1 {
		t.Errorf("cancel must stop further attempts, got %d calls", chat.callCount())
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("canceled call still waited %s", elapsed)
	}
}

func TestCallErrorSurvivesWrapping(t *testing.T) {
	inner := &CallError{Model: "m", Attempts: 4, Transient: true, Err: fmt.Errorf("timeout")}
	wrapped := utils.WrapError(inner, "fail generate draft")

	var callErr *CallError
	if !errors.As(wrapped, &callErr) {
		t.Fatalf("CallError lost through wrapping: %v", wrapped)
	}
	if !callErr.IsTransient() {
		t.Error("transient flag lost")
	}
}

func TestRetryableClassification(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"context deadline exceeded", true},
		{"read tcp 1.2.3.4:443: connection reset by peer", true},
		{"429 Too Many Requests", true},
		{"rate_limit_error: overloaded", true},
		{"503 service unavailable", true},
		{"invalid api key", false},
		{"model not found", false},
		{"content policy violation", false},
	}
	for _, tt := range tests {
		if got := retryable(fmt.Errorf("%s", tt.msg)); got != tt.want {
			t.Errorf("retryable(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestNewModelType(t *testing.T) {
	tests := []struct {
		in   string
		want ModelType
	}{
		{"ollama", ModelTypeOllama},
		{"ARK", ModelTypeARK},
		{"doubao", ModelTypeARK},
		{"OpenAI", ModelTypeOpenAI},
		{"gpt", ModelTypeOpenAI},
		{"anthropic", ModelTypeClaude},
		{"qwen", ModelTypeDashScope},
		{"deepseek", ModelTypeDeepSeek},
		{"mystery", ModelTypeUnknown},
	}
	for _, tt := range tests {
		if got := NewModelType(tt.in); got != tt.want {
			t.Errorf("NewModelType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestModelConfigDefaults(t *testing.T) {
	m := ModelConfig{ModelName: "qwen-max"}.withDefaults()
	if m.MaxTokens != 16*1024 {
		t.Errorf("max tokens: %d", m.MaxTokens)
	}
	if m.Timeout != 600*time.Second {
		t.Errorf("timeout: %s", m.Timeout)
	}
	if m.Retries != 3 {
		t.Errorf("retries: %d", m.Retries)
	}
	if m.Name != "qwen-max" {
		t.Errorf("name should fall back to model name, got %q", m.Name)
	}
}

func TestRateGate(t *testing.T) {
	if g := NewRateGate(0); g != nil {
		t.Error("non-positive rate should disable the gate")
	}

	var g *RateGate
	if err := g.Wait(context.Background()); err != nil {
		t.Errorf("nil gate: %v", err)
	}

	fast := NewRateGate(1000)
	for i := 0; i < 3; i++ {
		if err := fast.Wait(context.Background()); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}

	slow := NewRateGate(0.1)
	if err := slow.Wait(context.Background()); err != nil {
		t.Fatalf("burst slot: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := slow.Wait(ctx); err == nil {
		t.Error("canceled wait should fail, not block ten seconds")
	}
}

// Package agent implements the tool-calling orchestration loop: the
// state machine that alternates model turns and tool-execution turns
// until the model produces a final answer, a failure occurs, or the
// run's deadline expires.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/merchantlabs/coo-agent/internal/llm"
	"github.com/merchantlabs/coo-agent/internal/prompts"
	"github.com/merchantlabs/coo-agent/internal/tools"
	"github.com/merchantlabs/coo-agent/internal/usage"
)

// Defaults for a single run.
const (
	DefaultMaxIterations = 25
	DefaultTimeout       = 25 * time.Second
)

// Response is the caller-facing result of one query. It is always
// well-formed: failures and timeouts produce an apologetic Response
// with Debug.Error set, never an error to the caller.
type Response struct {
	Response string `json:"response"`
	Debug    Debug  `json:"debug"`
}

// Debug carries per-run diagnostics.
type Debug struct {
	ToolUsage    []ToolUse `json:"tool_usage"`
	MessageCount int       `json:"message_count"`
	Error        string    `json:"error,omitempty"`
}

// ToolUse is one tool invocation as reported to the caller.
type ToolUse struct {
	Step   int    `json:"step"`
	Tool   string `json:"tool"`
	Input  string `json:"input"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Loop drives the model-tool conversation for queries.
// The registry must be sealed before the first Ask call; the loop reads
// it concurrently and never mutates it.
type Loop struct {
	client        llm.Client
	model         string
	registry      *tools.Registry
	maxIterations int
	timeout       time.Duration
	usageStore    *usage.Store
	logger        *slog.Logger
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxIterations caps model-tool round trips per query.
func WithMaxIterations(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

// WithTimeout sets the wall-clock deadline for one query.
func WithTimeout(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithUsageStore persists tool invocation records after each run.
func WithUsageStore(s *usage.Store) Option {
	return func(l *Loop) { l.usageStore = s }
}

// WithLogger sets the loop's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// New creates an orchestration loop.
func New(client llm.Client, model string, registry *tools.Registry, opts ...Option) *Loop {
	l := &Loop{
		client:        client,
		model:         model,
		registry:      registry,
		maxIterations: DefaultMaxIterations,
		timeout:       DefaultTimeout,
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Ask answers one query. It never returns an error to the caller:
// model failures, iteration overruns, and timeouts all come back as a
// Response with apologetic text and Debug.Error populated.
func (l *Loop) Ask(ctx context.Context, query string) *Response {
	requestID := uuid.NewString()
	tracker := usage.NewTracker()
	logger := l.logger.With("request_id", requestID)

	runCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	// The run executes in its own goroutine so the deadline can be
	// enforced even if a collaborator ignores ctx cancellation. On
	// timeout the goroutine is abandoned; the tracker is safe to
	// snapshot while it winds down.
	done := make(chan *Response, 1)
	started := time.Now()
	go func() {
		done <- l.run(runCtx, logger, tracker, query)
	}()

	var resp *Response
	select {
	case resp = <-done:
	case <-runCtx.Done():
		logger.Warn("run abandoned", "after", time.Since(started), "cause", runCtx.Err())
		resp = &Response{
			Response: prompts.TimeoutApology,
			Debug: Debug{
				ToolUsage: toolUsage(tracker.Snapshot()),
				Error:     fmt.Sprintf("run exceeded %s deadline", l.timeout),
			},
		}
	}

	l.persistUsage(requestID, tracker, logger)
	return resp
}

// run executes the state machine: model turn, then a tool batch when
// requested, repeating until a final answer or a fatal condition.
func (l *Loop) run(ctx context.Context, logger *slog.Logger, tracker *usage.Tracker, query string) *Response {
	conversation := []llm.Message{
		{Role: "system", Content: prompts.System(l.registry.Descriptions())},
		{Role: "user", Content: query},
	}
	specs := l.registry.Specs()
	nudged := false

	for iteration := 1; iteration <= l.maxIterations; iteration++ {
		resp, err := l.client.Chat(ctx, l.model, conversation, specs)
		if err != nil {
			logger.Error("model call failed", "iteration", iteration, "error", err)
			return l.failed(tracker, err)
		}

		if !resp.HasToolCalls() {
			text := resp.Message.Content
			if text == "" {
				// Empty turn: nudge once, then give up with fixed text.
				if !nudged {
					nudged = true
					logger.Debug("empty model turn, nudging", "iteration", iteration)
					conversation = append(conversation,
						llm.Message{Role: "assistant", Content: ""},
						llm.Message{Role: "user", Content: prompts.Nudge},
					)
					continue
				}
				text = prompts.EmptyFallback
			}
			conversation = append(conversation, llm.Message{Role: "assistant", Content: text})
			return l.done(tracker, text, len(conversation))
		}

		conversation = append(conversation, resp.Message)
		conversation = append(conversation, l.runToolBatch(ctx, logger, tracker, resp.Message.ToolCalls)...)
	}

	logger.Error("iteration cap exceeded", "max_iterations", l.maxIterations)
	return l.failed(tracker, fmt.Errorf("too many tool iterations (max %d)", l.maxIterations))
}

// runToolBatch executes one assistant turn's tool calls strictly in
// request order and returns their ToolResult messages. Tool failures —
// including calls to unregistered tools — become error payloads for the
// model, never run failures.
func (l *Loop) runToolBatch(ctx context.Context, logger *slog.Logger, tracker *usage.Tracker, calls []llm.ToolCall) []llm.Message {
	results := make([]llm.Message, 0, len(calls))

	for _, call := range calls {
		name := call.Function.Name
		input := tools.JSONResult(call.Function.Arguments)
		recID := tracker.Begin(name, input)

		out, err := l.registry.Execute(ctx, name, call.Function.Arguments)
		if err != nil {
			tracker.Fail(recID, err.Error())

			var unavail *tools.ErrToolUnavailable
			if errors.As(err, &unavail) {
				logger.Warn("model requested unknown tool", "tool", name)
			} else {
				logger.Warn("tool execution failed", "tool", name, "error", err)
			}
			out = tools.ErrorResult("%s", err)
		} else {
			tracker.Complete(recID, out)
			logger.Debug("tool executed", "tool", name, "output_len", len(out))
		}

		results = append(results, llm.Message{
			Role:       "tool",
			Content:    out,
			ToolCallID: call.ID,
		})
	}

	return results
}

func (l *Loop) done(tracker *usage.Tracker, text string, messageCount int) *Response {
	return &Response{
		Response: text,
		Debug: Debug{
			ToolUsage:    toolUsage(tracker.Snapshot()),
			MessageCount: messageCount,
		},
	}
}

func (l *Loop) failed(tracker *usage.Tracker, cause error) *Response {
	return &Response{
		Response: prompts.Apology,
		Debug: Debug{
			ToolUsage: toolUsage(tracker.Snapshot()),
			Error:     cause.Error(),
		},
	}
}

// persistUsage writes the run's invocation records to the audit store,
// if one is configured. Best effort: a failed write is logged, not
// surfaced to the caller.
func (l *Loop) persistUsage(requestID string, tracker *usage.Tracker, logger *slog.Logger) {
	if l.usageStore == nil || tracker.Count() == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.usageStore.Persist(ctx, requestID, tracker.Snapshot()); err != nil {
		logger.Warn("failed to persist usage records", "error", err)
	}
}

func toolUsage(records []usage.Record) []ToolUse {
	out := make([]ToolUse, len(records))
	for i, r := range records {
		out[i] = ToolUse{
			Step:   r.Step,
			Tool:   r.Tool,
			Input:  r.Input,
			Output: r.Output,
			Error:  r.Error,
		}
	}
	return out
}

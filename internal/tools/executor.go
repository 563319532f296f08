package tools

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/weaver-ai/weaver/internal/tools/policy"
	"github.com/weaver-ai/weaver/internal/werrors"
	"github.com/weaver-ai/weaver/pkg/models"
)

// ExecConfig configures tool execution concurrency, timeouts, and retries.
type ExecConfig struct {
	// Concurrency is the maximum number of tool calls executed in
	// parallel within a single ExecuteConcurrently batch.
	Concurrency int

	// PerToolTimeout bounds a single attempt of a single tool call.
	PerToolTimeout time.Duration

	// MaxAttempts is the number of attempts per tool call. Only upstream
	// errors are retried; validation and denial failures never are.
	MaxAttempts int

	// RetryBackoff waits between attempts.
	RetryBackoff time.Duration
}

// DefaultExecConfig mirrors the spec's tool-invocation defaults: four
// concurrent calls, 30 second per-call timeout, one retry on upstream
// failure with a 500ms backoff.
func DefaultExecConfig() ExecConfig {
	return ExecConfig{
		Concurrency:    4,
		PerToolTimeout: 30 * time.Second,
		MaxAttempts:    2,
		RetryBackoff:   500 * time.Millisecond,
	}
}

// EventSink receives tool lifecycle events. Implementations must not block;
// the executor treats it as fire-and-forget.
type EventSink func(models.Event)

// Executor runs tool calls against a frozen Registry, enforcing a policy
// decision before each call and emitting tool.started/completed/failed
// events for an eventbus publisher to relay.
type Executor struct {
	registry *Registry
	resolver *policy.Resolver
	config   ExecConfig
}

// NewExecutor builds an executor. resolver may be nil, in which case every
// registered tool is allowed (useful for tests and for the minimal profile
// check happening upstream in the router).
func NewExecutor(registry *Registry, resolver *policy.Resolver, config ExecConfig) *Executor {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.PerToolTimeout <= 0 {
		config.PerToolTimeout = 30 * time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	return &Executor{registry: registry, resolver: resolver, config: config}
}

// Call is a single tool invocation with its governing policy.
type Call struct {
	ToolCall models.ToolCall
	Policy   *policy.Policy
}

// Result pairs a tool call with its outcome and timing.
type Result struct {
	ToolCall  models.ToolCall
	Result    models.ToolResult
	StartedAt time.Time
	EndedAt   time.Time
	Attempts  int
}

// ExecuteConcurrently runs calls with bounded parallelism, preserving input
// order in the returned slice regardless of completion order.
func (e *Executor) ExecuteConcurrently(ctx context.Context, threadID string, calls []Call, emit EventSink) []Result {
	results := make([]Result, len(calls))
	sem := make(chan struct{}, e.config.Concurrency)
	var wg sync.WaitGroup

	for i, c := range calls {
		wg.Add(1)
		go func(idx int, call Call) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = Result{
					ToolCall: call.ToolCall,
					Result:   errorResult(call.ToolCall.ID, werrors.Cancelledf("tool %s: %s", call.ToolCall.Name, ctx.Err())),
				}
				return
			}
			results[idx] = e.executeOne(ctx, threadID, call, emit)
		}(i, c)
	}

	wg.Wait()
	return results
}

// ExecuteSequentially runs calls one at a time, in order; used by nodes
// whose tool contract requires strict ordering (state-mutating tool
// chains such as apply_patch followed by exec).
func (e *Executor) ExecuteSequentially(ctx context.Context, threadID string, calls []Call, emit EventSink) []Result {
	results := make([]Result, len(calls))
	for i, c := range calls {
		results[i] = e.executeOne(ctx, threadID, c, emit)
	}
	return results
}

func (e *Executor) executeOne(ctx context.Context, threadID string, call Call, emit EventSink) Result {
	started := time.Now()
	name := call.ToolCall.Name

	if e.resolver != nil && !e.resolver.IsAllowed(call.Policy, name) {
		res := errorResult(call.ToolCall.ID, werrors.Validationf("tool %q is not permitted by the active policy", name))
		e.emitTerminal(emit, threadID, name, call.ToolCall.ID, res, 0)
		return Result{ToolCall: call.ToolCall, Result: res, StartedAt: started, EndedAt: time.Now()}
	}

	handler, descriptor, ok := e.registry.Get(name)
	if !ok {
		res := errorResult(call.ToolCall.ID, werrors.Validationf("unknown tool %q", name))
		e.emitTerminal(emit, threadID, name, call.ToolCall.ID, res, 0)
		return Result{ToolCall: call.ToolCall, Result: res, StartedAt: started, EndedAt: time.Now()}
	}

	if err := e.registry.ValidateArgs(name, call.ToolCall.Input); err != nil {
		res := errorResult(call.ToolCall.ID, werrors.Validationf("%s: %s", name, err))
		e.emitTerminal(emit, threadID, name, call.ToolCall.ID, res, 0)
		return Result{ToolCall: call.ToolCall, Result: res, StartedAt: started, EndedAt: time.Now()}
	}

	maxAttempts := e.config.MaxAttempts
	var result models.ToolResult
	var callErr error
	attempt := 0
	for attempt = 1; attempt <= maxAttempts; attempt++ {
		e.emitStarted(emit, threadID, name, call.ToolCall.ID, attempt)

		callCtx, cancel := context.WithTimeout(ctx, e.config.PerToolTimeout)
		result, callErr = e.runHandler(callCtx, handler, call.ToolCall, descriptor)
		cancel()

		if !result.IsError || attempt == maxAttempts {
			break
		}
		if !werrors.Retriable(callErr) {
			break
		}
		if e.config.RetryBackoff > 0 {
			select {
			case <-time.After(e.config.RetryBackoff * time.Duration(attempt)):
			case <-ctx.Done():
				result = errorResult(call.ToolCall.ID, werrors.Cancelledf("tool %s: %s", name, ctx.Err()))
				attempt++
				goto done
			}
		}
	}
done:

	e.emitTerminal(emit, threadID, name, call.ToolCall.ID, result, attempt)
	return Result{ToolCall: call.ToolCall, Result: result, StartedAt: started, EndedAt: time.Now(), Attempts: attempt}
}

// runHandler isolates a handler invocation behind a buffered channel so a
// handler that ignores context cancellation cannot leak this goroutine: the
// send is non-blocking, and a handler finishing after the deadline is
// simply discarded.
func (e *Executor) runHandler(ctx context.Context, handler Handler, call models.ToolCall, descriptor models.ToolDescriptor) (models.ToolResult, error) {
	type outcome struct {
		content string
		err     error
	}
	done := make(chan outcome, 1)

	go func() {
		content, err := handler(ctx, call.Input)
		select {
		case done <- outcome{content: content, err: err}:
		default:
		}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err := werrors.Timeoutf("tool %s timed out after %v", descriptor.Name, e.config.PerToolTimeout)
			return errorResult(call.ID, err), err
		}
		err := werrors.Cancelledf("tool %s canceled: %s", descriptor.Name, ctx.Err())
		return errorResult(call.ID, err), err
	case out := <-done:
		if out.err != nil {
			return errorResult(call.ID, out.err), out.err
		}
		return models.ToolResult{ToolCallID: call.ID, Content: out.content, IsError: false}, nil
	}
}

func (e *Executor) emitStarted(emit EventSink, threadID, tool, callID string, attempt int) {
	if emit == nil {
		return
	}
	emit(models.Event{
		Type:     models.EventToolStarted,
		ThreadID: threadID,
		Time:     time.Now(),
		Tool:     &models.ToolEventPayload{Name: tool, CallID: callID, Attempt: attempt},
	})
}

func (e *Executor) emitTerminal(emit EventSink, threadID, tool, callID string, result models.ToolResult, attempt int) {
	if emit == nil {
		return
	}
	eventType := models.EventToolCompleted
	if result.IsError {
		eventType = models.EventToolFailed
	}
	emit(models.Event{
		Type:     eventType,
		ThreadID: threadID,
		Time:     time.Now(),
		Tool:     &models.ToolEventPayload{Name: tool, CallID: callID, Attempt: attempt, IsError: result.IsError, Content: result.Content},
	})
}

func errorResult(callID string, err error) models.ToolResult {
	return models.ToolResult{ToolCallID: callID, Content: err.Error(), IsError: true}
}

package services

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/grovelabs/grove-coder/internal/config"
	"github.com/grovelabs/grove-coder/pkg/logger"
)

// Broker orchestrates every incoming call: admission check, upstream call,
// ledger append, response. Denials and failures short-circuit without
// touching the ledger.
type Broker struct {
	ledger   *LedgerService
	upstream *DeepSeekClient
	limits   config.CostLimitsConfig

	closeOnce sync.Once
}

func NewBroker(ledger *LedgerService, upstream *DeepSeekClient, limits config.CostLimitsConfig) *Broker {
	return &Broker{
		ledger:   ledger,
		upstream: upstream,
		limits:   limits,
	}
}

// Close tears the broker down, releasing the upstream client's transport.
// Idempotent.
func (b *Broker) Close() {
	b.closeOnce.Do(func() {
		b.upstream.Close()
	})
}

// HandleToolCall dispatches one named request. The coding operations go
// through the admission-gated path; the cost report is a direct read; any
// other name is an unknown-tool error that touches neither the ledger nor
// the upstream client.
func (b *Broker) HandleToolCall(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case string(OpGenerate), string(OpEdit), string(OpReview):
		return b.handleCodingCall(ctx, Operation(name), args)
	case ToolCostReport:
		return b.handleCostReport(args)
	default:
		return nil, &UnknownToolError{Name: name}
	}
}

func (b *Broker) handleCodingCall(ctx context.Context, op Operation, args map[string]any) (any, error) {
	requestID := uuid.NewString()

	if err := b.checkAdmission(); err != nil {
		logger.Warn().
			Str("request_id", requestID).
			Str("operation", string(op)).
			Err(err).
			Msg("request denied by admission check")
		return nil, err
	}

	callArgs := parseCallArgs(args)

	result, err := b.upstream.Call(ctx, op, callArgs)
	if err != nil {
		logger.Error().
			Str("request_id", requestID).
			Str("operation", string(op)).
			Err(err).
			Msg("DeepSeek call failed")
		return nil, err
	}

	// Log-then-respond: the response is not complete until the spend is in
	// the ledger. An append failure after a successful upstream call is its
	// own reportable error; the upstream work is not re-attempted.
	if err := b.ledger.Append(ctx, string(op), result.CostUSD, result.TokensUsed.Input, result.TokensUsed.Output, callArgs.FilePath); err != nil {
		logger.Error().
			Str("request_id", requestID).
			Str("operation", string(op)).
			Float64("cost_usd", result.CostUSD).
			Err(err).
			Msg("upstream call succeeded but usage logging failed")
		return nil, err
	}

	logger.Info().
		Str("request_id", requestID).
		Str("operation", string(op)).
		Float64("cost_usd", result.CostUSD).
		Int("input_tokens", result.TokensUsed.Input).
		Int("output_tokens", result.TokensUsed.Output).
		Msg("request completed")

	return result, nil
}

// checkAdmission evaluates the daily limit, then the monthly limit. Both
// are the same windowed-aggregate primitive with different parameters.
// Admission and the later append are deliberately not one transaction:
// two concurrent calls can both pass before either appends, so enforcement
// is eventual rather than exact.
func (b *Broker) checkAdmission() error {
	ok, err := b.ledger.CheckLimit(WindowToday, b.limits.DailyUSD)
	if err != nil {
		return err
	}
	if !ok {
		return &LimitExceededError{Scope: "daily", LimitUSD: b.limits.DailyUSD}
	}

	ok, err = b.ledger.CheckLimit(WindowMonth, b.limits.MonthlyUSD)
	if err != nil {
		return err
	}
	if !ok {
		return &LimitExceededError{Scope: "monthly", LimitUSD: b.limits.MonthlyUSD}
	}

	return nil
}

func (b *Broker) handleCostReport(args map[string]any) (any, error) {
	period := argString(args, "period")
	if period == "" {
		period = string(WindowToday)
	}
	window, err := ParseWindow(period)
	if err != nil {
		return nil, err
	}
	return b.ledger.Report(window, argString(args, "tool"))
}

// ErrorPayload converts a per-call error into the JSON-shaped error object
// returned to the caller. Limit denials additionally disclose the
// configured threshold.
func ErrorPayload(err error) map[string]any {
	payload := map[string]any{"error": err.Error()}
	if limitErr, ok := err.(*LimitExceededError); ok {
		payload["limit_usd"] = limitErr.LimitUSD
	}
	return payload
}

// parseCallArgs reads the generic argument map into typed call arguments.
// Unknown keys are ignored; missing keys stay zero-valued.
func parseCallArgs(args map[string]any) *CallArgs {
	return &CallArgs{
		TaskDescription: argString(args, "task_description"),
		Language:        argString(args, "language"),
		FilePath:        argString(args, "file_path"),
		Context:         argString(args, "context"),
		OriginalCode:    argString(args, "original_code"),
		ChangeRequest:   argString(args, "change_request"),
		Code:            argString(args, "code"),
		FocusAreas:      argStringSlice(args, "focus_areas"),
	}
}

func argString(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func argStringSlice(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

package services

import (
	"errors"
	"fmt"
)

// Sentinel errors for upstream failure modes that carry no extra payload.
var (
	// ErrUpstreamConnectivity means no response was received at all.
	ErrUpstreamConnectivity = errors.New("failed to connect to OpenRouter API")

	// ErrUnparseableResponse means the upstream answered but the body (or the
	// model's JSON content) did not match the expected shape.
	ErrUnparseableResponse = errors.New("DeepSeek returned an unparseable response")
)

// ConfigError is fatal at construction time, never per-call.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

// ValidationError reports an oversized input field, detected before any
// network call so no cost is incurred.
type ValidationError struct {
	Field string
	Limit int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s exceeds maximum length of %d characters", e.Field, e.Limit)
}

// LimitExceededError is an admission denial. Scope identifies which limit
// tripped ("daily" or "monthly"); LimitUSD is the configured threshold so
// the caller can decide whether to wait or reconfigure.
type LimitExceededError struct {
	Scope    string
	LimitUSD float64
}

func (e *LimitExceededError) Error() string {
	switch e.Scope {
	case "daily":
		return "Daily cost limit exceeded"
	case "monthly":
		return "Monthly cost limit exceeded"
	default:
		return "Cost limit exceeded"
	}
}

// UpstreamHTTPError carries the upstream status code only; the response body
// is logged server-side but never forwarded to the caller.
type UpstreamHTTPError struct {
	StatusCode int
}

func (e *UpstreamHTTPError) Error() string {
	return fmt.Sprintf("OpenRouter API returned %d", e.StatusCode)
}

// InvalidWindowError reports an unrecognized report window value.
type InvalidWindowError struct {
	Window string
}

func (e *InvalidWindowError) Error() string {
	return fmt.Sprintf("invalid period %q, must be one of: today, week, month, all", e.Window)
}

// StorageError wraps a ledger read/write failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ledger %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// UnknownToolError reports a dispatch to a tool name the broker does not serve.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("Unknown tool: %s", e.Name)
}

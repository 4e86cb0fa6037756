// Package audit records a structured, field-redacted event for every
// execution attempt: denied, failed, or successful.
package audit

import (
	"github.com/sorhq/sor/core"
)

const redactedSentinel = "[REDACTED]"

// Status is the terminal outcome recorded for an invocation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusDenied  Status = "denied"
	StatusFailed  Status = "failed"
)

// Event is the structured record of one execution attempt.
type Event struct {
	TraceID             string
	SpanID              string // == invocation_id
	Kind                core.CallTargetKind
	Name                string
	Version             string
	Status              Status
	DurationMs          *int64
	Actor               string
	Channel             string
	InvocationID        string
	ParentInvocationID  string
	Capabilities        []string
	SideEffects         []string
	Inputs              map[string]interface{}
	Outputs             map[string]interface{}
	Error               string
	PolicyReasons       []string
	PolicyMetadata      map[string]string
}

// Logger records audit events, applying field-level redaction to inputs
// and outputs before they reach any sink.
type Logger struct {
	sinks []core.Logger
}

// NewLogger fans an audit event out to every sink, in order. At least one
// sink should be supplied; a nil or empty list makes Record a no-op.
func NewLogger(sinks ...core.Logger) *Logger {
	return &Logger{sinks: sinks}
}

// Record redacts inputs/outputs per entry's declared redaction fields,
// builds an Event, and emits it to every configured sink at info level.
func Record(logger *Logger, entry core.Entry, sc core.SkillContext, status Status, durationMs *int64, inputs, outputs map[string]interface{}, errText string, policyReasons []string, policyMetadata map[string]string) {
	redaction := entry.EntryRedaction()
	event := Event{
		TraceID:            sc.TraceID,
		SpanID:             sc.InvocationID,
		Kind:               entry.EntryKind(),
		Name:               entry.EntryName(),
		Version:            entry.EntryVersion(),
		Status:             status,
		DurationMs:         durationMs,
		Actor:              sc.Actor,
		Channel:            sc.Channel,
		InvocationID:       sc.InvocationID,
		ParentInvocationID: sc.ParentInvocationID,
		Capabilities:       entry.EntryCapabilities(),
		SideEffects:        entry.EntrySideEffects(),
		Inputs:             redactPayload(inputs, fieldsOf(redaction, "inputs")),
		Outputs:            redactPayload(outputs, fieldsOf(redaction, "outputs")),
		Error:              errText,
		PolicyReasons:      policyReasons,
		PolicyMetadata:     policyMetadata,
	}
	logger.emit(event)
}

func (l *Logger) emit(event Event) {
	fields := map[string]interface{}{
		"trace_id":              event.TraceID,
		"span_id":               event.SpanID,
		"kind":                  string(event.Kind),
		"name":                  event.Name,
		"version":               event.Version,
		"status":                string(event.Status),
		"actor":                 event.Actor,
		"channel":               event.Channel,
		"invocation_id":         event.InvocationID,
		"parent_invocation_id":  event.ParentInvocationID,
		"capabilities":          event.Capabilities,
		"side_effects":          event.SideEffects,
	}
	if event.DurationMs != nil {
		fields["duration_ms"] = *event.DurationMs
	}
	if event.Inputs != nil {
		fields["inputs"] = event.Inputs
	}
	if event.Outputs != nil {
		fields["outputs"] = event.Outputs
	}
	if event.Error != "" {
		fields["error"] = event.Error
	}
	if event.PolicyReasons != nil {
		fields["policy_reasons"] = event.PolicyReasons
	}
	if event.PolicyMetadata != nil {
		fields["policy_metadata"] = event.PolicyMetadata
	}
	for _, sink := range l.sinks {
		sink.Info("execution_audit", fields)
	}
}

func fieldsOf(redaction *core.Redaction, kind string) []string {
	if redaction == nil {
		return nil
	}
	if kind == "inputs" {
		return redaction.Inputs
	}
	return redaction.Outputs
}

func redactPayload(payload map[string]interface{}, fields []string) map[string]interface{} {
	if payload == nil || len(fields) == 0 {
		return payload
	}
	redacted := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		redacted[k] = v
	}
	for _, field := range fields {
		if _, ok := redacted[field]; ok {
			redacted[field] = redactedSentinel
		}
	}
	return redacted
}

package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorhq/sor/core"
)

type recordingLogger struct {
	messages []string
	fields   []map[string]interface{}
}

func (r *recordingLogger) Debug(msg string, fields map[string]interface{}) { r.record(msg, fields) }
func (r *recordingLogger) Info(msg string, fields map[string]interface{})  { r.record(msg, fields) }
func (r *recordingLogger) Warn(msg string, fields map[string]interface{})  { r.record(msg, fields) }
func (r *recordingLogger) Error(msg string, fields map[string]interface{}) { r.record(msg, fields) }
func (r *recordingLogger) With(map[string]interface{}) core.Logger         { return r }

func (r *recordingLogger) record(msg string, fields map[string]interface{}) {
	r.messages = append(r.messages, msg)
	r.fields = append(r.fields, fields)
}

type stubEntry struct {
	redaction *core.Redaction
}

func (s stubEntry) EntryKind() core.CallTargetKind      { return core.CallTargetOp }
func (s stubEntry) EntryName() string                   { return "post_ledger_entry" }
func (s stubEntry) EntryVersion() string                { return "1.0.0" }
func (s stubEntry) EntryStatus() core.Status            { return core.StatusEnabled }
func (s stubEntry) EntryAutonomy() core.AutonomyLevel   { return core.AutonomyL1 }
func (s stubEntry) EntryCapabilities() []string         { return []string{"ledger.post"} }
func (s stubEntry) EntrySideEffects() []string          { return []string{"ledger.post"} }
func (s stubEntry) EntryPolicyTags() []string           { return nil }
func (s stubEntry) EntryRateLimit() *core.RateLimit     { return nil }
func (s stubEntry) EntryChannels() *core.ChannelPolicy  { return nil }
func (s stubEntry) EntryActors() *core.ActorPolicy      { return nil }
func (s stubEntry) EntryRedaction() *core.Redaction     { return s.redaction }
func (s stubEntry) EntryInputsSchema() core.Schema      { return nil }
func (s stubEntry) EntryOutputsSchema() core.Schema     { return nil }
func (s stubEntry) FailureModeList() []core.FailureMode { return nil }

func TestRecord_BuildsEventAndEmitsToSink(t *testing.T) {
	sink := &recordingLogger{}
	logger := NewLogger(sink)
	entry := stubEntry{}
	sc := core.SkillContext{Actor: "demo-user", Channel: "cli", TraceID: "trace-1", InvocationID: "inv-1"}
	duration := int64(42)

	Record(logger, entry, sc, StatusSuccess, &duration,
		map[string]interface{}{"account": "acct-123"},
		map[string]interface{}{"balance": float64(100)},
		"", nil, nil)

	require.Len(t, sink.messages, 1)
	assert.Equal(t, "execution_audit", sink.messages[0])
	fields := sink.fields[0]
	assert.Equal(t, "post_ledger_entry", fields["name"])
	assert.Equal(t, "success", fields["status"])
	assert.Equal(t, int64(42), fields["duration_ms"])
	assert.Equal(t, "trace-1", fields["trace_id"])
	assert.Equal(t, "inv-1", fields["invocation_id"])
}

func TestRecord_RedactsOnlyDeclaredInputFields(t *testing.T) {
	sink := &recordingLogger{}
	logger := NewLogger(sink)
	entry := stubEntry{redaction: &core.Redaction{Inputs: []string{"account"}, Outputs: []string{"balance"}}}
	sc := core.SkillContext{Actor: "demo-user"}

	Record(logger, entry, sc, StatusSuccess, nil,
		map[string]interface{}{"account": "acct-123", "amount_cents": float64(500)},
		map[string]interface{}{"balance": float64(100), "currency": "USD"},
		"", nil, nil)

	fields := sink.fields[0]
	inputs := fields["inputs"].(map[string]interface{})
	outputs := fields["outputs"].(map[string]interface{})
	assert.Equal(t, redactedSentinel, inputs["account"])
	assert.Equal(t, float64(500), inputs["amount_cents"])
	assert.Equal(t, redactedSentinel, outputs["balance"])
	assert.Equal(t, "USD", outputs["currency"])
}

func TestRecord_OmitsDurationWhenNil(t *testing.T) {
	sink := &recordingLogger{}
	logger := NewLogger(sink)
	entry := stubEntry{}
	sc := core.SkillContext{}

	Record(logger, entry, sc, StatusDenied, nil, nil, nil, "", []string{"review_required"}, nil)

	fields := sink.fields[0]
	_, hasDuration := fields["duration_ms"]
	assert.False(t, hasDuration)
	assert.Equal(t, "denied", fields["status"])
	assert.Equal(t, []string{"review_required"}, fields["policy_reasons"])
}

func TestRecord_IncludesErrorTextOnFailure(t *testing.T) {
	sink := &recordingLogger{}
	logger := NewLogger(sink)
	entry := stubEntry{}

	Record(logger, entry, core.SkillContext{}, StatusFailed, nil, nil, nil, "adapter timeout", nil, nil)

	assert.Equal(t, "adapter timeout", sink.fields[0]["error"])
}

func TestRecord_FansOutToMultipleSinks(t *testing.T) {
	first := &recordingLogger{}
	second := &recordingLogger{}
	logger := NewLogger(first, second)
	entry := stubEntry{}

	Record(logger, entry, core.SkillContext{}, StatusSuccess, nil, nil, nil, "", nil, nil)

	assert.Len(t, first.messages, 1)
	assert.Len(t, second.messages, 1)
}

func TestRecord_NoSinksIsNoOp(t *testing.T) {
	logger := NewLogger()
	entry := stubEntry{}
	assert.NotPanics(t, func() {
		Record(logger, entry, core.SkillContext{}, StatusSuccess, nil, nil, nil, "", nil, nil)
	})
}

func TestRecord_PolicyMetadataPassthrough(t *testing.T) {
	sink := &recordingLogger{}
	logger := NewLogger(sink)
	entry := stubEntry{}
	metadata := map[string]string{"policy.approval.token_status": "valid"}

	Record(logger, entry, core.SkillContext{}, StatusSuccess, nil, nil, nil, "", nil, metadata)

	assert.Equal(t, metadata, sink.fields[0]["policy_metadata"])
}

package billing

import "time"

// Metrics receives the gateway's counters and timings. Pass NoopMetrics when
// nothing should be recorded.
type Metrics interface {
	// RecordWebhookEvent counts a verified delivery by event name.
	// status is "success", "ignored" or "error".
	RecordWebhookEvent(provider, eventType, status string)

	// RecordWebhookProcessingDuration times a verified delivery end to end.
	RecordWebhookProcessingDuration(provider, eventType string, duration time.Duration)

	// RecordWebhookError counts a rejected or failed delivery, e.g.
	// "auth_failed", "payload_too_large", "missing_user_email", "processing_error".
	RecordWebhookError(provider, errorType string)

	// RecordWebhookPayloadSize observes the size of a body that passed
	// signature verification.
	RecordWebhookPayloadSize(provider string, bytes int)

	// RecordUserUpsert counts merge-writes by the event that caused them and
	// the plan they wrote.
	RecordUserUpsert(provider, eventType, subscription string)

	// RecordUserSync counts reconciliations. status is "success", "not_found" or "error".
	RecordUserSync(provider, status string)
	RecordUserSyncDuration(provider string, duration time.Duration)

	// RecordAPICall counts outbound API requests by endpoint and HTTP status
	// ("200", "401", or "error" when no response arrived).
	RecordAPICall(provider, endpoint, status string)
	RecordAPICallDuration(provider, endpoint string, duration time.Duration)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (*NoopMetrics) RecordWebhookEvent(string, string, string)                    {}
func (*NoopMetrics) RecordWebhookProcessingDuration(string, string, time.Duration) {}
func (*NoopMetrics) RecordWebhookError(string, string)                            {}
func (*NoopMetrics) RecordWebhookPayloadSize(string, int)                         {}
func (*NoopMetrics) RecordUserUpsert(string, string, string)                      {}
func (*NoopMetrics) RecordUserSync(string, string)                                {}
func (*NoopMetrics) RecordUserSyncDuration(string, time.Duration)                 {}
func (*NoopMetrics) RecordAPICall(string, string, string)                         {}
func (*NoopMetrics) RecordAPICallDuration(string, string, time.Duration)          {}

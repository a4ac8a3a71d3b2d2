// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID   = "request_id"
	FieldDecisionID  = "decision_id"
	FieldContentHash = "content_hash"
	FieldBlocklist   = "blocklist"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"
	FieldOutcome   = "outcome"

	// Analysis fields
	FieldAPI      = "api"
	FieldCategory = "category"
	FieldSeverity = "severity"
	FieldVerdict  = "verdict"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path / URL fields
	FieldPath     = "path"
	FieldEndpoint = "endpoint"
)

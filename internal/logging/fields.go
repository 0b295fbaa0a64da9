package logging

import "log/slog"

// Common field names for consistent logging across the engine.
const (
	FieldComponent = "component"
	FieldDeviceID  = "device_id"
	FieldUserID    = "user_id"
	FieldPolicyID  = "policy_id"
	FieldAlertID   = "alert_id"
	FieldAction    = "action"
	FieldError     = "error"
)

// Component returns a slog attribute for the component name.
func Component(name string) slog.Attr {
	return slog.String(FieldComponent, name)
}

// DeviceID returns a slog attribute for the device ID.
func DeviceID(id string) slog.Attr {
	return slog.String(FieldDeviceID, id)
}

// UserID returns a slog attribute for the user ID.
func UserID(id string) slog.Attr {
	return slog.String(FieldUserID, id)
}

// PolicyID returns a slog attribute for a policy rule ID.
func PolicyID(id string) slog.Attr {
	return slog.String(FieldPolicyID, id)
}

// AlertID returns a slog attribute for a threat alert ID.
func AlertID(id string) slog.Attr {
	return slog.String(FieldAlertID, id)
}

// Action returns a slog attribute for an enforcement or mitigation action.
func Action(action string) slog.Attr {
	return slog.String(FieldAction, action)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

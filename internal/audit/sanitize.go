package audit

import "strings"

// Redacted replaces denied metadata values.
const Redacted = "[REDACTED]"

// sensitiveFields is the fixed denylist of metadata field names. A field
// matches when its lowercased name contains one of these substrings.
var sensitiveFields = []string{
	"password",
	"token",
	"key",
	"secret",
	"credential",
}

// sanitizeMetadata returns a copy of metadata with denied fields redacted.
// When logSensitive is true the metadata passes through unchanged (a copy
// is still made so callers cannot mutate stored events).
func sanitizeMetadata(metadata map[string]any, logSensitive bool) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		if !logSensitive && isSensitiveField(k) {
			out[k] = Redacted
			continue
		}
		out[k] = v
	}
	return out
}

func isSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range sensitiveFields {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

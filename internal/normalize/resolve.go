package normalize

// topLevelFields are resolved directly against the event; every other field
// name is looked up in extensions. Shared by RuleEngine matching and the EQL
// executor so both resolve fields identically.
var topLevelFields = map[string]bool{
	"event_type": true,
	"src_ip":     true,
	"dst_ip":     true,
	"timestamp":  true,
}

// ResolveField looks up field against a parsed canonical-JSON event map
// (the shape CanonicalJSON produces: top-level keys plus a nested
// "extensions" object). Missing fields resolve to "".
func ResolveField(event map[string]interface{}, field string) string {
	if topLevelFields[field] {
		if v, ok := event[field]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}
	ext, ok := event["extensions"].(map[string]interface{})
	if !ok {
		return ""
	}
	if v, ok := ext[field]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ResolveFieldFromLog resolves field directly against a NormalizedLog,
// without a JSON round trip. Used by RuleEngine on the in-memory log.
func ResolveFieldFromLog(n NormalizedLog, field string) string {
	switch field {
	case "event_type":
		return n.EventType
	case "src_ip":
		return n.SrcIP
	case "dst_ip":
		return n.DstIP
	case "timestamp":
		return n.Timestamp
	default:
		return n.Extensions[field]
	}
}

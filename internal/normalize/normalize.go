// Package normalize classifies a raw log line as CEF, syslog, or JSON and
// turns it into a NormalizedLog, the canonical event record the rest of the
// pipeline (logstore, rules, eql) operates on.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidFormat is returned when a line is blank, unclassifiable, or
// malformed for the format it was classified as.
var ErrInvalidFormat = errors.New("normalize: invalid format")

// NormalizedLog is the canonical event record produced from one RawLine.
type NormalizedLog struct {
	Timestamp  string `json:"timestamp"`
	SrcIP      string `json:"src_ip"`
	DstIP      string `json:"dst_ip"`
	EventType  string `json:"event_type"`
	HostID     string `json:"host_id"`
	AccountID  string `json:"account_id"`
	Raw        string `json:"raw"`
	Extensions map[string]string `json:"extensions"`
}

var (
	syslogPrefix    = regexp.MustCompile(`^<\d+>`)
	srcIPPattern    = regexp.MustCompile(`(?i)(SRC|from|client)\s*=?\s*(\d{1,3}(?:\.\d{1,3}){3})`)
	dstIPPattern    = regexp.MustCompile(`(?i)DST\s*=?\s*(\d{1,3}(?:\.\d{1,3}){3})`)
)

// eventTypeSubstrings is scanned in order; the first match wins, matching
// the reference "first match wins" rule for syslog event_type derivation.
var eventTypeSubstrings = []struct {
	process   string
	fragment  string
	eventType string
}{
	{"sshd", "Failed password", "failed_login"},
	{"sshd", "Accepted password", "successful_login"},
	{"systemd", "", "systemd_event"},
	{"kernel", "", "kernel_event"},
	{"crond", "", "cron_job"},
	{"sudo", "", "sudo_command"},
	{"apache2", "", "apache_error"},
}

// Normalize classifies and parses raw into a NormalizedLog scoped to
// (accountID, hostID). It returns ErrInvalidFormat for blank, unclassifiable,
// or malformed input.
func Normalize(raw, accountID, hostID string) (NormalizedLog, error) {
	cleaned := clean(raw)
	if cleaned == "" {
		return NormalizedLog{}, ErrInvalidFormat
	}

	switch {
	case strings.HasPrefix(cleaned, "CEF:"):
		return parseCEF(cleaned, raw, accountID, hostID)
	case syslogPrefix.MatchString(cleaned):
		return parseSyslog(cleaned, raw, accountID, hostID)
	case strings.HasPrefix(cleaned, "{"):
		return parseJSON(cleaned, raw, accountID, hostID)
	default:
		return NormalizedLog{}, ErrInvalidFormat
	}
}

// clean trims outer whitespace and collapses every internal run of
// whitespace (newlines included) to a single space, the required step
// before any format classification.
func clean(raw string) string {
	trimmed := strings.TrimSpace(raw)
	fields := strings.FieldsFunc(trimmed, func(r rune) bool { return r == '\n' || r == '\r' })
	joined := strings.Join(fields, " ")
	return strings.TrimSpace(strings.Join(strings.Fields(joined), " "))
}

func newLog(accountID, hostID, raw string) NormalizedLog {
	return NormalizedLog{
		HostID:     hostID,
		AccountID:  accountID,
		Raw:        raw,
		Extensions: make(map[string]string),
	}
}

// parseCEF parses an exactly-eight-pipe-delimited CEF line. cleaned is used
// for structure, raw is preserved verbatim in the Raw field.
func parseCEF(cleaned, raw, accountID, hostID string) (NormalizedLog, error) {
	fields := splitCEF(cleaned)
	if len(fields) != 8 {
		return NormalizedLog{}, fmt.Errorf("%w: cef header must have 8 pipe-delimited fields, got %d", ErrInvalidFormat, len(fields))
	}
	if !strings.HasPrefix(fields[0], "CEF:") {
		return NormalizedLog{}, fmt.Errorf("%w: cef first field must start with CEF:", ErrInvalidFormat)
	}

	nl := newLog(accountID, hostID, raw)

	headerValues := make([]string, 7)
	headerValues[0] = strings.TrimPrefix(fields[0], "CEF:")
	copy(headerValues[1:], fields[1:7])

	headerNames := []string{"version", "device_vendor", "device_product", "device_version", "signature_id", "name", "severity"}
	for i, name := range headerNames {
		nl.Extensions[name] = headerValues[i]
	}
	nl.EventType = headerValues[5] // the "name" header field

	kvs, err := parseCEFExtension(fields[7])
	if err != nil {
		return NormalizedLog{}, err
	}
	for k, v := range kvs {
		switch k {
		case "rt", "time":
			// handled below; rt takes priority over time.
		case "src":
			nl.SrcIP = v
		case "dst":
			nl.DstIP = v
		default:
			nl.Extensions[k] = v
		}
	}
	if rt, ok := kvs["rt"]; ok {
		nl.Timestamp = rt
	} else if t, ok := kvs["time"]; ok {
		nl.Timestamp = t
	}

	return nl, nil
}

// splitCEF splits a CEF line on unescaped pipes. CEF allows a literal pipe
// inside a field to be escaped as "\|"; that case is uncommon but handled.
func splitCEF(s string) []string {
	var fields []string
	var cur strings.Builder
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '|':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	fields = append(fields, cur.String())
	return fields
}

// parseCEFExtension parses a space-separated key=value sequence where a
// value may be double-quoted (and a quoted value may contain spaces). The
// in-quote state toggles on '"'; splitting happens only on unquoted spaces;
// leading/trailing quotes are trimmed; repeated keys keep the last value.
func parseCEFExtension(s string) (map[string]string, error) {
	result := make(map[string]string)
	tokens, err := splitCEFExtensionTokens(s)
	if err != nil {
		return nil, err
	}
	for _, tok := range tokens {
		eq := strings.Index(tok, "=")
		if eq < 0 {
			continue
		}
		key := tok[:eq]
		val := strings.Trim(tok[eq+1:], `"`)
		result[key] = val
	}
	return result, nil
}

func splitCEFExtensionTokens(s string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case r == ' ' && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("%w: unterminated quoted value in cef extension", ErrInvalidFormat)
	}
	flush()
	return tokens, nil
}

// parseSyslog splits off the <priority> prefix, the RFC3164 timestamp (three
// whitespace tokens), a hostname token, and treats the remainder as the
// message, from which src/dst IPs and a best-effort event_type are derived.
func parseSyslog(cleaned, raw, accountID, hostID string) (NormalizedLog, error) {
	loc := syslogPrefix.FindStringIndex(cleaned)
	if loc == nil {
		return NormalizedLog{}, fmt.Errorf("%w: missing syslog priority prefix", ErrInvalidFormat)
	}
	priority := cleaned[loc[0]+1 : loc[1]-1]
	rest := strings.TrimSpace(cleaned[loc[1]:])

	tokens := strings.Fields(rest)
	if len(tokens) < 4 {
		return NormalizedLog{}, fmt.Errorf("%w: syslog line too short for timestamp+hostname+message", ErrInvalidFormat)
	}

	// RFC3164 timestamp is three tokens: "Jan", "2", "15:04:05".
	timestampTokens := tokens[:3]
	hostname := tokens[3]

	// Recompute the message as everything after the hostname token in rest,
	// preserving any internal multi-space collapsed by clean().
	tsAndHost := strings.Join(append(append([]string{}, timestampTokens...), hostname), " ")
	message := strings.TrimPrefix(rest, tsAndHost)
	message = strings.TrimSpace(message)

	nl := newLog(accountID, hostID, raw)
	nl.Extensions["priority"] = priority
	nl.Extensions["hostname"] = hostname
	nl.Extensions["message"] = message

	if m := srcIPPattern.FindStringSubmatch(message); m != nil {
		nl.SrcIP = m[2]
	}
	if m := dstIPPattern.FindStringSubmatch(message); m != nil {
		nl.DstIP = m[1]
	}
	nl.EventType = deriveSyslogEventType(message)

	return nl, nil
}

func deriveSyslogEventType(message string) string {
	for _, rule := range eventTypeSubstrings {
		if !strings.Contains(message, rule.process) {
			continue
		}
		if rule.fragment != "" && !strings.Contains(message, rule.fragment) {
			continue
		}
		return rule.eventType
	}
	return ""
}

// parseJSON deserializes cleaned as a flat JSON object, coercing every value
// to a string and routing well-known keys to top-level NormalizedLog fields.
func parseJSON(cleaned, raw, accountID, hostID string) (NormalizedLog, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
		return NormalizedLog{}, fmt.Errorf("%w: invalid json: %v", ErrInvalidFormat, err)
	}

	nl := newLog(accountID, hostID, raw)
	for k, v := range obj {
		sv := stringifyJSONValue(v)
		switch strings.ToLower(k) {
		case "time", "timestamp":
			nl.Timestamp = sv
		case "src_ip", "source_ip", "src":
			nl.SrcIP = sv
		case "dst_ip", "dst":
			nl.DstIP = sv
		case "event", "event_type", "message":
			nl.EventType = sv
		default:
			nl.Extensions[k] = sv
		}
	}
	return nl, nil
}

func stringifyJSONValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

package domain

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// TimestampLayout is the fixed-width UTC form used when the writer stamps an entry.
// Fixed width keeps lexicographic order equal to chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// DateLayout is the date-only form accepted for filter bounds
const DateLayout = "2006-01-02"

// UnknownIPAddress is recorded when the client address cannot be resolved
const UnknownIPAddress = "unknown"

// AuditLogEntry represents one administrative action
type AuditLogEntry struct {
	Action       string          `json:"action"`
	Details      json.RawMessage `json:"details"`
	PerformedBy  string          `json:"performed_by"`
	TargetUserID string          `json:"target_user_id,omitempty"`
	IPAddress    string          `json:"ip_address,omitempty"`
	Timestamp    string          `json:"timestamp"`
}

// AuditLogFilter represents filters for reading audit entries.
// Empty fields are ignored; date bounds are inclusive.
type AuditLogFilter struct {
	Action       string `json:"action,omitempty"`
	PerformedBy  string `json:"performed_by,omitempty"`
	TargetUserID string `json:"target_user_id,omitempty"`
	FromDate     string `json:"from_date,omitempty"`
	ToDate       string `json:"to_date,omitempty"`
}

// Normalize rewrites the date bounds into TimestampLayout so every store compares
// the same instants. Invalid bounds yield a VALID_2002 error.
func (f AuditLogFilter) Normalize() (AuditLogFilter, error) {
	var err error
	if f.FromDate, err = NormalizeDateBound("from", f.FromDate); err != nil {
		return f, err
	}
	if f.ToDate, err = NormalizeDateBound("to", f.ToDate); err != nil {
		return f, err
	}
	return f, nil
}

// NormalizeDateBound accepts RFC 3339 (a space may replace the T) or a bare
// YYYY-MM-DD date, read as midnight UTC. Empty stays empty.
func NormalizeDateBound(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if t, err := time.Parse(DateLayout, value); err == nil {
		return FormatTimestamp(t), nil
	}
	if len(value) > 10 && value[10] == ' ' {
		value = value[:10] + "T" + value[11:]
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return "", ErrInvalidRequest(name + " must be an RFC 3339 timestamp or a YYYY-MM-DD date")
	}
	return FormatTimestamp(t), nil
}

// NormalizeTimestamp rewrites an RFC 3339 timestamp into TimestampLayout.
// Values that do not parse are returned unchanged.
func NormalizeTimestamp(value string) string {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return FormatTimestamp(t)
}

// IsEmpty reports whether no predicate is set
func (f AuditLogFilter) IsEmpty() bool {
	return f == AuditLogFilter{}
}

// Matches applies every provided predicate conjunctively
func (f AuditLogFilter) Matches(e AuditLogEntry) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.PerformedBy != "" && e.PerformedBy != f.PerformedBy {
		return false
	}
	if f.TargetUserID != "" && e.TargetUserID != f.TargetUserID {
		return false
	}
	if f.FromDate != "" && CompareTimestamps(e.Timestamp, f.FromDate) < 0 {
		return false
	}
	if f.ToDate != "" && CompareTimestamps(e.Timestamp, f.ToDate) > 0 {
		return false
	}
	return true
}

// ReadStatus tells callers how trustworthy a read result is
type ReadStatus string

const (
	ReadStatusOK       ReadStatus = "ok"
	ReadStatusDegraded ReadStatus = "degraded"
	ReadStatusEmpty    ReadStatus = "empty"
)

// StoreKind names the backing store that served a read or accepted a write
type StoreKind string

const (
	StoreRemote   StoreKind = "remote"
	StoreFallback StoreKind = "fallback"
	StoreNone     StoreKind = "none"
)

// AuditLogPage is the result of a read.
// Degraded pages come from the fallback store after a remote failure and are
// neither filtered nor paginated.
type AuditLogPage struct {
	Entries []AuditLogEntry `json:"entries"`
	Status  ReadStatus      `json:"status"`
	Source  StoreKind       `json:"source"`
	Reason  string          `json:"reason,omitempty"`
}

// RecordOutcome is the result of a write. Err is informational only.
type RecordOutcome struct {
	Store StoreKind
	Err   error
}

// NewAuditLogEntry builds an entry stamped at now
func NewAuditLogEntry(action string, details interface{}, performedBy string, now time.Time) (AuditLogEntry, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return AuditLogEntry{}, err
	}
	return AuditLogEntry{
		Action:      action,
		Details:     raw,
		PerformedBy: performedBy,
		Timestamp:   FormatTimestamp(now),
	}, nil
}

// FormatTimestamp renders t in TimestampLayout
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// CompareTimestamps orders two ISO-8601 strings. When both parse as RFC 3339 the
// instants are compared, otherwise the raw strings are.
func CompareTimestamps(a, b string) int {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA == nil && errB == nil {
		switch {
		case ta.Before(tb):
			return -1
		case ta.After(tb):
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

// FilterEntries returns the entries matching f, preserving order
func FilterEntries(entries []AuditLogEntry, f AuditLogFilter) []AuditLogEntry {
	out := make([]AuditLogEntry, 0, len(entries))
	for _, e := range entries {
		if f.Matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// SortNewestFirst sorts entries by timestamp descending. Missing timestamps sort last.
func SortNewestFirst(entries []AuditLogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return CompareTimestamps(entries[i].Timestamp, entries[j].Timestamp) > 0
	})
}

// Paginate returns the [offset, offset+limit) window of entries
func Paginate(entries []AuditLogEntry, limit, offset int) []AuditLogEntry {
	if limit <= 0 || offset >= len(entries) {
		return []AuditLogEntry{}
	}
	if offset < 0 {
		offset = 0
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}
	page := make([]AuditLogEntry, end-offset)
	copy(page, entries[offset:end])
	return page
}

// SearchEntries keeps entries whose action, actor, target or details contain term,
// case-insensitively. An empty term keeps everything.
func SearchEntries(entries []AuditLogEntry, term string) []AuditLogEntry {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return entries
	}
	out := make([]AuditLogEntry, 0, len(entries))
	for _, e := range entries {
		haystack := strings.ToLower(strings.Join([]string{
			e.Action, e.PerformedBy, e.TargetUserID, string(e.Details),
		}, "\x00"))
		if strings.Contains(haystack, term) {
			out = append(out, e)
		}
	}
	return out
}

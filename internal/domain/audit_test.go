package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAuditLogEntry(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 5_000_000, time.FixedZone("WIB", 7*3600))

	e, err := NewAuditLogEntry("device_start", map[string]string{"deviceId": "d1"}, "a@x.com", now)
	require.NoError(t, err)

	assert.Equal(t, "device_start", e.Action)
	assert.JSONEq(t, `{"deviceId":"d1"}`, string(e.Details))
	assert.Equal(t, "2024-05-06T00:08:09.005Z", e.Timestamp)
}

func TestCompareTimestamps(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z", -1},
		{"2024-01-02T00:00:00.000Z", "2024-01-02T00:00:00Z", 0},
		// instants differ from their lexicographic order
		{"2024-01-01T10:00:00Z", "2024-01-01T10:00:00.123Z", -1},
		{"2024-01-01T07:00:00+07:00", "2024-01-01T00:00:00Z", 0},
		{"", "2024-01-01T00:00:00Z", -1},
		{"2024-01-01", "2024-01-01T00:00:00Z", -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CompareTimestamps(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}

func TestAuditLogFilter_Matches(t *testing.T) {
	e := AuditLogEntry{Action: "login", PerformedBy: "a@x", TargetUserID: "u1", Timestamp: "2024-01-02T12:00:00.000Z"}

	tests := []struct {
		name   string
		filter AuditLogFilter
		want   bool
	}{
		{"empty", AuditLogFilter{}, true},
		{"action", AuditLogFilter{Action: "login"}, true},
		{"wrong action", AuditLogFilter{Action: "logout"}, false},
		{"actor and target", AuditLogFilter{PerformedBy: "a@x", TargetUserID: "u1"}, true},
		{"wrong target", AuditLogFilter{TargetUserID: "u2"}, false},
		{"from inclusive", AuditLogFilter{FromDate: "2024-01-02T12:00:00.000Z"}, true},
		{"to inclusive", AuditLogFilter{ToDate: "2024-01-02T12:00:00Z"}, true},
		{"after to", AuditLogFilter{ToDate: "2024-01-02T11:59:59.999Z"}, false},
		{"before from", AuditLogFilter{FromDate: "2024-01-03T00:00:00Z"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(e))
		})
	}
	assert.True(t, AuditLogFilter{}.IsEmpty())
	assert.False(t, AuditLogFilter{Action: "x"}.IsEmpty())
}

func TestNormalizeDateBound(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{name: "empty", value: "", want: ""},
		{name: "date only is midnight utc", value: "2024-01-02", want: "2024-01-02T00:00:00.000Z"},
		{name: "rfc3339 utc", value: "2024-01-02T00:00:00Z", want: "2024-01-02T00:00:00.000Z"},
		{name: "rfc3339 offset", value: "2024-01-02T07:00:00+07:00", want: "2024-01-02T00:00:00.000Z"},
		{name: "fractional seconds truncated to millis", value: "2024-01-02T00:00:00.123456Z", want: "2024-01-02T00:00:00.123Z"},
		{name: "space separator", value: "2024-01-02 00:00:00Z", want: "2024-01-02T00:00:00.000Z"},
		{name: "surrounding whitespace", value: " 2024-01-02 ", want: "2024-01-02T00:00:00.000Z"},
		{name: "no zone", value: "2024-01-02T00:00:00", wantErr: true},
		{name: "month out of range", value: "2024-13-01", wantErr: true},
		{name: "us date", value: "01/02/2024", wantErr: true},
		{name: "word", value: "yesterday", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDateBound("to", tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, ErrCodeInvalidRequest, err.(*AppError).Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuditLogFilter_NormalizeKeepsBoundsInclusive(t *testing.T) {
	midnight := AuditLogEntry{Action: "a", Timestamp: "2024-01-02T00:00:00.000Z"}

	for _, bound := range []string{"2024-01-02", "2024-01-02 00:00:00Z", "2024-01-02T02:00:00+02:00"} {
		f, err := AuditLogFilter{FromDate: bound, ToDate: bound}.Normalize()
		require.NoError(t, err, bound)
		assert.True(t, f.Matches(midnight), "bound %q", bound)
	}

	_, err := AuditLogFilter{FromDate: "2024-01-02", ToDate: "later"}.Normalize()
	assert.Error(t, err)
}

func TestNormalizeTimestamp(t *testing.T) {
	assert.Equal(t, "2024-01-01T22:00:00.500Z", NormalizeTimestamp("2024-01-02T00:00:00.500123+02:00"))
	assert.Equal(t, "2024-01-02T00:00:00.000Z", NormalizeTimestamp("2024-01-02T00:00:00Z"))
	assert.Equal(t, "not a time", NormalizeTimestamp("not a time"))
}

func TestSortNewestFirst_MissingTimestampsLast(t *testing.T) {
	entries := []AuditLogEntry{
		{Action: "none"},
		{Action: "old", Timestamp: "2024-01-01T00:00:00.000Z"},
		{Action: "new", Timestamp: "2024-02-01T00:00:00.000Z"},
	}
	SortNewestFirst(entries)

	assert.Equal(t, "new", entries[0].Action)
	assert.Equal(t, "old", entries[1].Action)
	assert.Equal(t, "none", entries[2].Action)
}

func TestPaginate(t *testing.T) {
	entries := make([]AuditLogEntry, 5)
	for i := range entries {
		entries[i].Action = string(rune('a' + i))
	}

	assert.Len(t, Paginate(entries, 2, 0), 2)
	assert.Equal(t, "c", Paginate(entries, 2, 2)[0].Action)
	assert.Len(t, Paginate(entries, 2, 4), 1)
	assert.Empty(t, Paginate(entries, 2, 5))
	assert.Empty(t, Paginate(entries, 0, 0))
	assert.NotNil(t, Paginate(nil, 10, 0))
	assert.Len(t, Paginate(entries, 10, -3), 5)
}

func TestSearchEntries(t *testing.T) {
	entries := []AuditLogEntry{
		{Action: "device_start", Details: []byte(`{"deviceId":"ABC"}`), PerformedBy: "a@x"},
		{Action: "user_login", Details: []byte(`{}`), PerformedBy: "b@x", TargetUserID: "abc-user"},
		{Action: "user_logout", Details: []byte(`{}`), PerformedBy: "c@x"},
	}

	assert.Len(t, SearchEntries(entries, "abc"), 2)
	assert.Len(t, SearchEntries(entries, "USER_"), 2)
	assert.Len(t, SearchEntries(entries, "  "), 3)
	assert.Empty(t, SearchEntries(entries, "zzz"))
}

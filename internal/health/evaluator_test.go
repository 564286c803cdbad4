package health

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/riemann-mysql/internal/domain"
)

func statusRow(io, sqlThread string, lag *string) domain.StatusRow {
	row := make(domain.StatusRow, domain.MinStatusFields)
	row[domain.FieldSlaveIORunning] = sql.NullString{String: io, Valid: true}
	row[domain.FieldSlaveSQLRunning] = sql.NullString{String: sqlThread, Valid: true}
	if lag != nil {
		row[domain.FieldSecondsBehind] = sql.NullString{String: *lag, Valid: true}
	}
	return row
}

func strPtr(s string) *string { return &s }

func TestEvaluate_ThreadMatrix(t *testing.T) {
	tests := []struct {
		name        string
		io, sql     string
		state       domain.State
		description string
	}{
		{"both running", "Yes", "Yes", domain.StateOK, "slave io: running, slave sql: running"},
		{"sql stopped", "Yes", "No", domain.StateWarning, "slave io: running, slave sql: stopped"},
		{"io stopped", "No", "Yes", domain.StateCritical, "slave io: stopped, slave sql: running"},
		{"both stopped", "No", "No", domain.StateCritical, "slave io: stopped, slave sql: stopped"},
		{"io connecting", "Connecting", "Yes", domain.StateCritical, "slave io: stopped, slave sql: running"},
		{"case insensitive", "yes", "YES", domain.StateOK, "slave io: running, slave sql: running"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Evaluate(statusRow(tt.io, tt.sql, strPtr("0")))
			assert.Equal(t, tt.state, a.State)
			assert.Equal(t, tt.description, a.Description)
		})
	}
}

func TestEvaluate_NullThreadsAreStopped(t *testing.T) {
	row := make(domain.StatusRow, domain.MinStatusFields)

	a := Evaluate(row)

	assert.Equal(t, domain.StateCritical, a.State)
	assert.Equal(t, "slave io: stopped, slave sql: stopped", a.Description)
	assert.Nil(t, a.Metric)
}

func TestEvaluate_Lag(t *testing.T) {
	tests := []struct {
		name string
		lag  *string
		want *int64
	}{
		{"null", nil, nil},
		{"zero", strPtr("0"), int64Ptr(0)},
		{"plain", strPtr("42"), int64Ptr(42)},
		{"leading space", strPtr("  7"), int64Ptr(7)},
		{"trailing garbage", strPtr("12abc"), int64Ptr(12)},
		{"negative", strPtr("-3"), int64Ptr(-3)},
		{"no digits", strPtr("abc"), int64Ptr(0)},
		{"empty", strPtr(""), int64Ptr(0)},
		{"sign only", strPtr("-"), int64Ptr(0)},
		{"overflow clamps", strPtr("99999999999999999999"), int64Ptr(9223372036854775807)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Evaluate(statusRow("Yes", "Yes", tt.lag))
			if tt.want == nil {
				assert.Nil(t, a.Metric)
				return
			}
			require.NotNil(t, a.Metric)
			assert.Equal(t, *tt.want, *a.Metric)
		})
	}
}

func int64Ptr(v int64) *int64 { return &v }

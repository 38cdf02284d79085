package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck(t *testing.T) {
	down := errors.New("down")
	tests := []struct {
		name     string
		db       error
		identity Pinger
		status   Status
		checks   map[string]CheckResult
	}{
		{
			name:     "all healthy",
			identity: &mockPinger{},
			status:   Healthy,
			checks:   map[string]CheckResult{"database": CheckOK, "identity": CheckOK},
		},
		{
			name:     "database down",
			db:       down,
			identity: &mockPinger{},
			status:   Unhealthy,
			checks:   map[string]CheckResult{"database": CheckError, "identity": CheckOK},
		},
		{
			name:     "identity down",
			identity: &mockPinger{err: down},
			status:   Degraded,
			checks:   map[string]CheckResult{"database": CheckOK, "identity": CheckError},
		},
		{
			name:     "both down",
			db:       down,
			identity: &mockPinger{err: down},
			status:   Unhealthy,
			checks:   map[string]CheckResult{"database": CheckError, "identity": CheckError},
		},
		{
			name:   "no identity store",
			status: Healthy,
			checks: map[string]CheckResult{"database": CheckOK},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(&mockPinger{err: tt.db}, tt.identity)
			r := svc.Check(context.Background())
			if r.Status != tt.status {
				t.Errorf("expected %q, got %q", tt.status, r.Status)
			}
			if len(r.Checks) != len(tt.checks) {
				t.Errorf("checks = %v, want %v", r.Checks, tt.checks)
			}
			for k, v := range tt.checks {
				if r.Checks[k] != v {
					t.Errorf("expected %s %q, got %q", k, v, r.Checks[k])
				}
			}
		})
	}
}

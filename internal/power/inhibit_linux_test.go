//go:build linux

package power

import (
	"context"
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"

	"github.com/ubunatic/clamshell/internal/logging"
)

func denied(name string) error {
	return dbus.Error{Name: name, Body: []interface{}{"Permission denied"}}
}

func TestAcquireLogind(t *testing.T) {
	busy := errors.New("connection reset")
	tests := []struct {
		name     string
		results  map[string]error
		wantWhat string
		wantErr  error
		calls    []string
	}{
		{
			name:     "lid switch lock granted",
			results:  map[string]error{},
			wantWhat: inhibitWhat,
			calls:    []string{inhibitWhat},
		},
		{
			name:     "lid switch denied falls back to sleep",
			results:  map[string]error{inhibitWhat: denied("org.freedesktop.DBus.Error.InteractiveAuthorizationRequired")},
			wantWhat: sleepOnly,
			calls:    []string{inhibitWhat, sleepOnly},
		},
		{
			name: "both denied",
			results: map[string]error{
				inhibitWhat: denied("org.freedesktop.DBus.Error.AccessDenied"),
				sleepOnly:   denied("org.freedesktop.DBus.Error.AccessDenied"),
			},
			wantErr: ErrDenied,
			calls:   []string{inhibitWhat, sleepOnly},
		},
		{
			name:    "other errors are not retried",
			results: map[string]error{inhibitWhat: busy},
			wantErr: busy,
			calls:   []string{inhibitWhat},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &linuxBackend{reason: DefaultReason, logger: logging.NewNop()}
			var calls []string
			a, err := l.acquireLogind(context.Background(), func(ctx context.Context, what string) (int, error) {
				calls = append(calls, what)
				if err := tt.results[what]; err != nil {
					return -1, err
				}
				return 42, nil
			})

			if len(calls) != len(tt.calls) {
				t.Fatalf("inhibit calls = %v, want %v", calls, tt.calls)
			}
			for i := range calls {
				if calls[i] != tt.calls[i] {
					t.Fatalf("inhibit calls = %v, want %v", calls, tt.calls)
				}
			}

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("acquireLogind: %v", err)
			}
			fa, ok := a.(*fdAssertion)
			if !ok || fa.what != tt.wantWhat || fa.fd != 42 {
				t.Fatalf("unexpected assertion %v", a)
			}
		})
	}
}

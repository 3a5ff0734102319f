package probe

import (
	"testing"

	"github.com/ubunatic/clamshell/internal/clamshell"
)

func TestParseClamshellState(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    clamshell.LidState
		wantErr bool
	}{
		{
			name: "closed",
			out: `+-o IOPMrootDomain  <class IOPMrootDomain, id 0x100000250>
    {
      "AppleClamshellCausesSleep" = No
      "AppleClamshellState" = Yes
    }`,
			want: clamshell.LidClosed,
		},
		{
			name: "open",
			out:  `  | "AppleClamshellState" = No`,
			want: clamshell.LidOpen,
		},
		{
			name:    "missing key",
			out:     `+-o IOPMrootDomain`,
			wantErr: true,
		},
		{
			name:    "garbage value",
			out:     `"AppleClamshellState" = Maybe`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseClamshellState([]byte(tt.out))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseClamshellState: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCountExternalDisplays(t *testing.T) {
	out := `{
  "SPDisplaysDataType" : [
    {
      "_name" : "Apple M2",
      "spdisplays_ndrvs" : [
        {
          "_name" : "Color LCD",
          "spdisplays_connection_type" : "spdisplays_internal",
          "spdisplays_display_type" : "spdisplays_built-in-liquid-retina"
        },
        {
          "_name" : "DELL U2720Q"
        },
        {
          "_name" : "LG HDR 4K",
          "spdisplays_display_type" : "spdisplays_4k"
        }
      ]
    }
  ]
}`
	n, err := countExternalDisplays([]byte(out))
	if err != nil {
		t.Fatalf("countExternalDisplays: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 external displays, got %d", n)
	}

	n, err = countExternalDisplays([]byte(`{"SPDisplaysDataType":[{"_name":"Apple M2"}]}`))
	if err != nil {
		t.Fatalf("countExternalDisplays (no screens): %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 external displays, got %d", n)
	}

	if _, err := countExternalDisplays([]byte("not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

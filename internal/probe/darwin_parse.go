package probe

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ubunatic/clamshell/internal/clamshell"
)

const clamshellStateKey = `"AppleClamshellState"`

// parseClamshellState reads the lid state from `ioreg -r -k AppleClamshellState` output.
func parseClamshellState(out []byte) (clamshell.LidState, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		idx := strings.Index(line, clamshellStateKey)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(line[idx+len(clamshellStateKey):])
		rest = strings.TrimSpace(strings.TrimPrefix(rest, "="))
		switch rest {
		case "Yes":
			return clamshell.LidClosed, nil
		case "No":
			return clamshell.LidOpen, nil
		default:
			return clamshell.LidUnknown, fmt.Errorf("unexpected %s value %q", clamshellStateKey, rest)
		}
	}
	if err := sc.Err(); err != nil {
		return clamshell.LidUnknown, err
	}
	return clamshell.LidUnknown, fmt.Errorf("%s not reported (no lid?)", clamshellStateKey)
}

type spDisplays struct {
	Items []struct {
		Name    string `json:"_name"`
		Screens []struct {
			Name           string `json:"_name"`
			ConnectionType string `json:"spdisplays_connection_type"`
			DisplayType    string `json:"spdisplays_display_type"`
		} `json:"spdisplays_ndrvs"`
	} `json:"SPDisplaysDataType"`
}

// countExternalDisplays counts non built-in screens in
// `system_profiler SPDisplaysDataType -json` output.
func countExternalDisplays(out []byte) (int, error) {
	var doc spDisplays
	if err := json.Unmarshal(out, &doc); err != nil {
		return 0, fmt.Errorf("decode system_profiler output: %w", err)
	}

	n := 0
	for _, gpu := range doc.Items {
		for _, screen := range gpu.Screens {
			if screen.ConnectionType == "spdisplays_internal" ||
				strings.Contains(screen.DisplayType, "built-in") {
				continue
			}
			n++
		}
	}
	return n, nil
}

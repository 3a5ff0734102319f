package probe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ubunatic/clamshell/internal/clamshell"
)

// Connector types wired to the laptop panel itself.
var internalConnectors = []string{"eDP", "LVDS", "DSI", "Writeback"}

// countExternalConnectors counts connected non-panel DRM connectors under
// <sysRoot>/class/drm.
func countExternalConnectors(sysRoot string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(sysRoot, "class", "drm", "card*-*"))
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, errors.New("no DRM connectors found")
	}

	n := 0
	for _, dir := range matches {
		if isInternalConnector(filepath.Base(dir)) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, "status"))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return 0, fmt.Errorf("read connector status: %w", err)
		}
		if strings.TrimSpace(string(data)) == "connected" {
			n++
		}
	}
	return n, nil
}

// isInternalConnector reports whether a sysfs entry like card0-eDP-1 is a
// built-in panel.
func isInternalConnector(name string) bool {
	_, connector, ok := strings.Cut(name, "-")
	if !ok {
		return false
	}
	for _, prefix := range internalConnectors {
		if strings.HasPrefix(connector, prefix) {
			return true
		}
	}
	return false
}

// readProcLidState reads the ACPI lid button under <procRoot>/acpi/button/lid.
func readProcLidState(procRoot string) (clamshell.LidState, error) {
	matches, err := filepath.Glob(filepath.Join(procRoot, "acpi", "button", "lid", "*", "state"))
	if err != nil {
		return clamshell.LidUnknown, err
	}
	if len(matches) == 0 {
		return clamshell.LidUnknown, errors.New("no ACPI lid button found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		return clamshell.LidUnknown, fmt.Errorf("read lid state: %w", err)
	}

	// "state:      closed"
	_, value, _ := strings.Cut(string(data), ":")
	switch strings.TrimSpace(value) {
	case "open":
		return clamshell.LidOpen, nil
	case "closed":
		return clamshell.LidClosed, nil
	default:
		return clamshell.LidUnknown, fmt.Errorf("unexpected lid state %q", strings.TrimSpace(string(data)))
	}
}

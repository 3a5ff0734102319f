package probe

import (
	"context"
	"fmt"
	"slices"

	"github.com/godbus/dbus/v5"

	"github.com/ubunatic/clamshell/internal/clamshell"
)

const (
	upowerDest     = "org.freedesktop.UPower"
	upowerPath     = "/org/freedesktop/UPower"
	upowerProperty = "LidIsClosed"

	propertiesIface   = "org.freedesktop.DBus.Properties"
	propertiesGet     = propertiesIface + ".Get"
	propertiesChanged = "PropertiesChanged"
)

// upowerLidState asks UPower whether the lid is closed.
func upowerLidState(ctx context.Context, conn *dbus.Conn) (clamshell.LidState, error) {
	obj := conn.Object(upowerDest, upowerPath)
	var result dbus.Variant
	if err := obj.CallWithContext(ctx, propertiesGet, 0, upowerDest, upowerProperty).Store(&result); err != nil {
		return clamshell.LidUnknown, err
	}

	closed, ok := result.Value().(bool)
	if !ok {
		return clamshell.LidUnknown, fmt.Errorf("unexpected type %T for %s", result.Value(), upowerProperty)
	}
	if closed {
		return clamshell.LidClosed, nil
	}
	return clamshell.LidOpen, nil
}

// lidSignalChanged reports whether a PropertiesChanged signal touches LidIsClosed.
func lidSignalChanged(sig *dbus.Signal) bool {
	if sig == nil || sig.Name != propertiesIface+"."+propertiesChanged {
		return false
	}
	if len(sig.Body) < 2 {
		return false
	}

	if changed, ok := sig.Body[1].(map[string]dbus.Variant); ok {
		if _, exists := changed[upowerProperty]; exists {
			return true
		}
	}

	if len(sig.Body) >= 3 {
		if invalidated, ok := sig.Body[2].([]string); ok {
			return slices.Contains(invalidated, upowerProperty)
		}
	}
	return false
}

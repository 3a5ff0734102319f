//go:build linux

package probe

import (
	"context"
	"errors"

	"github.com/godbus/dbus/v5"
	"github.com/pilebones/go-udev/netlink"
)

// Watch subscribes to DRM hotplug uevents and UPower lid signals. Either
// source alone is enough; Watch fails only when both are unavailable.
func (p *linuxProbe) Watch(ctx context.Context) (<-chan struct{}, error) {
	hints := newNotifier()

	udevErr := p.watchUdev(ctx, hints)
	if udevErr != nil {
		p.logger.Warn("udev monitor unavailable; display changes will be picked up by polling", "err", udevErr)
	}
	busErr := p.watchUPower(ctx, hints)
	if busErr != nil {
		p.logger.Warn("upower signals unavailable; lid changes will be picked up by polling", "err", busErr)
	}

	if udevErr != nil && busErr != nil {
		return nil, errors.Join(udevErr, busErr)
	}
	return hints, nil
}

func (p *linuxProbe) watchUdev(ctx context.Context, hints notifier) error {
	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return err
	}

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	quit := conn.Monitor(queue, errs, drmMatcher())

	go func() {
		defer conn.Close()
		for {
			select {
			case <-ctx.Done():
				close(quit)
				return
			case uevent := <-queue:
				p.logger.Debug("drm uevent", "action", string(uevent.Action), "kobj", uevent.KObj)
				hints.notify()
			case err := <-errs:
				p.logger.Warn("udev monitor error", "err", err)
			}
		}
	}()

	p.logger.Debug("udev monitor started")
	return nil
}

// drmMatcher matches connector hotplug events: SUBSYSTEM=drm, ACTION=change|add|remove.
func drmMatcher() netlink.Matcher {
	action := "change|add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "drm",
		},
	})
	return rules
}

func (p *linuxProbe) watchUPower(ctx context.Context, hints notifier) error {
	// A private connection so it can be closed without affecting Sample.
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return err
	}

	if err := conn.AddMatchSignalContext(ctx,
		dbus.WithMatchObjectPath(upowerPath),
		dbus.WithMatchInterface(propertiesIface),
		dbus.WithMatchMember(propertiesChanged),
	); err != nil {
		conn.Close()
		return err
	}

	signals := make(chan *dbus.Signal, 10)
	conn.Signal(signals)

	go func() {
		defer conn.Close()
		defer conn.RemoveSignal(signals)
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				if lidSignalChanged(sig) {
					p.logger.Debug("upower lid signal")
					hints.notify()
				}
			}
		}
	}()

	p.logger.Debug("upower signal watch started")
	return nil
}

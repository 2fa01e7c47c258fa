//go:build linux

// Package bluetooth exposes a connected phone streaming audio to this
// machine as a playback backend. Transport and volume stay on the device;
// only AVRCP control commands go out, via BlueZ on the system bus.
package bluetooth

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/mgoutay/chorus/internal/events"
)

const (
	bluezService      = "org.bluez"
	deviceInterface   = "org.bluez.Device1"
	controlInterface  = "org.bluez.MediaControl1"
	objectManagerPath = dbus.ObjectPath("/")
)

// BlueZSink talks to BlueZ over the system bus. When no bus is reachable
// the sink stays permanently disabled and every call is a no-op.
type BlueZSink struct {
	log logrus.FieldLogger
	bus *events.Bus

	conn    *dbus.Conn
	enabled bool
}

// New connects to the system bus. D-Bus being unreachable is not an error;
// the sink just reports disabled.
func New(bus *events.Bus, log logrus.FieldLogger) *BlueZSink {
	s := &BlueZSink{
		log: log.WithField("component", "bluetooth"),
		bus: bus,
	}
	conn, err := dbus.SystemBus()
	if err != nil {
		s.log.WithError(err).Warn("system bus unavailable, bluetooth sink disabled")
		return s
	}
	s.conn = conn
	s.watchConnections()
	return s
}

// Enable marks the sink as the preferred backend and announces it.
func (s *BlueZSink) Enable() {
	if s.conn == nil || s.enabled {
		return
	}
	s.enabled = true
	s.bus.Publish(events.SinkEnabled, events.ToggleEvent{Enabled: true})
}

// Disable releases the sink role.
func (s *BlueZSink) Disable() {
	if !s.enabled {
		return
	}
	s.enabled = false
	s.bus.Publish(events.SinkDisabled, events.ToggleEvent{Enabled: false})
}

// IsEnabled reports whether the sink currently owns playback routing.
func (s *BlueZSink) IsEnabled() bool { return s.enabled }

// ConnectedDevice returns the alias of a connected device exposing media
// control, if any.
func (s *BlueZSink) ConnectedDevice() (string, bool) {
	_, alias, ok := s.findControlDevice()
	return alias, ok
}

// ControlPlayback forwards cmd to the connected device.
func (s *BlueZSink) ControlPlayback(cmd Command) error {
	if s.conn == nil {
		return fmt.Errorf("bluetooth unavailable")
	}
	path, _, ok := s.findControlDevice()
	if !ok {
		return fmt.Errorf("no connected media device")
	}
	obj := s.conn.Object(bluezService, path)
	if call := obj.Call(controlInterface+"."+string(cmd), 0); call.Err != nil {
		return fmt.Errorf("avrcp %s: %w", cmd, call.Err)
	}
	return nil
}

// findControlDevice walks BlueZ's managed objects for a device with a
// connected MediaControl1 interface.
func (s *BlueZSink) findControlDevice() (dbus.ObjectPath, string, bool) {
	if s.conn == nil {
		return "", "", false
	}
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	obj := s.conn.Object(bluezService, objectManagerPath)
	if err := obj.Call("org.freedesktop.DBus.ObjectManager.GetManagedObjects", 0).Store(&objects); err != nil {
		s.log.WithError(err).Debug("bluez object scan failed")
		return "", "", false
	}

	for path, ifaces := range objects {
		control, ok := ifaces[controlInterface]
		if !ok {
			continue
		}
		if connected, ok := control["Connected"].Value().(bool); !ok || !connected {
			continue
		}
		alias := ""
		if dev, ok := ifaces[deviceInterface]; ok {
			if v, ok := dev["Alias"].Value().(string); ok {
				alias = v
			}
		}
		return path, alias, true
	}
	return "", "", false
}

// watchConnections surfaces MediaControl1 connection changes as bus events
// so the router can react to a phone attaching mid-session.
func (s *BlueZSink) watchConnections() {
	if err := s.conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
		dbus.WithMatchArg(0, controlInterface),
	); err != nil {
		s.log.WithError(err).Debug("bluez signal match failed")
		return
	}

	ch := make(chan *dbus.Signal, 16)
	s.conn.Signal(ch)
	go func() {
		for sig := range ch {
			if len(sig.Body) < 2 {
				continue
			}
			iface, _ := sig.Body[0].(string)
			if iface != controlInterface {
				continue
			}
			changed, _ := sig.Body[1].(map[string]dbus.Variant)
			v, ok := changed["Connected"]
			if !ok {
				continue
			}
			if connected, _ := v.Value().(bool); connected {
				alias, _ := s.ConnectedDevice()
				s.bus.Publish(events.SinkDeviceConnected, events.DeviceEvent{Device: alias})
			}
		}
	}()
}

// Close detaches from the system bus.
func (s *BlueZSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

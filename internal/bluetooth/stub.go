//go:build !linux

package bluetooth

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mgoutay/chorus/internal/events"
)

// BlueZSink is a no-op on non-Linux platforms.
type BlueZSink struct{}

// New returns a permanently disabled sink on non-Linux platforms.
func New(_ *events.Bus, _ logrus.FieldLogger) *BlueZSink {
	return &BlueZSink{}
}

func (s *BlueZSink) IsEnabled() bool { return false }

func (s *BlueZSink) Enable() {}

func (s *BlueZSink) Disable() {}

func (s *BlueZSink) ConnectedDevice() (string, bool) { return "", false }

func (s *BlueZSink) ControlPlayback(_ Command) error {
	return fmt.Errorf("bluetooth unavailable on this platform")
}

func (s *BlueZSink) Close() error { return nil }

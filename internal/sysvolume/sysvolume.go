// Package sysvolume adjusts the system output volume. The external player
// manages its own software volume, but volume changes while the internal
// pipeline or the bluetooth sink is active go to the audio server instead.
package sysvolume

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// Setter changes the system output volume, 0.0 to 1.0.
type Setter interface {
	SetVolume(ctx context.Context, level float64) error
}

// CLI drives the audio server through wpctl (PipeWire), falling back to
// amixer (ALSA) when wpctl is absent.
type CLI struct {
	log    logrus.FieldLogger
	wpctl  string
	amixer string
}

// New probes for the available volume tools.
func New(log logrus.FieldLogger) *CLI {
	c := &CLI{log: log.WithField("component", "sysvolume")}
	if path, err := exec.LookPath("wpctl"); err == nil {
		c.wpctl = path
	}
	if path, err := exec.LookPath("amixer"); err == nil {
		c.amixer = path
	}
	if c.wpctl == "" && c.amixer == "" {
		c.log.Warn("no system volume tool found")
	}
	return c
}

// SetVolume applies level to the default output sink.
func (c *CLI) SetVolume(ctx context.Context, level float64) error {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}

	if c.wpctl != "" {
		err := exec.CommandContext(ctx, c.wpctl,
			"set-volume", "@DEFAULT_AUDIO_SINK@", fmt.Sprintf("%.2f", level)).Run()
		if err == nil {
			return nil
		}
		c.log.WithError(err).Debug("wpctl failed, trying amixer")
	}
	if c.amixer != "" {
		return exec.CommandContext(ctx, c.amixer,
			"set", "Master", fmt.Sprintf("%d%%", int(level*100))).Run()
	}
	return fmt.Errorf("no system volume tool available")
}

// Mock records volume calls for tests.
type Mock struct {
	Calls []float64
	Err   error
}

func (m *Mock) SetVolume(_ context.Context, level float64) error {
	m.Calls = append(m.Calls, level)
	return m.Err
}

var (
	_ Setter = (*CLI)(nil)
	_ Setter = (*Mock)(nil)
)

package bluetooth

import "github.com/mgoutay/chorus/internal/events"

// Command is an AVRCP control verb forwarded to the source device.
type Command string

const (
	CmdPlay     Command = "Play"
	CmdPause    Command = "Pause"
	CmdStop     Command = "Stop"
	CmdNext     Command = "Next"
	CmdPrevious Command = "Previous"
)

// Sink is the contract the router programs against.
type Sink interface {
	IsEnabled() bool
	Enable()
	Disable()
	ConnectedDevice() (string, bool)
	ControlPlayback(cmd Command) error
}

// Mock is a test double recording control commands.
type Mock struct {
	bus     *events.Bus
	enabled bool
	device  string

	controlErr error
	commands   []Command
}

// NewMock creates a mock sink publishing toggle events on bus when set.
func NewMock(bus *events.Bus) *Mock {
	return &Mock{bus: bus}
}

func (m *Mock) IsEnabled() bool { return m.enabled }

func (m *Mock) Enable() {
	if m.enabled {
		return
	}
	m.enabled = true
	if m.bus != nil {
		m.bus.Publish(events.SinkEnabled, events.ToggleEvent{Enabled: true})
	}
}

func (m *Mock) Disable() {
	if !m.enabled {
		return
	}
	m.enabled = false
	if m.bus != nil {
		m.bus.Publish(events.SinkDisabled, events.ToggleEvent{Enabled: false})
	}
}

func (m *Mock) ConnectedDevice() (string, bool) {
	return m.device, m.device != ""
}

func (m *Mock) ControlPlayback(cmd Command) error {
	m.commands = append(m.commands, cmd)
	return m.controlErr
}

// Test helpers

func (m *Mock) SetDevice(name string) { m.device = name }

func (m *Mock) SetControlError(err error) { m.controlErr = err }

func (m *Mock) Commands() []Command { return m.commands }

var (
	_ Sink = (*Mock)(nil)
	_ Sink = (*BlueZSink)(nil)
)

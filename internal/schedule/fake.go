package schedule

import "github.com/sweeney/desk-scheduler/internal/desk"

// FakeReceiver records commands instead of sending them.
type FakeReceiver struct {
	Commands []desk.Command

	// Err, if set, is returned by SendCommand and nothing is recorded.
	Err error
}

// SendCommand records cmd.
func (f *FakeReceiver) SendCommand(cmd desk.Command) error {
	if f.Err != nil {
		return f.Err
	}
	f.Commands = append(f.Commands, cmd)
	return nil
}

// FakeDesk reports a fixed posture.
type FakeDesk struct {
	Posture desk.Posture
}

// CurrentPosture returns f.Posture.
func (f *FakeDesk) CurrentPosture() desk.Posture { return f.Posture }

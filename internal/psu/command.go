package psu

import "fmt"

// Inbound command names.
const (
	CmdOutputOn   = "outputOn"
	CmdOutputOff  = "outputOff"
	CmdSetVoltage = "setVoltage"
	CmdSetCurrent = "setCurrent"
	CmdRecall     = "recall"
	CmdSave       = "save"
	CmdBeepOn     = "beepOn"
	CmdBeepOff    = "beepOff"
	CmdOCPOn      = "ocpOn"
	CmdOCPOff     = "ocpOff"
	CmdOVPOn      = "ovpOn"
	CmdOVPOff     = "ovpOff"
)

// Command is an on-demand request from a client.
// Channel doubles as the memory number for recall/save.
type Command struct {
	Name    string `json:"command"`
	Channel int    `json:"channel,omitempty"`
	Value   string `json:"value,omitempty"`
}

// Execute runs one inbound command through the serializer and waits for it.
func (d *Driver) Execute(c Command) error {
	switch c.Name {
	case CmdOutputOn:
		return d.SetOutput(true)
	case CmdOutputOff:
		return d.SetOutput(false)
	case CmdSetVoltage:
		return d.SetVoltage(c.Channel, c.Value)
	case CmdSetCurrent:
		return d.SetCurrent(c.Channel, c.Value)
	case CmdRecall:
		return d.Recall(c.Channel)
	case CmdSave:
		return d.Save(c.Channel)
	case CmdBeepOn:
		return d.SetBeep(true)
	case CmdBeepOff:
		return d.SetBeep(false)
	case CmdOCPOn:
		return d.SetOCP(true)
	case CmdOCPOff:
		return d.SetOCP(false)
	case CmdOVPOn:
		return d.SetOVP(true)
	case CmdOVPOff:
		return d.SetOVP(false)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Name)
	}
}

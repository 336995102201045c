package listpage

import (
	"github.com/unitdesk/unitdesk/internal/unit"
)

// Kind is which dialog, if any, is open.
type Kind int

const (
	Idle Kind = iota
	Creating
	Editing
	ConfirmingDelete
	ShowingStatus
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case Creating:
		return "creating"
	case Editing:
		return "editing"
	case ConfirmingDelete:
		return "confirming_delete"
	case ShowingStatus:
		return "showing_status"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Status dialog titles.
const (
	TitleSuccess = "Success"
	TitleFailed  = "Failed"
	TitleError   = "Error"
)

// Messages shown by the page itself rather than relayed from the server.
const (
	MsgCreated      = "Unit created"
	MsgUpdated      = "Unit updated"
	MsgLoadFailed   = "Failed to retrieve units due to unable connect to server"
	MsgDeleteFailed = "Failed to delete unit due to unable connect to server"
)

// StatusMessage is the content of a status dialog.
type StatusMessage struct {
	Title   string
	Message string
	Success bool
}

// Dialog is the single open dialog. Unit is set for Editing and
// ConfirmingDelete; Status and Return for ShowingStatus.
type Dialog struct {
	Kind   Kind
	Unit   *unit.Unit
	Status *StatusMessage

	// Return is the dialog a status was raised over.
	Return *Dialog

	// closesEditor marks a successful submit: dismissing it closes the
	// editor instead of returning to it.
	closesEditor bool
	loadFailure  bool
}

// Selection returns the unit the open dialog acts on, or nil.
func (d Dialog) Selection() *unit.Unit {
	if d.Kind == Editing || d.Kind == ConfirmingDelete {
		return d.Unit
	}
	return nil
}

// IsEditor reports whether the create/edit dialog is open.
func (d Dialog) IsEditor() bool {
	return d.Kind == Creating || d.Kind == Editing
}

func (d Dialog) clone() Dialog {
	out := d
	if d.Unit != nil {
		u := *d.Unit
		out.Unit = &u
	}
	if d.Status != nil {
		s := *d.Status
		out.Status = &s
	}
	if d.Return != nil {
		r := d.Return.clone()
		out.Return = &r
	}
	return out
}

func statusOver(over Dialog, title, msg string, success bool) Dialog {
	ret := over.clone()
	return Dialog{
		Kind:   ShowingStatus,
		Status: &StatusMessage{Title: title, Message: msg, Success: success},
		Return: &ret,
	}
}

// Form is the create/edit form as entered. Type and Status are empty until
// the user picks one.
type Form struct {
	Name   string
	Type   string
	Status string
}

// FormFrom seeds a form from u.
func FormFrom(u unit.Unit) Form {
	return Form{Name: u.Name, Type: string(u.Type), Status: string(u.Status)}
}

// Fields converts the form into a payload. Type and status must be members
// of their enumerations.
func (f Form) Fields() (unit.Fields, error) {
	fields := unit.Fields{Name: f.Name, Type: unit.Type(f.Type), Status: unit.Status(f.Status)}
	if err := fields.Validate(); err != nil {
		return unit.Fields{}, err
	}
	return fields, nil
}

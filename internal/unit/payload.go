package unit

import (
	"github.com/unitdesk/unitdesk/internal/errors"
)

// Fields is the payload for creating a unit.
type Fields struct {
	Name   string `json:"name"`
	Type   Type   `json:"type"`
	Status Status `json:"status"`
}

// Validate rejects values outside the type and status enumerations.
// Name is left to the remote API.
func (f Fields) Validate() error {
	if !f.Type.Valid() {
		return errors.NewInvalidRequest("type must be one of: capsule, cabin")
	}
	if !f.Status.Valid() {
		return errors.NewInvalidRequest("status must be one of: " + statusList())
	}
	return nil
}

// Patch is a partial update. Nil fields are left unchanged by the server.
type Patch struct {
	Name   *string `json:"name,omitempty"`
	Type   *Type   `json:"type,omitempty"`
	Status *Status `json:"status,omitempty"`
}

// PatchFrom builds a patch that sets all three fields.
func PatchFrom(f Fields) Patch {
	return Patch{Name: &f.Name, Type: &f.Type, Status: &f.Status}
}

// Over returns a patch setting all three fields: p's where present,
// current's otherwise.
func (p Patch) Over(current Unit) Patch {
	full := PatchFrom(Fields{Name: current.Name, Type: current.Type, Status: current.Status})
	if p.Name != nil {
		full.Name = p.Name
	}
	if p.Type != nil {
		full.Type = p.Type
	}
	if p.Status != nil {
		full.Status = p.Status
	}
	return full
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Type == nil && p.Status == nil
}

// Validate rejects an empty patch and enumeration violations.
func (p Patch) Validate() error {
	if p.IsEmpty() {
		return errors.NewInvalidRequest("at least one of name, type, status is required")
	}
	if p.Type != nil && !p.Type.Valid() {
		return errors.NewInvalidRequest("type must be one of: capsule, cabin")
	}
	if p.Status != nil && !p.Status.Valid() {
		return errors.NewInvalidRequest("status must be one of: " + statusList())
	}
	return nil
}

func statusList() string {
	s := ""
	for i, st := range statuses {
		if i > 0 {
			s += ", "
		}
		s += string(st)
	}
	return s
}

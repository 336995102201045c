package unit

// Type is the kind of a unit.
type Type string

const (
	TypeCapsule Type = "capsule"
	TypeCabin   Type = "cabin"
)

// Status is the occupancy or housekeeping state of a unit.
type Status string

const (
	StatusAvailable   Status = "Available"
	StatusOccupied    Status = "Occupied"
	StatusCleaning    Status = "Cleaning In Progress"
	StatusMaintenance Status = "Maintenance Needed"
)

var (
	types    = []Type{TypeCapsule, TypeCabin}
	statuses = []Status{StatusAvailable, StatusOccupied, StatusCleaning, StatusMaintenance}
)

// Unit is one rentable unit as held by the remote API.
// ID is assigned by the server and never set or changed locally.
type Unit struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Type   Type   `json:"type"`
	Status Status `json:"status"`
}

// Types returns every unit type in display order.
func Types() []Type {
	return append([]Type(nil), types...)
}

// Statuses returns every unit status in display order.
func Statuses() []Status {
	return append([]Status(nil), statuses...)
}

// ParseType returns the Type named by s, matching exactly.
func ParseType(s string) (Type, bool) {
	for _, t := range types {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// ParseStatus returns the Status named by s, matching exactly.
func ParseStatus(s string) (Status, bool) {
	for _, st := range statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Label is the display label for a type ("Capsule", "Cabin").
func (t Type) Label() string {
	switch t {
	case TypeCapsule:
		return "Capsule"
	case TypeCabin:
		return "Cabin"
	}
	return string(t)
}

// Valid reports whether t is a member of the type enumeration.
func (t Type) Valid() bool {
	_, ok := ParseType(string(t))
	return ok
}

// Valid reports whether s is a member of the status enumeration.
func (s Status) Valid() bool {
	_, ok := ParseStatus(string(s))
	return ok
}

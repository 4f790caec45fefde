package event

// Type identifies the type of domain event
type Type string

const (
	TypeTripStatusChanged  Type = "trip.status_changed"
	TypeAdminStatusChanged Type = "admin_request.status_changed"
	TypeBudgetOverridden   Type = "budget.overridden"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeTripStatusChanged,
		TypeAdminStatusChanged,
		TypeBudgetOverridden:
		return true
	default:
		return false
	}
}

// AllTypes lists every event type, for subscribers that want them all
func AllTypes() []Type {
	return []Type{TypeTripStatusChanged, TypeAdminStatusChanged, TypeBudgetOverridden}
}

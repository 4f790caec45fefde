package workflow

// Trigger represents an action that can move a request to another status
type Trigger string

const (
	TriggerAdvance  Trigger = "ADVANCE"
	TriggerComplete Trigger = "COMPLETE"
	TriggerReject   Trigger = "REJECT"
	TriggerCancel   Trigger = "CANCEL"
	TriggerPay      Trigger = "PAY"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

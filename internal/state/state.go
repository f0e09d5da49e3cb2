package state

import (
	"strings"
	"time"
)

// Step is the position of a conversation in the expense-entry flow.
type Step int

const (
	// StepUnset means no entry is in progress; it is equivalent to an absent record.
	StepUnset Step = 0
	// StepAwaitingActivity waits for the free-text activity description.
	StepAwaitingActivity Step = 1
	// StepAwaitingStatus waits for the status choice.
	StepAwaitingStatus Step = 2
	// StepAwaitingAmount waits for the amount. Value 3 is never assigned.
	StepAwaitingAmount Step = 4
)

// Steps lists every assignable step in flow order.
var Steps = []Step{StepUnset, StepAwaitingActivity, StepAwaitingStatus, StepAwaitingAmount}

// Known reports whether s is one of Steps.
func (s Step) Known() bool {
	switch s {
	case StepUnset, StepAwaitingActivity, StepAwaitingStatus, StepAwaitingAmount:
		return true
	default:
		return false
	}
}

func (s Step) String() string {
	switch s {
	case StepUnset:
		return "unset"
	case StepAwaitingActivity:
		return "awaiting_activity"
	case StepAwaitingStatus:
		return "awaiting_status"
	case StepAwaitingAmount:
		return "awaiting_amount"
	default:
		return "unknown"
	}
}

// Status is the category an expense is filed under.
type Status string

const (
	StatusObligatory Status = "Kewajiban"
	StatusCharity    Status = "Sedekah"
	StatusWorldly    Status = "Duniawi"
)

// Statuses lists the categories in the order they are offered.
var Statuses = []Status{StatusObligatory, StatusCharity, StatusWorldly}

// ParseStatus matches label against the known categories, ignoring case and surrounding space.
func ParseStatus(label string) (Status, bool) {
	label = strings.TrimSpace(label)
	for _, status := range Statuses {
		if strings.EqualFold(label, string(status)) {
			return status, true
		}
	}
	return "", false
}

// ConversationState is the per-conversation record kept between messages.
type ConversationState struct {
	Step     Step   `json:"step,omitempty"`
	Activity string `json:"activity,omitempty"`
	Status   Status `json:"status,omitempty"`
	// Date is an ISO calendar day (2006-01-02) stamped when the status is chosen.
	Date string `json:"date,omitempty"`
	// Amount is in the smallest currency unit; nil until the amount step resolves.
	Amount    *int64    `json:"amount,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of s. A nil receiver yields an empty Unset record.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return &ConversationState{}
	}

	cp := *s
	if s.Amount != nil {
		amount := *s.Amount
		cp.Amount = &amount
	}
	return &cp
}

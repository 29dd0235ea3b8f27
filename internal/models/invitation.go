package models

import "time"

// InvitationStatus is the lifecycle state of an invitation
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationRejected InvitationStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed
func (s InvitationStatus) IsTerminal() bool {
	return s == InvitationAccepted || s == InvitationRejected
}

// Invitation is an offer of membership sent to an email address
type Invitation struct {
	ID           string
	GroupID      string
	InviterID    string
	InviteeEmail string
	Status       InvitationStatus
	CreatedAt    time.Time

	GroupName   string // Populated via JOIN
	InviterName string // Populated via JOIN
	InviterMail string // Populated via JOIN
}

// IsPending reports whether the invitation can still be accepted or rejected
func (i *Invitation) IsPending() bool {
	return i.Status == InvitationPending
}

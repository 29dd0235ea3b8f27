package models

import "time"

// FamilyGroup is a set of users sharing tasks
type FamilyGroup struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Membership asserts that a user belongs to a family group
type Membership struct {
	UserID   string
	GroupID  string
	JoinedAt time.Time
}

// GroupMember combines a membership with the member's profile
type GroupMember struct {
	Membership Membership
	User       User
}

package models

// Scope is the viewing context a caller acts in: either personal or a
// single family group. The zero value is the personal scope.
type Scope struct {
	groupID string
}

// PersonalScope returns the personal scope
func PersonalScope() Scope {
	return Scope{}
}

// GroupScope returns the scope of a family group
func GroupScope(groupID string) Scope {
	return Scope{groupID: groupID}
}

// IsPersonal reports whether s is the personal scope
func (s Scope) IsPersonal() bool {
	return s.groupID == ""
}

// GroupID returns the group of a group scope and false for the personal scope
func (s Scope) GroupID() (string, bool) {
	return s.groupID, s.groupID != ""
}

// String renders the scope as it appears in query strings
func (s Scope) String() string {
	if s.IsPersonal() {
		return "personal"
	}
	return s.groupID
}

// ParseScope is the inverse of String. Empty input is personal.
func ParseScope(s string) Scope {
	if s == "" || s == "personal" {
		return PersonalScope()
	}
	return GroupScope(s)
}

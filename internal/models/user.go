package models

import "strconv"

// MFAStatus is the MFA sub-record of a directory entry
type MFAStatus struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// User is a read-only directory entry returned by the platform.
// MFA is nil when the entry carried no usable MFA sub-record.
type User struct {
	Email    string     `json:"email" yaml:"email"`
	FullName string     `json:"fullName" yaml:"full_name"`
	MFA      *MFAStatus `json:"mfa,omitempty" yaml:"mfa,omitempty"`
}

// MFAState renders the MFA flag for display
func (u User) MFAState() string {
	if u.MFA == nil {
		return "unknown"
	}
	return strconv.FormatBool(u.MFA.Enabled)
}

// UserList is an ordered list of users that renders as a table
type UserList []User

// Headers implements format.Tabular
func (l UserList) Headers() []string {
	return []string{"Name", "Email", "MFA Enabled"}
}

// Rows implements format.Tabular
func (l UserList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, u := range l {
		rows = append(rows, []string{u.FullName, u.Email, u.MFAState()})
	}
	return rows
}

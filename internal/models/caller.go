package models

// Caller is the authenticated identity performing an operation.
type Caller struct {
	UserID string
	Role   Role
}

// Authenticated reports whether the caller carries an identity.
func (c *Caller) Authenticated() bool {
	return c != nil && c.UserID != ""
}

// IsStaff reports whether the caller is a doctor or an admin.
func (c *Caller) IsStaff() bool {
	return c.Authenticated() && c.Role.IsStaff()
}

package domain

// Role is the caller's membership role within an organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// Organization is a named group of members owning tasks.
type Organization struct {
	ID         int64                `json:"id"`
	Name       string               `json:"name"`
	InviteCode string               `json:"invite_code,omitempty"`
	Members    []OrganizationMember `json:"members,omitempty"`
	YourRole   Role                 `json:"your_role,omitempty"`
}

// OrganizationMember links a user to an organization with a role.
type OrganizationMember struct {
	UserID int64 `json:"user_id"`
	User   *User `json:"user,omitempty"`
	Role   Role  `json:"role"`
}

// Username returns the embedded username, falling back to an empty string.
func (m OrganizationMember) Username() string {
	if m.User == nil {
		return ""
	}
	return m.User.Username
}

// OrganizationDetail is the payload of GET /api/organizations/{id}.
type OrganizationDetail struct {
	Organization Organization         `json:"organization"`
	Members      []OrganizationMember `json:"members"`
	YourRole     Role                 `json:"your_role"`
}

// Flatten folds members and role into the organization value.
func (d OrganizationDetail) Flatten() Organization {
	org := d.Organization
	if len(d.Members) > 0 {
		org.Members = append([]OrganizationMember(nil), d.Members...)
	}
	if d.YourRole != "" {
		org.YourRole = d.YourRole
	}
	return org
}

// IsOwner reports whether the caller may rotate the invite code.
func (d OrganizationDetail) IsOwner() bool {
	return d.YourRole == RoleOwner
}

// IsMember reports whether userID appears among the members.
func (d OrganizationDetail) IsMember(userID int64) bool {
	for _, m := range d.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

package users

import (
	"time"

	"github.com/agrimandi/agrimandi-go/internal/utils"
)

// Role represents a user's role on the platform.
type Role string

const (
	RoleFarmer      Role = "farmer"
	RoleBuyer       Role = "buyer"
	RoleProcessor   Role = "processor"
	RoleTransporter Role = "transporter"
	RoleFPOAdmin    Role = "fpo_admin"
	RoleAdmin       Role = "admin"
)

// ApprovalStatus tracks backoffice review of a registered account.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// User is the client-side mirror of the backend user record. The backend
// owns it; the session store caches the copy returned by login or the
// profile endpoint.
type User struct {
	ID             string         `json:"id,omitempty"`
	PhoneNumber    string         `json:"phone_number,omitempty"`
	Email          string         `json:"email,omitempty"`
	Username       string         `json:"username,omitempty"`
	FirstName      string         `json:"first_name,omitempty"`
	LastName       string         `json:"last_name,omitempty"`
	Role           Role           `json:"role,omitempty"`
	Verified       bool           `json:"is_verified,omitempty"`
	PhoneVerified  bool           `json:"is_phone_verified,omitempty"`
	ApprovalStatus ApprovalStatus `json:"approval_status,omitempty"`
	Village        string         `json:"village,omitempty"`
	District       string         `json:"district,omitempty"`
	State          string         `json:"state,omitempty"`
	DateJoined     time.Time      `json:"date_joined,omitempty"`
	LastLogin      time.Time      `json:"last_login,omitempty"`
}

// FullName returns the display name, falling back to the username.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}

// HasRole reports whether the user's role is one of the given roles.
// An empty list matches any role.
func (u *User) HasRole(roles ...Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// IsApproved reports whether backoffice review has completed successfully.
// Admins bypass the review queue.
func (u *User) IsApproved() bool {
	return u.ApprovalStatus == ApprovalApproved || u.Role == RoleAdmin
}

// Merge shallow-merges non-zero fields of other into a copy of u.
func (u User) Merge(other User) User {
	merged := u
	merged.PhoneNumber = utils.Coalesce(other.PhoneNumber, u.PhoneNumber)
	merged.Email = utils.Coalesce(other.Email, u.Email)
	merged.Username = utils.Coalesce(other.Username, u.Username)
	merged.FirstName = utils.Coalesce(other.FirstName, u.FirstName)
	merged.LastName = utils.Coalesce(other.LastName, u.LastName)
	merged.Role = utils.Coalesce(other.Role, u.Role)
	merged.ApprovalStatus = utils.Coalesce(other.ApprovalStatus, u.ApprovalStatus)
	merged.Village = utils.Coalesce(other.Village, u.Village)
	merged.District = utils.Coalesce(other.District, u.District)
	merged.State = utils.Coalesce(other.State, u.State)
	merged.Verified = u.Verified || other.Verified
	merged.PhoneVerified = u.PhoneVerified || other.PhoneVerified
	return merged
}

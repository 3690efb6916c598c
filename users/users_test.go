package users_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agrimandi/agrimandi-go/users"
)

func TestFullName(t *testing.T) {
	u := &users.User{FirstName: "Gurpreet", LastName: "Singh", Username: "gsingh"}
	require.Equal(t, "Gurpreet Singh", u.FullName())

	u.LastName = ""
	require.Equal(t, "Gurpreet", u.FullName())

	u.FirstName = ""
	require.Equal(t, "gsingh", u.FullName())
}

func TestHasRole(t *testing.T) {
	u := &users.User{Role: users.RoleFarmer}

	require.True(t, u.HasRole(users.RoleFarmer))
	require.True(t, u.HasRole(users.RoleBuyer, users.RoleFarmer))
	require.False(t, u.HasRole(users.RoleBuyer))
	require.True(t, u.HasRole())
}

func TestIsApproved(t *testing.T) {
	require.False(t, (&users.User{ApprovalStatus: users.ApprovalPending}).IsApproved())
	require.True(t, (&users.User{ApprovalStatus: users.ApprovalApproved}).IsApproved())
	require.True(t, (&users.User{Role: users.RoleAdmin}).IsApproved())
}

func TestMergeOverwritesOnlyProvidedFields(t *testing.T) {
	base := users.User{
		ID:          "u1",
		PhoneNumber: "+911111111111",
		Village:     "Khanna",
		Role:        users.RoleFarmer,
	}

	merged := base.Merge(users.User{Village: "Doraha", Email: "f@example.com", PhoneVerified: true})

	require.Equal(t, "u1", merged.ID)
	require.Equal(t, "+911111111111", merged.PhoneNumber)
	require.Equal(t, "Doraha", merged.Village)
	require.Equal(t, "f@example.com", merged.Email)
	require.Equal(t, users.RoleFarmer, merged.Role)
	require.True(t, merged.PhoneVerified)

	// Original is untouched.
	require.Equal(t, "Khanna", base.Village)
}

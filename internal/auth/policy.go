package auth

import (
	"github.com/fanzlab/authcore/internal/domain"
)

// HasRole reports whether the user satisfies any of the required roles.
// Admin is a superset role: it satisfies every role check. The function is
// total over User values; a nil user never satisfies a role.
func HasRole(user *domain.User, required ...domain.Role) bool {
	if user == nil {
		return false
	}
	for _, have := range user.Roles {
		if have == domain.RoleAdmin {
			return true
		}
		for _, want := range required {
			if have == want {
				return true
			}
		}
	}
	return false
}

// HasPlatformAccess reports whether the user may use the given branded
// platform. The sentinel "all" grants access to every platform.
func HasPlatformAccess(user *domain.User, platformID string) bool {
	if user == nil {
		return false
	}
	for _, p := range user.PlatformAccess {
		if p == platformID || p == domain.PlatformAll {
			return true
		}
	}
	return false
}

// IsAgeVerified reports whether the user has completed age verification.
func IsAgeVerified(user *domain.User) bool {
	return user != nil && user.AgeVerified
}

// IsCreator reports whether the user holds a creator account, verified or
// pending.
func IsCreator(user *domain.User) bool {
	return user != nil && user.CreatorStatus != domain.CreatorStatusNone
}

// IsVerifiedCreator reports whether the user passed creator verification.
func IsVerifiedCreator(user *domain.User) bool {
	return user != nil && user.CreatorStatus == domain.CreatorStatusVerified
}

package service

import "shoreline/internal/auth"

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UID  string
	Role auth.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == auth.RoleAdmin
}

// CanOrganize reports whether the actor may manage events and buses.
func (a Actor) CanOrganize() bool {
	return a.Role == auth.RoleAdmin || a.Role == auth.RoleOrganizer
}

// Owns reports whether the actor may modify a resource created by ownerID.
func (a Actor) Owns(ownerID string) bool {
	return a.IsAdmin() || a.UID == ownerID
}

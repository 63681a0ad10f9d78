// Package models defines server-side data models persisted in the database.
package models

// Roles. Users get RoleUser by default and RoleOwner at sign-up; cluster
// members are either RoleOwner or RoleMember.
const (
	RoleUser   = "user"
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Invitation statuses.
const (
	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
)

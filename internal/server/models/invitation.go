package models

import "time"

type Invitation struct {
	ID        int64     `json:"id"`
	ClusterID int64     `json:"clusterId"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	InvitedBy int64     `json:"invitedBy"`
	InvitedAt time.Time `json:"invitedAt"`
	Status    string    `json:"status"`
}

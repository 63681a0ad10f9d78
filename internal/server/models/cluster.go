package models

import "time"

type Cluster struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ClusterMember struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	ClusterID int64     `json:"clusterId"`
	Role      string    `json:"role"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// MemberUser is the slice of User exposed next to a membership.
type MemberUser struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type MemberWithUser struct {
	ClusterMember
	User MemberUser `json:"user"`
}

// ClusterWithMembers is a cluster together with every membership row,
// ordered by member id.
type ClusterWithMembers struct {
	Cluster
	Members []MemberWithUser `json:"clusterMembers"`
}

package models

import "time"

type ActivityType string

const (
	ActivitySignUp              ActivityType = "SIGN_UP"
	ActivitySignIn              ActivityType = "SIGN_IN"
	ActivitySignOut             ActivityType = "SIGN_OUT"
	ActivityUpdatePassword      ActivityType = "UPDATE_PASSWORD"
	ActivityDeleteAccount       ActivityType = "DELETE_ACCOUNT"
	ActivityUpdateAccount       ActivityType = "UPDATE_ACCOUNT"
	ActivityCreateCluster       ActivityType = "CREATE_CLUSTER"
	ActivityRemoveClusterMember ActivityType = "REMOVE_CLUSTER_MEMBER"
	ActivityInviteClusterMember ActivityType = "INVITE_CLUSTER_MEMBER"
	ActivityAcceptInvitation    ActivityType = "ACCEPT_INVITATION"
)

type ActivityLog struct {
	ID        int64        `json:"id"`
	ClusterID int64        `json:"clusterId"`
	UserID    int64        `json:"userId"`
	Action    ActivityType `json:"action"`
	Timestamp time.Time    `json:"timestamp"`
	IPAddress string       `json:"ipAddress,omitempty"`
}

// ActivityEntry is an activity row joined with the acting user's name.
type ActivityEntry struct {
	ID        int64        `json:"id"`
	Action    ActivityType `json:"action"`
	Timestamp time.Time    `json:"timestamp"`
	IPAddress string       `json:"ipAddress,omitempty"`
	UserName  string       `json:"userName"`
}

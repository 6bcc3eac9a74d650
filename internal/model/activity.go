package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// EntityType is the resource kind recorded on an activity log.
type EntityType string

const (
	EntityAccount   EntityType = "ACCOUNT"
	EntityWorkspace EntityType = "WORKSPACE"
)

// EntityOf maps a resource kind to its activity entity type.
func EntityOf(k ResourceKind) EntityType {
	if k == KindWorkspace {
		return EntityWorkspace
	}
	return EntityAccount
}

// ActivityType classifies a notification.
type ActivityType string

const (
	ActivityInvitationToWorkspace ActivityType = "INVITATION_TO_WORKSPACE"
	ActivityUpdateWorkspace       ActivityType = "UPDATE_AN_WORKSPACE"
	ActivityCreateAccount         ActivityType = "CREATE_AN_ACCOUNT"
	ActivityUpdateAccount         ActivityType = "UPDATE_AN_ACCOUNT"
	ActivityShareAccount          ActivityType = "SHARE_AN_ACCOUNT"
	ActivityDeleteAccount         ActivityType = "DELETE_AN_ACCOUNT"
	ActivityMemberShareAccount    ActivityType = "MEMBER_SHARE_AN_ACCOUNT"
	ActivityMemberShareWorkspace  ActivityType = "MEMBER_SHARE_A_WORKSPACE"
)

// ActivityLog records a mutation of a shared resource by someone other than its owner.
type ActivityLog struct {
	ID          uuid.UUID
	EntityType  EntityType
	Action      RoleAccess
	AccountID   *uuid.UUID
	WorkspaceID *uuid.UUID
	CreatedAt   time.Time
}

// NotificationDetail links a notification to what it is about. At most one field is set.
type NotificationDetail struct {
	AccountInvitationID   *uuid.UUID
	WorkspaceInvitationID *uuid.UUID
	ActivityLogID         *uuid.UUID
}

// Notification is addressed to an email so that unregistered invitees can be notified too.
type Notification struct {
	ID           uuid.UUID
	Recipient    string
	SenderID     uuid.UUID
	ActivityType ActivityType
	IsRead       bool
	Detail       NotificationDetail
	CreatedAt    time.Time
}

// Mail is a templated outbound message.
type Mail struct {
	To       string         `json:"to"`
	From     string         `json:"from,omitempty"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Context  map[string]any `json:"context"`
}

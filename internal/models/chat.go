package models

import "time"

type GroupRole string

const (
	RoleAdmin     GroupRole = "admin"
	RoleModerator GroupRole = "moderator"
	RoleMember    GroupRole = "member"
)

// GroupSettings holds the posting/invite policy and retention window of a
// group chat. A nil settings pointer means every default applies (anyone can
// post and invite, no retention purge).
type GroupSettings struct {
	OnlyAdminsCanPost       bool `json:"only_admins_can_post"`
	OnlyAdminsCanAddMembers bool `json:"only_admins_can_add_members"`
	AllowMemberInvites      bool `json:"allow_member_invites"`
	MessageRetentionDays    int  `json:"message_retention_days"`
}

// MessageSummary is the last-message preview denormalized onto the chat.
type MessageSummary struct {
	Body      string    `json:"body"`
	AuthorID  string    `json:"author_id"`
	Timestamp time.Time `json:"timestamp"`
}

type Chat struct {
	ID string `gorm:"primaryKey;size:36" json:"id"`

	// Participants always has at least two entries; exactly two when the
	// chat is not a group.
	Participants []string `gorm:"type:jsonb;serializer:json" json:"participants"`
	IsGroup      bool     `gorm:"default:false" json:"is_group"`

	GroupName        string         `gorm:"size:100" json:"group_name,omitempty"`
	GroupImage       string         `json:"group_image,omitempty"`
	GroupDescription string         `gorm:"size:255" json:"group_description,omitempty"`
	GroupSettings    *GroupSettings `gorm:"type:jsonb;serializer:json" json:"group_settings,omitempty"`

	Roles map[string]GroupRole `gorm:"type:jsonb;serializer:json" json:"roles,omitempty"`

	LastMessage *MessageSummary `gorm:"type:jsonb;serializer:json" json:"last_message,omitempty"`

	// UnreadCount tracks unseen messages per participant. It is incremented
	// for everyone but the author in the same batch as the message insert
	// and reset for the viewer on mark-read.
	UnreadCount map[string]int `gorm:"type:jsonb;serializer:json" json:"unread_count,omitempty"`

	BlockedUsers []string `gorm:"type:jsonb;serializer:json" json:"blocked_users,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `gorm:"size:64" json:"created_by"`
}

// HasParticipant reports whether userID belongs to the chat.
func (c *Chat) HasParticipant(userID string) bool {
	for _, id := range c.Participants {
		if id == userID {
			return true
		}
	}
	return false
}

// Counterpart returns the other participant of a 1:1 chat.
func (c *Chat) Counterpart(viewerID string) (string, bool) {
	if c.IsGroup {
		return "", false
	}
	for _, id := range c.Participants {
		if id != viewerID {
			return id, true
		}
	}
	return "", false
}

// RoleOf returns the user's role, defaulting to member for participants
// without an explicit assignment.
func (c *Chat) RoleOf(userID string) GroupRole {
	if role, ok := c.Roles[userID]; ok {
		return role
	}
	return RoleMember
}

// Blocked reports whether userID has been blocked in this chat.
func (c *Chat) Blocked(userID string) bool {
	for _, id := range c.BlockedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// UnreadFor returns the viewer's unread badge, never negative.
func (c *Chat) UnreadFor(userID string) int {
	n := c.UnreadCount[userID]
	if n < 0 {
		return 0
	}
	return n
}

// LastActivity is the instant used to order the roster: the last message
// time when present, the creation time otherwise.
func (c *Chat) LastActivity() time.Time {
	if c.LastMessage != nil {
		return c.LastMessage.Timestamp
	}
	return c.CreatedAt
}

// Clone returns a deep copy safe to hand out in snapshots.
func (c *Chat) Clone() Chat {
	cp := *c
	if c.Participants != nil {
		cp.Participants = append([]string(nil), c.Participants...)
	}
	if c.BlockedUsers != nil {
		cp.BlockedUsers = append([]string(nil), c.BlockedUsers...)
	}
	if c.Roles != nil {
		cp.Roles = make(map[string]GroupRole, len(c.Roles))
		for id, role := range c.Roles {
			cp.Roles[id] = role
		}
	}
	if c.UnreadCount != nil {
		cp.UnreadCount = make(map[string]int, len(c.UnreadCount))
		for id, n := range c.UnreadCount {
			cp.UnreadCount[id] = n
		}
	}
	if c.GroupSettings != nil {
		gs := *c.GroupSettings
		cp.GroupSettings = &gs
	}
	if c.LastMessage != nil {
		lm := *c.LastMessage
		cp.LastMessage = &lm
	}
	return cp
}

package entity

import "time"

const (
	ChatTypeDirect = "direct"
	ChatTypeGroup  = "group"
)

const (
	RoleMember = "member"
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
)

const (
	MaxGroupNameLen        = 50
	MaxGroupDescriptionLen = 200
)

// TypingTTL is how long a typing entry stays alive without a refresh.
// Expired entries are purged lazily whenever typingUsers is read.
const TypingTTL = 5 * time.Second

type Chat struct {
	Id            string         `bson:"_id" json:"id"`
	ChatType      string         `bson:"chatType" json:"chatType"`
	Participants  []string       `bson:"participants" json:"participants"`
	Name          string         `bson:"name,omitempty" json:"name,omitempty"`
	Description   string         `bson:"description,omitempty" json:"description,omitempty"`
	Avatar        string         `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Settings      GroupSettings  `bson:"settings,omitempty" json:"settings,omitempty"`
	Members       []ChatMember   `bson:"members,omitempty" json:"members,omitempty"`
	Admins        []string       `bson:"admins,omitempty" json:"admins,omitempty"`
	Owner         string         `bson:"owner,omitempty" json:"owner,omitempty"`
	LastMessage   string         `bson:"lastMessage,omitempty" json:"lastMessage,omitempty"`
	LastMessageAt time.Time      `bson:"lastMessageAt" json:"lastMessageAt"`
	UnreadCount   map[string]int `bson:"unreadCount,omitempty" json:"unreadCount,omitempty"`
	TypingUsers   []TypingEntry  `bson:"typingUsers,omitempty" json:"-"`
	IsActive      bool           `bson:"isActive" json:"isActive"`

	// DirectKey is the sorted "a:b" participant pair for direct chats,
	// so a unique index can guarantee at most one active chat per pair.
	DirectKey string `bson:"directKey,omitempty" json:"-"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

type GroupSettings struct {
	IsPrivate            bool `bson:"isPrivate" json:"isPrivate"`
	AllowMemberInvites   bool `bson:"allowMemberInvites" json:"allowMemberInvites"`
	RequireAdminApproval bool `bson:"requireAdminApproval" json:"requireAdminApproval"`
	MaxMembers           int  `bson:"maxMembers" json:"maxMembers"`
}

type ChatMember struct {
	UserId   string    `bson:"userId" json:"userId"`
	Role     string    `bson:"role" json:"role"`
	JoinedAt time.Time `bson:"joinedAt" json:"joinedAt"`
	IsActive bool      `bson:"isActive" json:"isActive"`
	LastSeen time.Time `bson:"lastSeen,omitempty" json:"lastSeen,omitempty"`
}

type TypingEntry struct {
	UserId    string    `bson:"userId" json:"userId"`
	StartedAt time.Time `bson:"startedAt" json:"startedAt"`
}

// IsParticipant reports whether userId currently has access to the chat.
func (c Chat) IsParticipant(userId string) bool {
	for _, p := range c.Participants {
		if p == userId {
			return true
		}
	}
	return false
}

// IsAdmin reports whether userId holds the admin or owner role.
func (c Chat) IsAdmin(userId string) bool {
	if c.Owner == userId {
		return true
	}
	for _, a := range c.Admins {
		if a == userId {
			return true
		}
	}
	return false
}

func (c Chat) Unread(userId string) int {
	if c.UnreadCount == nil {
		return 0
	}
	return c.UnreadCount[userId]
}

// ActiveTyping returns the user ids with a non-expired typing entry,
// evaluated against now.
func (c Chat) ActiveTyping(now time.Time) []string {
	cutoff := now.Add(-TypingTTL)
	userIds := make([]string, 0, len(c.TypingUsers))
	for _, t := range c.TypingUsers {
		if t.StartedAt.After(cutoff) {
			userIds = append(userIds, t.UserId)
		}
	}
	return userIds
}

// DirectPairKey builds the canonical unordered pair key for a direct chat.
func DirectPairKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}

type ChatIndexFilter struct {
	UserId string `bson:"userId"`
	Limit  int    `bson:"limit"`
	Offset int    `bson:"offset"`
}

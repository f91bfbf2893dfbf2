package entity

import "time"

const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeFile     = "file"
	MessageTypeAudio    = "audio"
	MessageTypeVideo    = "video"
	MessageTypeLocation = "location"
	MessageTypeContact  = "contact"
)

const MaxMessageContentLen = 1000

type Message struct {
	Id          string        `bson:"_id" json:"id"`
	ChatId      string        `bson:"chatId" json:"chatId"`
	SenderId    string        `bson:"senderId" json:"senderId"`
	Content     string        `bson:"content,omitempty" json:"content,omitempty"`
	MessageType string        `bson:"messageType" json:"messageType"`
	Media       *MediaInfo    `bson:"media,omitempty" json:"media,omitempty"`
	Location    *GeoPoint     `bson:"location,omitempty" json:"location,omitempty"`
	Contact     *ContactCard  `bson:"contact,omitempty" json:"contact,omitempty"`
	ReadBy      []ReadReceipt `bson:"readBy,omitempty" json:"readBy,omitempty"`
	Reactions   []Reaction    `bson:"reactions,omitempty" json:"reactions,omitempty"`
	ReplyTo     string        `bson:"replyTo,omitempty" json:"replyTo,omitempty"`
	IsDeleted   bool          `bson:"isDeleted" json:"isDeleted"`
	Edited      bool          `bson:"edited,omitempty" json:"edited,omitempty"`
	EditedAt    *time.Time    `bson:"editedAt,omitempty" json:"editedAt,omitempty"`
	CreatedAt   time.Time     `bson:"createdAt" json:"createdAt"`
}

// MediaInfo carries the metadata for image/file/audio/video messages.
// It is nil for message types that carry none.
type MediaInfo struct {
	URL       string `bson:"url" json:"url"`
	FileName  string `bson:"fileName,omitempty" json:"fileName,omitempty"`
	FileSize  int64  `bson:"fileSize,omitempty" json:"fileSize,omitempty"`
	MimeType  string `bson:"mimeType,omitempty" json:"mimeType,omitempty"`
	Thumbnail string `bson:"thumbnail,omitempty" json:"thumbnail,omitempty"`
	Duration  int    `bson:"duration,omitempty" json:"duration,omitempty"`
	Width     int    `bson:"width,omitempty" json:"width,omitempty"`
	Height    int    `bson:"height,omitempty" json:"height,omitempty"`
}

type GeoPoint struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
	Label     string  `bson:"label,omitempty" json:"label,omitempty"`
}

type ContactCard struct {
	Name  string `bson:"name" json:"name"`
	Phone string `bson:"phone,omitempty" json:"phone,omitempty"`
	Email string `bson:"email,omitempty" json:"email,omitempty"`
}

type ReadReceipt struct {
	UserId string    `bson:"userId" json:"userId"`
	ReadAt time.Time `bson:"readAt" json:"readAt"`
}

type Reaction struct {
	UserId    string    `bson:"userId" json:"userId"`
	Emoji     string    `bson:"emoji" json:"emoji"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// ReactionGroup is the emoji-keyed view clients render: count plus who reacted.
type ReactionGroup struct {
	Emoji string   `json:"emoji"`
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// CountReactions groups a message's reactions by emoji. Derived, never stored.
func CountReactions(reactions []Reaction) map[string]int {
	counts := make(map[string]int, len(reactions))
	for _, r := range reactions {
		counts[r.Emoji]++
	}
	return counts
}

// GroupReactions builds the per-emoji view with reacting users, in first-seen
// emoji order so the rendering is stable.
func GroupReactions(reactions []Reaction) []ReactionGroup {
	index := make(map[string]int, len(reactions))
	groups := make([]ReactionGroup, 0, len(reactions))
	for _, r := range reactions {
		i, ok := index[r.Emoji]
		if !ok {
			i = len(groups)
			index[r.Emoji] = i
			groups = append(groups, ReactionGroup{Emoji: r.Emoji})
		}
		groups[i].Count++
		groups[i].Users = append(groups[i].Users, r.UserId)
	}
	return groups
}

// ReadBy reports whether userId already has a read receipt on the message.
func (m Message) ReadByUser(userId string) bool {
	for _, r := range m.ReadBy {
		if r.UserId == userId {
			return true
		}
	}
	return false
}

type MessageIndexFilter struct {
	ChatId string `bson:"chatId"`
	Limit  int    `bson:"limit"`
	Offset int    `bson:"offset"`
}

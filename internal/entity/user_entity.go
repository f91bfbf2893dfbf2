package entity

import "time"

// User is the minimal directory view of the external social-graph service:
// enough to resolve participants and display identity, nothing more.
type User struct {
	Id        string    `bson:"_id" json:"id"`
	Username  string    `bson:"username" json:"username"`
	Name      string    `bson:"name" json:"name"`
	Avatar    string    `bson:"avatar,omitempty" json:"avatar,omitempty"`
	IsActive  bool      `bson:"isActive" json:"isActive"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

type UserIndexFilter struct {
	Ids []string `bson:"ids"`
}

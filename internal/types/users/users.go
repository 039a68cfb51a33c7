package users

import "time"

// Owner is the account that uploads assets. Authentication material lives
// with the session service and is not modelled here.
type Owner struct {
	ID           string    `json:"id" bson:"_id"`
	Username     string    `json:"username" bson:"username"`
	FullName     string    `json:"fullname" bson:"fullname"`
	Avatar       string    `json:"avatar" bson:"avatar"`
	Email        string    `json:"email" bson:"email"`
	WatchHistory []string  `json:"watchHistory" bson:"watch_history"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
}

// OwnerSummary is the denormalized owner projection embedded in asset rows.
type OwnerSummary struct {
	ID       string `json:"id" bson:"_id"`
	Username string `json:"username" bson:"username"`
	FullName string `json:"fullname" bson:"fullname"`
	Avatar   string `json:"avatar" bson:"avatar"`
}

// Summary projects the public profile fields of o.
func (o *Owner) Summary() *OwnerSummary {
	return &OwnerSummary{
		ID:       o.ID,
		Username: o.Username,
		FullName: o.FullName,
		Avatar:   o.Avatar,
	}
}

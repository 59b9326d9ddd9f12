package models

// User is an immutable identity reference. It is owned by the identity
// collaborator; the chat core only ever reads it.
type User struct {
	ID          string `gorm:"primaryKey;size:64" json:"id"`
	DisplayName string `gorm:"size:100" json:"display_name"`
	AvatarRef   string `json:"avatar_ref"`
	Email       string `gorm:"size:255" json:"email,omitempty"`
}

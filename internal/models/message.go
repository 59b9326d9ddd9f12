package models

import (
	"time"
)

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

type AttachmentType string

const (
	ImageAttachment AttachmentType = "image"
	FileAttachment  AttachmentType = "file"
	AudioAttachment AttachmentType = "audio"
)

// Attachment is an opaque reference to an uploaded blob. Upload transport is
// the storage collaborator's concern; the chat core only carries the ref.
type Attachment struct {
	Type AttachmentType `json:"type"`
	Ref  string         `json:"ref"`
	Name string         `json:"name,omitempty"`
	Size int64          `json:"size,omitempty"`
}

// ReplyRef is the captured context of the message being replied to.
type ReplyRef struct {
	ID                string `json:"id"`
	Body              string `json:"body"`
	AuthorID          string `json:"author_id"`
	AuthorDisplayName string `json:"author_display_name"`
}

type Message struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	ChatID string `gorm:"index;size:36;not null" json:"chat_id"`

	AuthorID          string `gorm:"size:64;not null" json:"author_id"`
	AuthorDisplayName string `gorm:"size:100" json:"author_display_name"`
	AuthorAvatarRef   string `json:"author_avatar_ref"`

	Body        string       `gorm:"type:text" json:"body"`
	Attachments []Attachment `gorm:"type:jsonb;serializer:json" json:"attachments,omitempty"`

	// Timestamp is assigned by the store on commit and orders the log.
	Timestamp time.Time     `gorm:"index" json:"timestamp"`
	Status    MessageStatus `gorm:"size:20;default:'sent'" json:"status"`

	ReadBy []string   `gorm:"type:jsonb;serializer:json" json:"read_by"`
	Edited bool       `gorm:"default:false" json:"edited"`
	EditedAt *time.Time `json:"edited_at,omitempty"`

	// Reactions maps an emoji to the users who reacted with it. A key is
	// dropped as soon as its set becomes empty.
	Reactions map[string][]string `gorm:"type:jsonb;serializer:json" json:"reactions,omitempty"`

	IsTemporary bool       `gorm:"index;default:false" json:"is_temporary"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`

	IsEncrypted bool     `gorm:"default:false" json:"is_encrypted"`
	ReportedBy  []string `gorm:"type:jsonb;serializer:json" json:"reported_by,omitempty"`

	ReplyTo *ReplyRef `gorm:"type:jsonb;serializer:json" json:"reply_to,omitempty"`
}

// ReadByUser reports whether userID is recorded in the read receipts.
func (m *Message) ReadByUser(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// ReactedWith reports whether userID currently reacts with emoji.
func (m *Message) ReactedWith(emoji, userID string) bool {
	for _, id := range m.Reactions[emoji] {
		if id == userID {
			return true
		}
	}
	return false
}

// Expired reports whether a temporary message has passed its deadline.
func (m *Message) Expired(now time.Time) bool {
	return m.IsTemporary && m.ExpiresAt != nil && m.ExpiresAt.Before(now)
}

// Empty reports whether the message carries neither text nor attachments.
func (m *Message) Empty() bool {
	return m.Body == "" && len(m.Attachments) == 0
}

// Clone returns a deep copy, so snapshots can be handed out without sharing
// mutable slices or maps with the synchronizer's log.
func (m *Message) Clone() Message {
	c := *m
	if m.Attachments != nil {
		c.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	if m.ReadBy != nil {
		c.ReadBy = append([]string(nil), m.ReadBy...)
	}
	if m.ReportedBy != nil {
		c.ReportedBy = append([]string(nil), m.ReportedBy...)
	}
	if m.Reactions != nil {
		c.Reactions = make(map[string][]string, len(m.Reactions))
		for emoji, users := range m.Reactions {
			c.Reactions[emoji] = append([]string(nil), users...)
		}
	}
	if m.EditedAt != nil {
		t := *m.EditedAt
		c.EditedAt = &t
	}
	if m.ExpiresAt != nil {
		t := *m.ExpiresAt
		c.ExpiresAt = &t
	}
	if m.ReplyTo != nil {
		r := *m.ReplyTo
		c.ReplyTo = &r
	}
	return c
}

// Summary produces the preview stored on the chat document.
func (m *Message) Summary() MessageSummary {
	body := m.Body
	if m.IsEncrypted {
		body = "Encrypted message"
	}
	if body == "" && len(m.Attachments) > 0 {
		body = "Attachment"
	}
	return MessageSummary{
		Body:      body,
		AuthorID:  m.AuthorID,
		Timestamp: m.Timestamp,
	}
}

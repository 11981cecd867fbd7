package models

import (
	"time"
)

// Access levels for a chatbot. A pending request stays private until an
// operator approves it.
const (
	AccessPrivate            = "private"
	AccessPublic             = "public"
	AccessPendingPublicShare = "pending_public_request"
)

// Roles a user can hold on a chatbot.
const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// Chatbot is a derived assistant built from an uploaded document set. It only
// exists once the creation session has fully committed.
type Chatbot struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	CreatedBy   string    `json:"created_by" gorm:"index"`
	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description" gorm:"not null"`
	Icon        []byte    `json:"-"`
	Access      string    `json:"access" gorm:"default:private"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Documents []Document        `json:"documents" gorm:"constraint:OnDelete:CASCADE"`
	Prompts   []SuggestedPrompt `json:"suggested_prompts" gorm:"constraint:OnDelete:CASCADE"`
	Accesses  []ChatbotAccess   `json:"accesses" gorm:"constraint:OnDelete:CASCADE"`
}

// Document is one uploaded PDF belonging to a chatbot.
type Document struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ChatbotID string    `json:"chatbot_id" gorm:"index"`
	Filename  string    `json:"filename"`
	Bytes     []byte    `json:"-"`
	NbPages   int       `json:"nb_pages"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// SuggestedPrompt is one ordered example question shown to new users.
type SuggestedPrompt struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	ChatbotID string `json:"chatbot_id" gorm:"index"`
	Position  int    `json:"position"`
	Prompt    string `json:"prompt"`
}

// ChatbotAccess grants a user a role on a chatbot.
type ChatbotAccess struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	ChatbotID string    `json:"chatbot_id" gorm:"index:idx_chatbot_user,unique"`
	UserID    string    `json:"user_id" gorm:"index:idx_chatbot_user,unique"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

package models

import (
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is the durable transcript of one user's exchange with a
// chatbot. It is created on the first chat turn and only ever mutated by
// appending messages.
type Conversation struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	ChatbotID string    `json:"chatbot_id" gorm:"index"`
	UserID    string    `json:"user_id" gorm:"index"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`

	Messages []Message `json:"messages" gorm:"constraint:OnDelete:CASCADE"`
}

// Message is one immutable transcript entry. Messages written by an ask
// always appear as a user/assistant pair inserted in that order, so replaying
// them in store order reconstructs exact turn order.
type Message struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ConversationID string    `json:"conversation_id" gorm:"index"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"timestamp"`
}

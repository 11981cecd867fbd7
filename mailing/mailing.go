// Package mailing defines the outbound notification collaborator. Delivery
// is external to this service; the default implementation only logs.
package mailing

import (
	"github.com/AntoinePinto/docu-talk/pkg/logger"
)

// Mailer sends user-facing notification emails.
type Mailer interface {
	SendChatbotShared(recipient, sharedBy, chatbotName string) error
	SendWelcome(recipient, friendlyName string) error
	// SendPublicSharingRequest notifies the operators that a chatbot admin
	// asked for their chatbot to be made public.
	SendPublicSharingRequest(chatbotID, chatbotName, requestedBy string) error
}

// LogMailer records outbound mail intents in the log instead of sending.
type LogMailer struct {
	log *logger.Logger
}

func NewLogMailer(log *logger.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendChatbotShared(recipient, sharedBy, chatbotName string) error {
	m.log.Info("mail: chatbot shared",
		"recipient", recipient,
		"shared_by", sharedBy,
		"chatbot", chatbotName,
	)
	return nil
}

func (m *LogMailer) SendWelcome(recipient, friendlyName string) error {
	m.log.Info("mail: welcome", "recipient", recipient, "name", friendlyName)
	return nil
}

func (m *LogMailer) SendPublicSharingRequest(chatbotID, chatbotName, requestedBy string) error {
	m.log.Info("mail: public sharing request",
		"chatbot_id", chatbotID,
		"chatbot", chatbotName,
		"requested_by", requestedBy,
	)
	return nil
}

package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/AntoinePinto/docu-talk/chatbot/models"
)

var (
	ErrChatbotNotFound = errors.New("chatbot not found")
	ErrAccessNotFound  = errors.New("chatbot access not found")
)

type ChatbotRepository interface {
	// CreateWithAssets persists the chatbot entity together with its
	// documents, prompts and the creator's admin access in one transaction.
	CreateWithAssets(ctx context.Context, chatbot *models.Chatbot) error
	GetByID(ctx context.Context, id string) (*models.Chatbot, error)
	ListForUser(ctx context.Context, userID string) ([]models.Chatbot, error)
	UserAccesses(ctx context.Context, userID string) (map[string]string, error)
	Update(ctx context.Context, id string, updates map[string]any) error
	Delete(ctx context.Context, id string) error
	UpsertAccess(ctx context.Context, access *models.ChatbotAccess) error
	RemoveAccess(ctx context.Context, chatbotID, userID string) error
	Documents(ctx context.Context, chatbotID string) ([]models.Document, error)
	AddDocument(ctx context.Context, doc *models.Document) error
	RemoveDocument(ctx context.Context, chatbotID, filename string) error
}

type GormChatbotRepository struct {
	db *gorm.DB
}

func NewGormChatbotRepository(db *gorm.DB) *GormChatbotRepository {
	return &GormChatbotRepository{db: db}
}

func (r *GormChatbotRepository) CreateWithAssets(ctx context.Context, chatbot *models.Chatbot) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(chatbot).Error
	})
}

func (r *GormChatbotRepository) GetByID(ctx context.Context, id string) (*models.Chatbot, error) {
	var chatbot models.Chatbot
	err := r.db.WithContext(ctx).
		Preload("Documents").
		Preload("Prompts", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Accesses").
		First(&chatbot, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrChatbotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chatbot, nil
}

func (r *GormChatbotRepository) ListForUser(ctx context.Context, userID string) ([]models.Chatbot, error) {
	var chatbots []models.Chatbot
	err := r.db.WithContext(ctx).
		Joins("JOIN chatbot_accesses ON chatbot_accesses.chatbot_id = chatbots.id").
		Where("chatbot_accesses.user_id = ?", userID).
		Preload("Documents").
		Preload("Prompts", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Accesses").
		Find(&chatbots).Error
	return chatbots, err
}

func (r *GormChatbotRepository) UserAccesses(ctx context.Context, userID string) (map[string]string, error) {
	var accesses []models.ChatbotAccess
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&accesses).Error; err != nil {
		return nil, err
	}
	result := make(map[string]string, len(accesses))
	for _, a := range accesses {
		result[a.ChatbotID] = a.Role
	}
	return result, nil
}

func (r *GormChatbotRepository) Update(ctx context.Context, id string, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Chatbot{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrChatbotNotFound
	}
	return nil
}

func (r *GormChatbotRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []any{&models.Document{}, &models.SuggestedPrompt{}, &models.ChatbotAccess{}} {
			if err := tx.Where("chatbot_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Chatbot{}, "id = ?", id).Error
	})
}

func (r *GormChatbotRepository) UpsertAccess(ctx context.Context, access *models.ChatbotAccess) error {
	var existing models.ChatbotAccess
	err := r.db.WithContext(ctx).
		Where("chatbot_id = ? AND user_id = ?", access.ChatbotID, access.UserID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.db.WithContext(ctx).Create(access).Error
	}
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&existing).Update("role", access.Role).Error
}

func (r *GormChatbotRepository) RemoveAccess(ctx context.Context, chatbotID, userID string) error {
	res := r.db.WithContext(ctx).
		Where("chatbot_id = ? AND user_id = ?", chatbotID, userID).
		Delete(&models.ChatbotAccess{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccessNotFound
	}
	return nil
}

func (r *GormChatbotRepository) Documents(ctx context.Context, chatbotID string) ([]models.Document, error) {
	var docs []models.Document
	err := r.db.WithContext(ctx).Where("chatbot_id = ?", chatbotID).Order("id ASC").Find(&docs).Error
	return docs, err
}

func (r *GormChatbotRepository) AddDocument(ctx context.Context, doc *models.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

func (r *GormChatbotRepository) RemoveDocument(ctx context.Context, chatbotID, filename string) error {
	return r.db.WithContext(ctx).
		Where("chatbot_id = ? AND filename = ?", chatbotID, filename).
		Delete(&models.Document{}).Error
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/AntoinePinto/docu-talk/pkg/jwt"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
	"github.com/AntoinePinto/docu-talk/pkg/middleware"
)

func RegisterChatbotRoutes(r *gin.Engine, handler *ChatbotHandler, jwtService *jwt.Service, log *logger.Logger) {
	auth := middleware.JWTAuthMiddleware(jwtService, log)

	r.GET("/my_chatbots", auth, handler.GetMyChatbots)

	group := r.Group("/chatbots/:chatbot_id")
	group.Use(auth)
	{
		group.GET("", handler.GetChatbot)
		group.PUT("", handler.UpdateChatbot)
		group.DELETE("", handler.DeleteChatbot)
		group.POST("/share", handler.ShareChatbot)
		group.DELETE("/accesses/:user_email", handler.RemoveAccess)
		group.POST("/public_sharing_request", handler.RequestPublicSharing)
		group.POST("/documents", handler.AddDocuments)
		group.DELETE("/documents/:filename", handler.DeleteDocument)
	}
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/AntoinePinto/docu-talk/pkg/jwt"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
	"github.com/AntoinePinto/docu-talk/pkg/middleware"
)

func RegisterConversationRoutes(r *gin.Engine, handler *ChatHandler, jwtService *jwt.Service, log *logger.Logger) {
	group := r.Group("/chatbots/:chatbot_id")
	group.Use(middleware.JWTAuthMiddleware(jwtService, log))
	{
		group.POST("/conversations", handler.CreateConversation)
		group.GET("/conversations", handler.GetConversations)
		group.POST("/conversations/:conversation_id/ask", handler.AskChatbot)
		group.POST("/conversations/:conversation_id/sources", handler.GetLastMessageSources)
		group.GET("/ask_estimation", handler.GetAskEstimation)
	}
}

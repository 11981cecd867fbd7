package api

import (
	"github.com/gin-gonic/gin"

	"github.com/AntoinePinto/docu-talk/pkg/jwt"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
	"github.com/AntoinePinto/docu-talk/pkg/middleware"
)

func RegisterCreationRoutes(r *gin.Engine, handler *CreationHandler, jwtService *jwt.Service, log *logger.Logger) {
	auth := middleware.JWTAuthMiddleware(jwtService, log)
	r.POST("/chatbots", auth, handler.CreateChatbot)
	r.GET("/estimations/create_chatbot", auth, handler.GetCreateEstimation)
}

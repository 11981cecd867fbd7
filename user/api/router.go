package api

import (
	"github.com/gin-gonic/gin"

	"github.com/AntoinePinto/docu-talk/pkg/jwt"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
	"github.com/AntoinePinto/docu-talk/pkg/middleware"
)

func RegisterUserRoutes(r *gin.Engine, handler *UserHandler, jwtService *jwt.Service, log *logger.Logger) {
	r.POST("/sign_up", handler.SignUp)
	r.POST("/token", handler.Token)
	r.POST("/guest", handler.GuestSession)

	auth := middleware.JWTAuthMiddleware(jwtService, log)
	r.GET("/me", auth, handler.Me)
	r.DELETE("/me", auth, handler.DeleteAccount)
	r.POST("/me/terms", auth, handler.AcknowledgeTerms)
}

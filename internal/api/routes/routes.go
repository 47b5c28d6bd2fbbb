package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/banddude/voiceid/internal/api/handlers"
	"github.com/banddude/voiceid/internal/api/middleware"
)

type Deps struct {
	Auth         *handlers.AuthHandler
	Conversation *handlers.ConversationHandler
	Speaker      *handlers.SpeakerHandler
	Utterance    *handlers.UtteranceHandler
	Reference    *handlers.ReferenceHandler
	WS           *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	r.POST("/auth/register", d.Auth.Register)
	r.POST("/auth/login", d.Auth.Login)

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.POST("/conversations", d.Conversation.Upload)
	auth.GET("/conversations", d.Conversation.List)
	auth.GET("/conversations/:conversation_id", d.Conversation.Get)
	auth.PATCH("/conversations/:conversation_id", d.Conversation.Rename)
	auth.DELETE("/conversations/:conversation_id", middleware.RequireAdmin(), d.Conversation.Delete)
	auth.GET("/conversations/:conversation_id/audio", d.Conversation.AudioURL)
	auth.GET("/conversations/:conversation_id/status", d.Conversation.Status)

	auth.GET("/speakers", d.Speaker.List)
	auth.POST("/speakers", d.Speaker.Create)
	auth.PATCH("/speakers/:name", d.Speaker.Rename)
	auth.POST("/speakers/:name/reassign", middleware.RequireAdmin(), d.Speaker.ReassignAll)
	auth.DELETE("/speakers/:name", middleware.RequireAdmin(), d.Speaker.Delete)

	auth.PATCH("/utterances/:utterance_id/speaker", d.Utterance.Reassign)
	auth.GET("/utterances/:utterance_id/audio", d.Conversation.UtteranceAudioURL)

	auth.GET("/speakers/:name/embeddings", d.Reference.ListBySpeaker)
	auth.POST("/speakers/:name/embeddings", d.Reference.Enroll)
	auth.DELETE("/speakers/:name/embeddings", middleware.RequireAdmin(), d.Reference.DeleteBySpeaker)
	auth.DELETE("/embeddings/:embedding_id", middleware.RequireAdmin(), d.Reference.Delete)

	// WebSocket
	auth.GET("/ws/conversations/:conversation_id", d.WS.ConversationWS)
}

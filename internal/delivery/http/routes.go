package http

import (
	"net/http"

	wsDelivery "mingle/internal/delivery/websocket"

	"github.com/go-chi/chi/v5"
)

func MapHttpRoutes(r *chi.Mux, httpHandler HttpHandler, websocketHandler wsDelivery.WebsocketHandler, authMiddleware *AuthMiddleware) {
	// The socket authenticates in-band via the authenticate event.
	r.Handle("/ws", http.HandlerFunc(websocketHandler.HandleWebSocket))

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Route("/chat", func(r chi.Router) {
			r.Get("/", http.HandlerFunc(httpHandler.ListChats))
			r.Post("/direct", http.HandlerFunc(httpHandler.CreateDirectChat))
			r.Post("/group", http.HandlerFunc(httpHandler.CreateGroupChat))

			r.Route("/{chatId}", func(r chi.Router) {
				r.Get("/", http.HandlerFunc(httpHandler.GetChat))
				r.Post("/read", http.HandlerFunc(httpHandler.MarkChatAsRead))
				r.Get("/unread", http.HandlerFunc(httpHandler.GetUnread))

				r.Post("/members", http.HandlerFunc(httpHandler.AddMember))
				r.Delete("/members/{userId}", http.HandlerFunc(httpHandler.RemoveMember))

				r.Get("/messages", http.HandlerFunc(httpHandler.GetMessages))
				r.Post("/messages", http.HandlerFunc(httpHandler.SendMessage))
				r.Delete("/messages/{messageId}", http.HandlerFunc(httpHandler.DeleteMessage))
				r.Post("/messages/{messageId}/reactions", http.HandlerFunc(httpHandler.ReactToMessage))
				r.Delete("/messages/{messageId}/reactions", http.HandlerFunc(httpHandler.RemoveReaction))

				r.Get("/typing", http.HandlerFunc(httpHandler.ListTyping))
				r.Post("/typing/start", http.HandlerFunc(httpHandler.StartTyping))
				r.Post("/typing/stop", http.HandlerFunc(httpHandler.StopTyping))
			})
		})
	})
}

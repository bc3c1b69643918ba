package handlers

import "net/http"

// Register adds the pages and the API of m to mux.
func (m Main) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", m.HandleHome)
	mux.HandleFunc("POST /conversations/{id}/delete",
		limitBody(maxBodyBytes, m.RequireUserPage(m.HandleDeleteConversationForm)))
	mux.HandleFunc("GET /sse/conversations", m.HandleSSE)

	mux.HandleFunc("POST /auth/signup", limitBody(maxBodyBytes, m.HandleSignUp))
	mux.HandleFunc("POST /auth/signin", limitBody(maxBodyBytes, m.HandleSignIn))
	mux.HandleFunc("POST /auth/signout", m.HandleSignOut)

	mux.HandleFunc("POST /api/chat", limitBody(maxHistoryBytes, m.HandleChat))
	mux.HandleFunc("GET /api/me", m.RequireUser(m.HandleMe))
	mux.HandleFunc("GET /api/conversations", m.RequireUser(m.HandleListConversations))
	mux.HandleFunc("POST /api/conversations", m.RequireUser(m.HandleCreateConversation))
	mux.HandleFunc("DELETE /api/conversations/{id}", m.RequireUser(m.HandleDeleteConversation))
	mux.HandleFunc("GET /api/conversations/{id}/messages", m.RequireUser(m.HandleListMessages))
	mux.HandleFunc("POST /api/conversations/{id}/messages",
		limitBody(maxBodyBytes, m.RequireUser(m.HandleAddMessage)))
	mux.HandleFunc("POST /api/feedback", limitBody(maxBodyBytes, m.RequireUser(m.HandleFeedback)))
}

// Package principal holds the authenticated identities that the server's authenticators resolve and pass
// explicitly to handlers.
package principal

import "net/http"

// Owner is an account owner authenticated by a session bearer token.
type Owner struct {
	UserID string
	Email  string
}

// App is an ingestion client authenticated by an API key.
type App struct {
	AppID   string
	OwnerID string
	KeyID   string
}

// OwnerHandlerFunc is an HTTP handler that runs only after owner authentication succeeded.
type OwnerHandlerFunc func(w http.ResponseWriter, r *http.Request, owner Owner)

// AppHandlerFunc is an HTTP handler that runs only after API key authentication succeeded.
type AppHandlerFunc func(w http.ResponseWriter, r *http.Request, app App)

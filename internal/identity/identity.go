package identity

import (
	"errors"
	"net/http"

	"github.com/quizroom/quizroom/internal/models"
)

// ErrUnidentified is returned when a connection carries no usable identity.
// It is the only condition that causes an immediate disconnect: the upgrade
// is refused before the connection ever reaches room state.
var ErrUnidentified = errors.New("missing or invalid identity")

// Identity is the caller's established identity, supplied once at connection
// establishment and trusted unconditionally for the connection's lifetime.
type Identity struct {
	Username string
	Role     models.Role
}

// Source resolves the identity of an inbound connection request.
// Authentication itself happens upstream; this only reads the result.
type Source interface {
	Identify(r *http.Request) (Identity, error)
}

// HeaderSource reads the identity from reverse-proxy headers, falling back
// to query parameters for local development.
type HeaderSource struct{}

// Identify implements Source.
func (HeaderSource) Identify(r *http.Request) (Identity, error) {
	username := r.Header.Get("X-Auth-User")
	if username == "" {
		username = r.URL.Query().Get("username")
	}
	if username == "" {
		return Identity{}, ErrUnidentified
	}

	role := models.Role(r.Header.Get("X-Auth-Role"))
	if role == "" {
		role = models.Role(r.URL.Query().Get("role"))
	}
	if role != models.RoleAdmin {
		role = models.RoleUser
	}
	return Identity{Username: username, Role: role}, nil
}

package auth

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Заголовки, проставляемые API-шлюзом после проверки токена.
const (
	HeaderOrganizationID = "X-Organization-ID"
	HeaderActorID        = "X-Actor-ID"
	HeaderAPIKey         = "X-API-Key"
)

// Context — идентичность запроса: организация-тенант и действующий
// пользователь. Сервис доверяет шлюзу и не проверяет токены сам.
type Context struct {
	OrganizationID string
	ActorID        string
}

// FromRequest извлекает идентичность из заголовков шлюза.
func FromRequest(r *http.Request) (*Context, error) {
	orgID := strings.TrimSpace(r.Header.Get(HeaderOrganizationID))
	if orgID == "" {
		return nil, fmt.Errorf("no %s header", HeaderOrganizationID)
	}

	actorID := strings.TrimSpace(r.Header.Get(HeaderActorID))
	if actorID == "" {
		return nil, fmt.Errorf("no %s header", HeaderActorID)
	}

	return &Context{OrganizationID: orgID, ActorID: actorID}, nil
}

// APIKeyFromRequest извлекает ключ интеграции для программных загрузок.
func APIKeyFromRequest(r *http.Request) (string, error) {
	key := strings.TrimSpace(r.Header.Get(HeaderAPIKey))
	if key == "" {
		return "", fmt.Errorf("no %s header", HeaderAPIKey)
	}
	return key, nil
}

// ClientIP возвращает адрес клиента с учетом прокси-заголовков.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

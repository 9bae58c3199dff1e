package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/photocore/photoadmin/internal/api"
)

// Полные имена claim'ов, которые выдает сервер API
const (
	roleClaimURI  = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
	emailClaimURI = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"
)

// AccessClaims данные из access-токена
type AccessClaims struct {
	Subject   string
	Email     string
	Role      string
	ExpiresAt time.Time
}

// IsAdmin сообщает, что токен выдан администратору
func (c *AccessClaims) IsAdmin() bool {
	return strings.EqualFold(c.Role, api.RoleAdmin.String())
}

// ParseClaims читает claim'ы без проверки подписи: ключа у фронтенда нет
func ParseClaims(token string) (*AccessClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	out := &AccessClaims{
		Role:  firstString(claims, "role", roleClaimURI),
		Email: firstString(claims, "email", emailClaimURI),
	}
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	return out, nil
}

func firstString(claims jwt.MapClaims, names ...string) string {
	for _, name := range names {
		switch v := claims[name].(type) {
		case string:
			return v
		case []any:
			// несколько ролей приходят массивом
			for _, item := range v {
				if s, ok := item.(string); ok {
					return s
				}
			}
		}
	}
	return ""
}

package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MediaType определяет тип медиа-объекта
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
)

// MediaObject элемент ленты. Клиент его не изменяет, только перечитывает.
type MediaObject struct {
	ID          string    `json:"id"`
	DateCreated string    `json:"dateCreated"`
	MediaType   MediaType `json:"mediaType,omitempty"`
	IsFavorite  bool      `json:"isFavorite,omitempty"`
}

// Created разбирает dateCreated, нулевое время если формат неизвестен
func (m MediaObject) Created() time.Time {
	return parseTime(m.DateCreated)
}

// IsVideo сообщает, является ли объект видео
func (m MediaObject) IsVideo() bool {
	return m.MediaType == MediaTypeVideo
}

// Page одна страница выдачи
type Page struct {
	LastID     string        `json:"lastId"`
	Properties []MediaObject `json:"properties"`
}

// Album альбом. Системные альбомы нельзя удалять.
type Album struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsSystem    bool   `json:"isSystem"`
	DateCreated string `json:"dateCreated"`
}

// Created разбирает dateCreated
func (a Album) Created() time.Time {
	return parseTime(a.DateCreated)
}

type albumsResponse struct {
	Albums []Album `json:"albums"`
}

// Role роль пользователя
type Role int

const (
	RoleAdmin Role = iota
	RoleUser
)

// Roles все роли в порядке отображения
var Roles = []Role{RoleAdmin, RoleUser}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleUser:
		return "User"
	default:
		return "Role(" + strconv.Itoa(int(r)) + ")"
	}
}

// ParseRole принимает номер роли или её имя
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		r := Role(n)
		if r != RoleAdmin && r != RoleUser {
			return 0, fmt.Errorf("unknown role %d", n)
		}
		return r, nil
	}
	for _, r := range Roles {
		if strings.EqualFold(r.String(), s) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// UnmarshalJSON принимает роль числом или строкой
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := ParseRole(s)
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("role: %w", err)
	}
	*r = Role(n)
	return nil
}

// User учетная запись в списке администратора
type User struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DateCreated string `json:"dateCreated"`
	Quota       int64  `json:"quota"`
	UsedQuota   int64  `json:"usedQuota"`
	Role        Role   `json:"role"`
}

// Created разбирает dateCreated
func (u User) Created() time.Time {
	return parseTime(u.DateCreated)
}

// Claims утверждения текущего пользователя
type Claims struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	ID       string `json:"id"`
	Role     string `json:"role"`
	AMR      string `json:"amr"`
}

// UserInfo текущий пользователь
type UserInfo struct {
	Claims    Claims `json:"claims"`
	Email     string `json:"email"`
	Quota     int64  `json:"quota"`
	UsedQuota int64  `json:"usedQuota"`
}

// IsAdmin сообщает, администратор ли пользователь
func (u *UserInfo) IsAdmin() bool {
	return u != nil && strings.EqualFold(u.Claims.Role, RoleAdmin.String())
}

// Tokens ответ на вход и обновление токена
type Tokens struct {
	UserID       string `json:"userId,omitempty"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"` // секунды
	TokenType    string `json:"tokenType,omitempty"`
}

// ServerStatus состояние сервера
type ServerStatus struct {
	Registration  bool   `json:"registration"`
	ServerVersion string `json:"serverVersion"`
}

type objectIDs struct {
	ObjectIDs []string `json:"ObjectIds"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Package validate проверяет поля форм до отправки в API
package validate

import (
	"errors"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// BytesPerGB квота в формах задается в гигабайтах, в API в байтах
const BytesPerGB = 1 << 30

// MinPasswordLength минимальная длина пароля
const MinPasswordLength = 8

var emailRe = regexp.MustCompile(`^(([^<>()\[\]\\.,;:\s@"]+(\.[^<>()\[\]\\.,;:\s@"]+)*)|(".+"))@((\[[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}\.[0-9]{1,3}])|(([a-zA-Z\-0-9]+\.)+[a-zA-Z]{2,}))$`)

var (
	ErrEmail            = errors.New("Введите корректный email")
	ErrPassword         = errors.New("Пароль должен быть не короче 8 символов и содержать строчную букву, заглавную букву и спецсимвол")
	ErrPasswordMismatch = errors.New("Новый пароль не совпадает с подтверждением")
	ErrRequired         = errors.New("Заполните обязательные поля")
	ErrQuota            = errors.New("Квота должна быть неотрицательным числом")
)

// IsEmail проверяет адрес почты
func IsEmail(s string) bool {
	return emailRe.MatchString(strings.ToLower(s))
}

// IsValidPassword: не короче 8 символов, есть строчная и заглавная латинская
// буква и хотя бы один символ не из [a-zA-Z0-9]
func IsValidPassword(s string) bool {
	if utf8.RuneCountInString(s) < MinPasswordLength {
		return false
	}
	var lower, upper, special bool
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
		default:
			special = true
		}
	}
	return lower && upper && special
}

// Password проверяет новый пароль и его подтверждение
func Password(password, confirm string) error {
	if !IsValidPassword(password) {
		return ErrPassword
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

// Errors собирает ошибки полей формы по порядку
type Errors []string

// Add добавляет ошибку, если err не nil
func (e *Errors) Add(err error) {
	if err != nil {
		*e = append(*e, err.Error())
	}
}

// Check добавляет msg, если ok ложно
func (e *Errors) Check(ok bool, msg error) {
	if !ok {
		e.Add(msg)
	}
}

// Empty сообщает, что ошибок нет
func (e Errors) Empty() bool { return len(e) == 0 }

// GBToBytes переводит квоту из формы в байты, отрицательные значения запрещены
func GBToBytes(gb float64) (int64, error) {
	if gb < 0 || math.IsNaN(gb) || math.IsInf(gb, 0) {
		return 0, ErrQuota
	}
	return int64(math.Round(gb * BytesPerGB)), nil
}

// BytesToGB переводит квоту API в гигабайты для формы
func BytesToGB(b int64) float64 {
	return float64(b) / BytesPerGB
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// User представляет пользователя в системе
type User struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	Location    string    `json:"location,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	RatingCount int       `json:"rating_count"`
	AvgStars    float64   `json:"avg_stars"`
	TotalXP     int       `json:"tot_xp"`
	Level       int       `json:"level"`
	CreatedAt   time.Time `json:"created_at"`

	// Хеш пароля наружу не отдаём
	PasswordHash string `json:"-"`
}

// DisplayName возвращает имя для показа в ленте и фидбеке
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.Username
}

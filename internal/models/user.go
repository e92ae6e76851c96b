package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserSettings holds per-user preferences. Defaults are applied at
// registration time so documents are always fully populated.
type UserSettings struct {
	RememberMe  bool   `bson:"remember_me" json:"rememberMe"`
	DailyEmail  bool   `bson:"daily_email" json:"dailyEmail"`
	WeeklyEmail bool   `bson:"weekly_email" json:"weeklyEmail"`
	Timezone    string `bson:"timezone" json:"timezone"`
}

// DefaultUserSettings returns the settings a fresh account starts with.
func DefaultUserSettings() UserSettings {
	return UserSettings{
		DailyEmail:  true,
		WeeklyEmail: true,
		Timezone:    "America/Jamaica",
	}
}

// User is a registered account. Email is stored normalized (trimmed,
// lowercased) and is unique at the storage layer.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`

	FirstName string `bson:"first_name" json:"firstName"`
	LastName  string `bson:"last_name" json:"lastName"`
	Email     string `bson:"email" json:"email"`

	PasswordHash string `bson:"password_hash" json:"-"` // never leaves the server

	Settings    UserSettings `bson:"settings" json:"settings"`
	LastLoginAt *time.Time   `bson:"last_login_at,omitempty" json:"lastLoginAt,omitempty"`
}

// Summary is the shape returned to clients after login and from
// /auth-status. Everything else stays server-side.
func (u *User) Summary() map[string]interface{} {
	return map[string]interface{}{
		"id":        u.ID.Hex(),
		"firstName": u.FirstName,
		"lastName":  u.LastName,
		"email":     u.Email,
	}
}

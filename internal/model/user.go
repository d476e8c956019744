package model

import (
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/tour-booking/internal/apperr"
)

// Closed role set. Checked verbatim everywhere; there is no hierarchy.
const (
	RoleUser      = "user"
	RoleGuide     = "guide"
	RoleLeadGuide = "lead-guide"
	RoleAdmin     = "admin"
)

// ValidRole reports whether role belongs to the closed set.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return true
	}
	return false
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// User is a document in the `users` collection. The password hash and the
// reset-token fields never serialize out; accounts are soft-deleted by
// flipping Active rather than removing the document.
type User struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                 string             `bson:"name" json:"name"`
	Email                string             `bson:"email" json:"email"`
	Photo                string             `bson:"photo,omitempty" json:"photo,omitempty"`
	Role                 string             `bson:"role" json:"role"`
	Password             string             `bson:"password" json:"-"`
	PasswordChangedAt    time.Time          `bson:"password_changed_at,omitempty" json:"-"`
	PasswordResetToken   string             `bson:"password_reset_token,omitempty" json:"-"`
	PasswordResetExpires time.Time          `bson:"password_reset_expires,omitempty" json:"-"`
	Active               *bool              `bson:"active,omitempty" json:"-"`
	CreatedAt            time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt            time.Time          `bson:"updated_at" json:"updated_at"`
}

// Normalize lowercases and trims the email, matching how lookups are keyed.
func (u *User) Normalize() {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.Name = strings.TrimSpace(u.Name)
}

// ChangedPasswordAfter reports whether the password was changed strictly
// after the given token issuance time. Comparison happens at second
// granularity, the resolution of the iat claim.
func (u *User) ChangedPasswordAfter(iat int64) bool {
	if u.PasswordChangedAt.IsZero() {
		return false
	}
	return u.PasswordChangedAt.Unix() > iat
}

// ValidateSignup checks the raw signup input before the password is hashed.
// plain and confirm are the plaintext password pair from the request body.
func (u *User) ValidateSignup(plain, confirm string) *apperr.Error {
	var msgs []string
	if u.Name == "" {
		msgs = append(msgs, "a name is required for a new user")
	}
	if u.Email == "" {
		msgs = append(msgs, "an email is required for a new user")
	} else if !emailRe.MatchString(u.Email) {
		msgs = append(msgs, "please provide a valid email")
	}
	if plain == "" {
		msgs = append(msgs, "a password is required for a new user")
	} else if len(plain) < 8 {
		msgs = append(msgs, "a password must have at least 8 characters")
	}
	if plain != confirm {
		msgs = append(msgs, "two passwords entered are not the same")
	}
	if u.Role != "" && !ValidRole(u.Role) {
		msgs = append(msgs, "role must be one of: user, guide, lead-guide, admin")
	}
	if len(msgs) > 0 {
		return apperr.Validation(msgs...)
	}
	return nil
}

// ValidateUserPatch re-checks field rules for a partial admin update. Only
// keys present in the patch are validated, the same rules as on signup.
func ValidateUserPatch(patch bson.M) *apperr.Error {
	var msgs []string
	if v, ok := patch["name"]; ok {
		if s, _ := v.(string); strings.TrimSpace(s) == "" {
			msgs = append(msgs, "a name is required for a new user")
		}
	}
	if v, ok := patch["email"]; ok {
		s, _ := v.(string)
		if !emailRe.MatchString(strings.ToLower(strings.TrimSpace(s))) {
			msgs = append(msgs, "please provide a valid email")
		}
	}
	if v, ok := patch["role"]; ok {
		if s, _ := v.(string); !ValidRole(s) {
			msgs = append(msgs, "role must be one of: user, guide, lead-guide, admin")
		}
	}
	if len(msgs) > 0 {
		return apperr.Validation(msgs...)
	}
	return nil
}

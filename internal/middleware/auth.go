package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/tour-booking/internal/apperr"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/utils"
)

// userContextKey is where the resolved account is stashed on the echo context.
const userContextKey = "user"

// sessionCookie is the cookie the token rides in when no Authorization
// header is present.
const sessionCookie = "jwt"

// SubjectStore resolves the account a verified token was issued for.
type SubjectStore interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// Protect rejects any request that does not carry a valid session token for a
// still-existing account whose password has not changed since issuance. The
// resolved user is stored on the context for handlers downstream.
func Protect(tokens *utils.TokenService, users SubjectStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := extractToken(c)
			if raw == "" {
				return apperr.NoCredential("You are not logged in! Please login to get access")
			}
			u, err := resolveSubject(c, tokens, users, raw)
			if err != nil {
				return err
			}
			c.Set(userContextKey, u)
			return next(c)
		}
	}
}

// CurrentUser resolves the session token if one is present but never rejects
// the request. Public routes use it so rate-limit keys and templates can see
// who is browsing.
func CurrentUser(tokens *utils.TokenService, users SubjectStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if raw := extractToken(c); raw != "" {
				if u, err := resolveSubject(c, tokens, users, raw); err == nil {
					c.Set(userContextKey, u)
				}
			}
			return next(c)
		}
	}
}

// RequireRole allows only the listed roles through. Roles compare verbatim;
// there is no hierarchy. Must run after Protect.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := UserFrom(c)
			if u == nil {
				return apperr.NoCredential("You are not logged in! Please login to get access")
			}
			for _, r := range roles {
				if u.Role == r {
					return next(c)
				}
			}
			return apperr.Forbidden("You do not have permission to perform this action")
		}
	}
}

// UserFrom returns the authenticated user set by Protect or CurrentUser, or
// nil when the request is anonymous.
func UserFrom(c echo.Context) *model.User {
	u, _ := c.Get(userContextKey).(*model.User)
	return u
}

// resolveSubject verifies the token and loads its account, enforcing the two
// post-verification checks: the subject must still exist (and be active), and
// the password must not have changed after the token was issued.
func resolveSubject(c echo.Context, tokens *utils.TokenService, users SubjectStore, raw string) (*model.User, error) {
	claims, err := tokens.Verify(raw)
	if err != nil {
		return nil, err
	}
	u, err := users.GetByID(c.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.SubjectGone("The user belonging to this token does no longer exist")
		}
		return nil, err
	}
	if u.ChangedPasswordAfter(claims.IssuedAt) {
		return nil, apperr.StaleToken("User recently changed password! Please login again")
	}
	return u, nil
}

// extractToken reads the bearer token from the Authorization header, falling
// back to the session cookie.
func extractToken(c echo.Context) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	if ck, err := c.Cookie(sessionCookie); err == nil && ck.Value != "" && ck.Value != loggedOutValue {
		return ck.Value
	}
	return ""
}

// loggedOutValue is the placeholder Logout writes into the session cookie.
const loggedOutValue = "loggedout"

package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/tour-booking/internal/apperr"
	"github.com/iliyamo/tour-booking/internal/middleware"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/utils"
)

// UserStore is the account storage the auth handlers depend on. UserRepo
// satisfies it; tests swap in an in-memory fake.
type UserStore interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdatePassword(ctx context.Context, id string, hash string) error
	SetResetToken(ctx context.Context, id string, hash string, exp time.Time) error
	ClearResetToken(ctx context.Context, id string) error
	FindByResetToken(ctx context.Context, hash string) (*model.User, error)
}

// Mailer queues outbound emails. Delivery is asynchronous; only queueing can
// fail here.
type Mailer interface {
	SendWelcome(ctx context.Context, to, name, url string) error
	SendPasswordReset(ctx context.Context, to, name, url string) error
}

// AuthHandler implements signup, login and the password lifecycle.
type AuthHandler struct {
	users      UserStore
	tokens     *utils.TokenService
	mail       Mailer
	cookieTTL  time.Duration
	bcryptCost int
	production bool
}

func NewAuthHandler(users UserStore, tokens *utils.TokenService, mail Mailer, cookieTTL time.Duration, bcryptCost int, production bool) *AuthHandler {
	return &AuthHandler{
		users:      users,
		tokens:     tokens,
		mail:       mail,
		cookieTTL:  cookieTTL,
		bcryptCost: bcryptCost,
		production: production,
	}
}

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Photo           string `json:"photo"`
	Role            string `json:"role"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// Signup registers a new account, queues a welcome email and logs the user
// straight in.
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(http.StatusBadRequest, "invalid request body")
	}
	u := &model.User{
		Name:  req.Name,
		Email: req.Email,
		Photo: req.Photo,
		Role:  req.Role,
	}
	u.Normalize()
	if err := u.ValidateSignup(req.Password, req.PasswordConfirm); err != nil {
		return err
	}
	hash, err := utils.HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		return err
	}
	u.Password = hash

	out, err := h.users.Create(c.Request().Context(), u)
	if err != nil {
		return err
	}

	// A failed welcome email never fails the signup; the queue logs it.
	_ = h.mail.SendWelcome(c.Request().Context(), out.Email, out.Name, requestURL(c, "/me"))

	return h.sendToken(c, http.StatusCreated, out)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a session token. Unknown email and wrong
// password are deliberately indistinguishable.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(http.StatusBadRequest, "invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return apperr.New(http.StatusBadRequest, "Please provide email and password")
	}
	u, err := h.users.GetByEmail(c.Request().Context(), normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.New(http.StatusUnauthorized, "Incorrect email or password")
		}
		return err
	}
	if !utils.VerifyPassword(u.Password, req.Password) {
		return apperr.New(http.StatusUnauthorized, "Incorrect email or password")
	}
	return h.sendToken(c, http.StatusOK, u)
}

// Logout overwrites the session cookie with a short-lived placeholder so
// cookie-based clients drop their session.
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     "jwt",
		Value:    "loggedout",
		Expires:  time.Now().Add(10 * time.Second),
		HttpOnly: true,
		Path:     "/",
	})
	return c.JSON(http.StatusOK, echo.Map{"status": "success"})
}

type forgotRequest struct {
	Email string `json:"email"`
}

// ForgotPassword issues a single-use reset token and queues the reset email.
// If the email cannot be queued the stored token is cleared again, so a token
// the user never received cannot linger.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	u, err := h.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.NotFound("There is no user with that email address")
		}
		return err
	}

	rt, err := utils.NewResetToken()
	if err != nil {
		return err
	}
	id := u.ID.Hex()
	if err := h.users.SetResetToken(ctx, id, rt.Hash, rt.Exp); err != nil {
		return err
	}

	resetURL := requestURL(c, "/api/v1/users/resetPassword/"+rt.Raw)
	if err := h.mail.SendPasswordReset(ctx, u.Email, u.Name, resetURL); err != nil {
		_ = h.users.ClearResetToken(ctx, id)
		return apperr.New(http.StatusInternalServerError, "There was an error sending the email. Try again later!")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status":  "success",
		"message": "Token sent to email!",
	})
}

type resetRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// ResetPassword consumes a reset token from the URL and sets a new password.
// The token is matched by hash and must not be expired; consumption clears it.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(http.StatusBadRequest, "invalid request body")
	}
	if err := passwordRules(req.Password, req.PasswordConfirm); err != nil {
		return err
	}
	ctx := c.Request().Context()
	u, err := h.users.FindByResetToken(ctx, utils.HashResetRaw(c.Param("token")))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return apperr.ResetTokenInvalid()
		}
		return err
	}
	hash, err := utils.HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		return err
	}
	if err := h.users.UpdatePassword(ctx, u.ID.Hex(), hash); err != nil {
		return err
	}
	return h.sendToken(c, http.StatusOK, u)
}

type updatePasswordRequest struct {
	PasswordCurrent string `json:"password_current"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// UpdatePassword lets an authenticated user rotate their password. The
// current password must verify; every prior token is invalidated by the
// password-changed timestamp.
func (h *AuthHandler) UpdatePassword(c echo.Context) error {
	u := middleware.UserFrom(c)
	if u == nil {
		return apperr.NoCredential("You are not logged in! Please login to get access")
	}
	var req updatePasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperr.New(http.StatusBadRequest, "invalid request body")
	}
	if !utils.VerifyPassword(u.Password, req.PasswordCurrent) {
		return apperr.New(http.StatusUnauthorized, "Your current password is wrong")
	}
	if err := passwordRules(req.Password, req.PasswordConfirm); err != nil {
		return err
	}
	hash, err := utils.HashPassword(req.Password, h.bcryptCost)
	if err != nil {
		return err
	}
	if err := h.users.UpdatePassword(c.Request().Context(), u.ID.Hex(), hash); err != nil {
		return err
	}
	return h.sendToken(c, http.StatusOK, u)
}

// sendToken issues a fresh session token, sets the session cookie and writes
// the login response body.
func (h *AuthHandler) sendToken(c echo.Context, code int, u *model.User) error {
	token, err := h.tokens.Issue(u.ID.Hex())
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     "jwt",
		Value:    token,
		Expires:  time.Now().Add(h.cookieTTL),
		HttpOnly: true,
		Secure:   h.production,
		Path:     "/",
	})
	return c.JSON(code, echo.Map{
		"status": "success",
		"token":  token,
		"data":   echo.Map{"user": u},
	})
}

func passwordRules(plain, confirm string) *apperr.Error {
	var msgs []string
	if plain == "" {
		msgs = append(msgs, "a password is required")
	} else if len(plain) < 8 {
		msgs = append(msgs, "a password must have at least 8 characters")
	}
	if plain != confirm {
		msgs = append(msgs, "two passwords entered are not the same")
	}
	if len(msgs) > 0 {
		return apperr.Validation(msgs...)
	}
	return nil
}

// requestURL rebuilds an absolute URL on the host serving this request.
func requestURL(c echo.Context, path string) string {
	scheme := c.Scheme()
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + c.Request().Host + path
}

func normalizeEmail(email string) string {
	u := model.User{Email: email}
	u.Normalize()
	return u.Email
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/tour-booking/internal/apperr"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/utils"
)

type fakeUsers struct {
	byID map[string]*model.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: map[string]*model.User{}}
}

func (f *fakeUsers) Create(_ context.Context, u *model.User) (*model.User, error) {
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return nil, apperr.Duplicate("email already in use")
		}
	}
	stored := *u
	stored.ID = primitive.NewObjectID()
	if stored.Role == "" {
		stored.Role = model.RoleUser
	}
	f.byID[stored.ID.Hex()] = &stored
	return &stored, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return u, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id string, hash string) error {
	u, ok := f.byID[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	u.Password = hash
	u.PasswordChangedAt = time.Now().Add(-time.Second)
	u.PasswordResetToken = ""
	u.PasswordResetExpires = time.Time{}
	return nil
}

func (f *fakeUsers) SetResetToken(_ context.Context, id string, hash string, exp time.Time) error {
	u, ok := f.byID[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	u.PasswordResetToken = hash
	u.PasswordResetExpires = exp
	return nil
}

func (f *fakeUsers) ClearResetToken(_ context.Context, id string) error {
	u, ok := f.byID[id]
	if !ok {
		return mongo.ErrNoDocuments
	}
	u.PasswordResetToken = ""
	u.PasswordResetExpires = time.Time{}
	return nil
}

func (f *fakeUsers) FindByResetToken(_ context.Context, hash string) (*model.User, error) {
	for _, u := range f.byID {
		if u.PasswordResetToken == hash && u.PasswordResetExpires.After(time.Now()) {
			return u, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

type sentMail struct {
	template, to, url string
}

type fakeMail struct {
	sent []sentMail
	fail bool
}

func (m *fakeMail) SendWelcome(_ context.Context, to, _, url string) error {
	if m.fail {
		return errors.New("broker down")
	}
	m.sent = append(m.sent, sentMail{template: "welcome", to: to, url: url})
	return nil
}

func (m *fakeMail) SendPasswordReset(_ context.Context, to, _, url string) error {
	if m.fail {
		return errors.New("broker down")
	}
	m.sent = append(m.sent, sentMail{template: "password_reset", to: to, url: url})
	return nil
}

func newAuth(users *fakeUsers, mail *fakeMail) *AuthHandler {
	tokens := utils.NewTokenService("test-secret", time.Hour)
	return NewAuthHandler(users, tokens, mail, time.Hour, 4, false)
}

func seedAccount(t *testing.T, users *fakeUsers, email, password string) *model.User {
	t.Helper()
	hash, err := utils.HashPassword(password, 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := users.Create(context.Background(), &model.User{
		Name:     "Leo",
		Email:    email,
		Role:     model.RoleUser,
		Password: hash,
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return u
}

func TestSignupSuccess(t *testing.T) {
	users := newFakeUsers()
	mail := &fakeMail{}
	h := newAuth(users, mail)

	c, rec := jsonContext(t, http.MethodPost, "/api/v1/users/signup", map[string]any{
		"name":             "Leo",
		"email":            "Leo@Example.com",
		"password":         "pass1234",
		"password_confirm": "pass1234",
	})
	if err := h.Signup(c); err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("code = %d, want 201", rec.Code)
	}

	var body struct {
		Status string `json:"status"`
		Token  string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "success" || body.Token == "" {
		t.Errorf("body = %+v, want success with token", body)
	}

	u, err := users.GetByEmail(context.Background(), "leo@example.com")
	if err != nil {
		t.Fatalf("stored email was not normalized: %v", err)
	}
	if u.Password == "pass1234" {
		t.Error("password stored in plaintext")
	}
	if len(mail.sent) != 1 || mail.sent[0].template != "welcome" {
		t.Errorf("mail = %v, want one welcome email", mail.sent)
	}

	cookies := rec.Result().Cookies()
	found := false
	for _, ck := range cookies {
		if ck.Name == "jwt" && ck.Value == body.Token && ck.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Errorf("session cookie missing, got %v", cookies)
	}
}

func TestSignupPasswordMismatch(t *testing.T) {
	h := newAuth(newFakeUsers(), &fakeMail{})
	c, _ := jsonContext(t, http.MethodPost, "/api/v1/users/signup", map[string]any{
		"name":             "Leo",
		"email":            "leo@example.com",
		"password":         "pass1234",
		"password_confirm": "different",
	})
	err := h.Signup(c)
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindValidationFailed {
		t.Errorf("err = %v, want validation failure", err)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	users := newFakeUsers()
	seedAccount(t, users, "leo@example.com", "pass1234")
	h := newAuth(users, &fakeMail{})
	c, _ := jsonContext(t, http.MethodPost, "/api/v1/users/signup", map[string]any{
		"name":             "Leo Again",
		"email":            "leo@example.com",
		"password":         "pass1234",
		"password_confirm": "pass1234",
	})
	err := h.Signup(c)
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindDuplicateValue {
		t.Errorf("err = %v, want duplicate", err)
	}
}

func TestLoginWrongCredentials(t *testing.T) {
	users := newFakeUsers()
	seedAccount(t, users, "leo@example.com", "pass1234")
	h := newAuth(users, &fakeMail{})

	for name, body := range map[string]map[string]any{
		"wrong password": {"email": "leo@example.com", "password": "nope5678"},
		"unknown email":  {"email": "ghost@example.com", "password": "pass1234"},
	} {
		c, _ := jsonContext(t, http.MethodPost, "/api/v1/users/login", body)
		err := h.Login(c)
		e, ok := apperr.As(err)
		if !ok || e.Status != http.StatusUnauthorized {
			t.Errorf("%s: err = %v, want 401", name, err)
			continue
		}
		// Unknown email and wrong password must be indistinguishable.
		if e.Message != "Incorrect email or password" {
			t.Errorf("%s: message = %q", name, e.Message)
		}
	}
}

func TestLoginMissingFields(t *testing.T) {
	h := newAuth(newFakeUsers(), &fakeMail{})
	c, _ := jsonContext(t, http.MethodPost, "/api/v1/users/login", map[string]any{"email": "leo@example.com"})
	err := h.Login(c)
	e, ok := apperr.As(err)
	if !ok || e.Status != http.StatusBadRequest {
		t.Errorf("err = %v, want 400", err)
	}
}

func TestLoginSuccess(t *testing.T) {
	users := newFakeUsers()
	seedAccount(t, users, "leo@example.com", "pass1234")
	h := newAuth(users, &fakeMail{})

	c, rec := jsonContext(t, http.MethodPost, "/api/v1/users/login", map[string]any{
		"email":    "leo@example.com",
		"password": "pass1234",
	})
	if err := h.Login(c); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"token"`) {
		t.Error("response has no token")
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	h := newAuth(newFakeUsers(), &fakeMail{})
	c, _ := jsonContext(t, http.MethodPost, "/api/v1/users/forgotPassword", map[string]any{
		"email": "ghost@example.com",
	})
	err := h.ForgotPassword(c)
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindNotFound {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestForgotPasswordStoresHashedToken(t *testing.T) {
	users := newFakeUsers()
	u := seedAccount(t, users, "leo@example.com", "pass1234")
	mail := &fakeMail{}
	h := newAuth(users, mail)

	c, rec := jsonContext(t, http.MethodPost, "/api/v1/users/forgotPassword", map[string]any{
		"email": "leo@example.com",
	})
	if err := h.ForgotPassword(c); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
	if u.PasswordResetToken == "" || !u.PasswordResetExpires.After(time.Now()) {
		t.Error("no unexpired reset token stored")
	}
	if len(mail.sent) != 1 || mail.sent[0].template != "password_reset" {
		t.Fatalf("mail = %v, want one reset email", mail.sent)
	}
	// The mailed URL carries the raw token; only its hash may be stored.
	parts := strings.Split(mail.sent[0].url, "/resetPassword/")
	if len(parts) != 2 {
		t.Fatalf("reset url = %q", mail.sent[0].url)
	}
	raw := parts[1]
	if raw == u.PasswordResetToken {
		t.Error("raw token stored instead of its hash")
	}
	if utils.HashResetRaw(raw) != u.PasswordResetToken {
		t.Error("stored hash does not match mailed token")
	}
}

func TestForgotPasswordClearsTokenWhenMailFails(t *testing.T) {
	users := newFakeUsers()
	u := seedAccount(t, users, "leo@example.com", "pass1234")
	h := newAuth(users, &fakeMail{fail: true})

	c, _ := jsonContext(t, http.MethodPost, "/api/v1/users/forgotPassword", map[string]any{
		"email": "leo@example.com",
	})
	err := h.ForgotPassword(c)
	e, ok := apperr.As(err)
	if !ok || e.Status != http.StatusInternalServerError {
		t.Errorf("err = %v, want 500", err)
	}
	if u.PasswordResetToken != "" {
		t.Error("reset token lingers after failed email")
	}
}

func TestResetPasswordFlow(t *testing.T) {
	users := newFakeUsers()
	u := seedAccount(t, users, "leo@example.com", "pass1234")
	mail := &fakeMail{}
	h := newAuth(users, mail)

	c, _ := jsonContext(t, http.MethodPost, "/api/v1/users/forgotPassword", map[string]any{
		"email": "leo@example.com",
	})
	if err := h.ForgotPassword(c); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	raw := strings.Split(mail.sent[0].url, "/resetPassword/")[1]

	c, rec := jsonContext(t, http.MethodPatch, "/api/v1/users/resetPassword/"+raw, map[string]any{
		"password":         "newpass99",
		"password_confirm": "newpass99",
	})
	c.SetParamNames("token")
	c.SetParamValues(raw)
	if err := h.ResetPassword(c); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
	if !utils.VerifyPassword(u.Password, "newpass99") {
		t.Error("password was not updated")
	}
	if u.PasswordResetToken != "" {
		t.Error("reset token survived consumption")
	}
	if u.PasswordChangedAt.IsZero() {
		t.Error("password change was not stamped")
	}

	// A consumed token must not work a second time.
	c, _ = jsonContext(t, http.MethodPatch, "/api/v1/users/resetPassword/"+raw, map[string]any{
		"password":         "thirdpass",
		"password_confirm": "thirdpass",
	})
	c.SetParamNames("token")
	c.SetParamValues(raw)
	err := h.ResetPassword(c)
	e, ok := apperr.As(err)
	if !ok || e.Status != http.StatusBadRequest || e.Message != "Token is invalid or has expired" {
		t.Errorf("second use: err = %v, want invalid-token 400", err)
	}
}

func TestResetPasswordBogusToken(t *testing.T) {
	h := newAuth(newFakeUsers(), &fakeMail{})
	c, _ := jsonContext(t, http.MethodPatch, "/api/v1/users/resetPassword/bogus", map[string]any{
		"password":         "newpass99",
		"password_confirm": "newpass99",
	})
	c.SetParamNames("token")
	c.SetParamValues("bogus")
	err := h.ResetPassword(c)
	e, ok := apperr.As(err)
	if !ok || e.Status != http.StatusBadRequest {
		t.Errorf("err = %v, want 400", err)
	}
}

func TestUpdatePasswordWrongCurrent(t *testing.T) {
	users := newFakeUsers()
	u := seedAccount(t, users, "leo@example.com", "pass1234")
	h := newAuth(users, &fakeMail{})

	c, _ := jsonContext(t, http.MethodPatch, "/api/v1/users/updateMyPassword", map[string]any{
		"password_current": "wrong999",
		"password":         "newpass99",
		"password_confirm": "newpass99",
	})
	c.Set("user", u)
	err := h.UpdatePassword(c)
	e, ok := apperr.As(err)
	if !ok || e.Status != http.StatusUnauthorized {
		t.Errorf("err = %v, want 401", err)
	}
}

func TestUpdatePasswordSuccess(t *testing.T) {
	users := newFakeUsers()
	u := seedAccount(t, users, "leo@example.com", "pass1234")
	h := newAuth(users, &fakeMail{})

	c, rec := jsonContext(t, http.MethodPatch, "/api/v1/users/updateMyPassword", map[string]any{
		"password_current": "pass1234",
		"password":         "newpass99",
		"password_confirm": "newpass99",
	})
	c.Set("user", u)
	if err := h.UpdatePassword(c); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
	if !utils.VerifyPassword(u.Password, "newpass99") {
		t.Error("password was not rotated")
	}
}

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/tour-booking/internal/apperr"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/utils"
)

type fakeSubjects struct {
	users map[string]*model.User
}

func (f fakeSubjects) GetByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return u, nil
}

func newTestContext(t *testing.T, header, cookie string) echo.Context {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: "jwt", Value: cookie})
	}
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func seededStore() (fakeSubjects, *model.User, *utils.TokenService) {
	u := &model.User{
		ID:    primitive.NewObjectID(),
		Name:  "Leo",
		Email: "leo@example.com",
		Role:  model.RoleUser,
	}
	store := fakeSubjects{users: map[string]*model.User{u.ID.Hex(): u}}
	return store, u, utils.NewTokenService("test-secret", time.Hour)
}

func protectErr(t *testing.T, c echo.Context, tokens *utils.TokenService, store fakeSubjects) error {
	t.Helper()
	called := false
	err := Protect(tokens, store)(func(echo.Context) error {
		called = true
		return nil
	})(c)
	if err != nil && called {
		t.Error("next ran despite rejection")
	}
	return err
}

func TestProtectNoCredential(t *testing.T) {
	store, _, tokens := seededStore()
	err := protectErr(t, newTestContext(t, "", ""), tokens, store)
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindNoCredential {
		t.Errorf("err = %v, want no credential", err)
	}
}

func TestProtectBadToken(t *testing.T) {
	store, _, tokens := seededStore()
	err := protectErr(t, newTestContext(t, "Bearer garbage", ""), tokens, store)
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindTokenInvalid {
		t.Errorf("err = %v, want token invalid", err)
	}
}

func TestProtectSubjectGone(t *testing.T) {
	store, _, tokens := seededStore()
	raw, _ := tokens.Issue(primitive.NewObjectID().Hex())
	err := protectErr(t, newTestContext(t, "Bearer "+raw, ""), tokens, store)
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindSubjectGone {
		t.Errorf("err = %v, want subject gone", err)
	}
}

func TestProtectStaleToken(t *testing.T) {
	store, u, tokens := seededStore()
	raw, _ := tokens.Issue(u.ID.Hex())
	u.PasswordChangedAt = time.Now().Add(time.Hour)
	err := protectErr(t, newTestContext(t, "Bearer "+raw, ""), tokens, store)
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindStaleToken {
		t.Errorf("err = %v, want stale token", err)
	}
}

func TestProtectSuccessSetsUser(t *testing.T) {
	store, u, tokens := seededStore()
	raw, _ := tokens.Issue(u.ID.Hex())
	c := newTestContext(t, "Bearer "+raw, "")
	err := Protect(tokens, store)(func(c echo.Context) error {
		got := UserFrom(c)
		if got == nil || got.ID != u.ID {
			t.Errorf("context user = %v, want %v", got, u)
		}
		return nil
	})(c)
	if err != nil {
		t.Fatalf("protect rejected a valid session: %v", err)
	}
}

func TestProtectReadsSessionCookie(t *testing.T) {
	store, u, tokens := seededStore()
	raw, _ := tokens.Issue(u.ID.Hex())
	c := newTestContext(t, "", raw)
	err := Protect(tokens, store)(func(echo.Context) error { return nil })(c)
	if err != nil {
		t.Fatalf("protect rejected a cookie session: %v", err)
	}
}

func TestProtectIgnoresLoggedOutCookie(t *testing.T) {
	store, _, tokens := seededStore()
	err := protectErr(t, newTestContext(t, "", "loggedout"), tokens, store)
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindNoCredential {
		t.Errorf("err = %v, want no credential", err)
	}
}

func TestCurrentUserNeverRejects(t *testing.T) {
	store, u, tokens := seededStore()
	for name, header := range map[string]string{
		"anonymous": "",
		"garbage":   "Bearer garbage",
	} {
		c := newTestContext(t, header, "")
		err := CurrentUser(tokens, store)(func(c echo.Context) error {
			if UserFrom(c) != nil {
				t.Errorf("%s: unexpected user on context", name)
			}
			return nil
		})(c)
		if err != nil {
			t.Errorf("%s: current-user errored: %v", name, err)
		}
	}

	raw, _ := tokens.Issue(u.ID.Hex())
	c := newTestContext(t, "Bearer "+raw, "")
	_ = CurrentUser(tokens, store)(func(c echo.Context) error {
		if got := UserFrom(c); got == nil || got.ID != u.ID {
			t.Errorf("valid session: context user = %v", got)
		}
		return nil
	})(c)
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		role    string
		allowed []string
		wantOK  bool
	}{
		{model.RoleAdmin, []string{model.RoleAdmin, model.RoleLeadGuide}, true},
		{model.RoleLeadGuide, []string{model.RoleAdmin, model.RoleLeadGuide}, true},
		{model.RoleGuide, []string{model.RoleAdmin, model.RoleLeadGuide}, false},
		{model.RoleUser, []string{model.RoleAdmin}, false},
	}
	for _, tc := range cases {
		c := newTestContext(t, "", "")
		c.Set("user", &model.User{Role: tc.role})
		err := RequireRole(tc.allowed...)(func(echo.Context) error { return nil })(c)
		if tc.wantOK && err != nil {
			t.Errorf("role %s vs %v: unexpected rejection %v", tc.role, tc.allowed, err)
		}
		if !tc.wantOK {
			e, ok := apperr.As(err)
			if !ok || e.Kind != apperr.KindForbidden {
				t.Errorf("role %s vs %v: err = %v, want forbidden", tc.role, tc.allowed, err)
			}
		}
	}
}

func TestRequireRoleWithoutSession(t *testing.T) {
	err := RequireRole(model.RoleAdmin)(func(echo.Context) error { return nil })(newTestContext(t, "", ""))
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindNoCredential {
		t.Errorf("err = %v, want no credential", err)
	}
}

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func requestWithRoles(roles ...string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserRolesKey, roles))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestRequireRole_Allowed(t *testing.T) {
	c, rec := requestWithRoles(RoleAssistant)
	if err := RequireRole(RoleDentist, RoleAssistant)(okHandler)(c); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	c, _ := requestWithRoles(RoleAssistant)
	err := RequireRole(RoleDentist)(okHandler)(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", httpErr.Code)
	}
}

func TestRequireRole_NoRoles(t *testing.T) {
	c, _ := requestWithRoles()
	if err := RequireRole(RoleDentist)(okHandler)(c); err == nil {
		t.Error("expected error for a user without roles")
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	c, _ := requestWithRoles(RoleAdmin)
	if err := RequireRole(RoleDentist)(okHandler)(c); err != nil {
		t.Error("admin should bypass role checks")
	}
}

package controller_test

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/koya-caller/internal/controller"
	appErrors "github.com/unclebandit/koya-caller/internal/errors"
	"github.com/unclebandit/koya-caller/internal/model"
	"github.com/unclebandit/koya-caller/internal/service"
)

type MockDNCRepo struct {
	entries []*model.DNCEntry
}

func (m *MockDNCRepo) IsBlocked(ctx context.Context, tenantID, phone string, now time.Time) (bool, error) {
	for _, e := range m.entries {
		if e.TenantID == tenantID && e.PhoneNumber == phone && e.ActiveAt(now) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockDNCRepo) Add(ctx context.Context, e *model.DNCEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *MockDNCRepo) Remove(ctx context.Context, tenantID, phone string) error {
	for i, e := range m.entries {
		if e.TenantID == tenantID && e.PhoneNumber == phone {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return appErrors.NewDNCEntryNotFound(phone)
}

func (m *MockDNCRepo) List(ctx context.Context, tenantID, search string, offset, limit int) ([]*model.DNCEntry, int, error) {
	out := []*model.DNCEntry{}
	for _, e := range m.entries {
		if e.TenantID == tenantID && strings.Contains(e.PhoneNumber, search) {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

type MockConsentRepo struct {
	granted map[string]bool
}

func (m *MockConsentRepo) Get(ctx context.Context, tenantID, phone string) (*model.Consent, error) {
	return nil, nil
}

func (m *MockConsentRepo) Grant(ctx context.Context, tenantID, phone string, at time.Time) error {
	m.granted[tenantID+"|"+phone] = true
	return nil
}

func (m *MockConsentRepo) Revoke(ctx context.Context, tenantID, phone string, at time.Time) error {
	m.granted[tenantID+"|"+phone] = false
	return nil
}

func newDNCRouter(dnc *MockDNCRepo, consent *MockConsentRepo) http.Handler {
	ctrl := &controller.DNCController{Compliance: &service.ComplianceGate{
		DNCRepo:     dnc,
		ConsentRepo: consent,
		Now:         func() time.Time { return time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC) },
	}}
	r := chi.NewRouter()
	r.Route("/tenants/{tenantID}", func(r chi.Router) {
		r.Post("/dnc", ctrl.Add)
		r.Get("/dnc", ctrl.List)
		r.Delete("/dnc/{phone}", ctrl.Remove)
		r.Post("/consent", ctrl.SetConsent)
	})
	return r
}

func TestDNCAddListRemove(t *testing.T) {
	repo := &MockDNCRepo{}
	h := newDNCRouter(repo, &MockConsentRepo{granted: map[string]bool{}})

	w, res := do(t, h, "POST", "/tenants/t1/dnc", map[string]interface{}{"phone_number": "(555) 123-4567"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if res["phone_number"] != "+15551234567" || res["reason"] != string(model.DNCReasonManual) {
		t.Errorf("unexpected entry %v", res)
	}

	w, res = do(t, h, "GET", "/tenants/t1/dnc?search=555", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if data := res["data"].([]interface{}); len(data) != 1 {
		t.Errorf("expected 1 entry, got %v", data)
	}

	w, _ = do(t, h, "DELETE", "/tenants/t1/dnc/5551234567", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if len(repo.entries) != 0 {
		t.Errorf("expected entry removed, got %d left", len(repo.entries))
	}

	w, _ = do(t, h, "DELETE", "/tenants/t1/dnc/5551234567", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", w.Code)
	}
}

func TestDNCAddRejectsBadInput(t *testing.T) {
	h := newDNCRouter(&MockDNCRepo{}, &MockConsentRepo{granted: map[string]bool{}})

	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"bad phone", map[string]interface{}{"phone_number": "12"}},
		{"unknown reason", map[string]interface{}{"phone_number": "+15551234567", "reason": "because"}},
		{"expiry in the past", map[string]interface{}{"phone_number": "+15551234567", "expires_at": "2026-03-01T00:00:00Z"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, _ := do(t, h, "POST", "/tenants/t1/dnc", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

func TestSetConsent(t *testing.T) {
	consent := &MockConsentRepo{granted: map[string]bool{}}
	h := newDNCRouter(&MockDNCRepo{}, consent)

	w, _ := do(t, h, "POST", "/tenants/t1/consent", map[string]interface{}{"phone_number": "555-123-4567", "granted": true})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !consent.granted["t1|+15551234567"] {
		t.Errorf("expected consent granted, got %v", consent.granted)
	}

	do(t, h, "POST", "/tenants/t1/consent", map[string]interface{}{"phone_number": "555-123-4567", "granted": false})
	if consent.granted["t1|+15551234567"] {
		t.Errorf("expected consent revoked")
	}
}

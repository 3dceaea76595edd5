package settings

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/labdesk/labdesk/internal/platform/apperr"
	"github.com/labdesk/labdesk/internal/platform/blobstore"
	"github.com/labdesk/labdesk/internal/platform/db"
)

type mockRepo struct {
	settings *Settings
	lab      *Lab
	saveErr  error
}

func (m *mockRepo) GetSettings(_ context.Context) (*Settings, error) {
	if m.settings == nil {
		m.settings = Defaults()
	}
	cp := *m.settings
	return &cp, nil
}

func (m *mockRepo) SaveSettings(_ context.Context, s *Settings) error {
	cp := *s
	m.settings = &cp
	return nil
}

func (m *mockRepo) GetLab(_ context.Context) (*Lab, error) {
	if m.lab == nil {
		m.lab = &Lab{}
	}
	cp := *m.lab
	return &cp, nil
}

func (m *mockRepo) SaveLab(_ context.Context, l *Lab) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *l
	m.lab = &cp
	return nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func newTestService(maxSize int64) (*Service, *mockRepo, *blobstore.MemoryStore) {
	repo := &mockRepo{}
	store := blobstore.NewMemoryStore(maxSize)
	return NewService(repo, store, zerolog.Nop()), repo, store
}

func f64(v float64) *float64 { return &v }
func bptr(v bool) *bool      { return &v }
func sptr(v string) *string  { return &v }

func TestService_GetSettings_LazyDefaults(t *testing.T) {
	svc, _, _ := newTestService(0)

	s, err := svc.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TaxPercentage != 0 || s.TaxEnabled || s.PaymentModeEnabled || s.Currency != "INR" {
		t.Errorf("unexpected defaults %+v", s)
	}
}

func TestService_UpdateSettings(t *testing.T) {
	svc, repo, _ := newTestService(0)
	ctx := context.Background()

	s, err := svc.UpdateSettings(ctx, &SettingsInput{TaxPercentage: f64(18), TaxEnabled: bptr(true), Currency: sptr(" usd ")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TaxPercentage != 18 || !s.TaxEnabled || s.Currency != "USD" {
		t.Errorf("unexpected settings %+v", s)
	}
	if repo.settings.TaxPercentage != 18 {
		t.Error("expected settings to be saved")
	}

	s, _ = svc.UpdateSettings(ctx, &SettingsInput{PaymentModeEnabled: bptr(true)})
	if s.TaxPercentage != 18 || !s.PaymentModeEnabled {
		t.Errorf("expected partial update to keep other fields, got %+v", s)
	}
}

func TestService_UpdateSettings_TaxRange(t *testing.T) {
	svc, _, _ := newTestService(0)
	for _, v := range []float64{-1, 100.01, 250} {
		if _, err := svc.UpdateSettings(context.Background(), &SettingsInput{TaxPercentage: f64(v)}); !apperr.IsValidation(err) {
			t.Errorf("tax %v: expected validation error, got %v", v, err)
		}
	}
	for _, v := range []float64{0, 100} {
		if _, err := svc.UpdateSettings(context.Background(), &SettingsInput{TaxPercentage: f64(v)}); err != nil {
			t.Errorf("tax %v: unexpected error %v", v, err)
		}
	}
}

func TestService_UpdateLab(t *testing.T) {
	svc, _, _ := newTestService(0)
	ctx := context.Background()

	lab, err := svc.UpdateLab(ctx, &LabInput{Name: sptr(" City Diagnostics "), GSTNumber: sptr("29abcde1234f1z5"), Email: sptr("lab@example.com")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lab.Name != "City Diagnostics" || lab.GSTNumber != "29ABCDE1234F1Z5" {
		t.Errorf("unexpected lab %+v", lab)
	}

	if _, err := svc.UpdateLab(ctx, &LabInput{Email: sptr("not-an-email")}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestService_UploadLogo(t *testing.T) {
	svc, repo, store := newTestService(1 << 20)
	ctx := db.WithTenant(context.Background(), "acme")

	lab, err := svc.UploadLogo(ctx, "image/png", bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(lab.LogoPath, "/uploads/acme/logo-") || !strings.HasSuffix(lab.LogoPath, ".png") {
		t.Errorf("unexpected logo path %s", lab.LogoPath)
	}
	first := keyFromPath(lab.LogoPath)
	if data, ok := store.Get(first); !ok || !bytes.Equal(data, pngHeader) {
		t.Error("expected logo bytes to be stored intact")
	}

	lab, err = svc.UploadLogo(ctx, "image/png", bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.Get(first); ok {
		t.Error("expected previous logo to be removed")
	}
	if repo.lab.LogoPath != lab.LogoPath {
		t.Error("expected new logo path to be saved")
	}
}

func TestService_UploadLogo_RejectsNonImage(t *testing.T) {
	svc, _, _ := newTestService(1 << 20)

	_, err := svc.UploadLogo(context.Background(), "image/png", strings.NewReader("%PDF-1.4 not an image"))
	if !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	_, err = svc.UploadLogo(context.Background(), "image/png", strings.NewReader(""))
	if !apperr.IsValidation(err) {
		t.Errorf("expected validation error for empty file, got %v", err)
	}
}

func TestService_UploadLogo_TooLarge(t *testing.T) {
	svc, _, _ := newTestService(16)

	_, err := svc.UploadLogo(context.Background(), "image/png", bytes.NewReader(pngHeader))
	if !errors.Is(err, blobstore.ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestService_UploadLogo_SaveFailureRemovesBlob(t *testing.T) {
	svc, repo, _ := newTestService(1 << 20)
	repo.saveErr = errors.New("db down")
	ctx := db.WithTenant(context.Background(), "acme")

	if _, err := svc.UploadLogo(ctx, "image/png", bytes.NewReader(pngHeader)); err == nil {
		t.Fatal("expected error")
	}
	if repo.lab.LogoPath != "" {
		t.Error("expected logo path to stay empty")
	}
}

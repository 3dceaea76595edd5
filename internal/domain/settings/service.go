package settings

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labdesk/labdesk/internal/platform/apperr"
	"github.com/labdesk/labdesk/internal/platform/blobstore"
	"github.com/labdesk/labdesk/internal/platform/db"
)

type Service struct {
	repo   Repository
	blobs  blobstore.Store
	logger zerolog.Logger
}

func NewService(repo Repository, blobs blobstore.Store, logger zerolog.Logger) *Service {
	return &Service{repo: repo, blobs: blobs, logger: logger}
}

func (s *Service) GetSettings(ctx context.Context) (*Settings, error) {
	return s.repo.GetSettings(ctx)
}

func (s *Service) UpdateSettings(ctx context.Context, in *SettingsInput) (*Settings, error) {
	cur, err := s.repo.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if in.TaxPercentage != nil {
		if *in.TaxPercentage < 0 || *in.TaxPercentage > 100 {
			return nil, apperr.Validation("tax percentage must be between 0 and 100")
		}
		cur.TaxPercentage = *in.TaxPercentage
	}
	if in.TaxEnabled != nil {
		cur.TaxEnabled = *in.TaxEnabled
	}
	if in.PaymentModeEnabled != nil {
		cur.PaymentModeEnabled = *in.PaymentModeEnabled
	}
	if in.Currency != nil {
		code := strings.ToUpper(strings.TrimSpace(*in.Currency))
		if len(code) != 3 {
			return nil, apperr.Validation("currency must be a 3 letter code")
		}
		cur.Currency = code
	}
	if err := s.repo.SaveSettings(ctx, cur); err != nil {
		return nil, err
	}
	return cur, nil
}

func (s *Service) GetLab(ctx context.Context) (*Lab, error) {
	return s.repo.GetLab(ctx)
}

func (s *Service) UpdateLab(ctx context.Context, in *LabInput) (*Lab, error) {
	lab, err := s.repo.GetLab(ctx)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		lab.Name = strings.TrimSpace(*in.Name)
	}
	if in.Address != nil {
		lab.Address = strings.TrimSpace(*in.Address)
	}
	if in.Phone != nil {
		lab.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				return nil, apperr.Validation("invalid email address")
			}
		}
		lab.Email = email
	}
	if in.GSTNumber != nil {
		lab.GSTNumber = strings.ToUpper(strings.TrimSpace(*in.GSTNumber))
	}
	if err := s.repo.SaveLab(ctx, lab); err != nil {
		return nil, err
	}
	return lab, nil
}

// UploadLogo stores an image as the lab logo and removes the previous one.
// The content type is sniffed from the data; declared is only consulted for
// SVG.
func (s *Service) UploadLogo(ctx context.Context, declared string, content io.Reader) (*Lab, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, apperr.Internal("failed to read upload", err)
	}
	head = head[:n]
	if n == 0 {
		return nil, apperr.Validation("logo file is empty")
	}

	contentType, err := blobstore.DetectImageType(head, declared)
	if err != nil {
		return nil, apperr.Validation("logo must be a png, jpeg, gif, webp or svg image")
	}

	lab, err := s.repo.GetLab(ctx)
	if err != nil {
		return nil, err
	}

	key := logoKey(db.TenantFromContext(ctx), blobstore.ImageTypes[contentType])
	obj, err := s.blobs.Put(ctx, key, contentType, io.MultiReader(bytes.NewReader(head), content))
	if err != nil {
		return nil, err
	}

	previous := lab.LogoPath
	lab.LogoPath = obj.URL
	if err := s.repo.SaveLab(ctx, lab); err != nil {
		_ = s.blobs.Delete(ctx, key)
		return nil, err
	}

	if old := keyFromPath(previous); old != "" {
		if err := s.blobs.Delete(ctx, old); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
			s.logger.Warn().Err(err).Str("key", old).Msg("failed to remove previous logo")
		}
	}
	return lab, nil
}

func logoKey(tenantID, ext string) string {
	if tenantID == "" {
		tenantID = "default"
	}
	return tenantID + "/logo-" + uuid.NewString() + "." + ext
}

// keyFromPath maps a stored "/uploads/<key>" URL back to its blob key.
func keyFromPath(p string) string {
	const prefix = "/uploads/"
	if !strings.HasPrefix(p, prefix) {
		return ""
	}
	return strings.TrimPrefix(p, prefix)
}

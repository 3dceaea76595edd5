package settings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labdesk/labdesk/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) GetSettings(ctx context.Context) (*Settings, error) {
	conn := db.Conn(ctx, r.pool)
	if _, err := conn.Exec(ctx, `INSERT INTO settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING`); err != nil {
		return nil, fmt.Errorf("ensure settings: %w", err)
	}
	var s Settings
	err := conn.QueryRow(ctx, `
		SELECT tax_percentage, tax_enabled, payment_mode_enabled, currency, updated_at
		FROM settings WHERE id = 1`,
	).Scan(&s.TaxPercentage, &s.TaxEnabled, &s.PaymentModeEnabled, &s.Currency, &s.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return &s, nil
}

func (r *repoPG) SaveSettings(ctx context.Context, s *Settings) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO settings (id, tax_percentage, tax_enabled, payment_mode_enabled, currency)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			tax_percentage = EXCLUDED.tax_percentage,
			tax_enabled = EXCLUDED.tax_enabled,
			payment_mode_enabled = EXCLUDED.payment_mode_enabled,
			currency = EXCLUDED.currency,
			updated_at = NOW()
		RETURNING updated_at`,
		s.TaxPercentage, s.TaxEnabled, s.PaymentModeEnabled, s.Currency,
	).Scan(&s.UpdatedAt)
	return db.Classify(err, "settings")
}

func (r *repoPG) GetLab(ctx context.Context) (*Lab, error) {
	conn := db.Conn(ctx, r.pool)
	if _, err := conn.Exec(ctx, `INSERT INTO lab_profile (id) VALUES (1) ON CONFLICT (id) DO NOTHING`); err != nil {
		return nil, fmt.Errorf("ensure lab profile: %w", err)
	}
	var l Lab
	err := conn.QueryRow(ctx, `
		SELECT name, address, phone, email, gst_number, logo_path, updated_at
		FROM lab_profile WHERE id = 1`,
	).Scan(&l.Name, &l.Address, &l.Phone, &l.Email, &l.GSTNumber, &l.LogoPath, &l.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get lab profile: %w", err)
	}
	return &l, nil
}

func (r *repoPG) SaveLab(ctx context.Context, l *Lab) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO lab_profile (id, name, address, phone, email, gst_number, logo_path)
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			phone = EXCLUDED.phone,
			email = EXCLUDED.email,
			gst_number = EXCLUDED.gst_number,
			logo_path = EXCLUDED.logo_path,
			updated_at = NOW()
		RETURNING updated_at`,
		l.Name, l.Address, l.Phone, l.Email, l.GSTNumber, l.LogoPath,
	).Scan(&l.UpdatedAt)
	return db.Classify(err, "lab profile")
}

package settings

import "time"

const DefaultCurrency = "INR"

// Settings is the per-tenant configuration singleton.
type Settings struct {
	TaxPercentage      float64   `json:"taxPercentage"`
	TaxEnabled         bool      `json:"taxEnabled"`
	PaymentModeEnabled bool      `json:"paymentModeEnabled"`
	Currency           string    `json:"currency"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Defaults returns the settings a tenant starts with.
func Defaults() *Settings {
	return &Settings{Currency: DefaultCurrency}
}

type SettingsInput struct {
	TaxPercentage      *float64 `json:"taxPercentage"`
	TaxEnabled         *bool    `json:"taxEnabled"`
	PaymentModeEnabled *bool    `json:"paymentModeEnabled"`
	Currency           *string  `json:"currency"`
}

// Lab is the letterhead printed on bills and reports.
type Lab struct {
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	GSTNumber string    `json:"gstNumber"`
	LogoPath  string    `json:"logoPath"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type LabInput struct {
	Name      *string `json:"name"`
	Address   *string `json:"address"`
	Phone     *string `json:"phone"`
	Email     *string `json:"email"`
	GSTNumber *string `json:"gstNumber"`
}

package settings

import "context"

// Repository reads and writes the singleton rows. Reads create the row with
// defaults when it does not exist yet.
type Repository interface {
	GetSettings(ctx context.Context) (*Settings, error)
	SaveSettings(ctx context.Context, s *Settings) error
	GetLab(ctx context.Context) (*Lab, error)
	SaveLab(ctx context.Context, l *Lab) error
}

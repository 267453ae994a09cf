package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Archiver stores imported roster files as raw Cloudinary assets.
type Archiver struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Cloudinary archiver.
func New(cfg Config, logger zerolog.Logger) (*Archiver, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Archiver{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary_archiver").Logger(),
		now:    time.Now,
	}, nil
}

// Archive uploads the roster as a raw asset and returns its secure URL.
func (a *Archiver) Archive(ctx context.Context, name string, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       strings.Trim(a.folder, "/"),
		PublicID:     BuildPublicID(name, a.now()),
		ResourceType: "raw",
	}

	result, err := a.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to archive roster: %w", err)
	}

	a.logger.Info().Str("public_id", result.PublicID).Msg("roster archived to cloudinary")

	return result.SecureURL, nil
}

// BuildPublicID derives a stable, URL-safe asset id; raw assets keep their extension.
func BuildPublicID(name string, at time.Time) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "roster"
	}
	if ext == "" {
		ext = ".csv"
	}

	return fmt.Sprintf("%s-%d%s", base, at.Unix(), ext)
}

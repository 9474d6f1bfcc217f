// Package remote selects the RemoteStore driver named by configuration.
package remote

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SscSPs/kiosc_finance_app/internal/adapters/remote/fs"
	"github.com/SscSPs/kiosc_finance_app/internal/adapters/remote/github"
	"github.com/SscSPs/kiosc_finance_app/internal/adapters/remote/memory"
	"github.com/SscSPs/kiosc_finance_app/internal/adapters/remote/s3"
	portsrepo "github.com/SscSPs/kiosc_finance_app/internal/core/ports/repositories"
	"github.com/SscSPs/kiosc_finance_app/internal/platform/config"
)

// Open builds the remote store for cfg.RemoteDriver.
func Open(ctx context.Context, cfg *config.Config) (portsrepo.RemoteStore, error) {
	slog.Info("Opening remote store", slog.String("driver", cfg.RemoteDriver))
	switch cfg.RemoteDriver {
	case github.DriverName, "":
		return github.NewClient(github.Config{
			Owner:      cfg.GitHub.Owner,
			Repository: cfg.GitHub.Repository,
			Branch:     cfg.GitHub.Branch,
			DataPath:   cfg.GitHub.DataPath,
			Token:      cfg.GitHub.Token,
			APIBaseURL: cfg.GitHub.APIBaseURL,
			RawBaseURL: cfg.GitHub.RawBaseURL,
			Timeout:    cfg.RemoteTimeout,
		})
	case s3.DriverName:
		return s3.New(ctx, s3.Config{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			Prefix:    cfg.S3.Prefix,
			PathStyle: cfg.S3.PathStyle,
		})
	case fs.DriverName:
		return fs.New(cfg.FSDataDir)
	case memory.DriverName:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown remote driver %q", cfg.RemoteDriver)
	}
}

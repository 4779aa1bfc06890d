package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sethvargo/go-retry"

	"github.com/classbridge/chatkit/internal/config"
	"github.com/classbridge/chatkit/internal/domain"
	"github.com/classbridge/chatkit/internal/identity"
	"github.com/classbridge/chatkit/internal/notify"
	"github.com/classbridge/chatkit/internal/rest"
	"github.com/classbridge/chatkit/internal/tui"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	self, err := identity.FromToken(cfg.Auth.Token)
	if err != nil {
		slog.Error("Failed to read access token", "error", err)
		os.Exit(1)
	}
	slog.Info("Session user resolved", "user_id", self.UserID, "full_name", self.FullName)

	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				slog.Error("Metrics listener failed", "addr", cfg.Metrics.Addr, "error", err)
			}
		}()
	}

	restClient := rest.NewClient(cfg, self.Token)

	groups, err := fetchGroups(context.Background(), restClient)
	if err != nil {
		slog.Error("Failed to fetch group list", "error", err)
		os.Exit(1)
	}
	slog.Info("Group list fetched", "count", len(groups))

	// UI repaints are driven through this channel; the SDK callbacks
	// push into it from their own goroutines.
	events := make(chan tea.Msg, 16)
	notifyUI := func() {
		select {
		case events <- tui.Refresh{}:
		default:
		}
	}

	store := notify.NewStore(notifyUI)
	notifier := notify.NewClient(cfg, self, store)
	notifier.Start()
	defer notifier.Stop()

	if err := tui.Run(cfg, self, restClient, store, groups, events); err != nil {
		slog.Error("UI exited with error", "error", err)
		os.Exit(1)
	}
}

// fetchGroups retries the startup group-list fetch; the backend may still
// be warming up when the client launches.
func fetchGroups(ctx context.Context, restClient *rest.Client) ([]domain.Group, error) {
	var groups []domain.Group

	backoff := retry.WithMaxRetries(3, retry.NewConstant(2*time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		groups, err = restClient.Groups(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	return groups, err
}

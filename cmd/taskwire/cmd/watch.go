package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tidelock/taskwire/pkg/taskwire/client"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect to a relay and log sync activity",
	Long: `Connect to a sync relay as a device and log everything that happens:
broadcasts from other devices, reload triggers, link notifications,
and connection state changes.

Examples:
  taskwire watch --url ws://localhost:8080/ws --user alice --account acct-1
  taskwire watch --host app.example.com --user alice --account acct-1`,
	RunE: runWatch,
}

var (
	watchURL    string
	watchHost   string
	watchSecure bool
	watchDevice string
	watchUser   string
	watchAcct   string
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchURL, "url", "", "full WebSocket URL of the relay")
	watchCmd.Flags().StringVar(&watchHost, "host", "", "page host to derive the relay URL from")
	watchCmd.Flags().BoolVar(&watchSecure, "secure", false, "use wss when deriving from --host")
	watchCmd.Flags().StringVar(&watchDevice, "device", "", "device id (random when omitted)")
	watchCmd.Flags().StringVar(&watchUser, "user", "", "user id")
	watchCmd.Flags().StringVar(&watchAcct, "account", "", "app user (account) id")

	watchCmd.MarkFlagRequired("user")
	watchCmd.MarkFlagRequired("account")
}

func runWatch(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	if watchURL == "" && watchHost == "" {
		return fmt.Errorf("either --url or --host is required")
	}
	if watchDevice == "" {
		watchDevice = uuid.NewString()
	}

	builder := client.NewClient().
		WithLogger(logger).
		WithIdentity(&staticIdentity{device: watchDevice, user: watchUser, account: watchAcct}).
		WithTodoCollaborator(&loggingTodos{logger: logger}).
		WithNotesCollaborator(&loggingNotes{logger: logger}).
		WithLinkNotifier(&loggingLinks{logger: logger}).
		WithFallbackNotifier(&loggingFallback{logger: logger}).
		WithUiNotifier(&loggingUi{logger: logger})

	if watchURL != "" {
		builder.WithURL(watchURL)
	} else {
		builder.WithPageLocation(watchHost, watchSecure)
	}

	syncClient, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to build client: %w", err)
	}

	ctx := context.Background()
	if err := syncClient.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	logger.Info("Watching for sync activity",
		zap.String("device_id", watchDevice),
		zap.String("app_user_id", watchAcct),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	return syncClient.Close()
}

// staticIdentity is a fixed identity for command line sessions.
type staticIdentity struct {
	device  string
	user    string
	account string
}

func (s *staticIdentity) DeviceID() string      { return s.device }
func (s *staticIdentity) CurrentUserID() string { return s.user }
func (s *staticIdentity) AppUserID() string     { return s.account }

// The logging collaborators below print sync activity instead of
// maintaining local state.

type loggingTodos struct {
	logger *zap.Logger
}

func (l *loggingTodos) ClearCache() {
	l.logger.Info("Todo cache cleared")
}

func (l *loggingTodos) LoadForDateAndUser(ctx context.Context, date, userID string) error {
	l.logger.Info("Todo reload requested",
		zap.String("date", date),
		zap.String("user_id", userID),
	)
	return nil
}

func (l *loggingTodos) OnBroadcast(ctx context.Context, event string, data json.RawMessage) {
	l.logger.Info("Todo broadcast",
		zap.String("event", event),
		zap.ByteString("data", data),
	)
}

type loggingNotes struct {
	logger *zap.Logger
}

func (l *loggingNotes) LoadForUser(ctx context.Context, userID string) error {
	l.logger.Info("Notes reload requested", zap.String("user_id", userID))
	return nil
}

func (l *loggingNotes) OnBroadcast(ctx context.Context, event string, data json.RawMessage) {
	l.logger.Info("Notes broadcast",
		zap.String("event", event),
		zap.ByteString("data", data),
	)
}

type loggingLinks struct {
	logger *zap.Logger
}

func (l *loggingLinks) OnLinkRequestReceived(ctx context.Context, data json.RawMessage) {
	l.logger.Info("Link request received", zap.ByteString("data", data))
}

func (l *loggingLinks) OnInvitationAccepted(ctx context.Context, data json.RawMessage) {
	l.logger.Info("Link invitation accepted", zap.ByteString("data", data))
}

func (l *loggingLinks) OnInvitationRejected(ctx context.Context, data json.RawMessage) {
	l.logger.Info("Link invitation rejected", zap.ByteString("data", data))
}

func (l *loggingLinks) OnLinkCancelled(ctx context.Context, data json.RawMessage) {
	l.logger.Info("Link cancelled", zap.ByteString("data", data))
}

func (l *loggingLinks) OnLinkEstablished(ctx context.Context, data json.RawMessage) {
	l.logger.Info("Link established", zap.ByteString("data", data))
}

func (l *loggingLinks) OnLinkSyncUpdate(ctx context.Context, data json.RawMessage) {
	l.logger.Info("Link sync update", zap.ByteString("data", data))
}

type loggingFallback struct {
	logger *zap.Logger
}

func (l *loggingFallback) SwitchToPolling() {
	l.logger.Warn("Reconnection exhausted, switching to polling")
}

type loggingUi struct {
	logger *zap.Logger
}

func (l *loggingUi) ShowSyncMessage(text string) {
	l.logger.Info("Sync message", zap.String("text", text))
}

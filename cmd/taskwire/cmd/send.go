package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tidelock/taskwire/pkg/taskwire/client"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <request-type> [json-payload]",
	Short: "Send one request to a relay and print the response",
	Long: `Connect to a sync relay, send a single request, print the response
data as JSON, and disconnect.

Examples:
  taskwire send TODO_CREATE '{"title": "Buy milk"}' --url ws://localhost:8080/ws --user alice --account acct-1
  taskwire send LINK_CHECK_STATUS --url ws://localhost:8080/ws --user alice --account acct-1`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSend,
}

var (
	sendURL     string
	sendDevice  string
	sendUser    string
	sendAcct    string
	sendTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendURL, "url", "", "full WebSocket URL of the relay")
	sendCmd.Flags().StringVar(&sendDevice, "device", "", "device id (random when omitted)")
	sendCmd.Flags().StringVar(&sendUser, "user", "", "user id")
	sendCmd.Flags().StringVar(&sendAcct, "account", "", "app user (account) id")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 15*time.Second, "how long to wait for the response")

	sendCmd.MarkFlagRequired("url")
	sendCmd.MarkFlagRequired("user")
	sendCmd.MarkFlagRequired("account")
}

func runSend(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	requestType := args[0]
	var payload any
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &payload); err != nil {
			return fmt.Errorf("payload is not valid JSON: %w", err)
		}
	}

	if sendDevice == "" {
		sendDevice = uuid.NewString()
	}

	syncClient, err := client.NewClient().
		WithURL(sendURL).
		WithLogger(logger).
		WithIdentity(&staticIdentity{device: sendDevice, user: sendUser, account: sendAcct}).
		WithRequestTimeout(sendTimeout).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build client: %w", err)
	}
	defer syncClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := syncClient.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	data, err := syncClient.Request(ctx, requestType, payload)
	if err != nil {
		return err
	}

	if len(data) == 0 {
		fmt.Println("{}")
		return nil
	}
	fmt.Println(string(data))
	return nil
}

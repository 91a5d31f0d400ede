package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tsarna/ddp/pkg/ddp/client"
	"github.com/tsarna/ddp/pkg/ddp/message"
	"go.uber.org/zap"
)

// callCmd represents the call command
var callCmd = &cobra.Command{
	Use:   "call <websocket-url> <method> [params...]",
	Short: "Call a remote method and print its result",
	Long: `Connect to a DDP server, call a method and print the result as JSON.

Each parameter is parsed as JSON when possible and sent as a plain string
otherwise. The URL may be given as "" to use the configured one.

Examples:
  ddp call ws://localhost:3000/websocket getServerTime
  ddp call ws://localhost:3000/websocket tasks.insert '{"text":"milk"}'
  ddp call ws://localhost:3000/websocket add 1 2`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCall,
}

var callTimeout time.Duration

func init() {
	rootCmd.AddCommand(callCmd)

	callCmd.Flags().DurationVar(&callTimeout, "timeout", 30*time.Second, "time to wait for the result")
}

func runCall(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}

	logger, err := setupLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	method := args[1]
	params := parseParams(args[2:])

	c, err := connect(cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Disconnect()

	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()

	logger.Debug("Calling method", zap.String("method", method), zap.Any("params", params))

	result, err := c.Call(ctx, method, params...)
	if err != nil {
		var perr *message.ProtocolError
		if errors.As(err, &perr) && perr.IsAuthError() {
			return fmt.Errorf("%s: not authorized: %w", method, err)
		}
		if errors.Is(err, client.ErrDisconnected) {
			return fmt.Errorf("%s: connection lost before the result arrived", method)
		}
		return fmt.Errorf("%s: %w", method, err)
	}

	out, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

// parseParams treats each argument as JSON, falling back to a string.
func parseParams(args []string) []any {
	params := make([]any, 0, len(args))
	for _, arg := range args {
		var v any
		if err := json.Unmarshal([]byte(arg), &v); err != nil {
			v = arg
		}
		params = append(params, v)
	}
	return params
}

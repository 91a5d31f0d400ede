package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/amir-yaghoubi/mqttpattern"
	"github.com/spf13/cobra"
	"github.com/tsarna/ddp/pkg/ddp/client"
	"github.com/tsarna/ddp/pkg/ddp/collection"
	"github.com/tsarna/ddp/pkg/ddp/handlers"
	"github.com/tsarna/ddp/pkg/ddp/message"
	"github.com/tsarna/ddp/pkg/ddp/shared"
	"github.com/tsarna/go-structdiff"
	"go.uber.org/zap"
)

// subscribeCmd represents the subscribe command
var subscribeCmd = &cobra.Command{
	Use:   "subscribe <websocket-url> <publication> [params...]",
	Short: "Subscribe to a publication and print its data messages",
	Long: `Subscribe to a publication on a DDP server and print every data
message (added, changed, removed, addedBefore, movedBefore) to stdout until
interrupted or the connection is lost.

Parameters are parsed the same way as for the call command. Each output line
holds the message kind, the document topic (<collection>/<id>) and the frame.

--match keeps only documents whose topic matches one of the given
MQTT-style patterns. --diff prints the change to the cached document instead
of the frame.

Examples:
  ddp subscribe ws://localhost:3000/websocket tasks
  ddp subscribe ws://localhost:3000/websocket tasks.byOwner '"alice"'
  ddp subscribe --match 'tasks/#' --diff ws://localhost:3000/websocket tasks`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSubscribe,
}

var (
	matchPatterns []string
	showDiff      bool
)

func init() {
	rootCmd.AddCommand(subscribeCmd)

	subscribeCmd.Flags().StringSliceVar(&matchPatterns, "match", nil, "only print documents whose topic matches (repeatable)")
	subscribeCmd.Flags().BoolVar(&showDiff, "diff", false, "print document changes instead of frames")
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args[0])
	if err != nil {
		return err
	}

	logger, err := setupLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	name := args[1]
	params := parseParams(args[2:])

	monitor := &exitMonitor{done: make(chan error, 1), logger: logger}
	store := collection.NewStore()
	printer := newFramePrinter(cmd.OutOrStdout(), store, matchPatterns, showDiff)

	c, err := connect(cmd, cfg, logger, func(b *client.ClientBuilder) {
		b.WithMonitor(monitor).
			WithDataHandler(handlers.NewLoggingDataHandler(printer, logger, zap.DebugLevel)).
			WithStore(store)
	})
	if err != nil {
		return err
	}
	defer c.Disconnect()

	id, err := c.Subscribe(ctx, name, params...)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", name, err)
	}
	logger.Info("Subscription ready",
		zap.String("publication", name),
		zap.String("id", id),
		zap.Strings("collections", c.Store().Collections()),
	)

	select {
	case <-ctx.Done():
		logger.Debug("Signal received, exiting")
		if err := c.Unsubscribe(context.Background(), id); err != nil {
			logger.Debug("Unsubscribe failed", zap.Error(err))
		}
		return nil
	case err := <-monitor.done:
		if err != nil {
			return fmt.Errorf("connection lost: %w", err)
		}
		return nil
	}
}

// framePrinter writes one line per data message.
type framePrinter struct {
	out      io.Writer
	store    *collection.Store
	patterns []string
	diff     bool

	// last printed version of each document, by topic
	seen *shared.Dict[string, collection.Document]
}

func newFramePrinter(out io.Writer, store *collection.Store, patterns []string, diff bool) *framePrinter {
	return &framePrinter{
		out:      out,
		store:    store,
		patterns: patterns,
		diff:     diff,
		seen:     shared.NewDict[string, collection.Document](),
	}
}

func (p *framePrinter) OnData(ctx context.Context, msg message.Message) error {
	topic := msg.Collection() + "/" + msg.ID()
	if !p.matches(topic) {
		return nil
	}

	payload := msg.String()
	if p.diff {
		var err error
		if payload, err = p.changes(topic, msg); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(p.out, "%s\t%s\t%s\n", msg.Kind(), topic, payload)
	return err
}

func (p *framePrinter) matches(topic string) bool {
	if len(p.patterns) == 0 {
		return true
	}
	for _, pattern := range p.patterns {
		if mqttpattern.Matches(pattern, topic) {
			return true
		}
	}
	return false
}

// changes diffs the cached document against the version last printed. The
// client applies msg to the store before calling the handler.
func (p *framePrinter) changes(topic string, msg message.Message) (string, error) {
	before, _ := p.seen.Value(topic)
	if before == nil {
		before = collection.Document{}
	}

	after, ok := p.store.Get(msg.Collection(), msg.ID())
	if ok {
		p.seen.Set(topic, after)
	} else {
		after = collection.Document{}
		p.seen.Remove(topic)
	}

	diff, err := structdiff.Diff(map[string]any(before), map[string]any(after))
	if err != nil {
		return "", fmt.Errorf("failed to diff %s: %w", topic, err)
	}

	out, err := json.Marshal(diff)
	if err != nil {
		return "", fmt.Errorf("failed to encode diff for %s: %w", topic, err)
	}
	return string(out), nil
}

// exitMonitor reports the first disconnect.
type exitMonitor struct {
	done   chan error
	logger *zap.Logger
}

func (m *exitMonitor) OnConnect(ctx context.Context, c *client.Client) {}

func (m *exitMonitor) OnDisconnect(ctx context.Context, c *client.Client, err error) {
	select {
	case m.done <- err:
	default:
	}
}

func (m *exitMonitor) OnAuthError(ctx context.Context, c *client.Client, err *message.ProtocolError) {
	m.logger.Warn("Server rejected credentials", zap.Error(err))
}

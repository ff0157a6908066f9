package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/driverfleet/driverfleet/cmd/dfleet-console/app/options"
	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
	"github.com/driverfleet/driverfleet/pkg/log"
	"github.com/driverfleet/driverfleet/pkg/mqtt"
	"github.com/driverfleet/driverfleet/pkg/mqtt/topic"
)

const (
	watchQoS              = 1
	watchUnsubscribeAfter = 5 * time.Second
)

func newWatchCommand(opts *options.ConsoleOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		Short:   "Follow install outcomes and reports published by running updates",
		Example: "  dfleet-console watch --mqtt.broker tcp://broker.lan:1883",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.Config()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cfg.MQTT == nil {
				return fmt.Errorf("watch needs a broker, set --mqtt.broker")
			}

			client, err := mqtt.NewClient(cfg.MQTT)
			if err != nil {
				return fmt.Errorf("failed to create mqtt client: %w", err)
			}
			if err := client.Start(cmd.Context()); err != nil {
				return err
			}
			defer client.Disconnect(context.Background())

			log.Info("Waiting for MQTT broker", "broker", cfg.MQTT.BrokerURL)
			if err := client.AwaitConnection(cmd.Context()); err != nil {
				return fmt.Errorf("broker %s not reachable: %w", cfg.MQTT.BrokerURL, err)
			}

			return newWatcher(cmd.OutOrStdout(), cfg.TopicRoot).run(cmd.Context(), client)
		},
	}
}

// watcher prints what the update commands publish under one topic root.
type watcher struct {
	topics *topic.TopicBuilder

	// mu serializes writes; handlers run concurrently.
	mu  sync.Mutex
	out io.Writer
}

func newWatcher(out io.Writer, root string) *watcher {
	return &watcher{topics: topic.NewTopicBuilder(root), out: out}
}

// run subscribes to every outcome and report and blocks until ctx is done.
func (w *watcher) run(ctx context.Context, sub mqtt.Subscriber) error {
	filters := []struct {
		filter  string
		handler mqtt.MessageHandler
	}{
		{w.topics.OutcomeWildcard(), w.onOutcome},
		{w.topics.ReportWildcard(), w.onReport},
	}

	var subscribed []string
	defer func() {
		uctx, cancel := context.WithTimeout(context.Background(), watchUnsubscribeAfter)
		defer cancel()
		for _, f := range subscribed {
			if err := sub.Unsubscribe(uctx, f); err != nil {
				log.Warn("Failed to unsubscribe", "filter", f, "error", err)
			}
		}
	}()

	for _, f := range filters {
		if err := sub.Subscribe(ctx, f.filter, watchQoS, f.handler); err != nil {
			return err
		}
		subscribed = append(subscribed, f.filter)
	}

	w.mu.Lock()
	fmt.Fprintf(w.out, "watching %s, interrupt to stop\n", path.Dir(w.topics.OutcomeWildcard()))
	w.mu.Unlock()

	<-ctx.Done()
	return nil
}

func (w *watcher) onOutcome(_ context.Context, msg mqtt.Message) {
	var out v1.InstallOutcome
	if err := json.Unmarshal(msg.Payload, &out); err != nil {
		log.Warn("Ignoring malformed outcome", "topic", msg.Topic, "error", err)
		return
	}
	if out.NodeName == "" {
		out.NodeName = path.Base(msg.Topic)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	renderOutcome(w.out, out)
}

func (w *watcher) onReport(_ context.Context, msg mqtt.Message) {
	if path.Base(msg.Topic) == topic.FleetID {
		var fleet v1.FleetReport
		if err := json.Unmarshal(msg.Payload, &fleet); err != nil {
			log.Warn("Ignoring malformed fleet report", "topic", msg.Topic, "error", err)
			return
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		renderFleetReport(w.out, fleet)
		return
	}

	var report v1.NodeReport
	if err := json.Unmarshal(msg.Payload, &report); err != nil {
		log.Warn("Ignoring malformed node report", "topic", msg.Topic, "error", err)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	renderNodeReport(w.out, report)
}

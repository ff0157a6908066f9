package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	v1 "github.com/driverfleet/driverfleet/pkg/api/v1"
	"github.com/driverfleet/driverfleet/pkg/log"
	"github.com/driverfleet/driverfleet/pkg/mqtt"
	"github.com/driverfleet/driverfleet/pkg/mqtt/topic"
)

// Reporter receives every outcome and tally produced by an update. Implementations must not
// block the update for long and report their own failures.
type Reporter interface {
	ReportOutcome(ctx context.Context, node v1.FleetNode, result v1.DeviceResult)
	ReportNode(ctx context.Context, report v1.NodeReport)
	ReportFleet(ctx context.Context, report v1.FleetReport)
}

// NopReporter discards everything.
type NopReporter struct{}

func (NopReporter) ReportOutcome(context.Context, v1.FleetNode, v1.DeviceResult) {}
func (NopReporter) ReportNode(context.Context, v1.NodeReport)                    {}
func (NopReporter) ReportFleet(context.Context, v1.FleetReport)                  {}

// MQTTReporter publishes outcomes and tallies as JSON.
type MQTTReporter struct {
	client  mqtt.Publisher
	topics  *topic.TopicBuilder
	qos     int
	timeout time.Duration
}

var _ Reporter = (*MQTTReporter)(nil)

// NewMQTTReporter publishes through client under the root topic namespace with QoS 1.
func NewMQTTReporter(client mqtt.Publisher, root string) *MQTTReporter {
	return &MQTTReporter{
		client:  client,
		topics:  topic.NewTopicBuilder(root),
		qos:     1,
		timeout: 5 * time.Second,
	}
}

func (r *MQTTReporter) ReportOutcome(ctx context.Context, node v1.FleetNode, result v1.DeviceResult) {
	r.publish(ctx, r.topics.Outcome(node.DisplayName()), result.Outcome)
}

func (r *MQTTReporter) ReportNode(ctx context.Context, report v1.NodeReport) {
	r.publish(ctx, r.topics.Report(report.Node.DisplayName()), report)
}

func (r *MQTTReporter) ReportFleet(ctx context.Context, report v1.FleetReport) {
	r.publish(ctx, r.topics.FleetReport(), report)
}

func (r *MQTTReporter) publish(ctx context.Context, t string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error(err, "Failed to encode report", "topic", t)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.client.Publish(ctx, t, r.qos, false, payload); err != nil {
		log.Error(err, "Failed to publish report", "topic", t)
	}
}

package topic

import (
	"fmt"
	"strings"
)

// Topic segments shared by the console (publisher) and any subscriber of fleet reports.
// Changing them breaks existing subscribers.
const (
	// SuffixOutcome carries one JSON InstallOutcome per attempted device.
	// Structure: {root}/outcome/{node}
	SuffixOutcome = "outcome"

	// SuffixReport carries the JSON NodeReport at the end of a node's update cycle.
	// Structure: {root}/report/{node}
	SuffixReport = "report"

	// FleetID is the identifier used for the fleet-wide tally under SuffixReport.
	FleetID = "_fleet"
)

// TopicBuilder constructs the MQTT topic strings under one root namespace.
type TopicBuilder struct {
	// root is the base namespace for all topics (e.g., "driverfleet/v1").
	root string
}

// NewTopicBuilder creates a new instance of TopicBuilder with the specified root namespace.
func NewTopicBuilder(root string) *TopicBuilder {
	return &TopicBuilder{root: strings.TrimRight(root, "/")}
}

// Outcome returns the topic for install outcomes of one node.
func (b *TopicBuilder) Outcome(node string) string {
	return b.build(SuffixOutcome, Segment(node))
}

// OutcomeWildcard matches the outcomes of every node.
// Result: {root}/outcome/+
func (b *TopicBuilder) OutcomeWildcard() string {
	return b.build(SuffixOutcome, "+")
}

// Report returns the topic for the tally of one node.
func (b *TopicBuilder) Report(node string) string {
	return b.build(SuffixReport, Segment(node))
}

// FleetReport returns the topic for the fleet-wide tally.
func (b *TopicBuilder) FleetReport() string {
	return b.build(SuffixReport, FleetID)
}

// ReportWildcard matches every node report and the fleet report.
// Result: {root}/report/+
func (b *TopicBuilder) ReportWildcard() string {
	return b.build(SuffixReport, "+")
}

// Segment makes an identifier safe to use as a single topic level. Node names are reported by
// the nodes themselves, so separators and wildcards are replaced.
func Segment(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "unknown"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(id)
}

// build is a private helper to construct the final topic string.
// Pattern: {root}/{suffix}/{identifier}
func (b *TopicBuilder) build(suffix, id string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, suffix, id)
}

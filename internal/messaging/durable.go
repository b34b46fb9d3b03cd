package messaging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// mailboxStreamSubjects is the wildcard the MAILBOX stream captures; every
// per-recipient subject (agentplane.mailbox.<agentId>) falls under it, so
// one stream backs every agent's durable mirror.
const mailboxStreamSubjects = "agentplane.mailbox.>"

// DurableMirror republishes every Bus send onto a NATS JetStream subject
// per agent (agentplane.mailbox.<agentId>), so mailbox state can be
// reconstructed after a MessageBus process restart. Publishing through
// JetStream (rather than core NATS pub/sub) is what makes "survives a
// restart" true: core NATS delivers only to subscribers live at publish
// time, so a mailbox not yet replayed would simply drop the message. This
// is a supplemental durability feature beyond spec §4.7's in-memory
// requirement, grounded on ODSapper-CLIAIMONITOR's internal/nats
// StreamManager and dataparency-dev-AI-delegation's nats.go usage.
type DurableMirror struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *slog.Logger
}

// NewDurableMirror connects to a NATS server at url and ensures the
// MAILBOX stream exists, creating it if this is the first run.
func NewDurableMirror(url string, logger *slog.Logger) (*DurableMirror, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("acquiring JetStream context: %w", err)
	}
	d := &DurableMirror{nc: nc, js: js, logger: logger}
	if err := d.ensureStream(); err != nil {
		nc.Close()
		return nil, err
	}
	return d, nil
}

func (d *DurableMirror) ensureStream() error {
	cfg := &nats.StreamConfig{
		Name:      "MAILBOX",
		Subjects:  []string{mailboxStreamSubjects},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	}
	if _, err := d.js.StreamInfo(cfg.Name); err != nil {
		if err != nats.ErrStreamNotFound {
			return fmt.Errorf("inspecting MAILBOX stream: %w", err)
		}
		if _, err := d.js.AddStream(cfg); err != nil {
			return fmt.Errorf("creating MAILBOX stream: %w", err)
		}
		return nil
	}
	_, err := d.js.UpdateStream(cfg)
	return err
}

func subjectFor(agentID string) string {
	return "agentplane.mailbox." + agentID
}

// durableConsumerName derives a JetStream durable consumer name from a
// recipient agent id; JetStream durable names may not contain '.'.
func durableConsumerName(recipient string) string {
	return "mailbox-" + strings.ReplaceAll(recipient, ".", "_")
}

// Mirror publishes msg onto recipient's durable subject via JetStream, so
// it is persisted to the MAILBOX stream regardless of whether a replay
// consumer is currently attached. Failures are logged, not returned: the
// in-memory Bus remains authoritative per spec §4.7, so a durability-mirror
// failure must not fail the send.
func (d *DurableMirror) Mirror(recipient string, msg AgentMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		d.logger.Warn("durable mirror: marshal failed", "error", err)
		return
	}
	if _, err := d.js.Publish(subjectFor(recipient), data); err != nil {
		d.logger.Warn("durable mirror: publish failed", "recipient", recipient, "error", err)
	}
}

// Replay attaches a durable JetStream consumer for recipient and invokes
// handler for every historical message still retained by the stream,
// acking each as delivered, used to rehydrate a Mailbox after a restart.
func (d *DurableMirror) Replay(recipient string, handler func(AgentMessage)) (unsubscribe func() error, err error) {
	sub, err := d.js.Subscribe(subjectFor(recipient), func(m *nats.Msg) {
		var msg AgentMessage
		if err := json.Unmarshal(m.Data, &msg); err != nil {
			d.logger.Warn("durable mirror: unmarshal failed", "error", err)
			_ = m.Ack()
			return
		}
		handler(msg)
		_ = m.Ack()
	}, nats.Durable(durableConsumerName(recipient)), nats.DeliverAll(), nats.AckExplicit())
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", subjectFor(recipient), err)
	}
	return sub.Unsubscribe, nil
}

// Close closes the NATS connection without draining it.
func (d *DurableMirror) Close() {
	d.nc.Close()
}

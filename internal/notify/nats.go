package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Subjects for outbound notifications.
const (
	SubjectAdmin        = "sentinel.notify.admin"
	SubjectSecurityTeam = "sentinel.notify.security_team"
)

// NATSNotifier publishes notifications to NATS subjects for the backend
// delivery pipeline.
type NATSNotifier struct {
	conn *nats.Conn
}

// NewNATSNotifier connects to the given NATS URL.
func NewNATSNotifier(url string) (*NATSNotifier, error) {
	conn, err := nats.Connect(url,
		nats.Name("sentinel-notifier"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("notify: nats connect: %w", err)
	}
	return &NATSNotifier{conn: conn}, nil
}

// NewNATSNotifierFromConn wraps an existing connection.
func NewNATSNotifierFromConn(conn *nats.Conn) *NATSNotifier {
	return &NATSNotifier{conn: conn}
}

func (n *NATSNotifier) NotifyAdmin(ctx context.Context, notification Notification) error {
	return n.publish(ctx, SubjectAdmin, notification)
}

func (n *NATSNotifier) AlertSecurityTeam(ctx context.Context, notification Notification) error {
	return n.publish(ctx, SubjectSecurityTeam, notification)
}

// publish marshals the notification to JSON and publishes it to subject.
func (n *NATSNotifier) publish(ctx context.Context, subject string, notification Notification) error {
	bytes, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("notify: marshal notification: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.conn.Publish(subject, bytes); err != nil {
		return fmt.Errorf("notify: publish %s: %w", subject, err)
	}
	return nil
}

func (n *NATSNotifier) Close() error {
	n.conn.Close()
	return nil
}

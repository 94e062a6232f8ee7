package probe

import (
	"fmt"

	"TrafficGraph/internal/config"

	"github.com/nats-io/nats.go"
	"k8s.io/klog/v2"
)

// MessageHandler processes a received probe message.
type MessageHandler func(msg Message)

// Subscriber is responsible for subscribing to a NATS subject and processing messages.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
}

// NewSubscriber creates a new NATS subscriber.
func NewSubscriber(cfg config.ProbeConfig) (*Subscriber, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}
	klog.Infof("Connected to NATS server at %s", cfg.NATSURL)
	return &Subscriber{nc: nc, subject: cfg.Subject}, nil
}

// Start subscribes to the configured subject. Messages are handed to handler
// one at a time in arrival order; undecodable messages are logged and dropped.
func (s *Subscriber) Start(handler MessageHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(m *nats.Msg) {
		msg, err := Decode(m.Data)
		if err != nil {
			klog.Warningf("Dropping probe message: %v", err)
			return
		}
		handler(msg)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	klog.Infof("Subscribed to '%s'. Waiting for messages...", s.subject)
	return nil
}

// Close unsubscribes and closes the NATS connection.
func (s *Subscriber) Close() {
	if s.sub != nil {
		s.sub.Unsubscribe()
	}
	if s.nc != nil {
		s.nc.Close()
		klog.Info("NATS connection closed.")
	}
}

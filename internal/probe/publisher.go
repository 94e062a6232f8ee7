package probe

import (
	"fmt"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/model"

	"github.com/nats-io/nats.go"
	"k8s.io/klog/v2"
)

// Publisher is responsible for publishing packet tuples to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher creates a new NATS publisher.
func NewPublisher(cfg config.ProbeConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATSURL, err)
	}
	klog.Infof("Connected to NATS server at %s", cfg.NATSURL)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// Publish serializes a tuple and publishes it to the configured subject.
func (p *Publisher) Publish(tuple *model.PacketTuple) error {
	data, err := EncodeTuple(tuple)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

// PublishEnd tells subscribers the capture is complete and flushes the
// connection so the marker is not lost.
func (p *Publisher) PublishEnd(totalPackets, ipPackets uint64) error {
	data, err := EncodeEnd(totalPackets, ipPackets)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return err
	}
	return p.nc.Flush()
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		klog.Info("NATS connection drained and closed.")
	}
}

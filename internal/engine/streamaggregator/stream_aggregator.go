package streamaggregator

import (
	"context"
	"sync"

	"TrafficGraph/internal/config"
	"TrafficGraph/internal/probe"
	"TrafficGraph/internal/session"

	"k8s.io/klog/v2"
)

// StreamAggregator consumes packet tuples published by tg-probe and feeds
// them to a session until the probe sends its end-of-capture marker.
type StreamAggregator struct {
	cfg        config.ProbeConfig
	session    *session.Session
	subscriber *probe.Subscriber

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once
}

// NewStreamAggregator creates a new stream aggregator feeding s.
func NewStreamAggregator(cfg *config.Config, s *session.Session) *StreamAggregator {
	ctx, cancel := context.WithCancel(context.Background())
	return &StreamAggregator{
		cfg:     cfg.Probe,
		session: s,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start connects to NATS and begins processing messages.
func (sa *StreamAggregator) Start() error {
	klog.Infof("StreamAggregator starting for nats: %s", sa.cfg.NATSURL)
	sub, err := probe.NewSubscriber(sa.cfg)
	if err != nil {
		return err
	}
	if err := sub.Start(sa.HandleMessage); err != nil {
		sub.Close()
		return err
	}
	sa.subscriber = sub
	return nil
}

// HandleMessage ingests one probe message. The end marker adds the probe's
// packet counters to the session and closes Done.
func (sa *StreamAggregator) HandleMessage(msg probe.Message) {
	if msg.End {
		sa.session.AddPacketCounts(msg.TotalPackets, msg.IPPackets)
		klog.Infof("End of capture received after %d packets.", msg.TotalPackets)
		sa.doneOnce.Do(func() { close(sa.done) })
		return
	}
	if msg.Tuple != nil {
		sa.session.IngestTuple(sa.ctx, msg.Tuple)
	}
}

// Done is closed when the probe signals the end of its capture.
func (sa *StreamAggregator) Done() <-chan struct{} {
	return sa.done
}

// Stop unsubscribes; the session keeps everything ingested so far.
func (sa *StreamAggregator) Stop() {
	klog.Info("StreamAggregator stopping...")
	if sa.subscriber != nil {
		sa.subscriber.Close()
	}
	sa.cancel()
	klog.Info("StreamAggregator stopped.")
}

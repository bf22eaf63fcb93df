package refresh

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// DefaultChannel is the Redis channel signals are exchanged on.
const DefaultChannel = "tasker:refresh"

const reconnectDelay = time.Second

type message struct {
	Origin string   `json:"origin"`
	Topics []string `json:"topics"`
}

// RedisBridge mirrors broker publishes to a Redis channel and delivers
// signals published by other processes to the local broker.
type RedisBridge struct {
	rc      *redis.Client
	channel string
	broker  *Broker
	origin  string
	logger  *log.Logger
}

// NewRedisBridge attaches a bridge to broker. Call Run to start receiving.
func NewRedisBridge(rc *redis.Client, broker *Broker, channel string, logger *log.Logger) *RedisBridge {
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	br := &RedisBridge{rc: rc, channel: channel, broker: broker, origin: uuid.NewString(), logger: logger}
	broker.SetForwarder(br)
	return br
}

// Forward publishes topics to Redis. Failures are logged; local subscribers
// have already been signalled.
func (br *RedisBridge) Forward(topics []string) {
	data, err := sonic.ConfigStd.Marshal(message{Origin: br.origin, Topics: topics})
	if err != nil {
		br.logger.WithError(err).Error("refresh: marshal signal")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := br.rc.Publish(ctx, br.channel, data).Err(); err != nil {
		br.logger.WithError(err).WithField("channel", br.channel).Warn("refresh: publish signal")
	}
}

// Run receives remote signals until ctx is done, resubscribing when the
// pub/sub connection drops.
func (br *RedisBridge) Run(ctx context.Context) {
	for {
		sub := br.rc.Subscribe(ctx, br.channel)
		br.consume(ctx, sub.Channel())
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		br.logger.WithField("channel", br.channel).Error("refresh: pubsub channel closed, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (br *RedisBridge) consume(ctx context.Context, ch <-chan *redis.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var m message
			if err := sonic.ConfigStd.UnmarshalFromString(msg.Payload, &m); err != nil {
				br.logger.WithError(err).Warn("refresh: unable to parse signal")
				continue
			}
			if m.Origin == br.origin || len(m.Topics) == 0 {
				continue
			}
			br.broker.Deliver(m.Topics...)
		}
	}
}

// Close detaches the bridge from its broker. It does not close the Redis
// client.
func (br *RedisBridge) Close() {
	br.broker.SetForwarder(nil)
}

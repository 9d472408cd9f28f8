package kafka

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"formattransformer/internal/jobspec"
	"formattransformer/internal/logging"
)

func init() { Register("sarama", func() Adapter { return &SaramaDriver{} }) }

type SaramaDriver struct {
	cfg   Config
	cl    sarama.Client
	group sarama.ConsumerGroup

	closeOnce sync.Once
}

func (d *SaramaDriver) Configure(config Config) error {
	d.cfg = config
	sc, err := saramaConfig(config)
	if err != nil {
		return err
	}
	if d.cl, err = sarama.NewClient(config.Brokers, sc); err != nil {
		return fmt.Errorf("kafka-intake: %w", err)
	}
	d.group, err = sarama.NewConsumerGroupFromClient(config.GroupID, d.cl)
	if err != nil {
		_ = d.cl.Close()
		return fmt.Errorf("kafka-intake: %w", err)
	}
	return nil
}

func saramaConfig(config Config) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	if config.Version != "" {
		ver, err := sarama.ParseKafkaVersion(config.Version)
		if err != nil {
			return nil, fmt.Errorf("kafka-intake: %w", err)
		}
		sc.Version = ver
	}
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.AutoCommit.Enable = true
	sc.Consumer.Offsets.AutoCommit.Interval = config.CommitInt
	if config.TLSEn {
		sc.Net.TLS.Enable = true
	}
	if config.SASLUser != "" {
		sc.Net.SASL.Enable = true
		sc.Net.SASL.User, sc.Net.SASL.Password = config.SASLUser, config.SASLPass
	}
	switch config.StartFrom {
	case "oldest":
		sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	return sc, sc.Validate()
}

// Run consumes until ctx is cancelled; rebalances restart the session.
func (d *SaramaDriver) Run(ctx context.Context, handle HandleFunc) error {
	go func() {
		for err := range d.group.Errors() {
			logging.L().Warn("kafka-intake: consumer error", "err", err)
		}
	}()

	handler := &groupHandler{handle: handle}
	for {
		if err := d.group.Consume(ctx, d.cfg.Topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (d *SaramaDriver) Close() error {
	var err error
	d.closeOnce.Do(func() {
		if d.group != nil {
			err = d.group.Close()
		}
		if d.cl != nil && !d.cl.Closed() {
			if cerr := d.cl.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}

type groupHandler struct {
	handle HandleFunc
}

func (*groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (*groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim runs the requests of one partition in order. A message is
// marked after its transform finishes, so a crash replays it.
func (h *groupHandler) ConsumeClaim(
	sess sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	ctx := sess.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			log := logging.L().With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)

			req, err := decodeRequest(msg.Value)
			if err != nil {
				log.Error("kafka-intake: dropping undecodable request", "err", err)
				sess.MarkMessage(msg, "")
				continue
			}
			if err := h.handle(ctx, req); err != nil {
				if ctx.Err() != nil {
					// unmarked, so the next owner of the partition retries it
					return nil
				}
				log.Warn("kafka-intake: transform failed", "err", err)
			}
			sess.MarkMessage(msg, "")
		}
	}
}

func decodeRequest(raw []byte) (jobspec.Request, error) {
	var req jobspec.Request
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, err
	}
	return req, req.Validate()
}

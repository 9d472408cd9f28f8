package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"formattransformer/sink"
)

type Config struct {
	Brokers  []string `yaml:"brokers" koanf:"brokers"`
	Topic    string   `yaml:"topic" koanf:"topic"`
	Acks     int16    `yaml:"required_acks" koanf:"required_acks"` // 0,1,-1
	ClientID string   `yaml:"client_id" koanf:"client_id"`
	Version  string   `yaml:"version" koanf:"version"`
}

// newProducer is swapped for sarama/mocks in tests.
var newProducer = func(brokers []string, sc *sarama.Config) (sarama.SyncProducer, error) {
	return sarama.NewSyncProducer(brokers, sc)
}

type driver struct {
	cfg Config

	mu sync.Mutex
	p  sarama.SyncProducer
}

func (d *driver) Configure(c any) error {
	cfg, ok := c.(Config)
	if !ok {
		return fmt.Errorf("kafka-sink: want Config, got %T", c)
	}
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return errors.New("kafka-sink: brokers and topic are required")
	}
	d.cfg = cfg

	sc, err := saramaConfig(cfg)
	if err != nil {
		return err
	}
	p, err := newProducer(cfg.Brokers, sc)
	if err != nil {
		return fmt.Errorf("kafka-sink: %w", err)
	}
	d.p = p
	return nil
}

func saramaConfig(cfg Config) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.RequiredAcks(cfg.Acks)
	sc.Producer.Return.Successes = true // required by SyncProducer
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}
	if cfg.Version != "" {
		v, err := sarama.ParseKafkaVersion(cfg.Version)
		if err != nil {
			return nil, fmt.Errorf("kafka-sink: %w", err)
		}
		sc.Version = v
	}
	return sc, sc.Validate()
}

func (d *driver) Push(e *sink.Event) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka-sink: %w", err)
	}
	d.mu.Lock()
	p := d.p
	d.mu.Unlock()
	if p == nil {
		return errors.New("kafka-sink: not configured or closed")
	}
	_, _, err = p.SendMessage(&sarama.ProducerMessage{
		Topic: d.cfg.Topic,
		Key:   sarama.StringEncoder(e.ID),
		Value: sarama.ByteEncoder(raw),
	})
	if err != nil {
		return fmt.Errorf("kafka-sink: %w", err)
	}
	return nil
}

func (d *driver) Close() error {
	d.mu.Lock()
	p := d.p
	d.p = nil
	d.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Close()
}

func init() { sink.Register("kafka", func() sink.Adapter { return &driver{} }) }

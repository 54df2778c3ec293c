package kafka

import (
	"sync"
	"time"

	"RProject/tools/errs"

	"github.com/Shopify/sarama"
)

var (
	clientOnce sync.Once

	KafkaClient  sarama.Client
	syncProducer sarama.SyncProducer
)

func defaultConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_8_0_0
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Timeout = 5 * time.Second
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	return cfg
}

// InitKafkaClient connects the shared client.
func InitKafkaClient(brokers []string) error {
	var initErr error
	clientOnce.Do(func() {
		cli, err := sarama.NewClient(brokers, defaultConfig())
		if err != nil {
			initErr = errs.WrapMsg(err, "kafka client", "brokers", brokers)
			return
		}
		KafkaClient = cli
	})
	return initErr
}

// InitSyncProducerFromClient builds the shared sync producer on top of the
// client.
func InitSyncProducerFromClient() error {
	if KafkaClient == nil {
		return errs.New("kafka client not initialized")
	}
	p, err := sarama.NewSyncProducerFromClient(KafkaClient)
	if err != nil {
		return errs.WrapMsg(err, "kafka sync producer")
	}
	syncProducer = p
	return nil
}

// SendSync publishes one record and waits for the broker ack.
func SendSync(topic string, value []byte) error {
	if syncProducer == nil {
		return errs.New("kafka producer not initialized")
	}
	_, _, err := syncProducer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(value),
	})
	return errs.WrapMsg(err, "kafka send", "topic", topic)
}

func CloseKafka() {
	if syncProducer != nil {
		_ = syncProducer.Close()
	}
	if KafkaClient != nil {
		_ = KafkaClient.Close()
	}
}

// Package kafka is the publish side of the transactional outbox: it ships
// outbox rows the worker has claimed to a single Kafka topic, partitioned by
// aggregate ID so consumers see per-aggregate order.
package kafka

import (
	"fmt"

	"github.com/IBM/sarama"

	"github.com/coreledger/engine/internal/config"
)

// ToSaramaConfig translates the engine's KafkaConfig into a sarama.Config
// tuned for outbox delivery: synchronous, acks=all, idempotent producer so
// the retry-on-failure path in the worker loop never double-publishes a
// single attempt at the broker level (the worker's own idempotency is
// per-event via outbox_events.published_at, this is belt-and-suspenders at
// the transport level).
func ToSaramaConfig(cfg config.KafkaConfig) (*sarama.Config, error) {
	sc := sarama.NewConfig()

	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Idempotent = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Net.MaxOpenRequests = 1
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.Flush.Frequency = cfg.FlushFrequency
	sc.Producer.Partitioner = sarama.NewHashPartitioner
	sc.ClientID = cfg.ClientID
	sc.Version = sarama.V3_0_0_0

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	return sc, nil
}

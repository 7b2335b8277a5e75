/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package kafka

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/go-errors/errors"
	"github.com/hashicorp/go-uuid"
	"github.com/noctarius/event-connectors/internal/logging"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/noctarius/event-connectors/spi/sink"
	"github.com/samber/lo"
)

// Topics are single-partition logs, all reads and writes go to this
// partition.
const partition int32 = 0

func init() {
	sink.RegisterSink(config.Kafka, newKafkaSink)
}

// clusterMetadata is the subset of sarama.Client the sink needs.
type clusterMetadata interface {
	Topics() ([]string, error)
	GetOffset(topic string, partitionID int32, time int64) (int64, error)
	Close() error
}

type connector = func() (clusterMetadata, sarama.SyncProducer, sarama.Consumer, error)

type kafkaSink struct {
	logger   *logging.Logger
	connect  connector
	client   clusterMetadata
	producer sarama.SyncProducer
	consumer sarama.Consumer
}

func newKafkaSink(
	c *config.Config,
) (sink.Sink, error) {

	saramaConfig, err := newSaramaConfig(c)
	if err != nil {
		return nil, err
	}

	brokers := config.GetOrDefault(c, config.PropertyKafkaBrokers, []string{"localhost:9092"})
	return newKafkaSinkWithConnector(func() (clusterMetadata, sarama.SyncProducer, sarama.Consumer, error) {
		client, err := sarama.NewClient(brokers, saramaConfig)
		if err != nil {
			return nil, nil, nil, err
		}
		producer, err := sarama.NewSyncProducerFromClient(client)
		if err != nil {
			client.Close()
			return nil, nil, nil, err
		}
		consumer, err := sarama.NewConsumerFromClient(client)
		if err != nil {
			producer.Close()
			client.Close()
			return nil, nil, nil, err
		}
		return client, producer, consumer, nil
	})
}

func newKafkaSinkWithConnector(
	connect connector,
) (*kafkaSink, error) {

	logger, err := logging.NewLogger("KafkaSink")
	if err != nil {
		return nil, err
	}
	return &kafkaSink{
		logger:  logger,
		connect: connect,
	}, nil
}

func newSaramaConfig(
	c *config.Config,
) (*sarama.Config, error) {

	instanceId, err := uuid.GenerateUUID()
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.ClientID = "event-connectors-" + instanceId
	saramaConfig.Producer.Idempotent = config.GetOrDefault(c, config.PropertyKafkaIdempotent, false)
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.RequiredAcks = sarama.WaitForLocal
	saramaConfig.Producer.Retry.Max = 10
	saramaConfig.Producer.Partitioner = sarama.NewManualPartitioner
	saramaConfig.Consumer.Return.Errors = true
	if saramaConfig.Producer.Idempotent {
		saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
		saramaConfig.Net.MaxOpenRequests = 1
	}

	if config.GetOrDefault(c, config.PropertyKafkaSaslEnabled, false) {
		saramaConfig.Net.SASL.Enable = true
		saramaConfig.Net.SASL.User = config.GetOrDefault(c, config.PropertyKafkaSaslUser, "")
		saramaConfig.Net.SASL.Password = config.GetOrDefault(c, config.PropertyKafkaSaslPassword, "")
		saramaConfig.Net.SASL.Mechanism = config.GetOrDefault[sarama.SASLMechanism](
			c, config.PropertyKafkaSaslMechanism, sarama.SASLTypePlaintext,
		)
	}

	if config.GetOrDefault(c, config.PropertyKafkaTlsEnabled, false) {
		saramaConfig.Net.TLS.Enable = true
		saramaConfig.Net.TLS.Config = &tls.Config{
			InsecureSkipVerify: config.GetOrDefault(c, config.PropertyKafkaTlsSkipVerify, false),
			ClientAuth:         config.GetOrDefault(c, config.PropertyKafkaTlsClientAuth, tls.NoClientCert),
		}
	}

	if err := saramaConfig.Validate(); err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return saramaConfig, nil
}

func (k *kafkaSink) Start() error {
	client, producer, consumer, err := k.connect()
	if err != nil {
		return errors.Wrap(err, 0)
	}
	k.client = client
	k.producer = producer
	k.consumer = consumer
	return nil
}

func (k *kafkaSink) Stop() error {
	var result error
	if k.consumer != nil {
		if err := k.consumer.Close(); err != nil {
			result = err
		}
	}
	if k.producer != nil {
		if err := k.producer.Close(); err != nil {
			result = err
		}
	}
	if k.client != nil {
		if err := k.client.Close(); err != nil && result == nil {
			result = err
		}
	}
	return result
}

func (k *kafkaSink) Exists(
	_ context.Context, topic string,
) (bool, error) {

	topics, err := k.client.Topics()
	if err != nil {
		return false, errors.Wrap(err, 0)
	}
	return lo.Contains(topics, topic), nil
}

func (k *kafkaSink) Emit(
	_ context.Context, topic string, key, value []byte,
) error {

	_, _, err := k.producer.SendMessage(newProducerMessage(topic, sink.Record{Key: key, Value: value}))
	return err
}

func (k *kafkaSink) EmitBatch(
	_ context.Context, topic string, records []sink.Record,
) error {

	if len(records) == 0 {
		return nil
	}
	messages := lo.Map(records, func(record sink.Record, _ int) *sarama.ProducerMessage {
		return newProducerMessage(topic, record)
	})
	if err := k.producer.SendMessages(messages); err != nil {
		// SendMessages is not atomic, records not reported as failed are
		// already written and are written again when the batch is retried
		failed := len(messages)
		var producerErrors sarama.ProducerErrors
		if errors.As(err, &producerErrors) {
			failed = len(producerErrors)
		}
		return errors.WrapPrefix(
			err, fmt.Sprintf("%d of %d records to %s failed", failed, len(messages), topic), 0,
		)
	}
	return nil
}

func (k *kafkaSink) ReadLast(
	ctx context.Context, topic string,
) ([]byte, bool, error) {

	newest, err := k.client.GetOffset(topic, partition, sarama.OffsetNewest)
	if err != nil {
		return nil, false, errors.Wrap(err, 0)
	}
	oldest, err := k.client.GetOffset(topic, partition, sarama.OffsetOldest)
	if err != nil {
		return nil, false, errors.Wrap(err, 0)
	}
	if newest <= oldest {
		return nil, false, nil
	}

	partitionConsumer, err := k.consumer.ConsumePartition(topic, partition, newest-1)
	if err != nil {
		return nil, false, errors.Wrap(err, 0)
	}
	defer partitionConsumer.AsyncClose()

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case consumerErr, ok := <-partitionConsumer.Errors():
		if !ok {
			return nil, false, errors.Errorf("partition consumer of %s closed", topic)
		}
		return nil, false, errors.Wrap(consumerErr, 0)
	case msg, ok := <-partitionConsumer.Messages():
		if !ok {
			return nil, false, errors.Errorf("partition consumer of %s closed", topic)
		}
		return msg.Value, true, nil
	}
}

func (k *kafkaSink) Consume(
	ctx context.Context, topic string, handler sink.Handler,
) error {

	partitionConsumer, err := k.consumer.ConsumePartition(topic, partition, sarama.OffsetOldest)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	defer partitionConsumer.AsyncClose()

	for {
		select {
		case <-ctx.Done():
			return nil
		case consumerErr, ok := <-partitionConsumer.Errors():
			if !ok {
				return nil
			}
			return errors.Wrap(consumerErr, 0)
		case msg, ok := <-partitionConsumer.Messages():
			if !ok {
				return nil
			}
			k.logger.Verbosef("Consumed record at offset %d of %s", msg.Offset, topic)
			if err := handler(ctx, sink.Record{Key: msg.Key, Value: msg.Value}); err != nil {
				return err
			}
		}
	}
}

func newProducerMessage(
	topic string, record sink.Record,
) *sarama.ProducerMessage {

	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Partition: partition,
		Value:     sarama.ByteEncoder(record.Value),
		Timestamp: time.Now(),
	}
	if record.Key != nil {
		msg.Key = sarama.ByteEncoder(record.Key)
	}
	return msg
}

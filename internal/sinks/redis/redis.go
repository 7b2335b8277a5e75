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

package redis

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/go-errors/errors"
	"github.com/go-redis/redis"
	"github.com/noctarius/event-connectors/internal/logging"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/noctarius/event-connectors/spi/sink"
)

// Each topic is a redis stream of the same name. Entries carry the
// record value and, if present, the record key.

const (
	fieldValue = "value"
	fieldKey   = "key"

	typeStream = "stream"

	consumeBlock = time.Second
	consumeCount = 100
)

func init() {
	sink.RegisterSink(config.Redis, newRedisSink)
}

type redisSink struct {
	logger  *logging.Logger
	options *redis.Options
	client  *redis.Client
}

func newRedisSink(
	c *config.Config,
) (sink.Sink, error) {

	options := &redis.Options{
		Network: config.GetOrDefault(
			c, config.PropertyRedisNetwork, "tcp",
		),
		Addr: config.GetOrDefault(
			c, config.PropertyRedisAddress, "localhost:6379",
		),
		Password: config.GetOrDefault(
			c, config.PropertyRedisPassword, "",
		),
		DB: config.GetOrDefault(
			c, config.PropertyRedisDatabase, 0,
		),
		MaxRetries: config.GetOrDefault(
			c, config.PropertyRedisRetriesMax, 0,
		),
		MinRetryBackoff: time.Duration(config.GetOrDefault(
			c, config.PropertyRedisRetriesBackoffMin, 8,
		)) * time.Millisecond,
		MaxRetryBackoff: time.Duration(config.GetOrDefault(
			c, config.PropertyRedisRetriesBackoffMax, 512,
		)) * time.Millisecond,
		DialTimeout: time.Duration(config.GetOrDefault(
			c, config.PropertyRedisTimeoutDial, 5,
		)) * time.Second,
		ReadTimeout: time.Duration(config.GetOrDefault(
			c, config.PropertyRedisTimeoutRead, 3,
		)) * time.Second,
		WriteTimeout: time.Duration(config.GetOrDefault(
			c, config.PropertyRedisTimeoutWrite, 3,
		)) * time.Second,
		PoolSize: config.GetOrDefault(
			c, config.PropertyRedisPoolsize, 0,
		),
		PoolTimeout: time.Duration(config.GetOrDefault(
			c, config.PropertyRedisTimeoutPool, 4,
		)) * time.Second,
		IdleTimeout: time.Duration(config.GetOrDefault(
			c, config.PropertyRedisTimeoutIdle, 5,
		)) * time.Minute,
	}

	if config.GetOrDefault(c, config.PropertyRedisTlsEnabled, false) {
		options.TLSConfig = &tls.Config{
			InsecureSkipVerify: config.GetOrDefault(
				c, config.PropertyRedisTlsSkipVerify, false,
			),
			ClientAuth: config.GetOrDefault(
				c, config.PropertyRedisTlsClientAuth, tls.NoClientCert,
			),
		}
	}

	return newRedisSinkWithOptions(options)
}

func newRedisSinkWithOptions(
	options *redis.Options,
) (*redisSink, error) {

	logger, err := logging.NewLogger("RedisSink")
	if err != nil {
		return nil, err
	}
	return &redisSink{
		logger:  logger,
		options: options,
	}, nil
}

func (r *redisSink) Start() error {
	client := redis.NewClient(r.options)
	if err := client.Ping().Err(); err != nil {
		client.Close()
		return errors.Wrap(err, 0)
	}
	r.client = client
	return nil
}

func (r *redisSink) Stop() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *redisSink) Exists(
	ctx context.Context, topic string,
) (bool, error) {

	client := r.client.WithContext(ctx)
	count, err := client.Exists(topic).Result()
	if err != nil {
		return false, errors.Wrap(err, 0)
	}
	if count == 0 {
		return false, nil
	}

	keyType, err := client.Type(topic).Result()
	if err != nil {
		return false, errors.Wrap(err, 0)
	}
	if keyType != typeStream {
		return false, errors.Errorf("key %s is of type %s, not a stream", topic, keyType)
	}
	return true, nil
}

func (r *redisSink) Emit(
	ctx context.Context, topic string, key, value []byte,
) error {

	return r.client.WithContext(ctx).XAdd(newXAddArgs(topic, sink.Record{Key: key, Value: value})).Err()
}

// EmitBatch adds all records inside a MULTI/EXEC block.
func (r *redisSink) EmitBatch(
	ctx context.Context, topic string, records []sink.Record,
) error {

	if len(records) == 0 {
		return nil
	}
	_, err := r.client.WithContext(ctx).TxPipelined(func(pipe redis.Pipeliner) error {
		for _, record := range records {
			pipe.XAdd(newXAddArgs(topic, record))
		}
		return nil
	})
	return err
}

func (r *redisSink) ReadLast(
	ctx context.Context, topic string,
) ([]byte, bool, error) {

	messages, err := r.client.WithContext(ctx).XRevRangeN(topic, "+", "-", 1).Result()
	if err != nil {
		return nil, false, errors.Wrap(err, 0)
	}
	if len(messages) == 0 {
		return nil, false, nil
	}
	return fieldBytes(messages[0].Values, fieldValue), true, nil
}

func (r *redisSink) Consume(
	ctx context.Context, topic string, handler sink.Handler,
) error {

	client := r.client.WithContext(ctx)
	lastId := "0"
	for {
		if ctx.Err() != nil {
			return nil
		}

		streams, err := client.XRead(&redis.XReadArgs{
			Streams: []string{topic, lastId},
			Count:   consumeCount,
			Block:   consumeBlock,
		}).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, 0)
		}

		for _, stream := range streams {
			for _, message := range stream.Messages {
				lastId = message.ID
				record := sink.Record{
					Key:   fieldBytes(message.Values, fieldKey),
					Value: fieldBytes(message.Values, fieldValue),
				}
				if err := handler(ctx, record); err != nil {
					return err
				}
			}
		}
	}
}

func newXAddArgs(
	topic string, record sink.Record,
) *redis.XAddArgs {

	values := map[string]any{
		fieldValue: string(record.Value),
	}
	if record.Key != nil {
		values[fieldKey] = string(record.Key)
	}
	return &redis.XAddArgs{
		Stream: topic,
		Values: values,
	}
}

func fieldBytes(
	values map[string]any, field string,
) []byte {

	if value, ok := values[field].(string); ok {
		return []byte(value)
	}
	return nil
}

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

package nats

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/go-errors/errors"
	"github.com/hashicorp/go-uuid"
	"github.com/nats-io/nats.go"
	"github.com/noctarius/event-connectors/internal/logging"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/noctarius/event-connectors/spi/sink"
)

// Each topic is a JetStream stream of the same name, bound to a subject
// of the same name.

const headerKey = "key"

func init() {
	sink.RegisterSink(config.NATS, newNatsSink)
}

type natsSink struct {
	logger  *logging.Logger
	address string
	options []nats.Option

	client           *nats.Conn
	jetStreamContext nats.JetStreamContext
}

func newNatsSink(
	c *config.Config,
) (sink.Sink, error) {

	address := config.GetOrDefault(c, config.PropertyNatsAddress, "nats://localhost:4222")
	authorization := config.GetOrDefault(c, config.PropertyNatsAuthorization, config.UserInfo)

	var authOption nats.Option
	switch authorization {
	case config.UserInfo:
		username := config.GetOrDefault(c, config.PropertyNatsUserinfoUsername, "")
		password := config.GetOrDefault(c, config.PropertyNatsUserinfoPassword, "")
		authOption = nats.UserInfo(username, password)
	case config.Credentials:
		certificate := config.GetOrDefault(c, config.PropertyNatsCredentialsCertificate, "")
		seeds := config.GetOrDefault(c, config.PropertyNatsCredentialsSeeds, []string{})
		authOption = nats.UserCredentials(certificate, seeds...)
	case config.Jwt:
		jwt := config.GetOrDefault(c, config.PropertyNatsJwt, "")
		seed := config.GetOrDefault(c, config.PropertyNatsJwtSeed, "")
		authOption = nats.UserJWTAndSeed(jwt, seed)
	default:
		return nil, errors.Errorf("NATS AuthorizationType '%s' doesn't exist", authorization)
	}

	return newNatsSinkWithOptions(address, authOption)
}

func newNatsSinkWithOptions(
	address string, options ...nats.Option,
) (*natsSink, error) {

	logger, err := logging.NewLogger("NatsSink")
	if err != nil {
		return nil, err
	}

	instanceId, err := uuid.GenerateUUID()
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	options = append(
		options,
		nats.Name("event-connectors-"+instanceId),
		nats.RetryOnFailedConnect(true),
		nats.ReconnectWait(time.Second*10),
		nats.ReconnectBufSize(1024*1024),
		nats.MaxReconnects(-1),
	)

	return &natsSink{
		logger:  logger,
		address: address,
		options: options,
	}, nil
}

func (n *natsSink) Start() error {
	client, err := nats.Connect(n.address, n.options...)
	if err != nil {
		return errors.Wrap(err, 0)
	}

	jetStreamContext, err := client.JetStream()
	if err != nil {
		client.Close()
		return errors.Wrap(err, 0)
	}

	n.client = client
	n.jetStreamContext = jetStreamContext
	return nil
}

func (n *natsSink) Stop() error {
	if n.client != nil {
		n.client.Close()
	}
	return nil
}

func (n *natsSink) Exists(
	ctx context.Context, topic string,
) (bool, error) {

	if _, err := n.jetStreamContext.StreamInfo(topic, nats.Context(ctx)); err != nil {
		if stderrors.Is(err, nats.ErrStreamNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, 0)
	}
	return true, nil
}

func (n *natsSink) Emit(
	ctx context.Context, topic string, key, value []byte,
) error {

	_, err := n.jetStreamContext.PublishMsg(newMsg(topic, sink.Record{Key: key, Value: value}), nats.Context(ctx))
	return err
}

// EmitBatch publishes one record after the other, waiting for each
// acknowledgement to keep the batch in order.
func (n *natsSink) EmitBatch(
	ctx context.Context, topic string, records []sink.Record,
) error {

	for _, record := range records {
		if _, err := n.jetStreamContext.PublishMsg(newMsg(topic, record), nats.Context(ctx)); err != nil {
			return err
		}
	}
	return nil
}

func (n *natsSink) ReadLast(
	ctx context.Context, topic string,
) ([]byte, bool, error) {

	msg, err := n.jetStreamContext.GetLastMsg(topic, topic, nats.Context(ctx))
	if err != nil {
		if stderrors.Is(err, nats.ErrMsgNotFound) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, 0)
	}
	return msg.Data, true, nil
}

func (n *natsSink) Consume(
	ctx context.Context, topic string, handler sink.Handler,
) error {

	subscription, err := n.jetStreamContext.SubscribeSync(
		topic, nats.OrderedConsumer(), nats.DeliverAll(),
	)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	defer func() {
		if err := subscription.Unsubscribe(); err != nil {
			n.logger.Debugf("Failed to unsubscribe from %s: %v", topic, err)
		}
	}()

	for {
		msg, err := subscription.NextMsgWithContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, 0)
		}

		var key []byte
		if value := msg.Header.Get(headerKey); value != "" {
			key = []byte(value)
		}
		if err := handler(ctx, sink.Record{Key: key, Value: msg.Data}); err != nil {
			return err
		}
	}
}

func newMsg(
	topic string, record sink.Record,
) *nats.Msg {

	msg := nats.NewMsg(topic)
	msg.Data = record.Value
	if record.Key != nil {
		msg.Header.Set(headerKey, string(record.Key))
	}
	return msg
}

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

package awskinesis

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
	"github.com/go-errors/errors"
	"github.com/noctarius/event-connectors/internal/logging"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/noctarius/event-connectors/spi/sink"
)

// Each topic is a Kinesis data stream of the same name. Only the first
// shard is used, which keeps the stream a single ordered log.

const (
	pollInterval = time.Second

	// Hash key of the first shard; pins all records to it.
	firstShardHashKey = "0"
)

func init() {
	sink.RegisterSink(config.AwsKinesis, newAwsKinesisSink)
}

type awsKinesisSink struct {
	logger     *logging.Logger
	connect    func() (kinesisiface.KinesisAPI, error)
	awsKinesis kinesisiface.KinesisAPI

	createStream *kinesis.CreateStreamInput
	lastSequence map[string]*string
}

func newAwsKinesisSink(
	c *config.Config,
) (sink.Sink, error) {

	awsRegion := config.GetOrDefault[*string](c, config.PropertyKinesisRegion, nil)
	endpoint := config.GetOrDefault(c, config.PropertyKinesisAwsEndpoint, "")
	accessKeyId := config.GetOrDefault(c, config.PropertyKinesisAwsAccessKeyId, "")
	secretAccessKey := config.GetOrDefault(c, config.PropertyKinesisAwsSecretAccessKey, "")
	sessionToken := config.GetOrDefault(c, config.PropertyKinesisAwsSessionToken, "")

	awsConfig := aws.NewConfig().WithEndpoint(endpoint)
	if accessKeyId != "" && secretAccessKey != "" {
		awsConfig = awsConfig.WithCredentials(
			credentials.NewStaticCredentials(accessKeyId, secretAccessKey, sessionToken),
		)
	}
	if awsRegion != nil {
		awsConfig = awsConfig.WithRegion(*awsRegion)
	}

	awsKinesisSink, err := newAwsKinesisSinkWithConnector(func() (kinesisiface.KinesisAPI, error) {
		awsSession, err := session.NewSession(awsConfig)
		if err != nil {
			return nil, err
		}
		return kinesis.New(awsSession), nil
	})
	if err != nil {
		return nil, err
	}

	// With stream creation enabled, the configured stream is created on
	// start if it doesn't exist yet.
	streamName := config.GetOrDefault[*string](c, config.PropertyKinesisStreamName, nil)
	if streamName != nil && config.GetOrDefault(c, config.PropertyKinesisStreamCreate, true) {
		createStream := &kinesis.CreateStreamInput{
			StreamName: streamName,
			ShardCount: aws.Int64(1),
		}
		if shardCount := config.GetOrDefault[*int64](c, config.PropertyKinesisStreamShardCount, nil); shardCount != nil {
			createStream.ShardCount = shardCount
		}
		if streamMode := config.GetOrDefault[*string](c, config.PropertyKinesisStreamMode, nil); streamMode != nil {
			createStream.StreamModeDetails = &kinesis.StreamModeDetails{
				StreamMode: streamMode,
			}
			if *streamMode == kinesis.StreamModeOnDemand {
				createStream.ShardCount = nil
			}
		}
		awsKinesisSink.createStream = createStream
	}
	return awsKinesisSink, nil
}

func newAwsKinesisSinkWithConnector(
	connect func() (kinesisiface.KinesisAPI, error),
) (*awsKinesisSink, error) {

	logger, err := logging.NewLogger("AwsKinesisSink")
	if err != nil {
		return nil, err
	}
	return &awsKinesisSink{
		logger:       logger,
		connect:      connect,
		lastSequence: make(map[string]*string),
	}, nil
}

func (a *awsKinesisSink) Start() error {
	awsKinesis, err := a.connect()
	if err != nil {
		return errors.Wrap(err, 0)
	}
	a.awsKinesis = awsKinesis

	if a.createStream == nil {
		return nil
	}

	exists, err := a.Exists(context.Background(), *a.createStream.StreamName)
	if err != nil || exists {
		return err
	}

	a.logger.Infof("Creating Kinesis stream %s", *a.createStream.StreamName)
	if _, err := a.awsKinesis.CreateStream(a.createStream); err != nil {
		return errors.Wrap(err, 0)
	}
	return a.awsKinesis.WaitUntilStreamExists(&kinesis.DescribeStreamInput{
		StreamName: a.createStream.StreamName,
	})
}

func (a *awsKinesisSink) Stop() error {
	return nil
}

func (a *awsKinesisSink) Exists(
	ctx context.Context, topic string,
) (bool, error) {

	_, err := a.awsKinesis.DescribeStreamSummaryWithContext(ctx, &kinesis.DescribeStreamSummaryInput{
		StreamName: aws.String(topic),
	})
	if err != nil {
		var awsErr awserr.Error
		if stderrors.As(err, &awsErr) && awsErr.Code() == kinesis.ErrCodeResourceNotFoundException {
			return false, nil
		}
		return false, errors.Wrap(err, 0)
	}
	return true, nil
}

func (a *awsKinesisSink) Emit(
	ctx context.Context, topic string, key, value []byte,
) error {

	return a.putRecord(ctx, topic, sink.Record{Key: key, Value: value})
}

// EmitBatch puts the records one by one, each ordered after its
// predecessor, since PutRecords doesn't guarantee ordering.
func (a *awsKinesisSink) EmitBatch(
	ctx context.Context, topic string, records []sink.Record,
) error {

	for _, record := range records {
		if err := a.putRecord(ctx, topic, record); err != nil {
			return err
		}
	}
	return nil
}

func (a *awsKinesisSink) putRecord(
	ctx context.Context, topic string, record sink.Record,
) error {

	partitionKey := topic
	if len(record.Key) > 0 {
		partitionKey = string(record.Key)
	}

	output, err := a.awsKinesis.PutRecordWithContext(ctx, &kinesis.PutRecordInput{
		StreamName:                aws.String(topic),
		PartitionKey:              aws.String(partitionKey),
		ExplicitHashKey:           aws.String(firstShardHashKey),
		Data:                      record.Value,
		SequenceNumberForOrdering: a.lastSequence[topic],
	})
	if err != nil {
		return errors.Wrap(err, 0)
	}
	a.lastSequence[topic] = output.SequenceNumber
	return nil
}

// ReadLast scans the shard from its trim horizon up to the tip and
// returns the last record seen.
func (a *awsKinesisSink) ReadLast(
	ctx context.Context, topic string,
) ([]byte, bool, error) {

	var last []byte
	found := false
	err := a.scan(ctx, topic, false, func(record *kinesis.Record) error {
		last = record.Data
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return last, found, nil
}

func (a *awsKinesisSink) Consume(
	ctx context.Context, topic string, handler sink.Handler,
) error {

	err := a.scan(ctx, topic, true, func(record *kinesis.Record) error {
		var key []byte
		if partitionKey := aws.StringValue(record.PartitionKey); partitionKey != topic {
			key = []byte(partitionKey)
		}
		return handler(ctx, sink.Record{Key: key, Value: record.Data})
	})
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (a *awsKinesisSink) scan(
	ctx context.Context, topic string, follow bool, fn func(record *kinesis.Record) error,
) error {

	shards, err := a.awsKinesis.ListShardsWithContext(ctx, &kinesis.ListShardsInput{
		StreamName: aws.String(topic),
	})
	if err != nil {
		return wrapRequestError(ctx, err)
	}
	if len(shards.Shards) == 0 {
		return errors.Errorf("stream %s has no shards", topic)
	}

	iterator, err := a.awsKinesis.GetShardIteratorWithContext(ctx, &kinesis.GetShardIteratorInput{
		StreamName:        aws.String(topic),
		ShardId:           shards.Shards[0].ShardId,
		ShardIteratorType: aws.String(kinesis.ShardIteratorTypeTrimHorizon),
	})
	if err != nil {
		return wrapRequestError(ctx, err)
	}

	shardIterator := iterator.ShardIterator
	for shardIterator != nil {
		output, err := a.awsKinesis.GetRecordsWithContext(ctx, &kinesis.GetRecordsInput{
			ShardIterator: shardIterator,
		})
		if err != nil {
			return wrapRequestError(ctx, err)
		}

		for _, record := range output.Records {
			if err := fn(record); err != nil {
				return err
			}
		}
		shardIterator = output.NextShardIterator

		if len(output.Records) == 0 && aws.Int64Value(output.MillisBehindLatest) == 0 {
			if !follow {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollInterval):
			}
		}
	}
	return nil
}

// wrapRequestError prefers the context error over the request error the
// SDK reports for cancelled requests.
func wrapRequestError(
	ctx context.Context, err error,
) error {

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.Wrap(err, 0)
}

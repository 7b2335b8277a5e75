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

package awssqs

import (
	"context"
	"crypto/sha256"
	stderrors "errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/aws/aws-sdk-go/service/sqs/sqsiface"
	"github.com/go-errors/errors"
	"github.com/noctarius/event-connectors/internal/logging"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/noctarius/event-connectors/spi/sink"
	"github.com/samber/lo"
)

// SQS queues cannot be read back without consuming them, so this sink is
// write-only and offers no resume point.

// maxBatchEntries is the SendMessageBatch limit.
const maxBatchEntries = 10

func init() {
	sink.RegisterSink(config.AwsSQS, newAwsSqsSink)
}

type awsSqsSink struct {
	logger   *logging.Logger
	connect  func() (sqsiface.SQSAPI, error)
	awsSqs   sqsiface.SQSAPI
	queueUrl *string

	mutex     sync.Mutex
	queueUrls map[string]string
}

func newAwsSqsSink(
	c *config.Config,
) (sink.Sink, error) {

	queueUrl := config.GetOrDefault[*string](c, config.PropertySqsQueueUrl, nil)
	awsRegion := config.GetOrDefault[*string](c, config.PropertySqsAwsRegion, nil)
	endpoint := config.GetOrDefault(c, config.PropertySqsAwsEndpoint, "")
	accessKeyId := config.GetOrDefault(c, config.PropertySqsAwsAccessKeyId, "")
	secretAccessKey := config.GetOrDefault(c, config.PropertySqsAwsSecretAccessKey, "")
	sessionToken := config.GetOrDefault(c, config.PropertySqsAwsSessionToken, "")

	awsConfig := aws.NewConfig().WithEndpoint(endpoint)
	if accessKeyId != "" && secretAccessKey != "" {
		awsConfig = awsConfig.WithCredentials(
			credentials.NewStaticCredentials(accessKeyId, secretAccessKey, sessionToken),
		)
	}
	if awsRegion != nil {
		awsConfig = awsConfig.WithRegion(*awsRegion)
	}

	return newAwsSqsSinkWithConnector(queueUrl, func() (sqsiface.SQSAPI, error) {
		awsSession, err := session.NewSession(awsConfig)
		if err != nil {
			return nil, err
		}
		return sqs.New(awsSession), nil
	})
}

func newAwsSqsSinkWithConnector(
	queueUrl *string, connect func() (sqsiface.SQSAPI, error),
) (*awsSqsSink, error) {

	logger, err := logging.NewLogger("AwsSqsSink")
	if err != nil {
		return nil, err
	}
	return &awsSqsSink{
		logger:    logger,
		connect:   connect,
		queueUrl:  queueUrl,
		queueUrls: make(map[string]string),
	}, nil
}

func (a *awsSqsSink) Start() error {
	awsSqs, err := a.connect()
	if err != nil {
		return errors.Wrap(err, 0)
	}
	a.awsSqs = awsSqs
	return nil
}

func (a *awsSqsSink) Stop() error {
	return nil
}

// Exists checks the configured queue url, or otherwise looks up a queue
// named like the topic.
func (a *awsSqsSink) Exists(
	ctx context.Context, topic string,
) (bool, error) {

	var err error
	if a.queueUrl != nil {
		_, err = a.awsSqs.GetQueueAttributesWithContext(ctx, &sqs.GetQueueAttributesInput{
			QueueUrl:       a.queueUrl,
			AttributeNames: aws.StringSlice([]string{sqs.QueueAttributeNameQueueArn}),
		})
	} else {
		_, err = a.resolveQueueUrl(ctx, topic)
	}
	if err != nil {
		var awsErr awserr.Error
		if stderrors.As(err, &awsErr) && awsErr.Code() == sqs.ErrCodeQueueDoesNotExist {
			return false, nil
		}
		return false, errors.Wrap(err, 0)
	}
	return true, nil
}

func (a *awsSqsSink) Emit(
	ctx context.Context, topic string, key, value []byte,
) error {

	queueUrl, err := a.resolveQueueUrl(ctx, topic)
	if err != nil {
		return errors.Wrap(err, 0)
	}

	input := &sqs.SendMessageInput{
		DelaySeconds: aws.Int64(0),
		MessageBody:  aws.String(string(value)),
		QueueUrl:     aws.String(queueUrl),
	}
	if isFifo(queueUrl) {
		input.MessageGroupId = aws.String(messageGroupId(topic, key))
		input.MessageDeduplicationId = aws.String(deduplicationId(value))
	}

	_, err = a.awsSqs.SendMessageWithContext(ctx, input)
	return err
}

func (a *awsSqsSink) EmitBatch(
	ctx context.Context, topic string, records []sink.Record,
) error {

	queueUrl, err := a.resolveQueueUrl(ctx, topic)
	if err != nil {
		return errors.Wrap(err, 0)
	}

	fifo := isFifo(queueUrl)
	for _, chunk := range lo.Chunk(records, maxBatchEntries) {
		entries := lo.Map(chunk, func(record sink.Record, index int) *sqs.SendMessageBatchRequestEntry {
			entry := &sqs.SendMessageBatchRequestEntry{
				Id:           aws.String(strconv.Itoa(index)),
				DelaySeconds: aws.Int64(0),
				MessageBody:  aws.String(string(record.Value)),
			}
			if fifo {
				entry.MessageGroupId = aws.String(messageGroupId(topic, record.Key))
				entry.MessageDeduplicationId = aws.String(deduplicationId(record.Value))
			}
			return entry
		})

		output, err := a.awsSqs.SendMessageBatchWithContext(ctx, &sqs.SendMessageBatchInput{
			QueueUrl: aws.String(queueUrl),
			Entries:  entries,
		})
		if err != nil {
			return errors.Wrap(err, 0)
		}
		if len(output.Failed) > 0 {
			failed := output.Failed[0]
			return errors.Errorf("%d of %d messages failed, first: %s (%s)",
				len(output.Failed), len(entries), aws.StringValue(failed.Message), aws.StringValue(failed.Code),
			)
		}
	}
	return nil
}

func (a *awsSqsSink) resolveQueueUrl(
	ctx context.Context, topic string,
) (string, error) {

	if a.queueUrl != nil {
		return *a.queueUrl, nil
	}

	a.mutex.Lock()
	defer a.mutex.Unlock()
	if queueUrl, present := a.queueUrls[topic]; present {
		return queueUrl, nil
	}

	output, err := a.awsSqs.GetQueueUrlWithContext(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(topic),
	})
	if err != nil {
		return "", err
	}
	a.logger.Debugf("Resolved queue url %s for topic %s", *output.QueueUrl, topic)
	a.queueUrls[topic] = *output.QueueUrl
	return *output.QueueUrl, nil
}

func isFifo(
	queueUrl string,
) bool {

	return strings.HasSuffix(queueUrl, ".fifo")
}

func messageGroupId(
	topic string, key []byte,
) string {

	if len(key) > 0 {
		return string(key)
	}
	return topic
}

func deduplicationId(
	value []byte,
) string {

	return fmt.Sprintf("%X", sha256.Sum256(value))
}

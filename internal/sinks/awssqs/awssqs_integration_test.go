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
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	"github.com/noctarius/event-connectors/internal/testing/containers"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/noctarius/event-connectors/spi/sink"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
)

type AwsSqsIntegrationTestSuite struct {
	suite.Suite
	container testcontainers.Container
	endpoint  string
}

func TestAwsSqsIntegrationTestSuite(
	t *testing.T,
) {

	if !containers.IntegrationEnabled() {
		t.Skipf("set %s=1 to run container tests", containers.IntegrationEnabledEnv)
	}
	suite.Run(t, new(AwsSqsIntegrationTestSuite))
}

func (asits *AwsSqsIntegrationTestSuite) SetupSuite() {
	container, endpoint, err := containers.SetupLocalStackWithSQS(context.Background())
	asits.Require().NoError(err)
	asits.container = container
	asits.endpoint = endpoint
}

func (asits *AwsSqsIntegrationTestSuite) TearDownSuite() {
	if asits.container != nil {
		_ = asits.container.Terminate(context.Background())
	}
}

func (asits *AwsSqsIntegrationTestSuite) newStartedSink() *awsSqsSink {
	s, err := newAwsSqsSink(&config.Config{
		Sink: config.SinkConfig{
			AwsSqs: config.AwsSqsConfig{
				Aws: config.AwsConnectionConfig{
					Region:          lo.ToPtr("us-east-1"),
					Endpoint:        asits.endpoint,
					AccessKeyId:     "test",
					SecretAccessKey: "test",
				},
			},
		},
	})
	asits.Require().NoError(err)
	asits.Require().NoError(s.Start())
	asits.T().Cleanup(func() {
		_ = s.Stop()
	})
	return s.(*awsSqsSink)
}

func (asits *AwsSqsIntegrationTestSuite) receiveAll(
	awsSqsSink *awsSqsSink, queueName string, count int,
) []string {

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	queueUrl, err := awsSqsSink.resolveQueueUrl(ctx, queueName)
	asits.Require().NoError(err)

	bodies := make([]string, 0, count)
	for len(bodies) < count {
		output, err := awsSqsSink.awsSqs.ReceiveMessageWithContext(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueUrl),
			MaxNumberOfMessages: aws.Int64(10),
			WaitTimeSeconds:     aws.Int64(1),
		})
		asits.Require().NoError(err)
		for _, message := range output.Messages {
			bodies = append(bodies, aws.StringValue(message.Body))
			_, err := awsSqsSink.awsSqs.DeleteMessageWithContext(ctx, &sqs.DeleteMessageInput{
				QueueUrl:      aws.String(queueUrl),
				ReceiptHandle: message.ReceiptHandle,
			})
			asits.Require().NoError(err)
		}
	}
	return bodies
}

func (asits *AwsSqsIntegrationTestSuite) Test_Fifo_Queue_Keeps_Order() {
	awsSqsSink := asits.newStartedSink()
	queueName := lo.RandomString(10, lo.LowerCaseLettersCharset) + ".fifo"
	ctx := context.Background()

	exists, err := awsSqsSink.Exists(ctx, queueName)
	asits.Require().NoError(err)
	asits.False(exists)

	_, err = awsSqsSink.awsSqs.CreateQueueWithContext(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(queueName),
		Attributes: map[string]*string{
			sqs.QueueAttributeNameFifoQueue: aws.String("true"),
		},
	})
	asits.Require().NoError(err)

	exists, err = awsSqsSink.Exists(ctx, queueName)
	asits.Require().NoError(err)
	asits.True(exists)

	records := lo.Times(12, func(i int) sink.Record {
		return sink.Record{Value: []byte{byte('a' + i)}}
	})
	asits.Require().NoError(awsSqsSink.Emit(ctx, queueName, nil, []byte("first")))
	asits.Require().NoError(awsSqsSink.EmitBatch(ctx, queueName, records))

	bodies := asits.receiveAll(awsSqsSink, queueName, 13)
	asits.Equal("first", bodies[0])
	asits.Equal("a", bodies[1])
	asits.Equal("l", bodies[12])
}

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
	"testing"
	"time"

	"github.com/noctarius/event-connectors/internal/testing/containers"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/noctarius/event-connectors/spi/sink"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
)

type AwsKinesisIntegrationTestSuite struct {
	suite.Suite
	container testcontainers.Container
	endpoint  string
}

func TestAwsKinesisIntegrationTestSuite(
	t *testing.T,
) {

	if !containers.IntegrationEnabled() {
		t.Skipf("set %s=1 to run container tests", containers.IntegrationEnabledEnv)
	}
	suite.Run(t, new(AwsKinesisIntegrationTestSuite))
}

func (akits *AwsKinesisIntegrationTestSuite) SetupSuite() {
	container, endpoint, err := containers.SetupLocalStackWithKinesis(context.Background())
	akits.Require().NoError(err)
	akits.container = container
	akits.endpoint = endpoint
}

func (akits *AwsKinesisIntegrationTestSuite) TearDownSuite() {
	if akits.container != nil {
		_ = akits.container.Terminate(context.Background())
	}
}

// newStartedSink starts a sink which creates the given stream.
func (akits *AwsKinesisIntegrationTestSuite) newStartedSink(
	streamName string,
) sink.Sink {

	kinesisSink, err := newAwsKinesisSink(&config.Config{
		Sink: config.SinkConfig{
			AwsKinesis: config.AwsKinesisConfig{
				Stream: config.AwsKinesisStreamConfig{
					Name:       lo.ToPtr(streamName),
					ShardCount: lo.ToPtr(int64(1)),
				},
				Aws: config.AwsConnectionConfig{
					Region:          lo.ToPtr("us-east-1"),
					Endpoint:        akits.endpoint,
					AccessKeyId:     "test",
					SecretAccessKey: "test",
				},
			},
		},
	})
	akits.Require().NoError(err)
	akits.Require().NoError(kinesisSink.Start())
	akits.T().Cleanup(func() {
		_ = kinesisSink.Stop()
	})
	return kinesisSink
}

func (akits *AwsKinesisIntegrationTestSuite) Test_Creates_Stream_And_Reads_Back() {
	streamName := lo.RandomString(10, lo.LowerCaseLettersCharset)
	kinesisSink := akits.newStartedSink(streamName)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	exists, err := kinesisSink.Exists(ctx, streamName)
	akits.Require().NoError(err)
	akits.True(exists)

	exists, err = kinesisSink.Exists(ctx, streamName+"-missing")
	akits.Require().NoError(err)
	akits.False(exists)

	tailReader := kinesisSink.(sink.TailReader)
	_, found, err := tailReader.ReadLast(ctx, streamName)
	akits.Require().NoError(err)
	akits.False(found)

	records := lo.Times(5, func(i int) sink.Record {
		return sink.Record{Value: []byte{byte('a' + i)}}
	})
	akits.Require().NoError(kinesisSink.EmitBatch(ctx, streamName, records))

	value, found, err := tailReader.ReadLast(ctx, streamName)
	akits.Require().NoError(err)
	akits.True(found)
	akits.Equal("e", string(value))

	consumeCtx, stop := context.WithCancel(ctx)
	defer stop()

	consumed := make([]string, 0)
	err = kinesisSink.(sink.Consumer).Consume(consumeCtx, streamName, func(_ context.Context, record sink.Record) error {
		consumed = append(consumed, string(record.Value))
		if len(consumed) == len(records) {
			stop()
		}
		return nil
	})
	akits.Require().NoError(err)
	akits.Equal([]string{"a", "b", "c", "d", "e"}, consumed)
}

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
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/noctarius/event-connectors/spi/sink"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKinesis keeps a single-shard stream per name in memory. Each
// GetRecords call returns at most pageSize records.
type fakeKinesis struct {
	kinesisiface.KinesisAPI
	streams  map[string][]*kinesis.Record
	puts     []*kinesis.PutRecordInput
	created  []*kinesis.CreateStreamInput
	pageSize int
}

func newFakeKinesis(
	streams ...string,
) *fakeKinesis {

	fake := &fakeKinesis{
		streams:  make(map[string][]*kinesis.Record),
		pageSize: 2,
	}
	for _, stream := range streams {
		fake.streams[stream] = make([]*kinesis.Record, 0)
	}
	return fake
}

func (f *fakeKinesis) DescribeStreamSummaryWithContext(
	_ aws.Context, input *kinesis.DescribeStreamSummaryInput, _ ...request.Option,
) (*kinesis.DescribeStreamSummaryOutput, error) {

	if _, present := f.streams[*input.StreamName]; !present {
		return nil, awserr.New(kinesis.ErrCodeResourceNotFoundException, "stream not found", nil)
	}
	return &kinesis.DescribeStreamSummaryOutput{}, nil
}

func (f *fakeKinesis) CreateStream(
	input *kinesis.CreateStreamInput,
) (*kinesis.CreateStreamOutput, error) {

	f.created = append(f.created, input)
	f.streams[*input.StreamName] = make([]*kinesis.Record, 0)
	return &kinesis.CreateStreamOutput{}, nil
}

func (f *fakeKinesis) WaitUntilStreamExists(
	_ *kinesis.DescribeStreamInput,
) error {

	return nil
}

func (f *fakeKinesis) PutRecordWithContext(
	_ aws.Context, input *kinesis.PutRecordInput, _ ...request.Option,
) (*kinesis.PutRecordOutput, error) {

	f.puts = append(f.puts, input)
	records := f.streams[*input.StreamName]
	sequence := strconv.Itoa(len(records))
	f.streams[*input.StreamName] = append(records, &kinesis.Record{
		Data:           input.Data,
		PartitionKey:   input.PartitionKey,
		SequenceNumber: aws.String(sequence),
	})
	return &kinesis.PutRecordOutput{SequenceNumber: aws.String(sequence)}, nil
}

func (f *fakeKinesis) ListShardsWithContext(
	_ aws.Context, _ *kinesis.ListShardsInput, _ ...request.Option,
) (*kinesis.ListShardsOutput, error) {

	return &kinesis.ListShardsOutput{
		Shards: []*kinesis.Shard{{ShardId: aws.String("shardId-000000000000")}},
	}, nil
}

func (f *fakeKinesis) GetShardIteratorWithContext(
	_ aws.Context, input *kinesis.GetShardIteratorInput, _ ...request.Option,
) (*kinesis.GetShardIteratorOutput, error) {

	return &kinesis.GetShardIteratorOutput{ShardIterator: aws.String(*input.StreamName + ":0")}, nil
}

func (f *fakeKinesis) GetRecordsWithContext(
	ctx aws.Context, input *kinesis.GetRecordsInput, _ ...request.Option,
) (*kinesis.GetRecordsOutput, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stream, position := splitIterator(*input.ShardIterator)
	records := f.streams[stream]
	end := min(position+f.pageSize, len(records))
	return &kinesis.GetRecordsOutput{
		Records:            records[position:end],
		NextShardIterator:  aws.String(stream + ":" + strconv.Itoa(end)),
		MillisBehindLatest: aws.Int64(int64(len(records) - end)),
	}, nil
}

func splitIterator(
	iterator string,
) (string, int) {

	for i := len(iterator) - 1; i >= 0; i-- {
		if iterator[i] == ':' {
			position, _ := strconv.Atoi(iterator[i+1:])
			return iterator[:i], position
		}
	}
	return iterator, 0
}

func newTestSink(
	t *testing.T, fake *fakeKinesis,
) *awsKinesisSink {

	awsKinesisSink, err := newAwsKinesisSinkWithConnector(func() (kinesisiface.KinesisAPI, error) {
		return fake, nil
	})
	require.NoError(t, err)
	require.NoError(t, awsKinesisSink.Start())
	return awsKinesisSink
}

func Test_Kinesis_Exists(
	t *testing.T,
) {

	awsKinesisSink := newTestSink(t, newFakeKinesis("events"))

	exists, err := awsKinesisSink.Exists(context.Background(), "events")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = awsKinesisSink.Exists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func Test_Kinesis_Records_Are_Ordered_On_First_Shard(
	t *testing.T,
) {

	fake := newFakeKinesis("events")
	awsKinesisSink := newTestSink(t, fake)

	require.NoError(t, awsKinesisSink.Emit(context.Background(), "events", nil, []byte("a")))
	require.NoError(t, awsKinesisSink.EmitBatch(context.Background(), "events", []sink.Record{
		{Value: []byte("b")},
		{Key: []byte("key"), Value: []byte("c")},
	}))

	require.Len(t, fake.puts, 3)
	assert.Nil(t, fake.puts[0].SequenceNumberForOrdering)
	assert.Equal(t, "0", *fake.puts[1].SequenceNumberForOrdering)
	assert.Equal(t, "1", *fake.puts[2].SequenceNumberForOrdering)
	for _, put := range fake.puts {
		assert.Equal(t, firstShardHashKey, *put.ExplicitHashKey)
	}
	assert.Equal(t, "events", *fake.puts[0].PartitionKey)
	assert.Equal(t, "key", *fake.puts[2].PartitionKey)
}

func Test_Kinesis_Read_Last(
	t *testing.T,
) {

	fake := newFakeKinesis("events")
	awsKinesisSink := newTestSink(t, fake)

	_, found, err := awsKinesisSink.ReadLast(context.Background(), "events")
	require.NoError(t, err)
	assert.False(t, found)

	for i := 0; i < 5; i++ {
		require.NoError(t, awsKinesisSink.Emit(context.Background(), "events", nil, []byte(strconv.Itoa(i))))
	}

	value, found, err := awsKinesisSink.ReadLast(context.Background(), "events")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("4"), value)
}

func Test_Kinesis_Consume(
	t *testing.T,
) {

	fake := newFakeKinesis("events")
	awsKinesisSink := newTestSink(t, fake)
	require.NoError(t, awsKinesisSink.EmitBatch(context.Background(), "events", []sink.Record{
		{Value: []byte("a")},
		{Key: []byte("k"), Value: []byte("b")},
		{Value: []byte("c")},
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumed := make([]sink.Record, 0)
	err := awsKinesisSink.Consume(ctx, "events", func(_ context.Context, record sink.Record) error {
		consumed = append(consumed, record)
		if len(consumed) == 3 {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, lo.Map(consumed, func(record sink.Record, _ int) string {
		return string(record.Value)
	}))
	assert.Nil(t, consumed[0].Key)
	assert.Equal(t, []byte("k"), consumed[1].Key)
}

func Test_Kinesis_Creates_Configured_Stream(
	t *testing.T,
) {

	s, err := newAwsKinesisSink(&config.Config{
		Sink: config.SinkConfig{
			AwsKinesis: config.AwsKinesisConfig{
				Stream: config.AwsKinesisStreamConfig{
					Name: lo.ToPtr("events"),
					Mode: lo.ToPtr(kinesis.StreamModeOnDemand),
				},
				Aws: config.AwsConnectionConfig{
					Region: lo.ToPtr("eu-central-1"),
				},
			},
		},
	})
	require.NoError(t, err)

	fake := newFakeKinesis()
	awsKinesisSink := s.(*awsKinesisSink)
	awsKinesisSink.connect = func() (kinesisiface.KinesisAPI, error) {
		return fake, nil
	}
	require.NoError(t, awsKinesisSink.Start())

	require.Len(t, fake.created, 1)
	assert.Equal(t, "events", *fake.created[0].StreamName)
	assert.Nil(t, fake.created[0].ShardCount)
	assert.Equal(t, kinesis.StreamModeOnDemand, *fake.created[0].StreamModeDetails.StreamMode)

	require.NoError(t, awsKinesisSink.Start())
	assert.Len(t, fake.created, 1)
}

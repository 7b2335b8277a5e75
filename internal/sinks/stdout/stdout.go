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

package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/noctarius/event-connectors/spi/config"
	"github.com/noctarius/event-connectors/spi/sink"
)

func init() {
	sink.RegisterSink(config.Stdout, newStdoutSink)
}

// stdoutSink prints every record as a single line. Every topic exists
// and nothing can be read back.
type stdoutSink struct {
	mutex  sync.Mutex
	writer io.Writer
}

func newStdoutSink(
	_ *config.Config,
) (sink.Sink, error) {

	return &stdoutSink{writer: os.Stdout}, nil
}

func (s *stdoutSink) Start() error {
	return nil
}

func (s *stdoutSink) Stop() error {
	return nil
}

func (s *stdoutSink) Exists(
	_ context.Context, _ string,
) (bool, error) {

	return true, nil
}

func (s *stdoutSink) Emit(
	_ context.Context, topic string, key, value []byte,
) error {

	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.print(topic, sink.Record{Key: key, Value: value})
}

func (s *stdoutSink) EmitBatch(
	_ context.Context, topic string, records []sink.Record,
) error {

	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, record := range records {
		if err := s.print(topic, record); err != nil {
			return err
		}
	}
	return nil
}

func (s *stdoutSink) print(
	topic string, record sink.Record,
) error {

	if record.Key != nil {
		_, err := fmt.Fprintf(s.writer, "===> /%s [%s]: \t%s\n", topic, record.Key, record.Value)
		return err
	}
	_, err := fmt.Fprintf(s.writer, "===> /%s: \t%s\n", topic, record.Value)
	return err
}

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

package httpsource

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-errors/errors"
	"github.com/noctarius/event-connectors/internal/faults"
	"github.com/noctarius/event-connectors/internal/logging"
	"github.com/noctarius/event-connectors/internal/stats"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/noctarius/event-connectors/spi/sink"
)

const (
	defaultMethod   = http.MethodGet
	defaultInterval = 300
)

// Doer issues HTTP requests, *http.Client satisfies it.
type Doer interface {
	Do(request *http.Request) (*http.Response, error)
}

type Providers struct {
	Sink     sink.Provider
	Client   Doer
	Reporter *stats.Reporter
}

// Source polls an HTTP endpoint and writes every response body as one
// record without key into the configured topic.
type Source struct {
	logger   *logging.Logger
	reporter *stats.Reporter
	client   Doer
	sink     sink.Sink

	topic    string
	endpoint string
	method   string
	body     *string
	interval time.Duration
}

// NewSource starts the sink and checks the topic exists. The returned
// source is ready to Run.
func NewSource(
	ctx context.Context, c *config.Config, providers Providers,
) (*Source, error) {

	logger, err := logging.NewLogger("HttpSource")
	if err != nil {
		return nil, err
	}

	if providers.Sink == nil {
		providers.Sink = func(c *config.Config) (sink.Sink, error) {
			return sink.NewSink(config.GetOrDefault(c, config.PropertySink, config.Stdout), c)
		}
	}
	if providers.Client == nil {
		providers.Client = http.DefaultClient
	}

	endpoint := config.GetOrDefault(c, config.PropertyHttpSourceEndpoint, "")
	if endpoint == "" {
		return nil, errors.Errorf("no endpoint configured (%s)", config.PropertyHttpSourceEndpoint)
	}
	topic := config.GetOrDefault(c, config.PropertySinkTopic, "")
	if topic == "" {
		return nil, errors.Errorf("no topic configured (%s)", config.PropertySinkTopic)
	}

	interval := config.GetOrDefault(c, config.PropertyHttpSourceInterval, defaultInterval)
	if interval <= 0 {
		return nil, errors.Errorf("invalid interval %d (%s)", interval, config.PropertyHttpSourceInterval)
	}

	s := &Source{
		logger:   logger,
		reporter: providers.Reporter,
		client:   providers.Client,
		topic:    topic,
		endpoint: endpoint,
		method:   strings.ToUpper(config.GetOrDefault(c, config.PropertyHttpSourceMethod, defaultMethod)),
		body:     config.GetOrDefault[*string](c, config.PropertyHttpSourceBody, nil),
		interval: time.Duration(interval) * time.Second,
	}

	sinkInstance, err := providers.Sink(c)
	if err != nil {
		return nil, faults.Wrap(faults.ConnectionError, err, "failed to create sink")
	}
	if err := sinkInstance.Start(); err != nil {
		return nil, faults.Wrap(faults.ConnectionError, err, "failed to start sink")
	}
	s.sink = sinkInstance

	exists, err := sinkInstance.Exists(ctx, topic)
	if err != nil {
		s.stopSink()
		return nil, faults.Wrap(faults.ConnectionError, err, "failed to look up topic %s", topic)
	}
	if !exists {
		s.stopSink()
		return nil, faults.New(faults.TopicNotFound, "topic %s does not exist", topic)
	}
	return s, nil
}

// Run polls immediately and then once per interval until the context is
// cancelled. A failed request or write ends the run.
func (s *Source) Run(
	ctx context.Context,
) error {

	defer s.stopSink()

	s.logger.Infof("Polling %s %s every %s", s.method, s.endpoint, s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Source) poll(
	ctx context.Context,
) error {

	var body io.Reader
	if s.body != nil {
		body = strings.NewReader(*s.body)
	}

	request, err := http.NewRequestWithContext(ctx, s.method, s.endpoint, body)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := s.client.Do(request)
	if err != nil {
		return faults.Wrap(faults.ConnectionError, err, "request to %s failed", s.endpoint)
	}
	defer response.Body.Close()

	content, err := io.ReadAll(response.Body)
	if err != nil {
		return faults.Wrap(faults.ConnectionError, err, "failed to read response of %s", s.endpoint)
	}
	s.reporter.Incr("requests", stats.Tag("status", response.Status))
	s.logger.Debugf("Received %d bytes (%s) from %s", len(content), response.Status, s.endpoint)

	if err := s.sink.Emit(ctx, s.topic, nil, content); err != nil {
		return faults.Wrap(faults.EmissionError, err, "failed to send response of %s", s.endpoint)
	}
	s.reporter.Incr("records.emitted")
	return nil
}

func (s *Source) stopSink() {
	if s.sink == nil {
		return
	}
	if err := s.sink.Stop(); err != nil {
		s.logger.Warnf("Failed to stop sink: %v", err)
	}
	s.sink = nil
}

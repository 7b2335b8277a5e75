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

package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"

	"github.com/go-errors/errors"
	"github.com/noctarius/event-connectors/internal/logging"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/noctarius/event-connectors/spi/sink"
)

// Every record is POSTed to the configured url, one request per record.
// The topic and, if present, the record key travel as headers. The sink
// is write-only: every topic exists and nothing can be read back.

const (
	HeaderTopic = "X-Event-Topic"
	HeaderKey   = "X-Event-Key"
)

func init() {
	sink.RegisterSink(config.Http, newHttpSink)
}

type httpSink struct {
	logger  *logging.Logger
	client  *http.Client
	address string
	headers http.Header
}

func newHttpSink(
	c *config.Config,
) (sink.Sink, error) {

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.GetOrDefault(c, config.PropertyHttpTlsEnabled, false) {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: config.GetOrDefault(
				c, config.PropertyHttpTlsSkipVerify, false,
			),
			ClientAuth: config.GetOrDefault(
				c, config.PropertyHttpTlsClientAuth, tls.NoClientCert,
			),
		}
	}

	headers := make(http.Header)
	authenticationType := config.GetOrDefault(
		c, config.PropertyHttpAuthenticationType, config.NoneAuthentication,
	)
	switch authenticationType {
	case config.BasicAuthentication:
		username := config.GetOrDefault(c, config.PropertyHttpBasicAuthenticationUsername, "")
		password := config.GetOrDefault(c, config.PropertyHttpBasicAuthenticationPassword, "")
		headers.Set("Authorization", "Basic "+basicAuth(username, password))
	case config.HeaderAuthentication:
		name := config.GetOrDefault(c, config.PropertyHttpHeaderAuthenticationHeaderName, "")
		if name == "" {
			return nil, errors.Errorf("http header authentication requires %s",
				config.PropertyHttpHeaderAuthenticationHeaderName)
		}
		headers.Set(name, config.GetOrDefault(c, config.PropertyHttpHeaderAuthenticationHeaderValue, ""))
	case config.NoneAuthentication:
	default:
		return nil, errors.Errorf("http AuthenticationType '%s' doesn't exist", authenticationType)
	}

	address := config.GetOrDefault(c, config.PropertyHttpUrl, "http://localhost:80")
	return newHttpSinkWithClient(address, headers, &http.Client{Transport: transport})
}

func newHttpSinkWithClient(
	address string, headers http.Header, client *http.Client,
) (*httpSink, error) {

	logger, err := logging.NewLogger("HttpSink")
	if err != nil {
		return nil, err
	}
	return &httpSink{
		logger:  logger,
		client:  client,
		address: address,
		headers: headers,
	}, nil
}

func (h *httpSink) Start() error {
	return nil
}

func (h *httpSink) Stop() error {
	h.client.CloseIdleConnections()
	return nil
}

func (h *httpSink) Exists(
	_ context.Context, _ string,
) (bool, error) {

	return true, nil
}

func (h *httpSink) Emit(
	ctx context.Context, topic string, key, value []byte,
) error {

	return h.post(ctx, topic, sink.Record{Key: key, Value: value})
}

// EmitBatch posts the records one after the other and stops at the
// first failure.
func (h *httpSink) EmitBatch(
	ctx context.Context, topic string, records []sink.Record,
) error {

	for _, record := range records {
		if err := h.post(ctx, topic, record); err != nil {
			return err
		}
	}
	return nil
}

func (h *httpSink) post(
	ctx context.Context, topic string, record sink.Record,
) error {

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, h.address, bytes.NewReader(record.Value))
	if err != nil {
		return errors.Wrap(err, 0)
	}

	request.Header = h.headers.Clone()
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set(HeaderTopic, topic)
	if record.Key != nil {
		request.Header.Set(HeaderKey, string(record.Key))
	}

	response, err := h.client.Do(request)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	defer response.Body.Close()

	if _, err := io.Copy(io.Discard, response.Body); err != nil {
		h.logger.Debugf("Failed to drain response body: %v", err)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return errors.Errorf("POST %s returned %s", h.address, response.Status)
	}
	return nil
}

func basicAuth(
	username, password string,
) string {

	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", username, password)))
}

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
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/noctarius/event-connectors/spi/config"
	"github.com/noctarius/event-connectors/spi/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receivedRequest struct {
	header http.Header
	body   string
}

type recordingServer struct {
	*httptest.Server
	mutex    sync.Mutex
	status   int
	requests []receivedRequest
}

func newRecordingServer(
	t *testing.T, status int,
) *recordingServer {

	server := &recordingServer{status: status}
	server.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, http.MethodPost, r.Method)

		server.mutex.Lock()
		server.requests = append(server.requests, receivedRequest{header: r.Header.Clone(), body: string(body)})
		server.mutex.Unlock()
		w.WriteHeader(server.status)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestSink(
	t *testing.T, c *config.Config,
) sink.Sink {

	httpSink, err := newHttpSink(c)
	require.NoError(t, err)
	require.NoError(t, httpSink.Start())
	t.Cleanup(func() {
		assert.NoError(t, httpSink.Stop())
	})
	return httpSink
}

func Test_Http_Emit_And_Batch(
	t *testing.T,
) {

	server := newRecordingServer(t, http.StatusAccepted)
	httpSink := newTestSink(t, &config.Config{
		Sink: config.SinkConfig{Http: config.HttpConfig{Url: server.URL}},
	})

	exists, err := httpSink.Exists(context.Background(), "events")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, httpSink.Emit(context.Background(), "events", []byte("k1"), []byte(`{"lsn":1}`)))
	require.NoError(t, httpSink.EmitBatch(context.Background(), "events", []sink.Record{
		{Value: []byte(`{"lsn":2}`)},
		{Value: []byte(`{"lsn":3}`)},
	}))

	require.Len(t, server.requests, 3)
	assert.Equal(t, `{"lsn":1}`, server.requests[0].body)
	assert.Equal(t, "k1", server.requests[0].header.Get(HeaderKey))
	assert.Equal(t, "events", server.requests[0].header.Get(HeaderTopic))
	assert.Equal(t, "application/json", server.requests[0].header.Get("Content-Type"))
	assert.Empty(t, server.requests[1].header.Get(HeaderKey))
	assert.Equal(t, `{"lsn":3}`, server.requests[2].body)
	assert.Empty(t, server.requests[0].header.Get("Authorization"))
}

func Test_Http_Basic_Authentication(
	t *testing.T,
) {

	server := newRecordingServer(t, http.StatusOK)
	httpSink := newTestSink(t, &config.Config{
		Sink: config.SinkConfig{Http: config.HttpConfig{
			Url: server.URL,
			Authentication: config.HttpAuthenticationConfig{
				Type:  config.BasicAuthentication,
				Basic: config.HttpBasicAuthenticationConfig{Username: "user", Password: "secret"},
			},
		}},
	})

	require.NoError(t, httpSink.Emit(context.Background(), "events", nil, []byte("{}")))
	require.Len(t, server.requests, 1)
	assert.Equal(t, "Basic dXNlcjpzZWNyZXQ=", server.requests[0].header.Get("Authorization"))
}

func Test_Http_Header_Authentication(
	t *testing.T,
) {

	server := newRecordingServer(t, http.StatusOK)
	httpSink := newTestSink(t, &config.Config{
		Sink: config.SinkConfig{Http: config.HttpConfig{
			Url: server.URL,
			Authentication: config.HttpAuthenticationConfig{
				Type:   config.HeaderAuthentication,
				Header: config.HttpHeaderAuthenticationConfig{Name: "X-Api-Key", Value: "token"},
			},
		}},
	})

	require.NoError(t, httpSink.Emit(context.Background(), "events", nil, []byte("{}")))
	require.Len(t, server.requests, 1)
	assert.Equal(t, "token", server.requests[0].header.Get("X-Api-Key"))
}

func Test_Http_Rejected_Status_Fails(
	t *testing.T,
) {

	server := newRecordingServer(t, http.StatusInternalServerError)
	httpSink := newTestSink(t, &config.Config{
		Sink: config.SinkConfig{Http: config.HttpConfig{Url: server.URL}},
	})

	err := httpSink.EmitBatch(context.Background(), "events", []sink.Record{
		{Value: []byte("first")},
		{Value: []byte("second")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Len(t, server.requests, 1)
}

func Test_Http_Invalid_Authentication(
	t *testing.T,
) {

	_, err := newHttpSink(&config.Config{
		Sink: config.SinkConfig{Http: config.HttpConfig{
			Authentication: config.HttpAuthenticationConfig{Type: "oauth"},
		}},
	})
	assert.ErrorContains(t, err, "oauth")

	_, err = newHttpSink(&config.Config{
		Sink: config.SinkConfig{Http: config.HttpConfig{
			Authentication: config.HttpAuthenticationConfig{Type: config.HeaderAuthentication},
		}},
	})
	assert.ErrorContains(t, err, config.PropertyHttpHeaderAuthenticationHeaderName)
}

func Test_Http_Registered(
	t *testing.T,
) {

	assert.Contains(t, sink.RegisteredSinks(), config.Http)

	created, err := sink.NewSink(config.Http, &config.Config{})
	require.NoError(t, err)
	assert.IsType(t, &httpSink{}, created)
}

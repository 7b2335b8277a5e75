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

package stats

import (
	"context"
	"io"
	"net/http"

	"github.com/go-errors/errors"
	"github.com/noctarius/event-connectors/internal/version"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/segmentio/stats/v4"
	"github.com/segmentio/stats/v4/procstats"
	"github.com/segmentio/stats/v4/prometheus"
)

const defaultAddress = ":8081"

type Service struct {
	statsEnabled     bool
	runtimeEnabled   bool
	handler          *prometheus.Handler
	engine           *stats.Engine
	server           *http.Server
	runtimeCollector io.Closer
}

func NewStatsService(
	c *config.Config,
) *Service {

	statsHandler := &prometheus.Handler{
		TrimPrefix: version.BinName,
	}

	statsEnabled := config.GetOrDefault(c, config.PropertyStatsEnabled, true)
	runtimeStatsEnabled := config.GetOrDefault(c, config.PropertyRuntimeStatsEnabled, true)
	address := config.GetOrDefault(c, config.PropertyStatsAddress, defaultAddress)

	engine := stats.NewEngine(version.BinName, statsHandler)

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", statsHandler.ServeHTTP)

	return &Service{
		statsEnabled:   statsEnabled,
		runtimeEnabled: runtimeStatsEnabled,
		handler:        statsHandler,
		engine:         engine,
		server: &http.Server{
			Addr:    address,
			Handler: mux,
		},
	}
}

func (s *Service) Start() error {
	if !s.statsEnabled {
		return nil
	}

	if s.runtimeEnabled {
		s.runtimeCollector = procstats.StartCollector(procstats.NewGoMetricsWith(s.engine))
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(err)
		}
	}()
	return nil
}

func (s *Service) Stop() error {
	if !s.statsEnabled {
		return nil
	}
	if s.runtimeCollector != nil {
		s.runtimeCollector.Close()
		s.runtimeCollector = nil
	}
	s.engine.Flush()
	return s.server.Shutdown(context.Background())
}

// Shutdown stops the service when its container shuts down.
func (s *Service) Shutdown() error {
	return s.Stop()
}

// Handler exposes the metrics endpoint, mostly for tests.
func (s *Service) Handler() http.Handler {
	return s.handler
}

func (s *Service) NewReporter(
	prefix string,
) *Reporter {

	return &Reporter{
		statsEnabled: s.statsEnabled,
		engine:       s.engine.WithPrefix(prefix),
	}
}

// Reporter records measures under a common prefix. A nil Reporter or a
// Reporter of a disabled service drops everything.
type Reporter struct {
	statsEnabled bool
	engine       *stats.Engine
}

func (r *Reporter) Incr(
	name string, tags ...stats.Tag,
) {

	if r == nil || !r.statsEnabled {
		return
	}
	r.engine.Incr(name, tags...)
}

func (r *Reporter) Add(
	name string, value int, tags ...stats.Tag,
) {

	if r == nil || !r.statsEnabled {
		return
	}
	r.engine.Add(name, value, tags...)
}

func (r *Reporter) Set(
	name string, value uint64, tags ...stats.Tag,
) {

	if r == nil || !r.statsEnabled {
		return
	}
	r.engine.Set(name, value, tags...)
}

func Tag(
	name, value string,
) stats.Tag {

	return stats.T(name, value)
}

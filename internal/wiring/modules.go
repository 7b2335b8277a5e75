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

package wiring

import (
	"github.com/noctarius/event-connectors/internal/connectors/httpsource"
	"github.com/noctarius/event-connectors/internal/connectors/sqlsink"
	"github.com/noctarius/event-connectors/internal/hosting"
	"github.com/noctarius/event-connectors/internal/replication"
	"github.com/noctarius/event-connectors/internal/stats"
	"github.com/noctarius/event-connectors/spi/config"

	// Output log implementations
	_ "github.com/noctarius/event-connectors/internal/sinks/awskinesis"
	_ "github.com/noctarius/event-connectors/internal/sinks/awssqs"
	_ "github.com/noctarius/event-connectors/internal/sinks/http"
	_ "github.com/noctarius/event-connectors/internal/sinks/kafka"
	_ "github.com/noctarius/event-connectors/internal/sinks/nats"
	_ "github.com/noctarius/event-connectors/internal/sinks/redis"
	_ "github.com/noctarius/event-connectors/internal/sinks/stdout"

	// Transforms
	_ "github.com/noctarius/event-connectors/internal/transforms/expression"
	_ "github.com/noctarius/event-connectors/internal/transforms/goplugin"
	_ "github.com/noctarius/event-connectors/internal/transforms/uppercase"
)

// CoreModule provides the configuration, the stats service (started
// while the container is built) and the restart host of a connector.
func CoreModule(
	name string, c *config.Config,
) Module {

	return DefineModule("Core", func(module Module) {
		module.Provide(func() *config.Config {
			return c
		})
		module.Provide(stats.NewStatsService)
		module.Provide(func(c *config.Config) (*hosting.Host, error) {
			return hosting.NewHost(name, c)
		})
		module.Invoke(func(service *stats.Service) error {
			return service.Start()
		})
	})
}

var ReplicationModule = DefineModule("Replication", func(module Module) {
	module.Provide(func(service *stats.Service) replication.Providers {
		return replication.Providers{
			Reporter: service.NewReporter("replication"),
		}
	})
})

var HttpSourceModule = DefineModule("HttpSource", func(module Module) {
	module.Provide(func(service *stats.Service) httpsource.Providers {
		return httpsource.Providers{
			Reporter: service.NewReporter("httpsource"),
		}
	})
})

var SqlSinkModule = DefineModule("SqlSink", func(module Module) {
	module.Provide(func(service *stats.Service) sqlsink.Providers {
		return sqlsink.Providers{
			Reporter: service.NewReporter("sqlsink"),
		}
	})
})

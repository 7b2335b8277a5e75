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

package main

import (
	"context"
	"log"
	"os"

	"github.com/noctarius/event-connectors/internal/connectors"
	"github.com/noctarius/event-connectors/internal/connectors/httpsource"
	"github.com/noctarius/event-connectors/internal/hosting"
	"github.com/noctarius/event-connectors/internal/launcher"
	"github.com/noctarius/event-connectors/internal/wiring"
	"github.com/noctarius/event-connectors/spi/config"
)

var metadata = connectors.NewMetadata(
	"http-source",
	"Polls an HTTP endpoint and writes every response body into a topic",
	connectors.Source,
	connectors.Property{Name: config.PropertyHttpSourceEndpoint, Description: "Endpoint to poll", Required: true},
	connectors.Property{Name: config.PropertyHttpSourceMethod, Description: "HTTP method of the request", Default: "GET"},
	connectors.Property{Name: config.PropertyHttpSourceBody, Description: "Request body"},
	connectors.Property{Name: config.PropertyHttpSourceInterval, Description: "Seconds between requests", Default: "300"},
)

func main() {
	app := launcher.NewApp(launcher.Connector{
		Metadata: metadata,
		Modules:  []wiring.Module{wiring.HttpSourceModule},
		Attempt:  newAttempt,
	})

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newAttempt(
	container wiring.Container,
) (hosting.Attempt, error) {

	var c *config.Config
	if err := container.Service(&c); err != nil {
		return nil, err
	}
	var providers httpsource.Providers
	if err := container.Service(&providers); err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		source, err := httpsource.NewSource(ctx, c, providers)
		if err != nil {
			return err
		}
		return source.Run(ctx)
	}, nil
}

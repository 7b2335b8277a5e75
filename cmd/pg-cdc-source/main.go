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
	"github.com/noctarius/event-connectors/internal/hosting"
	"github.com/noctarius/event-connectors/internal/launcher"
	"github.com/noctarius/event-connectors/internal/replication"
	"github.com/noctarius/event-connectors/internal/wiring"
	"github.com/noctarius/event-connectors/spi/config"
)

var metadata = connectors.NewMetadata(
	"pg-cdc-source",
	"Streams logical replication changes of a Postgres publication into a topic",
	connectors.Source,
	connectors.Property{Name: config.PropertyPostgresqlConnection, Description: "Connection string of the source database", Required: true},
	connectors.Property{Name: config.PropertyPostgresqlPassword, Description: "Password overriding the one of the connection string"},
	connectors.Property{Name: config.PropertyPostgresqlPublicationName, Description: "Publication to stream", Required: true},
	connectors.Property{Name: config.PropertyPostgresqlReplicationSlotName, Description: "Existing pgoutput replication slot", Required: true},
	connectors.Property{Name: config.PropertyPostgresqlStatusInterval, Description: "Seconds between standby status updates, negative disables", Default: "10"},
	connectors.Property{Name: config.PropertySinkResumeTimeout, Description: "Milliseconds to wait for the last record of the topic", Default: "1000"},
)

func main() {
	app := launcher.NewApp(launcher.Connector{
		Metadata: metadata,
		Modules:  []wiring.Module{wiring.ReplicationModule},
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
	var providers replication.Providers
	if err := container.Service(&providers); err != nil {
		return nil, err
	}

	return func(ctx context.Context) error {
		session, err := replication.NewSession(ctx, c, providers)
		if err != nil {
			return err
		}
		return session.Run(ctx)
	}, nil
}

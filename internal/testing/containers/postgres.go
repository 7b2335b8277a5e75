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

package containers

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	databaseName = "connectors"
	postgresUser = "postgres"
	postgresPass = "postgres"
)

// PostgresSetup is a logically replicating database with a publication
// and a pgoutput replication slot.
type PostgresSetup struct {
	ConnectionString string
	Publication      string
	ReplicationSlot  string
}

// SetupPostgresContainer starts Postgres with wal_level=logical and runs
// the given statements before creating publication and slot.
func SetupPostgresContainer(
	ctx context.Context, publication, slot string, statements ...string,
) (testcontainers.Container, *PostgresSetup, error) {

	logs, err := withLogs("testcontainers-postgres")
	if err != nil {
		return nil, nil, err
	}

	request := testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Cmd:          []string{"-c", "fsync=off", "-c", "wal_level=logical"},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(time.Minute),
			Env: map[string]string{
				"POSTGRES_DB":       databaseName,
				"POSTGRES_PASSWORD": postgresPass,
				"POSTGRES_USER":     postgresUser,
			},
		},
		Started: true,
	}
	if err := logs.Customize(&request); err != nil {
		return nil, nil, err
	}

	container, err := testcontainers.GenericContainer(ctx, request)
	if err != nil {
		return nil, nil, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		postgresUser, postgresPass, host, port.Int(), databaseName)

	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}
	defer conn.Close(ctx)

	statements = append(statements,
		fmt.Sprintf("CREATE PUBLICATION %s FOR ALL TABLES", pgx.Identifier{publication}.Sanitize()),
		fmt.Sprintf("SELECT pg_create_logical_replication_slot('%s', 'pgoutput')", slot),
	)
	for _, statement := range statements {
		if _, err := conn.Exec(ctx, statement); err != nil {
			_ = container.Terminate(ctx)
			return nil, nil, err
		}
	}

	return container, &PostgresSetup{
		ConnectionString: connString,
		Publication:      publication,
		ReplicationSlot:  slot,
	}, nil
}

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

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SetupRedPandaContainer starts a single node Kafka compatible broker
// with automatic topic creation disabled.
func SetupRedPandaContainer(
	ctx context.Context,
) (testcontainers.Container, []string, error) {

	logs, err := withLogs("testcontainers-redpanda")
	if err != nil {
		return nil, nil, err
	}

	containerRequest := testcontainers.ContainerRequest{
		Image:        "redpandadata/redpanda:v23.1.4",
		ExposedPorts: []string{"9092:9092/tcp"},
		Cmd: []string{
			"redpanda", "start", "--mode", "dev-container", "--smp", "1",
			"--set", "redpanda.auto_create_topics_enabled=false",
		},
		WaitingFor: wait.ForLog("Initialized cluster_id to"),
	}

	request := testcontainers.GenericContainerRequest{
		ContainerRequest: containerRequest,
		Started:          true,
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

	port, err := container.MappedPort(ctx, "9092/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	return container, []string{fmt.Sprintf("%s:%d", host, port.Int())}, nil
}

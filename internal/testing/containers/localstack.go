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
	"github.com/testcontainers/testcontainers-go/modules/localstack"
)

const localStackImage = "localstack/localstack:3.8"

func setupLocalStack(
	ctx context.Context, services string, env map[string]string,
) (testcontainers.Container, string, error) {

	logs, err := withLogs("testcontainers-localstack")
	if err != nil {
		return nil, "", err
	}

	environment := map[string]string{
		"SERVICES":              services,
		"EAGER_SERVICE_LOADING": "1",
	}
	for key, value := range env {
		environment[key] = value
	}

	container, err := localstack.Run(ctx, localStackImage, testcontainers.WithEnv(environment), logs)
	if err != nil {
		return nil, "", err
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", err
	}

	port, err := container.MappedPort(ctx, "4566/tcp")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", err
	}

	return container, fmt.Sprintf("http://%s:%d", host, port.Int()), nil
}

// SetupLocalStackWithSQS starts localstack serving SQS and returns its
// endpoint.
func SetupLocalStackWithSQS(
	ctx context.Context,
) (testcontainers.Container, string, error) {

	return setupLocalStack(ctx, "sqs", map[string]string{
		"SQS_ENDPOINT_STRATEGY":          "path",
		"SQS_DISABLE_CLOUDWATCH_METRICS": "1",
	})
}

// SetupLocalStackWithKinesis starts localstack serving Kinesis and
// returns its endpoint.
func SetupLocalStackWithKinesis(
	ctx context.Context,
) (testcontainers.Container, string, error) {

	return setupLocalStack(ctx, "kinesis", nil)
}

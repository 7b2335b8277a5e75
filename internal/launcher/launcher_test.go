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

package launcher

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/noctarius/event-connectors/internal/connectors"
	"github.com/noctarius/event-connectors/internal/hosting"
	"github.com/noctarius/event-connectors/internal/wiring"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/noctarius/event-connectors/spi/encoding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

var testMetadata = connectors.NewMetadata("test-connector", "Connector for tests", connectors.Source,
	connectors.Property{Name: config.PropertySinkTopic, Description: "Topic", Required: true},
)

func Test_Metadata_Command(
	t *testing.T,
) {

	app := NewApp(Connector{Metadata: testMetadata})
	stdout := &bytes.Buffer{}
	app.Writer = stdout

	require.NoError(t, app.Run([]string{"test-connector", "metadata"}))

	decoded := connectors.Metadata{}
	require.NoError(t, encoding.NewJsonDecoder(true).Unmarshal(stdout.Bytes(), &decoded))
	assert.Equal(t, "test-connector", decoded.Name)
	assert.Equal(t, connectors.Source, decoded.Direction)
}

func Test_Version_Flag(
	t *testing.T,
) {

	app := NewApp(Connector{Metadata: testMetadata})
	stderr := &bytes.Buffer{}
	app.ErrWriter = stderr

	require.NoError(t, app.Run([]string{"test-connector", "--version"}))
	assert.Contains(t, stderr.String(), "test-connector version")
}

func Test_Runs_Connector(
	t *testing.T,
) {

	t.Setenv("SINK_TOPIC", "events")
	t.Setenv("STATS_ENABLED", "false")

	runs := 0
	app := NewApp(Connector{
		Metadata: testMetadata,
		Attempt: func(container wiring.Container) (hosting.Attempt, error) {
			var c *config.Config
			if err := container.Service(&c); err != nil {
				return nil, err
			}
			return func(ctx context.Context) error {
				runs++
				assert.Equal(t, "events", config.GetOrDefault(c, config.PropertySinkTopic, ""))
				return nil
			}, nil
		},
	})
	app.ErrWriter = &bytes.Buffer{}

	require.NoError(t, app.Run([]string{"test-connector"}))
	assert.Equal(t, 1, runs)
}

func Test_LoadConfig(
	t *testing.T,
) {

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[sink]\ntopic = \"events\"\n"), 0o600))

	c, err := LoadConfig(&bytes.Buffer{}, path)
	require.NoError(t, err)
	assert.Equal(t, "events", c.Sink.Topic)

	t.Setenv(ConfigEnvVar, path)
	c, err = LoadConfig(&bytes.Buffer{}, "")
	require.NoError(t, err)
	assert.Equal(t, "events", c.Sink.Topic)

	_, err = LoadConfig(&bytes.Buffer{}, filepath.Join(t.TempDir(), "missing.yaml"))
	exitErr, ok := err.(*cli.ExitError)
	require.True(t, ok)
	assert.Equal(t, 3, exitErr.ExitCode())
}

func Test_Validate(
	t *testing.T,
) {

	err := Validate(&config.Config{}, testMetadata)
	assert.ErrorContains(t, err, config.PropertySinkTopic)

	err = Validate(&config.Config{Sink: config.SinkConfig{Topic: "events"}}, testMetadata)
	assert.NoError(t, err)
}

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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/noctarius/event-connectors/internal/connectors"
	"github.com/noctarius/event-connectors/internal/hosting"
	"github.com/noctarius/event-connectors/internal/logging"
	"github.com/noctarius/event-connectors/internal/supporting"
	"github.com/noctarius/event-connectors/internal/version"
	"github.com/noctarius/event-connectors/internal/waiting"
	"github.com/noctarius/event-connectors/internal/wiring"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/urfave/cli"
)

const (
	ConfigEnvVar = "EVENT_CONNECTORS_CONFIG"

	shutdownGracePeriod = 30 * time.Second
)

// AttemptFactory resolves the services a connector needs from the
// container and returns a function running the connector once.
type AttemptFactory func(container wiring.Container) (hosting.Attempt, error)

type Connector struct {
	Metadata connectors.Metadata
	Modules  []wiring.Module
	Attempt  AttemptFactory
}

type flags struct {
	configurationFile string
	verbose           bool
	withCaller        bool
	logToStdErr       bool
	versionOnly       bool
	profiling         bool
}

// NewApp creates the command line application of a connector binary,
// running the connector by default and printing its self-description
// for the metadata command.
func NewApp(
	connector Connector,
) *cli.App {

	f := &flags{}

	app := cli.NewApp()
	app.Name = connector.Metadata.Name
	app.Usage = connector.Metadata.Description
	app.Version = version.Version
	app.HideVersion = true
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "config,c",
			Usage:       "Load configuration from `FILE`",
			Destination: &f.configurationFile,
		},
		cli.BoolFlag{
			Name:        "verbose",
			Usage:       "Show verbose output",
			Destination: &f.verbose,
		},
		cli.BoolFlag{
			Name:        "caller",
			Usage:       "Collect caller information for log messages",
			Destination: &f.withCaller,
		},
		cli.BoolFlag{
			Name:        "log-to-stderr",
			Usage:       "Redirects logging output to stderr, implied by the stdout sink",
			Destination: &f.logToStdErr,
		},
		cli.BoolFlag{
			Name:        "version",
			Usage:       "Prints the version and exits",
			Destination: &f.versionOnly,
		},
		cli.BoolFlag{
			Name:        "profiling",
			Usage:       "Writes a CPU profile to cpu.prof",
			Destination: &f.profiling,
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "metadata",
			Usage: "Prints the connector description as JSON and exits",
			Action: func(ctx *cli.Context) error {
				return supporting.AdaptError(connector.Metadata.Print(ctx.App.Writer))
			},
		},
	}
	app.Action = func(ctx *cli.Context) error {
		return start(ctx.App.ErrWriter, connector, f)
	}
	return app
}

func start(
	stderr io.Writer, connector Connector, f *flags,
) error {

	fmt.Fprintf(stderr, "%s version %s (git revision %s; branch %s)\n",
		connector.Metadata.Name, version.Version, version.CommitHash, version.Branch,
	)

	if f.versionOnly {
		return nil
	}

	if f.profiling {
		cpuProfile, err := os.Create("cpu.prof")
		if err != nil {
			return supporting.AdaptErrorWithMessage(err, "CPU profile couldn't be created", supporting.ExitCodeFailure)
		}
		if err := pprof.StartCPUProfile(cpuProfile); err != nil {
			return supporting.AdaptErrorWithMessage(err, "CPU profiling couldn't be started", supporting.ExitCodeFailure)
		}
		defer pprof.StopCPUProfile()
	}

	logging.WithCaller = f.withCaller
	logging.WithVerbose = f.verbose

	c, err := LoadConfig(stderr, f.configurationFile)
	if err != nil {
		return err
	}

	logToStdErr := f.logToStdErr ||
		config.GetOrDefault(c, config.PropertySink, config.Stdout) == config.Stdout
	if err := logging.InitializeLogging(c, logToStdErr); err != nil {
		return supporting.AdaptErrorWithMessage(err, "Logging couldn't be initialized", supporting.ExitCodeConfig)
	}

	if err := Validate(c, connector.Metadata); err != nil {
		return err
	}

	modules := append([]wiring.Module{wiring.CoreModule(connector.Metadata.Name, c)}, connector.Modules...)
	container, err := wiring.NewContainer(modules...)
	if err != nil {
		return supporting.AdaptError(err)
	}
	defer container.Shutdown()

	var host *hosting.Host
	if err := container.Service(&host); err != nil {
		return supporting.AdaptError(err)
	}
	attempt, err := connector.Attempt(container)
	if err != nil {
		return supporting.AdaptError(err)
	}

	awaiter := waiting.NewShutdownAwaiter(shutdownGracePeriod)
	ctx, cancel := awaiter.Context(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(signals)

	go func() {
		select {
		case <-signals:
		case <-ctx.Done():
			return
		}
		awaiter.SignalShutdown()
		if err := awaiter.AwaitDone(); err != nil {
			fmt.Fprintf(stderr, "Connector didn't stop within %s, exiting\n", shutdownGracePeriod)
			os.Exit(supporting.ExitCodeFailure)
		}
	}()

	err = host.Run(ctx, attempt)
	awaiter.SignalDone()
	return supporting.AdaptError(err)
}

// LoadConfig reads the configuration file given on the command line or
// through EVENT_CONNECTORS_CONFIG. Without a file all properties come
// from the environment.
func LoadConfig(
	stderr io.Writer, configurationFile string,
) (*config.Config, error) {

	if configurationFile == "" {
		if cf, present := os.LookupEnv(ConfigEnvVar); present {
			fmt.Fprintf(stderr, "Using configuration file from environment variable\n")
			configurationFile = cf
		}
	}

	if configurationFile == "" {
		return &config.Config{}, nil
	}

	fmt.Fprintf(stderr, "Loading configuration file: %s\n", configurationFile)
	c, err := config.LoadFile(configurationFile)
	if err != nil {
		return nil, supporting.AdaptErrorWithMessage(err, "Configuration file couldn't be loaded", supporting.ExitCodeConfig)
	}
	return c, nil
}

// Validate checks that all required properties of the connector are set.
func Validate(
	c *config.Config, metadata connectors.Metadata,
) error {

	for _, property := range metadata.Properties {
		if property.Required && config.GetOrDefault(c, property.Name, "") == "" {
			return cli.NewExitError(fmt.Sprintf("Property %s is required", property.Name), supporting.ExitCodeConfig)
		}
	}
	return nil
}

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

package connectors

import (
	"io"

	"github.com/go-errors/errors"
	"github.com/noctarius/event-connectors/internal/version"
	"github.com/noctarius/event-connectors/spi/encoding"
)

type Direction string

const (
	Source Direction = "Source"
	Sink   Direction = "Sink"
)

type Property struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// Metadata is the self-description a connector binary prints for its
// metadata command.
type Metadata struct {
	Name        string     `json:"name"`
	Version     string     `json:"version"`
	Description string     `json:"description"`
	Direction   Direction  `json:"direction"`
	Properties  []Property `json:"properties"`
}

// CommonProperties are understood by every connector.
var CommonProperties = []Property{
	{Name: "sink.type", Description: "Output log implementation: kafka, nats, redis, kinesis, sqs, http or stdout", Default: "stdout"},
	{Name: "sink.topic", Description: "Topic, stream or queue the connector works on", Required: true},
	{Name: "transform.type", Description: "Record transform: none, uppercase, expression or plugin", Default: "none"},
	{Name: "transform.expression", Description: "Expression evaluated by the expression transform"},
	{Name: "transform.plugin.path", Description: "Go plugin exporting the Transform symbol"},
	{Name: "restart.maxattempts", Description: "Restarts after connection failures, negative for unlimited", Default: "5"},
	{Name: "stats.enabled", Description: "Expose Prometheus metrics", Default: "true"},
	{Name: "stats.address", Description: "Listen address of the metrics endpoint", Default: ":8081"},
}

func NewMetadata(
	name, description string, direction Direction, properties ...Property,
) Metadata {

	return Metadata{
		Name:        name,
		Version:     version.Version,
		Description: description,
		Direction:   direction,
		Properties:  append(append([]Property{}, properties...), CommonProperties...),
	}
}

func (m Metadata) Print(
	writer io.Writer,
) error {

	content, err := encoding.NewJsonEncoder(false).MarshalIndent(m)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	if _, err := writer.Write(append(content, '\n')); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

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

package transform

import (
	"github.com/noctarius/event-connectors/spi/config"
)

// Transform processes one encoded record into zero or more output
// records. Dropping, duplicating and rewriting are all permitted.
type Transform interface {
	Process(record []byte) ([][]byte, error)
}

// Func adapts a plain function to the Transform interface.
type Func func(record []byte) ([][]byte, error)

func (f Func) Process(
	record []byte,
) ([][]byte, error) {

	return f(record)
}

type Provider = func(config *config.Config) (Transform, error)

// Selector is either empty or holds a configured transform. Callers take
// both branches through Apply.
type Selector struct {
	transform Transform
}

// None selects no transform.
func None() Selector {
	return Selector{}
}

func Configured(
	transform Transform,
) Selector {

	return Selector{transform: transform}
}

func (s Selector) IsConfigured() bool {
	return s.transform != nil
}

// Apply runs the selected transform. Without a transform the record is
// passed through unchanged and configured reports false, so callers can
// keep the untransformed single-record path.
func (s Selector) Apply(
	record []byte,
) (outputs [][]byte, configured bool, err error) {

	if s.transform == nil {
		return [][]byte{record}, false, nil
	}
	outputs, err = s.transform.Process(record)
	return outputs, true, err
}

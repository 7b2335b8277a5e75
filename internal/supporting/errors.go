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

package supporting

import (
	"fmt"

	"github.com/noctarius/event-connectors/internal/faults"
	"github.com/urfave/cli"
)

const (
	ExitCodeFailure = 1
	ExitCodeConfig  = 3
)

var exitCodes = map[faults.Kind]int{
	faults.ConnectionError:       10,
	faults.TopicNotFound:         11,
	faults.ResumeDecodeError:     12,
	faults.ReplicationStartError: 13,
	faults.ProtocolStreamError:   14,
	faults.ConversionError:       15,
	faults.EmissionError:         16,
}

// ExitCode maps an error to the exit code of its fault kind.
func ExitCode(
	err error,
) int {

	if code, ok := exitCodes[faults.KindOf(err)]; ok {
		return code
	}
	return ExitCodeFailure
}

// AdaptError converts err into a cli exit error carrying the exit code
// of its fault kind. Existing exit errors are passed through.
func AdaptError(
	err error,
) error {

	if err == nil {
		return nil
	}
	if e, ok := err.(*cli.ExitError); ok {
		return e
	}
	return cli.NewExitError(err.Error(), ExitCode(err))
}

func AdaptErrorWithMessage(
	err error, msg string, exitCode int,
) error {

	if err == nil {
		return nil
	}
	if e, ok := err.(*cli.ExitError); ok {
		return e
	}
	return cli.NewExitError(fmt.Sprintf("%s => err: %s", msg, err.Error()), exitCode)
}

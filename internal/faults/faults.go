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

package faults

import (
	stderrors "errors"
	"fmt"

	"github.com/go-errors/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Kind classifies connector failures by their disposition.
type Kind int

const (
	Unknown Kind = iota
	// ConnectionError means an upstream or downstream connect failed.
	ConnectionError
	// TopicNotFound means the target topic or stream does not exist.
	TopicNotFound
	// ResumeDecodeError means the tail record of the output log could not
	// be decoded as an event.
	ResumeDecodeError
	// ReplicationStartError means the server rejected START_REPLICATION.
	ReplicationStartError
	// ConversionError means a single WAL payload could not be converted.
	ConversionError
	// EmissionError means the transform or the downstream write failed
	// for a single event.
	EmissionError
	// ProtocolStreamError means the replication stream broke mid-session.
	ProtocolStreamError
)

func (k Kind) String() string {
	switch k {
	case ConnectionError:
		return "ConnectionError"
	case TopicNotFound:
		return "TopicNotFound"
	case ResumeDecodeError:
		return "ResumeDecodeError"
	case ReplicationStartError:
		return "ReplicationStartError"
	case ConversionError:
		return "ConversionError"
	case EmissionError:
		return "EmissionError"
	case ProtocolStreamError:
		return "ProtocolStreamError"
	}
	return "Unknown"
}

// Fatal reports whether failures of this kind end the session. Only
// per-message failures are recoverable.
func (k Kind) Fatal() bool {
	return k != ConversionError && k != EmissionError
}

type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause.Error())
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(
	kind Kind, format string, args ...any,
) error {

	return errors.Wrap(&Error{Kind: kind, Message: fmt.Sprintf(format, args...)}, 1)
}

func Wrap(
	kind Kind, cause error, format string, args ...any,
) error {

	if cause == nil {
		return nil
	}
	return errors.Wrap(&Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}, 1)
}

// KindOf returns the kind of the first classified error in the chain.
func KindOf(
	err error,
) Kind {

	var fault *Error
	if stderrors.As(err, &fault) {
		return fault.Kind
	}
	return Unknown
}

// IsFatal reports whether err ends the session. Unclassified errors are
// fatal.
func IsFatal(
	err error,
) bool {

	if err == nil {
		return false
	}
	return KindOf(err).Fatal()
}

func Is(
	err error, kind Kind,
) bool {

	return err != nil && KindOf(err) == kind
}

// ReplicationStart classifies a rejected START_REPLICATION command and
// attaches the slot and publication it was issued for.
func ReplicationStart(
	cause error, slot, publication string,
) error {

	reason := "replication command rejected"
	var pgErr *pgconn.PgError
	if stderrors.As(cause, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UndefinedObject:
			reason = "replication slot or publication does not exist"
		case pgerrcode.ObjectInUse:
			reason = "replication slot is active for another process"
		case pgerrcode.InsufficientPrivilege:
			reason = "insufficient privileges for logical replication"
		case pgerrcode.ObjectNotInPrerequisiteState:
			reason = "replication slot is not usable for logical decoding"
		}
	}
	return Wrap(ReplicationStartError, cause,
		"%s (slot: %s, publication: %s)", reason, slot, publication,
	)
}

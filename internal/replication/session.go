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

package replication

import (
	"context"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/noctarius/event-connectors/internal/containers"
	"github.com/noctarius/event-connectors/internal/faults"
	"github.com/noctarius/event-connectors/internal/logging"
	"github.com/noctarius/event-connectors/internal/replication/converting"
	"github.com/noctarius/event-connectors/internal/replication/emitting"
	"github.com/noctarius/event-connectors/internal/replication/keepalive"
	"github.com/noctarius/event-connectors/internal/replication/resuming"
	"github.com/noctarius/event-connectors/internal/stats"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/noctarius/event-connectors/spi/pgtypes"
	"github.com/noctarius/event-connectors/spi/replicationevent"
	"github.com/noctarius/event-connectors/spi/sink"
	"github.com/noctarius/event-connectors/spi/transform"
)

const defaultStatusInterval = 10

const idleReceiveTimeout = 10 * time.Second

// Providers supply the collaborators of a session. Missing providers
// fall back to the registries and the Postgres replication connection.
type Providers struct {
	Sink      sink.Provider
	Transform func(c *config.Config) (transform.Selector, error)
	Upstream  UpstreamProvider
	Reporter  *stats.Reporter
	Clock     func() time.Time
}

// Session moves changes from one replication slot into one topic of the
// output log. A session runs exactly once.
type Session struct {
	logger    *logging.Logger
	reporter  *stats.Reporter
	clock     func() time.Time
	sink      sink.Sink
	upstream  ReplicationStream
	emitter   *emitting.Emitter
	responder *keepalive.Responder
	relations *containers.RelationCache[*replicationevent.Relation]

	slot           string
	publication    string
	topic          string
	statusInterval time.Duration
	resumePoint    resuming.ResumePoint

	mutex          sync.Mutex
	state          State
	watermark      pgtypes.LSN
	terminationErr error
}

// NewSession connects to the output log, checks that the topic exists,
// discovers the resume point and opens the replication connection. A
// returned session is ready to Run.
func NewSession(
	ctx context.Context, c *config.Config, providers Providers,
) (*Session, error) {

	logger, err := logging.NewLogger("ReplicationSession")
	if err != nil {
		return nil, err
	}

	if providers.Sink == nil {
		providers.Sink = func(c *config.Config) (sink.Sink, error) {
			return sink.NewSink(config.GetOrDefault(c, config.PropertySink, config.Stdout), c)
		}
	}
	if providers.Transform == nil {
		providers.Transform = transform.NewSelector
	}
	if providers.Upstream == nil {
		providers.Upstream = NewPgReplicationStream
	}
	if providers.Clock == nil {
		providers.Clock = time.Now
	}

	slot := config.GetOrDefault(c, config.PropertyPostgresqlReplicationSlotName, "")
	publication := config.GetOrDefault(c, config.PropertyPostgresqlPublicationName, "")
	topic := config.GetOrDefault(c, config.PropertySinkTopic, "")
	if slot == "" {
		return nil, errors.Errorf("no replication slot configured (%s)", config.PropertyPostgresqlReplicationSlotName)
	}
	if publication == "" {
		return nil, errors.Errorf("no publication configured (%s)", config.PropertyPostgresqlPublicationName)
	}
	if topic == "" {
		return nil, errors.Errorf("no topic configured (%s)", config.PropertySinkTopic)
	}

	statusInterval := time.Duration(
		config.GetOrDefault(c, config.PropertyPostgresqlStatusInterval, defaultStatusInterval),
	) * time.Second

	s := &Session{
		logger:         logger,
		reporter:       providers.Reporter,
		clock:          providers.Clock,
		relations:      containers.NewRelationCache[*replicationevent.Relation](),
		slot:           slot,
		publication:    publication,
		topic:          topic,
		statusInterval: statusInterval,
		state:          Initializing,
	}

	if err := s.initialize(ctx, c, providers); err != nil {
		if s.sink != nil {
			if stopErr := s.sink.Stop(); stopErr != nil {
				logger.Warnf("Failed to stop sink: %v", stopErr)
			}
		}
		s.terminate(err)
		return nil, err
	}
	return s, nil
}

func (s *Session) initialize(
	ctx context.Context, c *config.Config, providers Providers,
) error {

	sinkInstance, err := providers.Sink(c)
	if err != nil {
		return faults.Wrap(faults.ConnectionError, err, "failed to create sink")
	}
	if err := sinkInstance.Start(); err != nil {
		return faults.Wrap(faults.ConnectionError, err, "failed to connect to output log")
	}
	s.sink = sinkInstance

	exists, err := sinkInstance.Exists(ctx, s.topic)
	if err != nil {
		return faults.Wrap(faults.ConnectionError, err, "failed to look up topic %s", s.topic)
	}
	if !exists {
		return faults.New(faults.TopicNotFound, "topic %s not found", s.topic)
	}

	selector, err := providers.Transform(c)
	if err != nil {
		return err
	}
	if s.emitter, err = emitting.NewEmitter(sinkInstance, s.topic, selector); err != nil {
		return err
	}
	if s.responder, err = keepalive.NewResponder(s.clock); err != nil {
		return err
	}

	s.setState(ResumeDiscovery)
	locator, err := resuming.NewLocator()
	if err != nil {
		return err
	}
	timeout := config.DurationOrDefault(c, config.PropertySinkResumeTimeout, time.Millisecond, resuming.DefaultTimeout)
	if s.resumePoint, err = locator.Locate(ctx, sinkInstance, s.topic, timeout); err != nil {
		return err
	}
	if s.resumePoint.Found {
		s.watermark = s.resumePoint.LSN
	}

	upstream, err := providers.Upstream(ctx, c)
	if err != nil {
		if faults.KindOf(err) == faults.Unknown {
			return faults.Wrap(faults.ConnectionError, err, "failed to open replication connection")
		}
		return err
	}
	s.upstream = upstream
	return nil
}

func (s *Session) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// Watermark returns the highest commit LSN emitted so far, or the resume
// point before the first commit.
func (s *Session) Watermark() pgtypes.LSN {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.watermark
}

func (s *Session) ResumePoint() resuming.ResumePoint {
	return s.resumePoint
}

// Err returns the error the session terminated with, if any.
func (s *Session) Err() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.terminationErr
}

func (s *Session) Command() ReplicationCommand {
	return ReplicationCommand{
		Slot:        s.slot,
		Publication: s.publication,
		StartLSN:    s.resumePoint.LSN,
	}
}

// Run starts replication at the resume point and streams until the
// context is cancelled, the server ends the stream or a fatal error
// occurs. Cancellation and a server side end terminate without error.
func (s *Session) Run(
	ctx context.Context,
) error {

	s.mutex.Lock()
	if s.state != ResumeDiscovery {
		state := s.state
		s.mutex.Unlock()
		return errors.Errorf("session cannot be run in state %s", state)
	}
	s.state = Streaming
	s.mutex.Unlock()

	err := s.stream(ctx)
	s.shutdown()
	s.terminate(err)
	if err != nil {
		s.logger.Errorf("Replication session terminated: %v", err)
	} else {
		s.logger.Infof("Replication session terminated at %s", s.Watermark())
	}
	return err
}

func (s *Session) stream(
	ctx context.Context,
) error {

	command := s.Command()
	if err := s.upstream.StartReplication(ctx, command); err != nil {
		return faults.ReplicationStart(err, s.slot, s.publication)
	}
	s.logger.Infof("Started replication of slot %s into topic %s at %s", s.slot, s.topic, s.resumePoint)

	nextStatusDeadline := s.clock().Add(s.statusInterval)
	for {
		if ctx.Err() != nil {
			return nil
		}

		if s.statusInterval > 0 && !s.clock().Before(nextStatusDeadline) {
			if err := s.sendStatus(ctx); err != nil {
				return err
			}
			nextStatusDeadline = s.clock().Add(s.statusInterval)
		}

		deadline := s.clock().Add(idleReceiveTimeout)
		if s.statusInterval > 0 {
			deadline = nextStatusDeadline
		}

		rawMsg, err := s.upstream.ReceiveMessage(ctx, deadline)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return faults.Wrap(faults.ProtocolStreamError, err, "failed to receive message")
		}
		if rawMsg == nil {
			continue
		}

		switch msg := rawMsg.(type) {
		case *pgproto3.CopyData:
			if len(msg.Data) == 0 {
				s.logger.Warnf("Received empty CopyData message")
				continue
			}
			switch msg.Data[0] {
			case pglogrepl.PrimaryKeepaliveMessageByteID:
				pkm, err := pglogrepl.ParsePrimaryKeepaliveMessage(msg.Data[1:])
				if err != nil {
					return faults.Wrap(faults.ProtocolStreamError, err, "malformed keepalive message")
				}
				s.logger.Tracef("Primary Keepalive Message => ServerWALEnd: %s ServerTime: %s ReplyRequested: %t",
					pkm.ServerWALEnd, pkm.ServerTime, pkm.ReplyRequested,
				)
				if pkm.ReplyRequested {
					if err := s.sendStatus(ctx); err != nil {
						return err
					}
					nextStatusDeadline = s.clock().Add(s.statusInterval)
				}

			case pglogrepl.XLogDataByteID:
				xld, err := pglogrepl.ParseXLogData(msg.Data[1:])
				if err != nil {
					return faults.Wrap(faults.ProtocolStreamError, err, "malformed XLogData message")
				}
				outcome := s.handleXLogData(ctx, xld)
				if outcome.Applied {
					continue
				}
				if faults.IsFatal(outcome.Err) {
					return outcome.Err
				}
				s.reporter.Incr("messages.skipped", stats.Tag("kind", faults.KindOf(outcome.Err).String()))
				s.logger.Errorf("Skipping message at %s: %v", outcome.LSN, outcome.Err)

			default:
				s.logger.Warnf("Received unexpected CopyData message type %c", msg.Data[0])
			}

		case *pgproto3.CopyDone:
			s.logger.Infof("Server ended the replication stream")
			return nil

		case *pgproto3.ErrorResponse:
			return faults.Wrap(faults.ProtocolStreamError, pgconn.ErrorResponseToPgError(msg),
				"server reported an error on the replication stream",
			)

		default:
			s.logger.Warnf("Received unexpected message: %T", rawMsg)
		}
	}
}

// handleXLogData converts and emits a single message. The relation cache
// and the watermark only change once the event has been emitted.
func (s *Session) handleXLogData(
	ctx context.Context, xld pglogrepl.XLogData,
) Outcome {

	lsn := pgtypes.LSN(xld.WALStart)
	s.reporter.Incr("messages.received")

	event, err := converting.Convert(s.relations, xld)
	if err != nil {
		return skipped(lsn, err)
	}

	records, err := s.emitter.Emit(ctx, event)
	if err != nil {
		return skipped(lsn, err)
	}
	s.reporter.Add("records.emitted", records)

	switch msg := event.Message.(type) {
	case *replicationevent.Relation:
		s.relations.Set(msg.RelationID, msg)
		s.logger.Debugf("Registered relation %s.%s (%d)", msg.Namespace, msg.Name, msg.RelationID)
	case *replicationevent.Commit:
		s.mutex.Lock()
		s.watermark = s.watermark.Max(msg.CommitLSN)
		watermark := s.watermark
		s.mutex.Unlock()
		s.reporter.Set("watermark", watermark.Uint64())
	}

	s.reporter.Incr("messages.processed", stats.Tag("type", event.Message.Tag()))
	return applied(lsn, records)
}

func (s *Session) sendStatus(
	ctx context.Context,
) error {

	if err := s.responder.Respond(ctx, s.upstream, s.Watermark()); err != nil {
		return err
	}
	s.reporter.Incr("keepalive.replies")
	return nil
}

func (s *Session) shutdown() {
	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.upstream.Close(closeCtx); err != nil {
		s.logger.Warnf("Failed to close replication connection: %v", err)
	}
	if err := s.sink.Stop(); err != nil {
		s.logger.Warnf("Failed to stop sink: %v", err)
	}
}

func (s *Session) setState(
	state State,
) {

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.state = state
}

func (s *Session) terminate(
	err error,
) {

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.state = Terminated
	s.terminationErr = err
}

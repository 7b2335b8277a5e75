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

package converting

import (
	"github.com/jackc/pglogrepl"
	"github.com/noctarius/event-connectors/internal/faults"
	"github.com/noctarius/event-connectors/spi/pgtypes"
	"github.com/noctarius/event-connectors/spi/replicationevent"
)

const (
	truncateCascade         uint8 = 1
	truncateRestartIdentity uint8 = 2
)

// RelationLookup is the read side of the relation cache.
type RelationLookup interface {
	Get(relationId uint32) (*replicationevent.Relation, bool)
}

// Convert parses a WAL payload and builds the corresponding event. It has
// no side effects; registering announced relations is up to the caller.
// Every failure is a ConversionError.
func Convert(
	relations RelationLookup, xld pglogrepl.XLogData,
) (*replicationevent.Event, error) {

	lsn := pgtypes.LSN(xld.WALStart)

	if len(xld.WALData) == 0 {
		return nil, faults.New(faults.ConversionError, "empty WAL payload at %s", lsn)
	}

	logicalMsg, err := pglogrepl.Parse(xld.WALData)
	if err != nil {
		return nil, faults.Wrap(faults.ConversionError, err, "failed to parse WAL payload at %s", lsn)
	}

	message, err := convertMessage(relations, logicalMsg)
	if err != nil {
		return nil, faults.Wrap(faults.ConversionError, err, "failed to convert %s message at %s",
			logicalMsg.Type().String(), lsn,
		)
	}

	return &replicationevent.Event{
		LSN:       lsn,
		Timestamp: xld.ServerTime,
		Message:   message,
	}, nil
}

func convertMessage(
	relations RelationLookup, logicalMsg pglogrepl.Message,
) (replicationevent.Message, error) {

	switch msg := logicalMsg.(type) {
	case *pglogrepl.BeginMessage:
		return &replicationevent.Begin{
			FinalLSN:   pgtypes.LSN(msg.FinalLSN),
			CommitTime: msg.CommitTime,
			Xid:        msg.Xid,
		}, nil

	case *pglogrepl.CommitMessage:
		return &replicationevent.Commit{
			Flags:      msg.Flags,
			CommitLSN:  pgtypes.LSN(msg.CommitLSN),
			EndLSN:     pgtypes.LSN(msg.TransactionEndLSN),
			CommitTime: msg.CommitTime,
		}, nil

	case *pglogrepl.OriginMessage:
		return &replicationevent.Origin{
			CommitLSN: pgtypes.LSN(msg.CommitLSN),
			Name:      msg.Name,
		}, nil

	case *pglogrepl.RelationMessage:
		columns := make([]replicationevent.Column, 0, len(msg.Columns))
		for _, column := range msg.Columns {
			columns = append(columns, replicationevent.Column{
				Name:         column.Name,
				TypeID:       column.DataType,
				TypeModifier: column.TypeModifier,
				Flags:        column.Flags,
			})
		}
		return &replicationevent.Relation{
			RelationID:      msg.RelationID,
			Namespace:       msg.Namespace,
			Name:            msg.RelationName,
			ReplicaIdentity: msg.ReplicaIdentity,
			Columns:         columns,
		}, nil

	case *pglogrepl.TypeMessage:
		return &replicationevent.Type{
			DataType:  msg.DataType,
			Namespace: msg.Namespace,
			Name:      msg.Name,
		}, nil

	case *pglogrepl.InsertMessage:
		relation, err := lookupRelation(relations, msg.RelationID)
		if err != nil {
			return nil, err
		}
		newValues, err := decodeTuple(relation, msg.Tuple)
		if err != nil {
			return nil, err
		}
		return &replicationevent.Insert{
			RelationID: msg.RelationID,
			New:        newValues,
		}, nil

	case *pglogrepl.UpdateMessage:
		relation, err := lookupRelation(relations, msg.RelationID)
		if err != nil {
			return nil, err
		}
		var oldValues *replicationevent.Tuple
		if msg.OldTuple != nil {
			if oldValues, err = decodeTuple(relation, msg.OldTuple); err != nil {
				return nil, err
			}
		}
		newValues, err := decodeTuple(relation, msg.NewTuple)
		if err != nil {
			return nil, err
		}
		return &replicationevent.Update{
			RelationID: msg.RelationID,
			Old:        oldValues,
			New:        newValues,
		}, nil

	case *pglogrepl.DeleteMessage:
		relation, err := lookupRelation(relations, msg.RelationID)
		if err != nil {
			return nil, err
		}
		oldValues, err := decodeTuple(relation, msg.OldTuple)
		if err != nil {
			return nil, err
		}
		return &replicationevent.Delete{
			RelationID: msg.RelationID,
			Old:        oldValues,
		}, nil

	case *pglogrepl.TruncateMessage:
		relationIds := make([]uint32, len(msg.RelationIDs))
		copy(relationIds, msg.RelationIDs)
		return &replicationevent.Truncate{
			RelationIDs:     relationIds,
			Cascade:         msg.Option&truncateCascade != 0,
			RestartIdentity: msg.Option&truncateRestartIdentity != 0,
		}, nil
	}

	return nil, faults.New(faults.ConversionError, "unsupported message type %s", logicalMsg.Type().String())
}

func lookupRelation(
	relations RelationLookup, relationId uint32,
) (*replicationevent.Relation, error) {

	relation, present := relations.Get(relationId)
	if !present || relation == nil {
		return nil, faults.New(faults.ConversionError, "unknown relation id %d", relationId)
	}
	return relation, nil
}

func decodeTuple(
	relation *replicationevent.Relation, tuple *pglogrepl.TupleData,
) (*replicationevent.Tuple, error) {

	if tuple == nil {
		return nil, faults.New(faults.ConversionError, "missing tuple data for relation %d", relation.RelationID)
	}

	if len(tuple.Columns) != len(relation.Columns) {
		return nil, faults.New(faults.ConversionError,
			"tuple has %d columns but relation %s.%s (%d) has %d",
			len(tuple.Columns), relation.Namespace, relation.Name, relation.RelationID, len(relation.Columns),
		)
	}

	values := replicationevent.NewTuple()
	for i, column := range tuple.Columns {
		schemaColumn := relation.Columns[i]
		value, err := decodeColumn(column, schemaColumn.TypeID)
		if err != nil {
			return nil, faults.Wrap(faults.ConversionError, err, "failed to decode column %s", schemaColumn.Name)
		}
		values.Append(schemaColumn.Name, value)
	}
	return values, nil
}

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

package sqlsink

import (
	"fmt"
	"strings"

	"github.com/go-errors/errors"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
)

// Type names the SQL type a raw value is cast to.
type Type string

const (
	Bool            Type = "Bool"
	Char            Type = "Char"
	SmallInt        Type = "SmallInt"
	Int             Type = "Int"
	BigInt          Type = "BigInt"
	Float           Type = "Float"
	DoublePrecision Type = "DoublePrecision"
	Text            Type = "Text"
	Bytes           Type = "Bytes"
	Numeric         Type = "Numeric"
	Timestamp       Type = "Timestamp"
	Date            Type = "Date"
	Time            Type = "Time"
	Uuid            Type = "Uuid"
	Json            Type = "Json"
)

var castTypes = map[Type]string{
	Bool:            "bool",
	Char:            "char",
	SmallInt:        "int2",
	Int:             "int4",
	BigInt:          "int8",
	Float:           "float4",
	DoublePrecision: "float8",
	Text:            "text",
	Bytes:           "bytea",
	Numeric:         "numeric",
	Timestamp:       "timestamp",
	Date:            "date",
	Time:            "time",
	Uuid:            "uuid",
	Json:            "jsonb",
}

// Value is a single column value in its text representation.
type Value struct {
	Column   string `json:"column"`
	RawValue string `json:"raw_value"`
	Type     Type   `json:"type"`
}

type Insert struct {
	Table  string  `json:"table"`
	Values []Value `json:"values"`
}

type Upsert struct {
	Table   string  `json:"table"`
	Values  []Value `json:"values"`
	UniqIdx string  `json:"uniq_idx"`
}

// Operation is a record decoded from the topic, exactly one of Insert
// and Upsert is set.
type Operation struct {
	Insert *Insert `json:"Insert,omitempty"`
	Upsert *Upsert `json:"Upsert,omitempty"`
}

func (o Operation) validate() error {
	if (o.Insert == nil) == (o.Upsert == nil) {
		return errors.Errorf("operation must be exactly one of Insert or Upsert")
	}
	return nil
}

// Statement renders the operation as a parameterized statement. Values
// are passed as text and cast on the server side.
func (o Operation) Statement() (string, []any, error) {
	if err := o.validate(); err != nil {
		return "", nil, err
	}
	if o.Insert != nil {
		return insertStatement(o.Insert.Table, o.Insert.Values, "")
	}
	if o.Upsert.UniqIdx == "" {
		return "", nil, errors.Errorf("upsert into %s requires uniq_idx", o.Upsert.Table)
	}
	return insertStatement(o.Upsert.Table, o.Upsert.Values, o.Upsert.UniqIdx)
}

func insertStatement(
	table string, values []Value, uniqIdx string,
) (string, []any, error) {

	if table == "" {
		return "", nil, errors.Errorf("operation without table")
	}
	if len(values) == 0 {
		return "", nil, errors.Errorf("operation on %s without values", table)
	}

	columns := make([]string, 0, len(values))
	placeholders := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for i, value := range values {
		castType, ok := castTypes[value.Type]
		if !ok {
			return "", nil, errors.Errorf("unsupported type %s for column %s", value.Type, value.Column)
		}
		columns = append(columns, quoteIdentifier(value.Column))
		placeholders = append(placeholders, fmt.Sprintf("$%d::%s", i+1, castType))
		args = append(args, value.RawValue)
	}

	builder := strings.Builder{}
	builder.WriteString("INSERT INTO ")
	builder.WriteString(quoteQualified(table))
	builder.WriteString(" (")
	builder.WriteString(strings.Join(columns, ", "))
	builder.WriteString(") VALUES (")
	builder.WriteString(strings.Join(placeholders, ", "))
	builder.WriteString(")")

	if uniqIdx != "" {
		updates := lo.Map(values, func(value Value, _ int) string {
			column := quoteIdentifier(value.Column)
			return fmt.Sprintf("%s = EXCLUDED.%s", column, column)
		})
		builder.WriteString(" ON CONFLICT (")
		builder.WriteString(quoteIdentifier(uniqIdx))
		builder.WriteString(") DO UPDATE SET ")
		builder.WriteString(strings.Join(updates, ", "))
	}
	return builder.String(), args, nil
}

func quoteIdentifier(
	name string,
) string {

	return pgx.Identifier{name}.Sanitize()
}

// quoteQualified quotes schema.table names part by part.
func quoteQualified(
	name string,
) string {

	return pgx.Identifier(strings.Split(name, ".")).Sanitize()
}

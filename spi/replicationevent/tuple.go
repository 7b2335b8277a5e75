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

package replicationevent

import (
	"bytes"

	"github.com/go-errors/errors"
	"github.com/goccy/go-json"
)

type Field struct {
	Name  string
	Value Value
}

// Tuple is a row image, an ordered mapping from column name to value.
// Column order follows the relation's column order and is preserved in
// the JSON encoding.
type Tuple struct {
	fields []Field
}

func NewTuple(
	fields ...Field,
) *Tuple {

	return &Tuple{fields: fields}
}

func (t *Tuple) Append(
	name string, value Value,
) {

	t.fields = append(t.fields, Field{Name: name, Value: value})
}

func (t *Tuple) Fields() []Field {
	return t.fields
}

func (t *Tuple) Len() int {
	return len(t.fields)
}

func (t *Tuple) Get(
	name string,
) (Value, bool) {

	for _, field := range t.fields {
		if field.Name == name {
			return field.Value, true
		}
	}
	return Value{}, false
}

func (t *Tuple) Names() []string {
	names := make([]string, 0, len(t.fields))
	for _, field := range t.fields {
		names = append(names, field.Name)
	}
	return names
}

func (t Tuple) MarshalJSON() ([]byte, error) {
	buffer := bytes.Buffer{}
	buffer.WriteByte('{')
	for i, field := range t.fields {
		if i > 0 {
			buffer.WriteByte(',')
		}
		key, err := marshal(field.Name)
		if err != nil {
			return nil, err
		}
		buffer.Write(key)
		buffer.WriteByte(':')

		value, err := field.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buffer.Write(value)
	}
	buffer.WriteByte('}')
	return buffer.Bytes(), nil
}

func (t *Tuple) UnmarshalJSON(
	data []byte,
) error {

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	token, err := decoder.Token()
	if err != nil {
		return errors.Wrap(err, 0)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return errors.Errorf("tuple must be a json object")
	}

	fields := make([]Field, 0)
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return errors.Wrap(err, 0)
		}
		name, ok := keyToken.(string)
		if !ok {
			return errors.Errorf("tuple column name must be a string")
		}

		valueToken, err := decoder.Token()
		if err != nil {
			return errors.Wrap(err, 0)
		}
		value, err := decodeToken(decoder, valueToken)
		if err != nil {
			return err
		}
		fields = append(fields, Field{Name: name, Value: value})
	}

	if _, err := decoder.Token(); err != nil {
		return errors.Wrap(err, 0)
	}
	t.fields = fields
	return nil
}

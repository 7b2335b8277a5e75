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

package expression

import (
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/go-errors/errors"
	"github.com/noctarius/event-connectors/spi/config"
	"github.com/noctarius/event-connectors/spi/encoding"
	"github.com/noctarius/event-connectors/spi/transform"
)

func init() {
	transform.RegisterTransform(config.ExpressionTransform, newExpressionTransform)
}

// Expressions see two variables: record, the decoded JSON document, and
// raw, the undecoded record as a string. The result decides the outputs:
//
//	bool        keep (true) or drop (false) the record
//	nil         drop the record
//	string      a single output with the string as its bytes
//	array       one output per element, in order
//	any other   a single output with the JSON encoded value
type expressionTransform struct {
	expression string
	program    *vm.Program
	decoder    *encoding.JsonDecoder
	encoder    *encoding.JsonEncoder

	mutex   sync.Mutex
	machine *vm.VM
}

func newExpressionTransform(
	c *config.Config,
) (transform.Transform, error) {

	expression := config.GetOrDefault(c, config.PropertyTransformExpression, "")
	if expression == "" {
		return nil, errors.Errorf("expression transform requires %s", config.PropertyTransformExpression)
	}
	return NewExpressionTransform(expression)
}

func NewExpressionTransform(
	expression string,
) (transform.Transform, error) {

	program, err := expr.Compile(expression)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	return &expressionTransform{
		expression: expression,
		program:    program,
		decoder:    encoding.NewJsonDecoder(false),
		encoder:    encoding.NewJsonEncoder(false),
		machine:    &vm.VM{},
	}, nil
}

func (e *expressionTransform) Process(
	record []byte,
) ([][]byte, error) {

	var document any
	if err := e.decoder.Unmarshal(record, &document); err != nil {
		return nil, errors.Wrap(err, 0)
	}

	env := map[string]any{
		"record": document,
		"raw":    string(record),
	}

	e.mutex.Lock()
	result, err := e.machine.Run(e.program, env)
	e.mutex.Unlock()
	if err != nil {
		return nil, errors.Errorf("expression «%s» failed: %v", e.expression, err)
	}

	switch r := result.(type) {
	case nil:
		return nil, nil
	case bool:
		if r {
			return [][]byte{record}, nil
		}
		return nil, nil
	case []any:
		outputs := make([][]byte, 0, len(r))
		for _, element := range r {
			output, err := e.encode(element)
			if err != nil {
				return nil, err
			}
			outputs = append(outputs, output)
		}
		return outputs, nil
	default:
		output, err := e.encode(r)
		if err != nil {
			return nil, err
		}
		return [][]byte{output}, nil
	}
}

func (e *expressionTransform) encode(
	value any,
) ([]byte, error) {

	if s, ok := value.(string); ok {
		return []byte(s), nil
	}
	output, err := e.encoder.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return output, nil
}

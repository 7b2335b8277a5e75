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

package wiring

import (
	"reflect"

	"github.com/go-errors/errors"
	"github.com/samber/do"
	"github.com/samber/lo"
)

var errorReflectiveType = reflect.TypeOf((*error)(nil)).Elem()

type ProvideOption interface {
	applyProvideOption(info *bindingInfo)
}

// ForceInitialization creates the service while the container is built
// instead of on first use.
func ForceInitialization() ProvideOption {
	return forceInitializationProvideOption{}
}

type forceInitializationProvideOption struct {
}

func (f forceInitializationProvideOption) applyProvideOption(
	info *bindingInfo,
) {

	info.forceInit = true
}

type Module interface {
	Provide(constructor any, options ...ProvideOption)
	Invoke(call any)
	stage1(injector *do.Injector) error
	stage2(injector *do.Injector) error
}

func DefineModule(
	name string, definer func(module Module),
) Module {

	module := &module{
		name: name,
	}
	definer(module)
	return module
}

type module struct {
	name     string
	bindings []*bindingInfo
}

func (m *module) stage1(
	injector *do.Injector,
) error {

	for _, binding := range m.bindings {
		if binding.invoker != nil {
			continue
		}
		// Later modules replace services of earlier ones
		if lo.Contains(injector.ListProvidedServices(), binding.output) {
			do.OverrideNamed(injector, binding.output, binding.provider)
		} else {
			do.ProvideNamed(injector, binding.output, binding.provider)
		}
	}
	return nil
}

func (m *module) stage2(
	injector *do.Injector,
) error {

	for _, binding := range m.bindings {
		if binding.invoker != nil {
			if err := binding.invoker(injector); err != nil {
				return errors.Errorf("module %s: %v", m.name, err)
			}
		}
		if binding.forceInit {
			if _, err := do.InvokeNamed[any](injector, binding.output); err != nil {
				return errors.Errorf("module %s: %v", m.name, err)
			}
		}
	}
	return nil
}

// Provide registers a constructor. Its parameters are resolved from the
// container, its first result is registered under its type name, and an
// optional second result must be an error.
func (m *module) Provide(
	constructor any, options ...ProvideOption,
) {

	t := reflect.TypeOf(constructor)
	if t.Kind() != reflect.Func {
		panic(errors.Errorf("Type %s is not a function", t.String()))
	}
	if t.NumOut() == 0 || t.NumOut() > 2 {
		panic(errors.Errorf("Type %s must have 1 or 2 return values, but has %d", t.String(), t.NumOut()))
	}
	if t.NumOut() == 2 && !t.Out(1).ConvertibleTo(errorReflectiveType) {
		panic(errors.Errorf("Type %s has two return values, but the second one isn't an error", t.String()))
	}

	call := newCall(reflect.ValueOf(constructor))
	binding := &bindingInfo{
		output: t.Out(0).String(),
	}
	binding.provider = func(injector *do.Injector) (any, error) {
		results, err := call(injector)
		if err != nil {
			return nil, err
		}
		if len(results) == 2 && !results[1].IsNil() {
			return nil, results[1].Interface().(error)
		}
		return results[0].Interface(), nil
	}

	for _, option := range options {
		option.applyProvideOption(binding)
	}
	m.bindings = append(m.bindings, binding)
}

// Invoke registers a function called while the container is built, with
// its parameters resolved from the container. It may return an error.
func (m *module) Invoke(
	fn any,
) {

	t := reflect.TypeOf(fn)
	if t.Kind() != reflect.Func {
		panic(errors.Errorf("Type %s is not a function", t.String()))
	}
	if t.NumOut() > 1 || (t.NumOut() == 1 && !t.Out(0).ConvertibleTo(errorReflectiveType)) {
		panic(errors.Errorf("Type %s may only return an error", t.String()))
	}

	call := newCall(reflect.ValueOf(fn))
	m.bindings = append(m.bindings, &bindingInfo{
		invoker: func(injector *do.Injector) error {
			results, err := call(injector)
			if err != nil {
				return err
			}
			if len(results) == 1 && !results[0].IsNil() {
				return results[0].Interface().(error)
			}
			return nil
		},
	})
}

func newCall(
	fn reflect.Value,
) func(injector *do.Injector) ([]reflect.Value, error) {

	t := fn.Type()
	return func(injector *do.Injector) ([]reflect.Value, error) {
		params := make([]reflect.Value, 0, t.NumIn())
		for i := 0; i < t.NumIn(); i++ {
			param, err := do.InvokeNamed[any](injector, t.In(i).String())
			if err != nil {
				return nil, err
			}
			params = append(params, reflect.ValueOf(param))
		}
		return fn.Call(params), nil
	}
}

type bindingInfo struct {
	output    string
	forceInit bool
	provider  func(injector *do.Injector) (any, error)
	invoker   func(injector *do.Injector) error
}

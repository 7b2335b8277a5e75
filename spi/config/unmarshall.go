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

package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-errors/errors"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a configuration file.
type Format string

const (
	TomlFormat Format = "toml"
	YamlFormat Format = "yaml"
)

var formatsByExtension = map[string]Format{
	".toml": TomlFormat,
	".yaml": YamlFormat,
	".yml":  YamlFormat,
}

// FormatOf selects the configuration format by the file extension.
func FormatOf(
	path string,
) (Format, error) {

	extension := strings.ToLower(filepath.Ext(path))
	if format, present := formatsByExtension[extension]; present {
		return format, nil
	}
	extensions := make([]string, 0, len(formatsByExtension))
	for known := range formatsByExtension {
		extensions = append(extensions, known)
	}
	sort.Strings(extensions)
	return "", errors.Errorf(
		"configuration file %s has unsupported extension '%s', expected one of %s",
		path, extension, strings.Join(extensions, ", "),
	)
}

// LoadFile reads and strictly decodes a configuration file, keys which
// don't map to a configuration property are rejected.
func LoadFile(
	path string,
) (*Config, error) {

	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	config := &Config{}
	if err := Unmarshall(content, config, format); err != nil {
		return nil, errors.WrapPrefix(err, "failed to decode configuration file "+path, 0)
	}
	return config, nil
}

func Unmarshall(
	content []byte, config *Config, format Format,
) error {

	switch format {
	case TomlFormat:
		return fromToml(content, config)
	case YamlFormat:
		return fromYaml(content, config)
	}
	return errors.Errorf("configuration format '%s' doesn't exist", format)
}

func fromToml(
	content []byte, config *Config,
) error {

	metadata, err := toml.Decode(string(content), config)
	if err != nil {
		return err
	}
	if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return errors.Errorf("unknown configuration keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func fromYaml(
	content []byte, config *Config,
) error {

	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && err != io.EOF {
		return err
	}
	return nil
}

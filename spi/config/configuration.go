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
	"crypto/tls"
	"github.com/IBM/sarama"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

type SinkType string

const (
	Stdout     SinkType = "stdout"
	NATS       SinkType = "nats"
	Kafka      SinkType = "kafka"
	Redis      SinkType = "redis"
	AwsKinesis SinkType = "kinesis"
	AwsSQS     SinkType = "sqs"
	Http       SinkType = "http"
)

type HttpAuthenticationType string

const (
	NoneAuthentication   HttpAuthenticationType = "none"
	BasicAuthentication  HttpAuthenticationType = "basic"
	HeaderAuthentication HttpAuthenticationType = "header"
)

type TransformType string

const (
	NoTransform         TransformType = "none"
	UppercaseTransform  TransformType = "uppercase"
	ExpressionTransform TransformType = "expression"
	PluginTransform     TransformType = "plugin"
)

type NatsAuthorizationType string

const (
	UserInfo    NatsAuthorizationType = "userinfo"
	Credentials NatsAuthorizationType = "credentials"
	Jwt         NatsAuthorizationType = "jwt"
)

type PostgreSQLConfig struct {
	Connection      string                `toml:"connection" yaml:"connection"`
	Password        string                `toml:"password" yaml:"password"`
	Publication     PublicationConfig     `toml:"publication" yaml:"publication"`
	ReplicationSlot ReplicationSlotConfig `toml:"replicationslot" yaml:"replicationslot"`
	StatusInterval  int                   `toml:"statusinterval" yaml:"statusinterval"`
}

type PublicationConfig struct {
	Name string `toml:"name" yaml:"name"`
}

type ReplicationSlotConfig struct {
	Name string `toml:"name" yaml:"name"`
}

type SinkConfig struct {
	Type       SinkType         `toml:"type" yaml:"type"`
	Topic      string           `toml:"topic" yaml:"topic"`
	Resume     ResumeConfig     `toml:"resume" yaml:"resume"`
	Nats       NatsConfig       `toml:"nats" yaml:"nats"`
	Kafka      KafkaConfig      `toml:"kafka" yaml:"kafka"`
	Redis      RedisConfig      `toml:"redis" yaml:"redis"`
	AwsKinesis AwsKinesisConfig `toml:"kinesis" yaml:"kinesis"`
	AwsSqs     AwsSqsConfig     `toml:"sqs" yaml:"sqs"`
	Http       HttpConfig       `toml:"http" yaml:"http"`
}

type ResumeConfig struct {
	Timeout int `toml:"timeout" yaml:"timeout"`
}

type TransformConfig struct {
	Type       TransformType         `toml:"type" yaml:"type"`
	Expression string                `toml:"expression" yaml:"expression"`
	Plugin     TransformPluginConfig `toml:"plugin" yaml:"plugin"`
}

type TransformPluginConfig struct {
	Path string `toml:"path" yaml:"path"`
}

type NatsUserInfoConfig struct {
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
}

type NatsCredentialsConfig struct {
	Certificate string   `toml:"certificate" yaml:"certificate"`
	Seeds       []string `toml:"seeds" yaml:"seeds"`
}

type NatsJWTConfig struct {
	JWT  string `toml:"jwt" yaml:"jwt"`
	Seed string `toml:"seed" yaml:"seed"`
}

type NatsConfig struct {
	Address       string                `toml:"address" yaml:"address"`
	Authorization NatsAuthorizationType `toml:"authorization" yaml:"authorization"`
	UserInfo      NatsUserInfoConfig    `toml:"userinfo" yaml:"userinfo"`
	Credentials   NatsCredentialsConfig `toml:"credentials" yaml:"credentials"`
	JWT           NatsJWTConfig         `toml:"jwt" yaml:"jwt"`
}

type KafkaSaslConfig struct {
	Enabled   bool                 `toml:"enabled" yaml:"enabled"`
	User      string               `toml:"user" yaml:"user"`
	Password  string               `toml:"password" yaml:"password"`
	Mechanism sarama.SASLMechanism `toml:"mechanism" yaml:"mechanism"`
}

type KafkaConfig struct {
	Brokers    []string        `toml:"brokers" yaml:"brokers"`
	Idempotent bool            `toml:"idempotent" yaml:"idempotent"`
	Sasl       KafkaSaslConfig `toml:"sasl" yaml:"sasl"`
	TLS        TLSConfig       `toml:"tls" yaml:"tls"`
}

type RedisConfig struct {
	Network  string             `toml:"network" yaml:"network"`
	Address  string             `toml:"address" yaml:"address"`
	Password string             `toml:"password" yaml:"password"`
	Database int                `toml:"database" yaml:"database"`
	Retries  RedisRetryConfig   `toml:"retries" yaml:"retries"`
	Timeouts RedisTimeoutConfig `toml:"timeouts" yaml:"timeouts"`
	PoolSize int                `toml:"poolsize" yaml:"poolsize"`
	TLS      TLSConfig          `toml:"tls" yaml:"tls"`
}

type RedisRetryConfig struct {
	MaxAttempts int                     `toml:"maxattempts" yaml:"maxattempts"`
	Backoff     RedisRetryBackoffConfig `toml:"backoff" yaml:"backoff"`
}

type RedisRetryBackoffConfig struct {
	Min int `toml:"min" yaml:"min"`
	Max int `toml:"max" yaml:"max"`
}

type RedisTimeoutConfig struct {
	Dial  int `toml:"dial" yaml:"dial"`
	Read  int `toml:"read" yaml:"read"`
	Write int `toml:"write" yaml:"write"`
	Pool  int `toml:"pool" yaml:"pool"`
	Idle  int `toml:"idle" yaml:"idle"`
}

type AwsConnectionConfig struct {
	Region          *string `toml:"region" yaml:"region"`
	Endpoint        string  `toml:"endpoint" yaml:"endpoint"`
	AccessKeyId     string  `toml:"accesskeyid" yaml:"accesskeyid"`
	SecretAccessKey string  `toml:"secretaccesskey" yaml:"secretaccesskey"`
	SessionToken    string  `toml:"sessiontoken" yaml:"sessiontoken"`
}

type AwsKinesisStreamConfig struct {
	Name       *string `toml:"name" yaml:"name"`
	Create     *bool   `toml:"create" yaml:"create"`
	ShardCount *int64  `toml:"shardcount" yaml:"shardcount"`
	Mode       *string `toml:"mode" yaml:"mode"`
}

type AwsKinesisConfig struct {
	Stream AwsKinesisStreamConfig `toml:"stream" yaml:"stream"`
	Aws    AwsConnectionConfig    `toml:"aws" yaml:"aws"`
}

type AwsSqsQueueConfig struct {
	Url *string `toml:"url" yaml:"url"`
}

type AwsSqsConfig struct {
	Queue AwsSqsQueueConfig   `toml:"queue" yaml:"queue"`
	Aws   AwsConnectionConfig `toml:"aws" yaml:"aws"`
}

type HttpBasicAuthenticationConfig struct {
	Username string `toml:"username" yaml:"username"`
	Password string `toml:"password" yaml:"password"`
}

type HttpHeaderAuthenticationConfig struct {
	Name  string `toml:"name" yaml:"name"`
	Value string `toml:"value" yaml:"value"`
}

type HttpAuthenticationConfig struct {
	Type   HttpAuthenticationType         `toml:"type" yaml:"type"`
	Basic  HttpBasicAuthenticationConfig  `toml:"basic" yaml:"basic"`
	Header HttpHeaderAuthenticationConfig `toml:"header" yaml:"header"`
}

type HttpConfig struct {
	Url            string                   `toml:"url" yaml:"url"`
	Authentication HttpAuthenticationConfig `toml:"authentication" yaml:"authentication"`
	TLS            TLSConfig                `toml:"tls" yaml:"tls"`
}

type TLSConfig struct {
	Enabled    bool               `toml:"enabled" yaml:"enabled"`
	SkipVerify bool               `toml:"skipverify" yaml:"skipverify"`
	ClientAuth tls.ClientAuthType `toml:"clientauth" yaml:"clientauth"`
}

type StatsConfig struct {
	Enabled *bool              `toml:"enabled" yaml:"enabled"`
	Address string             `toml:"address" yaml:"address"`
	Runtime RuntimeStatsConfig `toml:"runtime" yaml:"runtime"`
}

type RuntimeStatsConfig struct {
	Enabled *bool `toml:"enabled" yaml:"enabled"`
}

type RestartConfig struct {
	MaxAttempts *int `toml:"maxattempts" yaml:"maxattempts"`
}

type SourceConfig struct {
	Http HttpSourceConfig `toml:"http" yaml:"http"`
}

type HttpSourceConfig struct {
	Endpoint string  `toml:"endpoint" yaml:"endpoint"`
	Method   string  `toml:"method" yaml:"method"`
	Body     *string `toml:"body" yaml:"body"`
	Interval int     `toml:"interval" yaml:"interval"`
}

type SqlSinkConfig struct {
	Connection string `toml:"connection" yaml:"connection"`
}

type Config struct {
	PostgreSQL PostgreSQLConfig `toml:"postgresql" yaml:"postgresql"`
	Sink       SinkConfig       `toml:"sink" yaml:"sink"`
	Transform  TransformConfig  `toml:"transform" yaml:"transform"`
	Source     SourceConfig     `toml:"source" yaml:"source"`
	SqlSink    SqlSinkConfig    `toml:"sqlsink" yaml:"sqlsink"`
	Stats      StatsConfig      `toml:"stats" yaml:"stats"`
	Restart    RestartConfig    `toml:"restart" yaml:"restart"`
	Logging    LoggerConfig     `toml:"logging" yaml:"logging"`
}

type LoggerConfig struct {
	Level   string                     `toml:"level" yaml:"level"`
	Outputs LoggerOutputConfig         `toml:"output" yaml:"output"`
	Loggers map[string]SubLoggerConfig `toml:"loggers" yaml:"loggers"`
}

type LoggerOutputConfig struct {
	Console LoggerConsoleConfig `toml:"console" yaml:"console"`
	File    LoggerFileConfig    `toml:"file" yaml:"file"`
}

type SubLoggerConfig struct {
	Level   *string            `toml:"level" yaml:"level"`
	Outputs LoggerOutputConfig `toml:"output" yaml:"output"`
}

type LoggerConsoleConfig struct {
	Enabled *bool `toml:"enabled" yaml:"enabled"`
}

type LoggerFileConfig struct {
	Enabled     *bool   `toml:"enabled" yaml:"enabled"`
	Path        string  `toml:"path" yaml:"path"`
	Rotate      *bool   `toml:"rotate" yaml:"rotate"`
	MaxSize     *string `toml:"maxsize" yaml:"maxsize"`
	MaxDuration *int    `toml:"maxduration" yaml:"maxduration"`
	Compress    bool    `toml:"compress" yaml:"compress"`
}

// GetOrDefault resolves a canonical property (such as sink.kafka.brokers)
// from the environment first, then from the configuration structure. If
// neither provides a non-zero value, defaultValue is returned.
func GetOrDefault[V any](
	config *Config, canonicalProperty string, defaultValue V,
) V {

	if env, found := findEnvProperty(canonicalProperty, defaultValue); found {
		return env
	}

	properties := strings.Split(canonicalProperty, ".")

	element := reflect.ValueOf(*config)
	for _, property := range properties {
		if e, ok := findProperty(element, property); ok {
			element = e
		} else {
			return defaultValue
		}
	}

	if !element.IsZero() &&
		!(element.Kind() == reflect.Ptr && element.IsNil()) {

		targetType := reflect.TypeOf(defaultValue)
		if targetType == nil {
			return defaultValue
		}

		if element.Kind() == reflect.Ptr && targetType.Kind() != reflect.Ptr {
			element = element.Elem()
		}

		if !element.Type().ConvertibleTo(targetType) {
			return defaultValue
		}
		return element.Convert(targetType).Interface().(V)
	}
	return defaultValue
}

func findEnvProperty[V any](
	canonicalProperty string, defaultValue V,
) (V, bool) {

	val, ok := os.LookupEnv(envVarName(canonicalProperty))
	if !ok || val == "" {
		return defaultValue, false
	}

	t := reflect.TypeOf(defaultValue)
	if t == nil {
		return defaultValue, false
	}

	if parsed, ok := parseEnvValue(val, t); ok {
		return parsed.Interface().(V), true
	}
	return defaultValue, false
}

func parseEnvValue(
	val string, t reflect.Type,
) (reflect.Value, bool) {

	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(val).Convert(t), true
	case reflect.Bool:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(b).Convert(t), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(i).Convert(t), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return reflect.Value{}, false
		}
		return reflect.ValueOf(u).Convert(t), true
	case reflect.Slice:
		if t.Elem().Kind() != reflect.String {
			return reflect.Value{}, false
		}
		parts := strings.Split(val, ",")
		slice := reflect.MakeSlice(t, 0, len(parts))
		for _, part := range parts {
			slice = reflect.Append(slice, reflect.ValueOf(strings.TrimSpace(part)).Convert(t.Elem()))
		}
		return slice, true
	case reflect.Ptr:
		inner, ok := parseEnvValue(val, t.Elem())
		if !ok {
			return reflect.Value{}, false
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(inner)
		return ptr, true
	}
	return reflect.Value{}, false
}

func envVarName(
	canonicalProperty string,
) string {

	envVarName := strings.ToUpper(canonicalProperty)
	envVarName = strings.ReplaceAll(envVarName, "_", "__")
	return strings.ReplaceAll(envVarName, ".", "_")
}

func findProperty(
	element reflect.Value, property string,
) (reflect.Value, bool) {

	if element.Kind() == reflect.Ptr {
		if element.IsNil() {
			return reflect.Value{}, false
		}
		element = element.Elem()
	}

	if element.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}

	t := element.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.PkgPath != "" && !f.Anonymous {
			continue
		}

		if f.Tag.Get("toml") == property {
			return element.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// DurationOrDefault reads an integer property and interprets it in the
// given unit.
func DurationOrDefault(
	config *Config, canonicalProperty string, unit time.Duration, defaultValue time.Duration,
) time.Duration {

	value := GetOrDefault(config, canonicalProperty, -1)
	if value < 0 {
		return defaultValue
	}
	return time.Duration(value) * unit
}

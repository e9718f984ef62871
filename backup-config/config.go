// Package backupconfig loads the reconciler configuration from a document
// (yaml, json or toml), a secrets manager secret, or the environment.
//
// Keys absent from the document fall back to environment variables of the
// same name, e.g. firehoseDeliveryBucket.
package backupconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/SundaeSwap-finance/ddb-continuous-backup/backup"
	"github.com/SundaeSwap-finance/ddb-continuous-backup/optin"
	"github.com/SundaeSwap-finance/ddb-continuous-backup/resources"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDeliverySizeMB          = 5
	DefaultDeliveryIntervalSeconds = 300
	DefaultStreamsMaxRecordsBatch  = 100

	DefaultRoutingFunctionName    = "ddb-stream-forwarder"
	DefaultRoutingFunctionKey     = "ddb-stream-forwarder/bootstrap.zip"
	DefaultRoutingFunctionRuntime = "provided.al2023"
	DefaultRoutingFunctionHandler = "bootstrap"
)

type Config struct {
	Region string `json:"region" yaml:"region" toml:"region"`

	ProvisionAll        bool     `json:"provisionAll" yaml:"provisionAll" toml:"provisionAll"`
	TableNames          []string `json:"tableNames" yaml:"tableNames" toml:"tableNames"`
	TableNameMatchRegex string   `json:"tableNameMatchRegex" yaml:"tableNameMatchRegex" toml:"tableNameMatchRegex"`

	FirehoseDeliveryRoleArn         string `json:"firehoseDeliveryRoleArn" yaml:"firehoseDeliveryRoleArn" toml:"firehoseDeliveryRoleArn"`
	FirehoseDeliveryBucket          string `json:"firehoseDeliveryBucket" yaml:"firehoseDeliveryBucket" toml:"firehoseDeliveryBucket"`
	FirehoseDeliveryPrefix          string `json:"firehoseDeliveryPrefix" yaml:"firehoseDeliveryPrefix" toml:"firehoseDeliveryPrefix"`
	FirehoseDeliverySizeMB          int64  `json:"firehoseDeliverySizeMB" yaml:"firehoseDeliverySizeMB" toml:"firehoseDeliverySizeMB"`
	FirehoseDeliveryIntervalSeconds int64  `json:"firehoseDeliveryIntervalSeconds" yaml:"firehoseDeliveryIntervalSeconds" toml:"firehoseDeliveryIntervalSeconds"`

	StreamsMaxRecordsBatch int64  `json:"streamsMaxRecordsBatch" yaml:"streamsMaxRecordsBatch" toml:"streamsMaxRecordsBatch"`
	LambdaExecRoleArn      string `json:"lambdaExecRoleArn" yaml:"lambdaExecRoleArn" toml:"lambdaExecRoleArn"`

	RoutingFunctionName    string `json:"routingFunctionName" yaml:"routingFunctionName" toml:"routingFunctionName"`
	RoutingFunctionBucket  string `json:"routingFunctionBucket" yaml:"routingFunctionBucket" toml:"routingFunctionBucket"`
	RoutingFunctionKey     string `json:"routingFunctionKey" yaml:"routingFunctionKey" toml:"routingFunctionKey"`
	RoutingFunctionRuntime string `json:"routingFunctionRuntime" yaml:"routingFunctionRuntime" toml:"routingFunctionRuntime"`
	RoutingFunctionHandler string `json:"routingFunctionHandler" yaml:"routingFunctionHandler" toml:"routingFunctionHandler"`
}

// Load reads the configuration document at filename. Files ending in .toml
// are read as toml; anything else as yaml, which includes json.
func Load(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config file, %v: %w", filename, err)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	config, err := Parse(format, data)
	if err != nil {
		return Config{}, fmt.Errorf("unable to parse config file, %v: %w", filename, err)
	}
	return config, nil
}

func Parse(format string, data []byte) (Config, error) {
	var config Config
	switch format {
	case "toml":
		if _, err := toml.Decode(string(data), &config); err != nil {
			return Config{}, fmt.Errorf("failed to parse toml: %w", err)
		}

	default:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		if err := decoder.Decode(&config); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("failed to parse %v: %w", format, err)
		}
	}
	return config, nil
}

// WithEnv fills every unset key from the environment variable of the same
// name. Region falls back to AWS_DEFAULT_REGION and then AWS_REGION.
func (c Config) WithEnv(getenv func(string) string) (Config, error) {
	str := func(v *string, key string) {
		if *v == "" {
			*v = strings.TrimSpace(getenv(key))
		}
	}
	num := func(v *int64, key string) error {
		if s := strings.TrimSpace(getenv(key)); *v == 0 && s != "" {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return fmt.Errorf("unable to parse %v, %v: %w", key, s, err)
			}
			*v = n
		}
		return nil
	}

	str(&c.Region, "region")
	str(&c.Region, "AWS_DEFAULT_REGION")
	str(&c.Region, "AWS_REGION")

	if s := strings.TrimSpace(getenv("provisionAll")); !c.ProvisionAll && s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return Config{}, fmt.Errorf("unable to parse provisionAll, %v: %w", s, err)
		}
		c.ProvisionAll = v
	}
	if s := strings.TrimSpace(getenv("tableNames")); len(c.TableNames) == 0 && s != "" {
		for _, name := range strings.Split(s, ",") {
			if name = strings.TrimSpace(name); name != "" {
				c.TableNames = append(c.TableNames, name)
			}
		}
	}
	str(&c.TableNameMatchRegex, "tableNameMatchRegex")

	str(&c.FirehoseDeliveryRoleArn, "firehoseDeliveryRoleArn")
	str(&c.FirehoseDeliveryBucket, "firehoseDeliveryBucket")
	str(&c.FirehoseDeliveryPrefix, "firehoseDeliveryPrefix")
	str(&c.LambdaExecRoleArn, "lambdaExecRoleArn")
	str(&c.RoutingFunctionName, "routingFunctionName")
	str(&c.RoutingFunctionBucket, "routingFunctionBucket")
	str(&c.RoutingFunctionKey, "routingFunctionKey")
	str(&c.RoutingFunctionRuntime, "routingFunctionRuntime")
	str(&c.RoutingFunctionHandler, "routingFunctionHandler")

	for key, v := range map[string]*int64{
		"firehoseDeliverySizeMB":          &c.FirehoseDeliverySizeMB,
		"firehoseDeliveryIntervalSeconds": &c.FirehoseDeliveryIntervalSeconds,
		"streamsMaxRecordsBatch":          &c.StreamsMaxRecordsBatch,
	} {
		if err := num(v, key); err != nil {
			return Config{}, err
		}
	}
	return c, nil
}

func (c Config) WithDefaults() Config {
	if c.FirehoseDeliverySizeMB == 0 {
		c.FirehoseDeliverySizeMB = DefaultDeliverySizeMB
	}
	if c.FirehoseDeliveryIntervalSeconds == 0 {
		c.FirehoseDeliveryIntervalSeconds = DefaultDeliveryIntervalSeconds
	}
	if c.StreamsMaxRecordsBatch == 0 {
		c.StreamsMaxRecordsBatch = DefaultStreamsMaxRecordsBatch
	}
	if c.RoutingFunctionName == "" {
		c.RoutingFunctionName = DefaultRoutingFunctionName
	}
	if c.RoutingFunctionKey == "" {
		c.RoutingFunctionKey = DefaultRoutingFunctionKey
	}
	if c.RoutingFunctionRuntime == "" {
		c.RoutingFunctionRuntime = DefaultRoutingFunctionRuntime
	}
	if c.RoutingFunctionHandler == "" {
		c.RoutingFunctionHandler = DefaultRoutingFunctionHandler
	}
	return c
}

// Validate checks required keys are present and numeric keys are within the
// limits firehose and lambda accept.
func (c Config) Validate() error {
	for key, v := range map[string]string{
		"region":                  c.Region,
		"firehoseDeliveryRoleArn": c.FirehoseDeliveryRoleArn,
		"firehoseDeliveryBucket":  c.FirehoseDeliveryBucket,
		"lambdaExecRoleArn":       c.LambdaExecRoleArn,
		"routingFunctionBucket":   c.RoutingFunctionBucket,
	} {
		if v == "" {
			return fmt.Errorf("invalid config: %v is required", key)
		}
	}

	switch {
	case c.FirehoseDeliverySizeMB < 1 || c.FirehoseDeliverySizeMB > 128:
		return fmt.Errorf("invalid config: firehoseDeliverySizeMB must be between 1 and 128, got %v", c.FirehoseDeliverySizeMB)
	case c.FirehoseDeliveryIntervalSeconds < 60 || c.FirehoseDeliveryIntervalSeconds > 900:
		return fmt.Errorf("invalid config: firehoseDeliveryIntervalSeconds must be between 60 and 900, got %v", c.FirehoseDeliveryIntervalSeconds)
	case c.StreamsMaxRecordsBatch < 1 || c.StreamsMaxRecordsBatch > 10000:
		return fmt.Errorf("invalid config: streamsMaxRecordsBatch must be between 1 and 10000, got %v", c.StreamsMaxRecordsBatch)
	}
	return nil
}

// Filter returns the opt-in policy for the configured pattern.
func (c Config) Filter() *optin.RegexFilter {
	return optin.Regex(c.TableNameMatchRegex)
}

// Whitelist returns the explicit table set, or nil when every table should be
// reconciled.
func (c Config) Whitelist() []string {
	if c.ProvisionAll || len(c.TableNames) == 0 {
		return nil
	}
	return c.TableNames
}

func (c Config) Engine(dry bool) backup.Config {
	return backup.Config{
		DeliveryRoleArn:         c.FirehoseDeliveryRoleArn,
		DeliveryBucket:          c.FirehoseDeliveryBucket,
		DeliveryPrefix:          c.FirehoseDeliveryPrefix,
		DeliverySizeMB:          c.FirehoseDeliverySizeMB,
		DeliveryIntervalSeconds: c.FirehoseDeliveryIntervalSeconds,
		StreamsMaxRecordsBatch:  c.StreamsMaxRecordsBatch,
		RoutingFunction: resources.FunctionSpec{
			Name:        c.RoutingFunctionName,
			Runtime:     c.RoutingFunctionRuntime,
			Handler:     c.RoutingFunctionHandler,
			RoleArn:     c.LambdaExecRoleArn,
			Bucket:      c.RoutingFunctionBucket,
			Key:         c.RoutingFunctionKey,
			Description: "forwards dynamodb stream records to the table's firehose delivery stream",
			TimeoutSecs: 300,
			MemoryMB:    128,
		},
		Dry: dry,
	}
}

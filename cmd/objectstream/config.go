package main

import (
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"gopkg.in/yaml.v3"

	"github.com/c360/objectstream/objectstore"
)

// FileConfig is the optional YAML configuration file. Flags override
// anything set here.
type FileConfig struct {
	NATS struct {
		URL      string        `yaml:"url"`
		Name     string        `yaml:"name"`
		Username string        `yaml:"username"`
		Password string        `yaml:"password"`
		Token    string        `yaml:"token"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"nats"`

	Bucket struct {
		Name        string        `yaml:"name"`
		Description string        `yaml:"description"`
		ChunkSize   uint32        `yaml:"chunk_size"`
		MaxBytes    int64         `yaml:"max_bytes"`
		MaxAge      time.Duration `yaml:"max_age"`
		Replicas    int           `yaml:"replicas"`
		Storage     string        `yaml:"storage"`
	} `yaml:"bucket"`
}

// loadFileConfig reads the YAML config when a path is given. A missing
// default path is not an error; an explicit path must exist.
func loadFileConfig(path string, explicit bool) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// bucketConfig merges the file config with flag values into a store config.
func bucketConfig(file *FileConfig, bucket string) (objectstore.Config, error) {
	cfg := objectstore.DefaultConfig(bucket)
	if file.Bucket.Name != "" && bucket == "" {
		cfg.Bucket = file.Bucket.Name
	}
	if file.Bucket.Description != "" {
		cfg.Description = file.Bucket.Description
	}
	if file.Bucket.ChunkSize > 0 {
		cfg.ChunkSize = file.Bucket.ChunkSize
	}
	if file.Bucket.MaxBytes > 0 {
		cfg.MaxBytes = file.Bucket.MaxBytes
	}
	if file.Bucket.MaxAge > 0 {
		cfg.MaxAge = file.Bucket.MaxAge
	}
	if file.Bucket.Replicas > 0 {
		cfg.Replicas = file.Bucket.Replicas
	}
	switch file.Bucket.Storage {
	case "", "file":
		cfg.Storage = jetstream.FileStorage
	case "memory":
		cfg.Storage = jetstream.MemoryStorage
	default:
		return cfg, fmt.Errorf("invalid storage type %q (want file or memory)", file.Bucket.Storage)
	}
	return cfg, cfg.Validate()
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfig is written by InitConfig. It must stay loadable: the
// config tests load it back.
const sampleConfig = `# ndd Configuration File
#
# Environment variables override any setting with the NDD_ prefix,
# e.g. NDD_LOGGING_LEVEL=DEBUG.

logging:
  # DEBUG, INFO, WARN, ERROR or a numeric verbosity 0-9
  level: INFO
  # text or json
  format: text
  # stdout, stderr or a file path
  output: stdout

telemetry:
  enabled: false
  endpoint: localhost:4317
  insecure: true
  sample_rate: 1.0
  profiling:
    enabled: false
    endpoint: http://localhost:4040
    profile_types: [cpu, inuse_space]

metrics:
  # Served by the API server on /metrics
  enabled: false

api:
  enabled: true
  port: 8077
  read_timeout: 10s
  write_timeout: 10s
  idle_timeout: 60s

server:
  bind_address: 0.0.0.0
  # IP protocol number of ND datagrams
  protocol: 77
  poll_interval: 500ms
  lock_file: /var/lock/ndd.lock

shutdown_timeout: 10s

# Up to four minors, ids 0-3. Types: file, memory, badger, s3.
# Mode is RO (read-only) or WR (read-write).
minors:
  - id: 0
    name: scratch
    type: memory
    mode: WR
    size: 64Mi

  # - id: 1
  #   type: file
  #   path: /dev/sdb
  #   mode: RO

  # - id: 2
  #   type: badger
  #   mode: WR
  #   size: 1Gi
  #   badger:
  #     dir: /var/lib/ndd/nd2

  # - id: 3
  #   type: s3
  #   mode: RO
  #   s3:
  #     bucket: disk-images
  #     key: boot.img
  #     region: us-east-1
`

// InitConfig writes the sample configuration to the default per-user
// location and returns its path. An existing file is kept unless force is
// set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the sample configuration to path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

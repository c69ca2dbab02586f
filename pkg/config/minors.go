package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/ndd/internal/bytesize"
	"github.com/marmos91/ndd/internal/logger"
	"github.com/marmos91/ndd/pkg/minor"
	badgerstore "github.com/marmos91/ndd/pkg/minor/store/badger"
	filestore "github.com/marmos91/ndd/pkg/minor/store/file"
	memorystore "github.com/marmos91/ndd/pkg/minor/store/memory"
	s3store "github.com/marmos91/ndd/pkg/minor/store/s3"
)

// ErrNoMinors is returned when no configured minor could be opened.
var ErrNoMinors = errors.New("no minor could be opened")

// MinorConfig describes one backing store exposed as an ND minor.
type MinorConfig struct {
	// ID is the minor number clients address, 0 to 3.
	ID int `mapstructure:"id" validate:"min=0,max=3" yaml:"id"`

	// Name is a label for logs and the API. Defaults to the path or object.
	Name string `mapstructure:"name" yaml:"name,omitempty"`

	// Type selects the backend: file, memory, badger, s3.
	Type string `mapstructure:"type" validate:"required,oneof=file memory badger s3" yaml:"type"`

	// Mode is RO (read-only) or WR (read-write).
	Mode string `mapstructure:"mode" validate:"required,oneof=RO WR" yaml:"mode"`

	// Path is the file or block device of a file minor.
	Path string `mapstructure:"path" yaml:"path,omitempty"`

	// Size is the device size for memory and badger minors. For a file
	// minor it is the size of the sparse file created when Path does not
	// exist; an existing file keeps its own size.
	Size bytesize.ByteSize `mapstructure:"size" yaml:"size,omitempty"`

	// Badger configures a badger minor.
	Badger BadgerMinorConfig `mapstructure:"badger" yaml:"badger,omitempty"`

	// S3 configures an s3 minor.
	S3 S3MinorConfig `mapstructure:"s3" yaml:"s3,omitempty"`
}

// BadgerMinorConfig configures a BadgerDB-backed minor.
type BadgerMinorConfig struct {
	// Dir is the database directory.
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"`

	// SyncWrites makes every write durable before it is acknowledged.
	SyncWrites bool `mapstructure:"sync_writes" yaml:"sync_writes,omitempty"`
}

// S3MinorConfig configures a read-only minor served from an S3 object.
type S3MinorConfig struct {
	Bucket         string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Key            string `mapstructure:"key" yaml:"key,omitempty"`
	Region         string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`

	// Static credentials. When empty the AWS default chain is used.
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`

	// RequestTimeout bounds each ranged GET. Default: 30s
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout,omitempty"`
}

// Label returns the configured name or a description of the backend.
func (c MinorConfig) Label() string {
	if c.Name != "" {
		return c.Name
	}
	switch minor.Type(c.Type) {
	case minor.TypeFile:
		return c.Path
	case minor.TypeBadger:
		return c.Badger.Dir
	case minor.TypeS3:
		return fmt.Sprintf("s3://%s/%s", c.S3.Bucket, c.S3.Key)
	default:
		return fmt.Sprintf("%s-%d", c.Type, c.ID)
	}
}

// OpenMinor opens the store described by c.
func OpenMinor(ctx context.Context, c MinorConfig) (*minor.Minor, error) {
	mode, err := minor.ParseMode(c.Mode)
	if err != nil {
		return nil, err
	}
	readOnly := mode == minor.ModeReadOnly

	store, err := openStore(ctx, c, readOnly)
	if err != nil {
		return nil, err
	}

	m, err := minor.New(uint8(c.ID), c.Label(), minor.Type(c.Type), mode, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return m, nil
}

func openStore(ctx context.Context, c MinorConfig, readOnly bool) (minor.Store, error) {
	switch minor.Type(c.Type) {
	case minor.TypeFile:
		s, err := filestore.New(filestore.Config{
			Path:       c.Path,
			ReadOnly:   readOnly,
			CreateSize: c.Size.Int64(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open file store: %w", err)
		}
		return s, nil

	case minor.TypeMemory:
		return memorystore.New(c.Size.Int64()), nil

	case minor.TypeBadger:
		s, err := badgerstore.New(badgerstore.Config{
			Dir:        c.Badger.Dir,
			Size:       c.Size.Int64(),
			ReadOnly:   readOnly,
			SyncWrites: c.Badger.SyncWrites,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open badger database: %w", err)
		}
		return s, nil

	case minor.TypeS3:
		s, err := s3store.NewFromConfig(ctx, s3store.Config{
			Bucket:          c.S3.Bucket,
			Key:             c.S3.Key,
			Region:          c.S3.Region,
			Endpoint:        c.S3.Endpoint,
			ForcePathStyle:  c.S3.ForcePathStyle,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			RequestTimeout:  c.S3.RequestTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open s3 object: %w", err)
		}
		return s, nil

	default:
		return nil, fmt.Errorf("unknown minor type: %q", c.Type)
	}
}

// InitializeRegistry opens every configured minor into a new registry.
//
// A minor that fails to open is logged and skipped so that one bad disk
// does not keep the others offline. ErrNoMinors is returned when nothing
// could be opened.
func InitializeRegistry(ctx context.Context, cfg *Config) (*minor.Registry, error) {
	reg := minor.NewRegistry()

	for _, mc := range cfg.Minors {
		m, err := OpenMinor(ctx, mc)
		if err != nil {
			logger.Warn("Unable to open minor, skipping",
				logger.KeyMinor, mc.ID,
				logger.KeyStoreType, mc.Type,
				"name", mc.Label(),
				logger.Err(err))
			continue
		}

		if err := reg.Add(m); err != nil {
			logger.Warn("Unable to register minor, skipping",
				logger.Minor(m.ID()),
				logger.Err(err))
			_ = m.Close()
			continue
		}

		logger.Info("Minor opened",
			logger.Minor(m.ID()),
			logger.KeyStoreType, string(m.Type()),
			logger.KeyMode, m.Mode().String(),
			logger.KeySize, m.Size(),
			"blocks", m.Blocks(),
			"name", m.Name())
	}

	if reg.Len() == 0 {
		return nil, ErrNoMinors
	}
	return reg, nil
}

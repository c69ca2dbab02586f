package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/ndd/pkg/minor"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg against field constraints and the rules that span
// fields: unique minor ids and per-backend required settings.
//
// ApplyDefaults should run first; Validate does not normalize.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationErrors(err)
	}

	var errs []error
	seen := make(map[int]bool, len(cfg.Minors))
	for i, mc := range cfg.Minors {
		if seen[mc.ID] {
			errs = append(errs, fmt.Errorf("minors[%d]: duplicate id %d", i, mc.ID))
		}
		seen[mc.ID] = true

		if err := validateMinor(mc); err != nil {
			errs = append(errs, fmt.Errorf("minors[%d] (id %d): %w", i, mc.ID, err))
		}
	}

	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		errs = append(errs, errors.New("telemetry.profiling.endpoint is required when profiling is enabled"))
	}

	return errors.Join(errs...)
}

func validateMinor(mc MinorConfig) error {
	switch minor.Type(mc.Type) {
	case minor.TypeFile:
		if mc.Path == "" {
			return errors.New("path is required for file minors")
		}
	case minor.TypeMemory:
		if mc.Size == 0 {
			return errors.New("size is required for memory minors")
		}
	case minor.TypeBadger:
		if mc.Badger.Dir == "" {
			return errors.New("badger.dir is required for badger minors")
		}
	case minor.TypeS3:
		if mc.S3.Bucket == "" || mc.S3.Key == "" {
			return errors.New("s3.bucket and s3.key are required for s3 minors")
		}
		if mc.Mode != minor.ModeReadOnly.String() {
			return errors.New("s3 minors must be read-only (mode: RO)")
		}
	}

	if !mc.Size.Aligned(minor.BlockSize) {
		return fmt.Errorf("size %s is not a multiple of %d bytes", mc.Size, minor.BlockSize)
	}
	return nil
}

// formatValidationErrors turns validator errors into one line per field:
// "Logging.Level: failed on 'oneof' (value: TRACE)".
func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed on '%s=%s' (value: %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed on '%s' (value: %v)", field, fe.Tag(), fe.Value()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}

package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration against the struct validation tags
// plus a few cross-field rules the tags cannot express.
func Validate(cfg *Config) error {
	v := validator.New()

	if err := v.Struct(cfg); err != nil {
		var errs validator.ValidationErrors
		if ok := asValidationErrors(err, &errs); ok {
			return fmt.Errorf("invalid configuration: %s", formatValidationErrors(errs))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for name, tier := range map[string]TierConfig{
		"tiers.public":        cfg.Tiers.Public,
		"tiers.authenticated": cfg.Tiers.Authenticated,
	} {
		if tier.BlockSize > 0 && tier.CacheSize > 0 && tier.CacheSize < tier.BlockSize {
			return fmt.Errorf("invalid configuration: %s.cache_size (%s) is smaller than block_size (%s)",
				name, tier.CacheSize, tier.BlockSize)
		}
	}

	if cfg.Keys.Keyserver != "" && !strings.Contains(cfg.Keys.Keyserver, "{}") {
		return fmt.Errorf("invalid configuration: keys.keyserver must contain a {} user placeholder")
	}

	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	errs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = errs
	}
	return ok
}

// formatValidationErrors renders validator errors as "field: failed tag"
// pairs readable in a startup log line.
func formatValidationErrors(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, fmt.Sprintf("%s: failed %q validation", e.Namespace(), e.Tag()))
	}
	return strings.Join(parts, "; ")
}

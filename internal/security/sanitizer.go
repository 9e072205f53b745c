package security

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/sumandas0/notionmbse/pkg/utils"
)

type SanitizerConfig struct {
	Enabled         bool `yaml:"enabled" mapstructure:"enabled"`
	MaxStringLength int  `yaml:"max_string_length" mapstructure:"max_string_length"`
	MaxArrayLength  int  `yaml:"max_array_length" mapstructure:"max_array_length"`
	MaxObjectDepth  int  `yaml:"max_object_depth" mapstructure:"max_object_depth"`
	// StrictMode rejects oversized input instead of truncating it.
	StrictMode bool `yaml:"strict_mode" mapstructure:"strict_mode"`
}

func DefaultSanitizerConfig() SanitizerConfig {
	return SanitizerConfig{
		Enabled:         true,
		MaxStringLength: 2000,
		MaxArrayLength:  100,
		MaxObjectDepth:  4,
	}
}

// InputSanitizer strips markup from record fields before they are stored.
// Workspace titles and rich text are plain text, so every tag is removed.
type InputSanitizer struct {
	config SanitizerConfig
	policy *bluemonday.Policy
}

func NewInputSanitizer(config SanitizerConfig) *InputSanitizer {
	return &InputSanitizer{config: config, policy: bluemonday.StrictPolicy()}
}

func (is *InputSanitizer) IsEnabled() bool {
	return is != nil && is.config.Enabled
}

func (is *InputSanitizer) SanitizeString(input string) (string, error) {
	if !is.IsEnabled() {
		return input, nil
	}

	if max := is.config.MaxStringLength; max > 0 && utf8.RuneCountInString(input) > max {
		if is.config.StrictMode {
			return "", utils.NewValidationError(fmt.Sprintf("string length exceeds maximum allowed length of %d", max), nil)
		}
		input = string([]rune(input)[:max])
	}
	if !utf8.ValidString(input) {
		input = strings.ToValidUTF8(input, "")
	}
	input = strings.ReplaceAll(input, "\x00", "")

	// StrictPolicy escapes what it keeps; the stored value is plain text.
	return strings.TrimSpace(html.UnescapeString(is.policy.Sanitize(input))), nil
}

// SanitizeFields returns a sanitized copy of a record field map.
func (is *InputSanitizer) SanitizeFields(fields map[string]any) (map[string]any, error) {
	if !is.IsEnabled() {
		return fields, nil
	}
	out, err := is.sanitizeObject(fields, 0)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (is *InputSanitizer) sanitizeValue(value any, depth int) (any, error) {
	if depth > is.config.MaxObjectDepth {
		if is.config.StrictMode {
			return nil, utils.NewValidationError(fmt.Sprintf("object depth exceeds maximum allowed depth of %d", is.config.MaxObjectDepth), nil)
		}
		return nil, nil
	}

	switch v := value.(type) {
	case string:
		return is.SanitizeString(v)
	case []any:
		return is.sanitizeArray(v, depth)
	case map[string]any:
		return is.sanitizeObject(v, depth)
	default:
		return v, nil
	}
}

func (is *InputSanitizer) sanitizeArray(arr []any, depth int) ([]any, error) {
	if max := is.config.MaxArrayLength; max > 0 && len(arr) > max {
		if is.config.StrictMode {
			return nil, utils.NewValidationError(fmt.Sprintf("array length exceeds maximum allowed length of %d", max), nil)
		}
		arr = arr[:max]
	}

	out := make([]any, 0, len(arr))
	for _, item := range arr {
		v, err := is.sanitizeValue(item, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (is *InputSanitizer) sanitizeObject(obj map[string]any, depth int) (map[string]any, error) {
	out := make(map[string]any, len(obj))
	for key, value := range obj {
		v, err := is.sanitizeValue(value, depth+1)
		if err != nil {
			return nil, fmt.Errorf("invalid value for key '%s': %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

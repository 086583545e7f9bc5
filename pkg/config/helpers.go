package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// SetValue sets a configuration value by key
// Supported keys:
//   - destination: string - Directory downloaded files land in
//   - endpoint_priority: string - Comma-separated scheme ordering
//   - block_size: int - Transfer chunk size in bytes
//   - retries: int - Whole-batch retry passes after failures
//   - ftp_user: string - Login presented to FTP servers
//   - aspera_user: string - Login for fasp endpoints
//   - http_timeout: duration - Per-request HTTP timeout (e.g. 30s)
//   - log_level: string - Logging level (debug, info, warn, error)
func (c *Config) SetValue(key, value string) error {
	switch key {
	case "destination":
		c.Settings.Destination = value
	case "endpoint_priority":
		if err := ValidatePriority(value); err != nil {
			return err
		}
		c.Settings.EndpointPriority = value
	case "block_size":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %s", key, value)
		}
		c.Settings.BlockSize = intVal
	case "retries":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value for %s: %s", key, value)
		}
		c.Settings.Retries = intVal
	case "ftp_user":
		c.Settings.FTPUser = value
	case "aspera_user":
		c.Settings.AsperaUser = value
	case "http_timeout":
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value for %s: %s", key, value)
		}
		c.Settings.HTTPTimeout = dur
	case "log_level":
		c.Settings.LogLevel = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// Returns the value as a string and any error encountered.
func (c *Config) GetValue(key string) (string, error) {
	switch key {
	case "destination":
		return c.Settings.Destination, nil
	case "endpoint_priority":
		return c.Settings.EndpointPriority, nil
	case "block_size":
		return strconv.Itoa(c.Settings.BlockSize), nil
	case "retries":
		return strconv.Itoa(c.Settings.Retries), nil
	case "ftp_user":
		return c.Settings.FTPUser, nil
	case "aspera_user":
		return c.Settings.AsperaUser, nil
	case "http_timeout":
		return c.Settings.HTTPTimeout.String(), nil
	case "log_level":
		return c.Settings.LogLevel, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// This is useful for displaying the configuration.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string)

	settingsValue := reflect.ValueOf(c.Settings)
	settingsType := settingsValue.Type()

	for i := 0; i < settingsValue.NumField(); i++ {
		field := settingsType.Field(i)
		yamlTag := field.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		// Handle yaml tags with options (e.g., "destination,omitempty")
		yamlKey := strings.Split(yamlTag, ",")[0]

		fieldValue := settingsValue.Field(i)
		var strValue string

		if dur, ok := fieldValue.Interface().(time.Duration); ok {
			result[yamlKey] = dur.String()
			continue
		}

		switch fieldValue.Kind() {
		case reflect.Bool:
			strValue = strconv.FormatBool(fieldValue.Bool())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			strValue = strconv.FormatInt(fieldValue.Int(), 10)
		case reflect.String:
			strValue = fieldValue.String()
		default:
			strValue = fmt.Sprintf("%v", fieldValue.Interface())
		}

		result[yamlKey] = strValue
	}

	return result
}

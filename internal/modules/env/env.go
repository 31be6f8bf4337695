package env

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

var (
	ErrNotFound         = errors.New("environment variable with key not found")
	ErrConversionFailed = errors.New("failed to convert environment variable with key to value")
)

func errNotFound(key string) error {
	return fmt.Errorf("key: %s: %w", key, ErrNotFound)
}

func errConversionFailed(key string, typeName string, err error) error {
	return fmt.Errorf("key: %s type: %s: %w: %v", key, typeName, ErrConversionFailed, err)
}

func GetString(key string) (string, error) {
	if val, found := os.LookupEnv(key); found {
		return val, nil
	}

	return "", errNotFound(key)
}

func MustGetString(key string) string {
	val, err := GetString(key)
	if err != nil {
		panic(err)
	}

	return val
}

func GetStringOrDefault(key string, defaultVal string) string {
	if val, found := os.LookupEnv(key); found && val != "" {
		return val
	}

	return defaultVal
}

func GetInt(key string) (int, error) {
	envVal, found := os.LookupEnv(key)
	if !found || envVal == "" {
		return 0, errNotFound(key)
	}

	val, err := strconv.Atoi(envVal)
	if err != nil {
		return 0, errConversionFailed(key, "int", err)
	}

	return val, nil
}

func MustGetInt(key string) int {
	val, err := GetInt(key)
	if err != nil {
		panic(err)
	}

	return val
}

func GetIntOrDefault(key string, defaultVal int) (int, error) {
	val, err := GetInt(key)
	if errors.Is(err, ErrNotFound) {
		return defaultVal, nil
	}

	return val, err
}

// GetDurationOrDefault parses values such as "30s" or "1h".
func GetDurationOrDefault(key string, defaultVal time.Duration) (time.Duration, error) {
	envVal, found := os.LookupEnv(key)
	if !found || envVal == "" {
		return defaultVal, nil
	}

	val, err := time.ParseDuration(envVal)
	if err != nil {
		return 0, errConversionFailed(key, "time.Duration", err)
	}

	return val, nil
}

func MustGetURL(key string) *url.URL {
	val := MustGetString(key)

	u, err := url.Parse(val)
	if err != nil {
		panic(errConversionFailed(key, "url.URL", err))
	}

	return u
}

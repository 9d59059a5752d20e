package host

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "yaml"
	envPrefix  = "WORKER"
)

// loadConfig reads config.yaml then config.<environment>.yaml from the content
// root, applies WORKER_ prefixed environment variables and finally the
// key=value settings.
func loadConfig(hctx Context, settings []string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType(configType)

	files := []string{
		filepath.Join(hctx.ContentRoot, configName+"."+configType),
		filepath.Join(hctx.ContentRoot, configName+"."+hctx.Environment+"."+configType),
	}
	for _, file := range files {
		if err := mergeFile(v, file); err != nil {
			return nil, err
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for _, s := range settings {
		key, value, ok := strings.Cut(s, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("host: setting %q is not key=value", s)
		}
		v.Set(key, value)
	}
	return v, nil
}

func mergeFile(v *viper.Viper, file string) error {
	f, err := os.Open(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("host: open config: %w", err)
	}
	defer f.Close()

	if err := v.MergeConfig(f); err != nil {
		return fmt.Errorf("host: read config %s: %w", file, err)
	}
	return nil
}

package host

import (
	"strings"

	"github.com/spf13/viper"
)

const (
	Development = "Development"
	Staging     = "Staging"
	Production  = "Production"
)

// EnvironmentVariable names the process environment variable consulted when
// the environment is not given explicitly or on the command line.
const EnvironmentVariable = "WORKER_ENVIRONMENT"

// Context describes the host being built. It is available to configuration
// delegates and, once built, from the container.
type Context struct {
	Environment string
	ContentRoot string
	Config      *viper.Viper
	Args        []string
}

func (c Context) IsDevelopment() bool {
	return c.IsEnvironment(Development)
}

func (c Context) IsEnvironment(name string) bool {
	return strings.EqualFold(c.Environment, name)
}

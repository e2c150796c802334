package app

import (
	"os"
	"time"

	"github.com/kzs0/tracehop"
	"github.com/kzs0/tracehop/config"
)

// Config configures the demo server and client.
type Config struct {
	Tracehop tracehop.Config `envPrefix:"TRACEHOP_" yaml:"tracehop"`

	// ServerAddr is the address the server binds.
	ServerAddr string `env:"SERVER_ADDR" envDefault:"127.0.0.1:3000" yaml:"server_addr"`
	// ServerURL is the address the client calls.
	ServerURL string `env:"SERVER_URL" envDefault:"http://localhost:3000" yaml:"server_url"`
	// RequestLatency is simulated before the server does its work.
	RequestLatency time.Duration `env:"REQUEST_LATENCY" envDefault:"300ms" yaml:"request_latency"`
	// WorkLatency is simulated inside the nested work span.
	WorkLatency time.Duration `env:"WORK_LATENCY" envDefault:"100ms" yaml:"work_latency"`
}

// LoadConfig reads the YAML file named by TRACEHOP_CONFIG, if any, then
// the environment.
func LoadConfig() (Config, error) {
	return config.Load[Config]("", os.Getenv(tracehop.EnvPrefix+"CONFIG"))
}

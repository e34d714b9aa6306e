package builder

import (
	"github.com/geoinfer/metering/internal/config"
	"github.com/gofiber/fiber/v2"
)

// FromYAML loads a builder from a YAML config file, loading the given env
// files first so ${VAR} substitutions resolve.
func FromYAML(path string, envFiles []string) (*Builder, error) {
	if len(envFiles) > 0 {
		config.LoadEnvFiles(envFiles)
	}

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	return &Builder{
		cfg:         cfg,
		middlewares: []fiber.Handler{},
	}, nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/joho/godotenv"
)

// parseEnv loads the dotenv file named by -env-file (default .env) when it
// exists, then overlays every variable that is set. Variables already in the
// environment win over the dotenv file.
func parseEnv(config *Config, args []string) error {
	if err := godotenv.Load(flagx.EnvFileFlag(args)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}
	if err := env.Parse(config); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

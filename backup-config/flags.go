package backupconfig

import (
	"fmt"
	"os"

	backupcli "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-cli"
	backupsecret "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-secret"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/urfave/cli/v2"
)

var ConfigOpts struct {
	File   string
	Secret string
}

var ConfigFileFlag = backupcli.StringFlag("config-file", "Configuration document (yaml, json or toml); keys it omits fall back to environment variables", &ConfigOpts.File)
var ConfigSecretFlag = backupcli.StringFlag("config-secret", "Secrets Manager secret holding the json configuration document", &ConfigOpts.Secret)

var ConfigFlags = []cli.Flag{
	ConfigFileFlag,
	ConfigSecretFlag,
}

// Resolve loads the configuration named by the flags, fills it from the
// environment, applies defaults and validates it. With neither a file nor a
// secret, the environment alone is used.
func Resolve(s *session.Session) (Config, error) {
	var config Config
	switch {
	case ConfigOpts.Secret != "":
		if err := backupsecret.LoadSecret(s, ConfigOpts.Secret, &config); err != nil {
			return Config{}, err
		}

	case ConfigOpts.File != "":
		c, err := Load(ConfigOpts.File)
		if err != nil {
			return Config{}, err
		}
		config = c
	}

	config, err := config.WithEnv(os.Getenv)
	if err != nil {
		return Config{}, err
	}
	config = config.WithDefaults()
	if err := config.Validate(); err != nil {
		return Config{}, fmt.Errorf("unable to resolve config: %w", err)
	}
	return config, nil
}

package backupgql

import (
	backupcli "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-cli"
	"github.com/rs/zerolog"
)

type BaseConfig struct {
	Logger  zerolog.Logger
	Service backupcli.Service
}

func NewConfig(service backupcli.Service) BaseConfig {
	return BaseConfig{
		Logger:  backupcli.Logger(service),
		Service: service,
	}
}

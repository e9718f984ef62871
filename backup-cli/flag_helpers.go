package backupcli

import (
	"strings"

	"github.com/urfave/cli/v2"
)

// envVar derives the environment variable for a flag, e.g. stream-name => STREAM_NAME
func envVar(name string) []string {
	return []string{strings.ToUpper(strings.ReplaceAll(name, "-", "_"))}
}

func StringFlag(name, usage string, destination *string, value ...string) *cli.StringFlag {
	flag := &cli.StringFlag{
		Name:        name,
		Usage:       usage,
		EnvVars:     envVar(name),
		Destination: destination,
	}
	if len(value) > 0 {
		flag.Value = value[0]
	}
	return flag
}

func BoolFlag(name, usage string, destination *bool) *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:        name,
		Usage:       usage,
		EnvVars:     envVar(name),
		Destination: destination,
	}
}

func IntFlag(name, usage string, destination *int, value int) *cli.IntFlag {
	return &cli.IntFlag{
		Name:        name,
		Usage:       usage,
		Value:       value,
		EnvVars:     envVar(name),
		Destination: destination,
	}
}

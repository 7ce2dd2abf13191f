package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
)

const tokenEnvVar = "CANVAS_API_TOKEN"

var errNoToken = errors.New("no Canvas token: set --api-token, " + tokenEnvVar + " (environment or --env-file) or --api-token-cmd")

type tokenSources struct {
	Token   string
	EnvFile string
	Cmd     []string
	Getenv  func(string) string
}

// resolveToken tries the explicit token, then the environment, then the env file, then the token
// command, in that order.
func resolveToken(src tokenSources) (string, error) {
	if src.Token != "" {
		return src.Token, nil
	}

	getenv := src.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if token := getenv(tokenEnvVar); token != "" {
		return token, nil
	}

	if src.EnvFile != "" {
		path, err := homedir.Expand(src.EnvFile)
		if err != nil {
			return "", fmt.Errorf("token: unable to expand homedir: %w", err)
		}
		env, err := godotenv.Read(path)
		if err != nil {
			return "", fmt.Errorf("token: couldn't read env file %s: %w", path, err)
		}
		if token := env[tokenEnvVar]; token != "" {
			return token, nil
		}
	}

	if len(src.Cmd) > 0 {
		output, err := exec.Command(src.Cmd[0], src.Cmd[1:]...).Output()
		if err != nil {
			return "", fmt.Errorf("token: couldn't execute api-token-cmd '%v': %w", src.Cmd, err)
		}
		if token := strings.TrimSpace(strings.Split(string(output), "\n")[0]); token != "" {
			return token, nil
		}
	}

	return "", errNoToken
}

package config

import (
	"os"
	"path/filepath"
)

const appName = "ngdm"

// GetAppDir returns the directory holding settings, config and runtime files.
// Honors XDG_CONFIG_HOME through os.UserConfigDir.
func GetAppDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, appName)
}

// EnsureAppDir creates the app directory if needed
func EnsureAppDir() error {
	return os.MkdirAll(GetAppDir(), 0o755)
}

// GetSettingsDBPath returns the path to the settings database
func GetSettingsDBPath() string {
	return filepath.Join(GetAppDir(), "settings.db")
}

// GetConfigPath returns the path to the daemon TOML config
func GetConfigPath() string {
	return filepath.Join(GetAppDir(), "config.toml")
}

// GetLogPath returns the path of the popup debug log
func GetLogPath() string {
	return filepath.Join(GetAppDir(), "debug.log")
}

// GetTokenPath returns the file holding the channel auth token
func GetTokenPath() string {
	return filepath.Join(GetAppDir(), "token")
}

// GetPortPath returns the file the running relay writes its channel port to
func GetPortPath() string {
	return filepath.Join(GetAppDir(), "port")
}

// GetPIDPath returns the file the running relay writes its pid to
func GetPIDPath() string {
	return filepath.Join(GetAppDir(), "pid")
}

// GetLockPath returns the single-instance lock file of the relay
func GetLockPath() string {
	return filepath.Join(GetAppDir(), "relay.lock")
}

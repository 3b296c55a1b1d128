// Package platform resolves the OS-appropriate directories cardamom
// stores its configuration and sync state under.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "cardamom"

// Paths holds the application's config and data directories.
type Paths struct {
	Config string // configuration file (cardamom.yaml)
	Data   string // default sync directory (.vcf files, .local/.remote snapshots)
}

// GetPaths returns platform-specific default paths for cardamom.
func GetPaths() (*Paths, error) {
	switch runtime.GOOS {
	case "darwin":
		return getDarwinPaths()
	case "windows":
		return getWindowsPaths()
	default:
		return getLinuxPaths()
	}
}

// getLinuxPaths follows the XDG Base Directory Specification.
func getLinuxPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}

	return &Paths{
		Config: filepath.Join(configHome, appName),
		Data:   filepath.Join(dataHome, appName),
	}, nil
}

func getDarwinPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	appSupport := filepath.Join(home, "Library", "Application Support", "Cardamom")

	return &Paths{
		Config: appSupport,
		Data:   appSupport,
	}, nil
}

func getWindowsPaths() (*Paths, error) {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		appData = filepath.Join(home, "AppData", "Roaming")
	}

	return &Paths{
		Config: filepath.Join(appData, "Cardamom"),
		Data:   filepath.Join(appData, "Cardamom"),
	}, nil
}

// ConfigFilePath returns the path to the default config file.
func (p *Paths) ConfigFilePath() string {
	return filepath.Join(p.Config, "cardamom.yaml")
}

// EnsureDirectories creates the config and data directories if missing.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.Config, p.Data} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return nil
}

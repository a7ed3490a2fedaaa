package pkg

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Prefix returns the base name of the running executable. It names the
// configuration and cache directories and prefixes environment variables.
//
// The dlv default output name "__debug_bin<N>" is replaced with [Name], and
// leading dots are removed.
//
//nolint:gochecknoglobals
var Prefix = sync.OnceValue(
	func() string {
		id := os.Args[0]
		if exe, err := os.Executable(); err == nil {
			id = exe
		}

		id = filepath.Base(id)
		id = strings.TrimSuffix(id, filepath.Ext(id))

		id = regexp.MustCompile(`^__debug_bin\d+$`).ReplaceAllString(id, Name)
		id = strings.TrimLeft(id, ".")

		if id == "" {
			return Name
		}

		return id
	},
)

// Env returns the environment variable identifier for key, such as
// SHGO_CONFIG_DIR for "config_dir".
func Env(key string) string {
	id := strings.Map(func(r rune) rune {
		if r == '-' || r == '.' {
			return '_'
		}

		return r
	}, Prefix()+"_"+key)

	return strings.ToUpper(id)
}

// ConfigDir returns the configuration directory. The environment variable
// [Env]("config_dir") overrides it.
//
//nolint:gochecknoglobals
var ConfigDir = sync.OnceValue(func() string {
	return userDir(Env("config_dir"), os.UserConfigDir, ".config")
})

// CacheDir returns the directory for transient files such as profiles.
// The environment variable [Env]("cache_dir") overrides it.
//
//nolint:gochecknoglobals
var CacheDir = sync.OnceValue(func() string {
	return userDir(Env("cache_dir"), os.UserCacheDir, ".cache")
})

// userDir picks the first available of: the override variable, the
// platform directory, a hidden directory in the home directory, and the
// working directory.
func userDir(override string, platform func() (string, error), hidden string) string {
	if dir := os.Getenv(override); dir != "" {
		return dir
	}

	if dir, err := platform(); err == nil {
		return filepath.Join(dir, Prefix())
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, hidden, Prefix())
	}

	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, Prefix())
	}

	return Prefix()
}

package paths

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"
)

// AppName names every per-user directory and default file.
const AppName = "relayconf"

// HomeDir returns the invoking user's home directory, also under sudo, so the
// database and logs land in one place whatever the privilege level.
func HomeDir() (string, error) {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir, nil
		}
	}
	return os.UserHomeDir()
}

// RealUser returns the UID and GID of the user behind sudo. ok is false when
// not running under sudo.
func RealUser() (uid, gid int, ok bool) {
	sudoUID := os.Getenv("SUDO_UID")
	if sudoUID == "" {
		return 0, 0, false
	}
	u, err := strconv.Atoi(sudoUID)
	if err != nil {
		return 0, 0, false
	}
	g, _ := strconv.Atoi(os.Getenv("SUDO_GID"))
	return u, g, true
}

// ChownToRealUser hands path back to the user behind sudo. No-op otherwise.
func ChownToRealUser(path string) {
	if uid, gid, ok := RealUser(); ok {
		os.Chown(path, uid, gid)
	}
}

func ensure(parts ...string) (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(append([]string{home}, parts...)...)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	ChownToRealUser(dir)
	return dir, nil
}

// CacheDir returns ~/.cache/relayconf, creating it if needed.
func CacheDir() (string, error) {
	return ensure(".cache", AppName)
}

// DataDir returns ~/.local/share/relayconf, creating it if needed.
func DataDir() (string, error) {
	return ensure(".local", "share", AppName)
}

// ConfigDir returns ~/.config/relayconf, creating it if needed.
func ConfigDir() (string, error) {
	return ensure(".config", AppName)
}

// DatabasePath returns the default store location.
func DatabasePath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName+".db"), nil
}

// LogPath returns the default log file location.
func LogPath() (string, error) {
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName+".log"), nil
}

// EnvFile returns the optional .env file read at startup.
func EnvFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ".env"), nil
}

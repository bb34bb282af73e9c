package infra

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the OS data and config directories.
const AppName = "futures-oracle"

const devWorkspace = "_workspace"

// GetWorkspaceDir returns the root directory for runtime data (journal,
// lock file). A local _workspace directory takes priority for development;
// otherwise the platform's standard data directory is used.
func GetWorkspaceDir() string {
	if fi, err := os.Stat(devWorkspace); err == nil && fi.IsDir() {
		return devWorkspace
	}

	switch runtime.GOOS {
	case "windows":
		if base := os.Getenv("APPDATA"); base != "" {
			return filepath.Join(base, AppName)
		}
		return filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming", AppName)
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", AppName)
	case "linux":
		if base := os.Getenv("XDG_DATA_HOME"); base != "" {
			return filepath.Join(base, AppName)
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", AppName)
	default:
		return devWorkspace
	}
}

// EnsureDir creates the directory tree if it does not exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// CreateLockFile guards against a second instance writing the same journal.
// Returns the release function. O_EXCL keeps it portable across platforms;
// a stale lock left by a crash needs manual removal.
func CreateLockFile(workDir string) (func(), error) {
	lockPath := filepath.Join(workDir, "instance.lock")

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("another instance is already running (lock file exists: %s)", lockPath)
		}
		return nil, err
	}
	fmt.Fprintf(f, "%d", os.Getpid())
	f.Close()

	return func() { os.Remove(lockPath) }, nil
}

// ResolveConfigPath locates config.yaml: the working directory first, then
// the platform config directory. The default path is returned even when
// missing so LoadConfig reports a sensible file-not-found error.
func ResolveConfigPath() string {
	local := filepath.Join("configs", "config.yaml")
	if _, err := os.Stat(local); err == nil {
		return local
	}

	if root, err := os.UserConfigDir(); err == nil {
		candidate := filepath.Join(root, AppName, "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return local
}

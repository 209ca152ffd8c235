// Package logpath locates the game's console log file.
package logpath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// EnvLogFile is the environment variable for specifying the console log
// file directly.
const EnvLogFile = "REQUESTIFY_LOGFILE"

// DefaultLogName is the file name the game writes console output to when
// launched with -condebug.
const DefaultLogName = "console.log"

// Sentinel errors.
var (
	ErrLogFileNotFound = errors.New("console log file not found")
	ErrGameDirNotFound = errors.New("game directory not found")
)

// tf2Suffix is the path from a Steam library root to the TF2 game files.
var tf2Suffix = filepath.Join("steamapps", "common", "Team Fortress 2", "tf")

// DefaultGameDirs returns candidate game directories in priority order,
// OS-specific for the usual Steam install locations.
func DefaultGameDirs() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}

	var roots []string
	switch runtime.GOOS {
	case "windows":
		for _, pf := range []string{os.Getenv("ProgramFiles(x86)"), os.Getenv("ProgramFiles")} {
			if pf != "" {
				roots = append(roots, filepath.Join(pf, "Steam"))
			}
		}
	case "darwin":
		if home != "" {
			roots = append(roots, filepath.Join(home, "Library", "Application Support", "Steam"))
		}
	default:
		if home != "" {
			roots = append(roots,
				filepath.Join(home, ".local", "share", "Steam"),
				filepath.Join(home, ".steam", "steam"),
			)
		}
	}

	dirs := make([]string, 0, len(roots))
	for _, root := range roots {
		dirs = append(dirs, filepath.Join(root, tf2Suffix))
	}
	return dirs
}

// Resolve returns the console log file path.
//
// Priority:
//  1. explicitFile (if non-empty)
//  2. REQUESTIFY_LOGFILE environment variable
//  3. fileName inside gameDir (if gameDir is non-empty)
//  4. fileName inside an auto-detected directory from DefaultGameDirs()
//
// An explicitly named file does not have to exist yet: the game creates it
// on launch and the tailer waits for it. Auto-detection only considers
// directories that actually exist.
func Resolve(explicitFile, gameDir, fileName string) (string, error) {
	if fileName == "" {
		fileName = DefaultLogName
	}

	if explicitFile != "" {
		return validateFile(explicitFile)
	}

	if envFile := os.Getenv(EnvLogFile); envFile != "" {
		path, err := validateFile(envFile)
		if err != nil {
			return "", fmt.Errorf("%s environment variable: %w", EnvLogFile, err)
		}
		return path, nil
	}

	if gameDir != "" {
		if resolved := resolveGameDir(gameDir); resolved != "" {
			return filepath.Join(resolved, fileName), nil
		}
		return "", fmt.Errorf("%w: %s", ErrGameDirNotFound, gameDir)
	}

	for _, dir := range DefaultGameDirs() {
		if resolved := resolveGameDir(dir); resolved != "" {
			return filepath.Join(resolved, fileName), nil
		}
	}

	return "", ErrLogFileNotFound
}

// validateFile rejects paths that exist but are not regular files. A
// missing file is fine: the tailer waits for it to appear.
func validateFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return path, nil
		}
		return "", fmt.Errorf("checking %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", path)
	}
	return path, nil
}

// resolveGameDir resolves symlinks and validates the directory.
// Returns the resolved path if valid, empty string otherwise.
func resolveGameDir(dir string) string {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return ""
	}
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return ""
	}
	return resolved
}

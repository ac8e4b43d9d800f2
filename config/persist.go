package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/LabPy/lantz-core/errors"
	"github.com/LabPy/lantz-core/logger"
)

// AliasesPath returns the path of the persisted aliases file in ~/.lantz.
func AliasesPath() string {
	dir := UserConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "aliases.toml")
}

// createBackup rotates backups (.back1, .back2, .back3) before the
// aliases file is rewritten.
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		logger.Warnw("Failed to delete old backup", "path", back3, "error", err)
	}
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "rotating .back2 to .back3")
		}
	}
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "rotating .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "reading aliases for backup")
	}
	if err := os.WriteFile(back1, content, 0o644); err != nil {
		return errors.Wrap(err, "creating .back1")
	}
	return nil
}

// loadAliasesFile reads the persisted aliases, returning an empty map
// when the file does not exist yet.
func loadAliasesFile() (map[string]Alias, string, error) {
	path := AliasesPath()
	if path == "" {
		return nil, "", errors.New("could not determine home directory")
	}

	aliases := make(map[string]Alias)
	if data, err := os.ReadFile(path); err == nil {
		var file struct {
			Aliases map[string]Alias `toml:"aliases"`
		}
		if err := toml.Unmarshal(data, &file); err != nil {
			return nil, "", errors.Wrap(err, "parsing aliases file")
		}
		if file.Aliases != nil {
			aliases = file.Aliases
		}
	}
	return aliases, path, nil
}

// saveAliasesFile writes the aliases with a backup, marking the write
// so the watcher does not reload our own change.
func saveAliasesFile(aliases map[string]Alias, path string) error {
	if err := createBackup(path); err != nil {
		return errors.Wrap(err, "creating backup")
	}

	data, err := toml.Marshal(struct {
		Aliases map[string]Alias `toml:"aliases"`
	}{Aliases: aliases})
	if err != nil {
		return errors.Wrap(err, "marshalling aliases")
	}

	globalWatcherMu.Lock()
	if globalWatcher != nil {
		globalWatcher.MarkOwnWrite()
	}
	globalWatcherMu.Unlock()

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "writing aliases file")
	}
	Reset()
	return nil
}

// SetAlias persists an instrument alias.
func SetAlias(name string, alias Alias) error {
	aliases, path, err := loadAliasesFile()
	if err != nil {
		return err
	}
	aliases[name] = alias
	return saveAliasesFile(aliases, path)
}

// RemoveAlias drops a persisted instrument alias. Removing an unknown
// alias is an error so typos surface.
func RemoveAlias(name string) error {
	aliases, path, err := loadAliasesFile()
	if err != nil {
		return err
	}
	if _, ok := aliases[name]; !ok {
		return errors.Newf("no alias named %q", name)
	}
	delete(aliases, name)
	return saveAliasesFile(aliases, path)
}

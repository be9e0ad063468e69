package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	pepperMu sync.RWMutex
	pepper   string
)

// LoadPepper reads the password pepper from path, generating and persisting a
// new one when the file does not exist yet. It must run before the first hash
// is computed; an unloaded pepper hashes with an empty pepper.
func LoadPepper(path string) error {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		buf := make([]byte, keyLength)
		if _, err := rand.Read(buf); err != nil {
			return err
		}
		generated := base64.RawURLEncoding.EncodeToString(buf)
		if err := os.WriteFile(path, []byte(generated), 0o600); err != nil {
			return err
		}
		SetPepper(generated)
		return nil
	case err != nil:
		return err
	}

	value := strings.TrimSpace(string(raw))
	if value == "" {
		return errors.New("cryptox: pepper file is empty")
	}
	SetPepper(value)
	return nil
}

// SetPepper replaces the process pepper.
func SetPepper(p string) {
	pepperMu.Lock()
	defer pepperMu.Unlock()
	pepper = p
}

func currentPepper() string {
	pepperMu.RLock()
	defer pepperMu.RUnlock()
	return pepper
}

package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// LoadKeyring reads an armored or binary OpenPGP public keyring.
func LoadKeyring(path string) (openpgp.EntityList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}

	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		// Try reading as non-armored keyring
		keyring, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("read keyring %s: %w", path, err)
		}
	}

	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring %s is empty", path)
	}

	return keyring, nil
}

// verifySignature checks a detached signature (armored or binary) over the
// file at artifactPath.
func verifySignature(keyring openpgp.EntityList, artifactPath string, signature []byte) error {
	if len(keyring) == 0 {
		return errors.New("no keys to verify against")
	}

	artifactFile, err := os.Open(artifactPath)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer artifactFile.Close()

	_, err = openpgp.CheckArmoredDetachedSignature(keyring, artifactFile, bytes.NewReader(signature), nil)
	if err != nil {
		// Try non-armored signature
		if _, seekErr := artifactFile.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("rewind artifact: %w", seekErr)
		}
		_, err = openpgp.CheckDetachedSignature(keyring, artifactFile, bytes.NewReader(signature), nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}
	return nil
}

// fileSHA256 returns the hex SHA-256 and size of the file at path.
func fileSHA256(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	hasher := sha256.New()
	n, err := io.Copy(hasher, file)
	if err != nil {
		return "", 0, err
	}

	return hex.EncodeToString(hasher.Sum(nil)), n, nil
}

// checksumMatches compares hex digests case-insensitively.
func checksumMatches(actual, expected string) bool {
	return strings.EqualFold(actual, expected)
}

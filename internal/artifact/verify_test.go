package artifact

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"        //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/ProtonMail/go-crypto/openpgp/armor"  //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/ProtonMail/go-crypto/openpgp/packet" //nolint:staticcheck // Using ProtonMail's maintained fork
)

func newSigningKey(t *testing.T, name string) *openpgp.Entity {
	t.Helper()
	entity, err := openpgp.NewEntity(name, "test", name+"@example.invalid", &packet.Config{Algorithm: packet.PubKeyAlgoEdDSA})
	if err != nil {
		t.Fatalf("NewEntity() error = %v", err)
	}
	return entity
}

func armoredSignature(t *testing.T, signer *openpgp.Entity, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := openpgp.ArmoredDetachSign(&buf, signer, bytes.NewReader(payload), nil); err != nil {
		t.Fatalf("ArmoredDetachSign() error = %v", err)
	}
	return buf.Bytes()
}

// writeKeyring writes the public half of entity, armored or binary.
func writeKeyring(t *testing.T, entity *openpgp.Entity, armored bool) string {
	t.Helper()
	var buf bytes.Buffer
	if armored {
		w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
		if err != nil {
			t.Fatal(err)
		}
		if err := entity.Serialize(w); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
	} else if err := entity.Serialize(&buf); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "keyring.asc")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadKeyring(t *testing.T) {
	entity := newSigningKey(t, "release")

	t.Run("armored", func(t *testing.T) {
		keyring, err := LoadKeyring(writeKeyring(t, entity, true))
		if err != nil {
			t.Fatalf("LoadKeyring() error = %v", err)
		}
		if len(keyring) != 1 {
			t.Errorf("len(keyring) = %d, want 1", len(keyring))
		}
	})

	t.Run("binary", func(t *testing.T) {
		keyring, err := LoadKeyring(writeKeyring(t, entity, false))
		if err != nil {
			t.Fatalf("LoadKeyring() error = %v", err)
		}
		if len(keyring) != 1 {
			t.Errorf("len(keyring) = %d, want 1", len(keyring))
		}
	})

	t.Run("garbage", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "keyring.asc")
		if err := os.WriteFile(path, []byte("not a key"), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadKeyring(path); err == nil {
			t.Error("LoadKeyring() expected error for garbage input")
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := LoadKeyring(filepath.Join(t.TempDir(), "nope.asc"))
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("LoadKeyring() error = %v, want ErrNotExist", err)
		}
	})
}

func TestFetch_Signature(t *testing.T) {
	signer := newSigningKey(t, "release")
	other := newSigningKey(t, "impostor")

	tests := []struct {
		name      string
		signedBy  *openpgp.Entity
		publish   bool
		wantKind  error
		wantFinal bool
	}{
		{"valid signature", signer, true, nil, true},
		{"signed by another key", other, true, ErrIntegrity, false},
		{"signature not published", signer, false, ErrDownload, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)
			payload := makeJar(t, "signed")
			b := api.addBuild("1.21.4", 11, payload)
			if tt.publish {
				api.signatures[b.Name] = armoredSignature(t, tt.signedBy, payload)
			}

			keyring, err := LoadKeyring(writeKeyring(t, signer, true))
			if err != nil {
				t.Fatal(err)
			}

			dest := t.TempDir()
			d := descriptorFor(b, "1.21.4")
			f := NewFetcher(api.client(t), WithDownloadPolicy(fastPolicy(0)), WithKeyring(keyring))

			file, err := f.Fetch(context.Background(), d, dest)
			if tt.wantKind != nil {
				if !errors.Is(err, tt.wantKind) {
					t.Fatalf("Fetch() error = %v, want %v", err, tt.wantKind)
				}
			} else {
				if err != nil {
					t.Fatalf("Fetch() error = %v", err)
				}
				if !file.Verified.Has(VerifiedSignature) {
					t.Errorf("Verified = %s, want signature", file.Verified)
				}
			}

			if !tt.wantFinal {
				assertNoFile(t, f.FinalPath(d, dest))
			}
			if left := stagingLeftovers(t, dest); len(left) != 0 {
				t.Errorf("staging files left behind: %v", left)
			}
			if n := api.count("signature"); n != 1 {
				t.Errorf("signature requests = %d, want 1", n)
			}
		})
	}
}

func TestVerifySignature_Binary(t *testing.T) {
	signer := newSigningKey(t, "release")
	payload := []byte("artifact bytes")
	path := filepath.Join(t.TempDir(), "artifact")
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		t.Fatal(err)
	}

	var sig bytes.Buffer
	if err := openpgp.DetachSign(&sig, signer, bytes.NewReader(payload), nil); err != nil {
		t.Fatal(err)
	}

	if err := verifySignature(openpgp.EntityList{signer}, path, sig.Bytes()); err != nil {
		t.Errorf("verifySignature() error = %v", err)
	}
	if err := verifySignature(nil, path, sig.Bytes()); err == nil {
		t.Error("verifySignature() with empty keyring expected error")
	}
}

func TestFileSHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}
	sum, size, err := fileSHA256(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"; sum != want {
		t.Errorf("sum = %s, want %s", sum, want)
	}
	if size != 5 {
		t.Errorf("size = %d, want 5", size)
	}
	if !checksumMatches(sum, "2CF24DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824") {
		t.Error("checksumMatches() should ignore case")
	}
}

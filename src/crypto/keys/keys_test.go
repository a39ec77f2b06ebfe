package keys

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/mosaicnetworks/chronicle/src/crypto"
)

func TestSimpleKeyfile(t *testing.T) {
	dir := t.TempDir()

	simpleKeyfile := NewSimpleKeyfile(filepath.Join(dir, "priv_key"))

	// Try a read, should get nothing
	key, err := simpleKeyfile.ReadKey()
	if err == nil {
		t.Fatalf("ReadKey should generate an error")
	}
	if key != nil {
		t.Fatalf("key is not nil")
	}

	key, _ = GenerateECDSAKey()

	if err := simpleKeyfile.WriteKey(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	nKey, err := simpleKeyfile.ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if nKey.D.Cmp(key.D) != 0 || nKey.X.Cmp(key.X) != 0 {
		t.Fatalf("Keys do not match")
	}
}

func TestFilePermissions(t *testing.T) {
	dir := t.TempDir()

	key, _ := GenerateECDSAKey()
	rawKey := PrivateKeyHex(key)

	badKeyPath := filepath.Join(dir, "priv_key_bad")

	shouldErr := []os.FileMode{
		0777, 0766, 0744,
		0677, 0666, 0644,
	}

	for _, fm := range shouldErr {
		os.Remove(badKeyPath)
		os.WriteFile(badKeyPath, []byte(rawKey), fm)
		os.Chmod(badKeyPath, fm)

		if _, err := NewSimpleKeyfile(badKeyPath).ReadKey(); err == nil {
			t.Fatalf("%o || keyfile should return permissions error", fm)
		}
	}

	goodKeyPath := filepath.Join(dir, "priv_key_good")
	os.WriteFile(goodKeyPath, []byte(rawKey), 0600)

	if _, err := NewSimpleKeyfile(goodKeyPath).ReadKey(); err != nil {
		t.Fatalf("keyfile should not return error. Got %v", err)
	}
}

func TestSignVerify(t *testing.T) {
	privKey, _ := GenerateECDSAKey()
	other, _ := GenerateECDSAKey()

	hash := crypto.TimestampHash(1234, []byte("J'aime mieux forger mon ame que la meubler"))

	sig, err := Sign(privKey, hash)
	if err != nil {
		t.Fatal(err)
	}

	if len(sig) != SignatureSize {
		t.Fatalf("signature should be %d bytes, got %d", SignatureSize, len(sig))
	}

	if !Verify(&privKey.PublicKey, hash, sig) {
		t.Fatalf("signature should verify")
	}

	if Verify(&other.PublicKey, hash, sig) {
		t.Fatalf("signature should not verify with another key")
	}

	tampered := crypto.TimestampHash(1235, []byte("J'aime mieux forger mon ame que la meubler"))
	if Verify(&privKey.PublicKey, tampered, sig) {
		t.Fatalf("signature should not verify a different timestamp")
	}

	if Verify(&privKey.PublicKey, hash, sig[:10]) {
		t.Fatalf("truncated signature should not verify")
	}
}

func TestPublicKeyHexRoundTrip(t *testing.T) {
	privKey, _ := GenerateECDSAKey()

	pub := ParsePublicKeyHex(PublicKeyHex(&privKey.PublicKey))
	if pub == nil {
		t.Fatal("could not parse public key hex")
	}

	if !reflect.DeepEqual(FromPublicKey(pub), FromPublicKey(&privKey.PublicKey)) {
		t.Fatal("public keys differ")
	}
}

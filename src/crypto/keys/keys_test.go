package keys

import (
	"path/filepath"
	"testing"
)

func TestSignVerify(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	data := []byte("some data")

	r, s, err := Sign(key, data)
	if err != nil {
		t.Fatal(err)
	}

	if !Verify(&key.PublicKey, data, r, s) {
		t.Fatal("signature should verify")
	}

	if Verify(&key.PublicKey, []byte("other data"), r, s) {
		t.Fatal("signature should not verify on other data")
	}
}

func TestSignatureEncoding(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	r, s, err := Sign(key, []byte("some data"))
	if err != nil {
		t.Fatal(err)
	}

	encoded := EncodeSignature(r, s)

	dr, ds, err := DecodeSignature(encoded)
	if err != nil {
		t.Fatal(err)
	}

	if r.Cmp(dr) != 0 || s.Cmp(ds) != 0 {
		t.Fatal("signature encoding should round-trip")
	}

	if _, _, err := DecodeSignature("no separator"); err == nil {
		t.Fatal("malformed signatures should be rejected")
	}
}

func TestPublicKeyRoundTrip(t *testing.T) {
	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	raw := FromPublicKey(&key.PublicKey)

	pub := ToPublicKey(raw)
	if pub == nil {
		t.Fatal("the public key should decode")
	}

	if pub.X.Cmp(key.PublicKey.X) != 0 || pub.Y.Cmp(key.PublicKey.Y) != 0 {
		t.Fatal("the public key should round-trip")
	}

	if ToPublicKey([]byte("not a point")) != nil {
		t.Fatal("garbage input should decode to nil")
	}
}

func TestSimpleKeyfile(t *testing.T) {
	keyfile := filepath.Join(t.TempDir(), "priv_key")

	key, err := GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	store := NewSimpleKeyfile(keyfile)

	if err := store.WriteKey(key); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.ReadKey()
	if err != nil {
		t.Fatal(err)
	}

	if loaded.D.Cmp(key.D) != 0 {
		t.Fatal("the private key should round-trip through the keyfile")
	}
}

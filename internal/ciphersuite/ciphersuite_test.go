package ciphersuite

import (
	"bytes"
	"testing"

	"github.com/fpgaminer/meagerdb-go/internal/packing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	var suite Threefish512SHA256HMAC

	keyMaterial := bytes.Repeat([]byte{0x42}, KeyMaterialSize)
	plain := bytes.Repeat([]byte{0x11, 0x22, 0x33, 0x44}, BlockSize*3/4) // 3 blocks

	ciphertext := make([]byte, len(plain))
	suite.Encrypt(ciphertext, plain, keyMaterial, 1024)

	if bytes.Equal(ciphertext, plain) {
		t.Fatal("ciphertext must not equal plaintext")
	}

	decrypted := make([]byte, len(plain))
	suite.Decrypt(decrypted, ciphertext, keyMaterial, 1024)

	if !bytes.Equal(decrypted, plain) {
		t.Fatalf("round trip mismatch: got %x want %x", decrypted, plain)
	}
}

func TestEncryptTweakVariesByLocation(t *testing.T) {
	var suite Threefish512SHA256HMAC
	keyMaterial := bytes.Repeat([]byte{0x07}, KeyMaterialSize)
	plain := bytes.Repeat([]byte{0xAB}, BlockSize)

	a := make([]byte, BlockSize)
	b := make([]byte, BlockSize)
	suite.Encrypt(a, plain, keyMaterial, 0)
	suite.Encrypt(b, plain, keyMaterial, BlockSize)

	if bytes.Equal(a, b) {
		t.Fatal("ciphertext at different file offsets must differ")
	}
}

func TestMACDetectsTampering(t *testing.T) {
	var suite Threefish512SHA256HMAC
	keyMaterial := bytes.Repeat([]byte{0x09}, KeyMaterialSize)
	data := []byte("authenticate me")

	tag := make([]byte, TagSize)
	suite.MAC(tag, keyMaterial, data)

	tampered := append([]byte(nil), data...)
	tampered[0] ^= 0xFF

	tamperedTag := make([]byte, TagSize)
	suite.MAC(tamperedTag, keyMaterial, tampered)

	if bytes.Equal(tag, tamperedTag) {
		t.Fatal("MAC should change when the authenticated data changes")
	}
}

func TestDeriveKeysDeterministic(t *testing.T) {
	var suite Threefish512SHA256HMAC
	params := make([]byte, 32)
	packing.PutUint64(params[:8], 1000)

	a := make([]byte, KeyMaterialSize)
	b := make([]byte, KeyMaterialSize)
	fatal := func(msg string) { t.Fatalf("unexpected fatal: %s", msg) }

	suite.DeriveKeys(a, []byte("pw"), []byte("salt"), params, fatal)
	suite.DeriveKeys(b, []byte("pw"), []byte("salt"), params, fatal)

	if !bytes.Equal(a, b) {
		t.Fatal("DeriveKeys must be deterministic for identical inputs")
	}

	c := make([]byte, KeyMaterialSize)
	suite.DeriveKeys(c, []byte("different"), []byte("salt"), params, fatal)
	if bytes.Equal(a, c) {
		t.Fatal("different passwords must derive different keys")
	}
}

func TestDeriveKeysFatalOnHugeIterationCount(t *testing.T) {
	var suite Threefish512SHA256HMAC
	params := make([]byte, 32)
	packing.PutUint64(params[:8], 1<<33)

	var called bool
	fatal := func(string) { called = true }

	dst := make([]byte, KeyMaterialSize)
	suite.DeriveKeys(dst, []byte("pw"), []byte("salt"), params, fatal)

	if !called {
		t.Fatal("expected fatal on oversized iteration count")
	}
}

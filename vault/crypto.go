package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/scrypt"
)

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func randBytes(r io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, errors.Wrap(err, "read random bytes")
	}
	return b, nil
}

// DeriveKey stretches masterKey with scrypt using the fixed store parameters.
// The result is reproducible for the same (masterKey, salt, length).
func DeriveKey(masterKey, salt []byte, length int) ([]byte, error) {
	key, err := scrypt.Key(masterKey, salt, ScryptN, ScryptR, ScryptP, length)
	if err != nil {
		return nil, errors.Wrap(err, "derive key")
	}
	return key, nil
}

// Encrypt seals plaintext with AES-256-CBC under a fresh random IV and returns
// base64url(IV || ciphertext).
func Encrypt(plaintext string, key []byte) (string, error) {
	return encrypt(rand.Reader, plaintext, key)
}

func encrypt(r io.Reader, plaintext string, key []byte) (string, error) {
	block, err := newBlock(key)
	if err != nil {
		return "", err
	}
	iv, err := randBytes(r, IVLen)
	if err != nil {
		return "", err
	}
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, IVLen+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[IVLen:], padded)
	zero(padded)
	return base64.URLEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Every structural problem with the token is
// reported as an error wrapping ErrDecrypt; invalid UTF-8 in the recovered
// plaintext is dropped.
func Decrypt(token string, key []byte) (string, error) {
	block, err := newBlock(key)
	if err != nil {
		return "", errors.Wrap(ErrDecrypt, err.Error())
	}
	raw, err := base64Decode(token)
	if err != nil {
		return "", errors.Wrap(ErrDecrypt, "invalid base64")
	}
	if len(raw) < IVLen+aes.BlockSize {
		return "", errors.Wrap(ErrDecrypt, "token too short")
	}
	iv, ct := raw[:IVLen], raw[IVLen:]
	if len(ct)%aes.BlockSize != 0 {
		return "", errors.Wrap(ErrDecrypt, "ciphertext is not a multiple of the block size")
	}
	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)
	defer zero(pt)
	unpadded, ok := pkcs7Unpad(pt, aes.BlockSize)
	if !ok {
		return "", errors.Wrap(ErrDecrypt, "invalid padding")
	}
	return strings.ToValidUTF8(string(unpadded), ""), nil
}

// base64Decode accepts base64url with or without padding.
func base64Decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func newBlock(key []byte) (cipher.Block, error) {
	if len(key) != KeyLen {
		return nil, errors.Errorf("invalid key length %d; want %d", len(key), KeyLen)
	}
	return aes.NewCipher(key)
}

func pkcs7Pad(b []byte, size int) []byte {
	n := size - len(b)%size
	return append(append(make([]byte, 0, len(b)+n), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, size int) ([]byte, bool) {
	if len(b) == 0 || len(b)%size != 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > size {
		return nil, false
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, false
		}
	}
	return b[:len(b)-n], true
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return errors.Wrapf(err, "create temp file in %q", dir)
	}
	tmpPath := tmpFile.Name()
	renamed := false
	defer func() {
		tmpFile.Close()
		if !renamed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return errors.Wrap(err, "write temp file")
	}
	if err := tmpFile.Chmod(perm); err != nil {
		return errors.Wrap(err, "chmod temp file")
	}
	if err := tmpFile.Sync(); err != nil {
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmpFile.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrapf(err, "replace %q", path)
	}
	renamed = true

	_ = syncDir(dir)
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

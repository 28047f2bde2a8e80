// Package secretbox cifra valores en reposo con AES-256-GCM.
//
// El formato sellado es base64(nonce)|base64(ciphertext). La clave se pasa
// explícitamente al construir el Box; el paquete no lee variables de entorno.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	nonceSizeGCM      = 12  // 96 bits
	requiredKeyLength = 32  // AES-256
	sep               = "|" // nonce|ciphertext
)

var (
	ErrEmptyKey   = errors.New("secretbox: clave vacía")
	ErrBadKey     = errors.New("secretbox: clave inválida")
	ErrBadFormat  = errors.New("secretbox: formato inválido, esperado base64(nonce)|base64(ciphertext)")
	ErrAuthFailed = errors.New("secretbox: autenticación fallida")
)

// Box sella y abre valores con una clave fija.
type Box struct {
	aead cipher.AEAD
}

// ParseKey acepta base64 (con o sin padding), hex de 64 chars o 32 bytes crudos.
func ParseKey(key string) ([]byte, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrEmptyKey
	}
	if b, err := base64.StdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(key); err == nil && len(b) == requiredKeyLength {
		return b, nil
	}
	if len(key) == 2*requiredKeyLength {
		if b, err := hex.DecodeString(key); err == nil {
			return b, nil
		}
	}
	if len(key) == requiredKeyLength {
		return []byte(key), nil
	}
	return nil, fmt.Errorf("%w: %d bytes (requiere %d)", ErrBadKey, len(key), requiredKeyLength)
}

// New construye un Box a partir de una clave en cualquiera de los formatos de ParseKey.
func New(key string) (*Box, error) {
	k, err := ParseKey(key)
	if err != nil {
		return nil, err
	}
	return NewFromBytes(k)
}

func NewFromBytes(key []byte) (*Box, error) {
	if len(key) != requiredKeyLength {
		return nil, fmt.Errorf("%w: %d bytes (requiere %d)", ErrBadKey, len(key), requiredKeyLength)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSizeGCM)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Box{aead: aead}, nil
}

// Seal cifra plain con un nonce aleatorio.
func (b *Box) Seal(plain string) (string, error) {
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	ct := b.aead.Seal(nil, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Open revierte Seal. Un valor alterado devuelve ErrAuthFailed.
func (b *Box) Open(sealed string) (string, error) {
	nonceB64, ctB64, ok := strings.Cut(sealed, sep)
	if !ok {
		return "", ErrBadFormat
	}
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return "", fmt.Errorf("%w: nonce: %v", ErrBadFormat, err)
	}
	if len(nonce) != nonceSizeGCM {
		return "", fmt.Errorf("%w: nonce de %d bytes", ErrBadFormat, len(nonce))
	}
	ct, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil {
		return "", fmt.Errorf("%w: ciphertext: %v", ErrBadFormat, err)
	}
	pt, err := b.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", ErrAuthFailed
	}
	return string(pt), nil
}

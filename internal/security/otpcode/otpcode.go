// Package otpcode genera códigos numéricos de un solo uso y su HMAC.
//
// El código en claro nunca se persiste: se guarda HMAC-SHA256(code + phone)
// con una clave derivada (HKDF) del secreto del servidor. Incluir el teléfono
// en el payload liga el código al visitante.
package otpcode

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"

	"golang.org/x/crypto/hkdf"
)

const hkdfInfo = "hostelgate/otp-hmac/v1"

var ErrWeakSecret = errors.New("otpcode: secret must be at least 16 bytes")

// Hasher calcula y compara hashes de códigos. Seguro para uso concurrente.
type Hasher struct {
	key []byte
}

// NewHasher deriva la clave HMAC a partir del secreto configurado.
func NewHasher(secret string) (*Hasher, error) {
	if len(secret) < 16 {
		return nil, ErrWeakSecret
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("otpcode: derive key: %w", err)
	}
	return &Hasher{key: key}, nil
}

// Hash retorna hex(HMAC-SHA256(code + phone)).
func (h *Hasher) Hash(code, phone string) string {
	m := hmac.New(sha256.New, h.key)
	_, _ = m.Write([]byte(code))
	_, _ = m.Write([]byte(phone))
	return hex.EncodeToString(m.Sum(nil))
}

// Verify compara en tiempo constante.
func (h *Hasher) Verify(code, phone, storedHash string) bool {
	want, err := hex.DecodeString(storedHash)
	if err != nil {
		return false
	}
	m := hmac.New(sha256.New, h.key)
	_, _ = m.Write([]byte(code))
	_, _ = m.Write([]byte(phone))
	return hmac.Equal(m.Sum(nil), want)
}

// Generate retorna un código de length dígitos uniformemente aleatorios (con ceros a la izquierda).
func Generate(length int) (string, error) {
	if length < 1 || length > 18 {
		return "", fmt.Errorf("otpcode: invalid length %d", length)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

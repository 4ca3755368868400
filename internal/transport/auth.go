package transport

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
)

// ErrBadPadding is returned when a decrypted RSA block does not carry
// valid PKCS#1 v1.5 type-1 padding.
var ErrBadPadding = errors.New("transport: invalid PKCS#1 v1.5 padding")

// DecryptTag implements deliberately nonstandard signature
// scheme: the server RSA-"encrypts" (signs) a short payload with its
// private key, and clients "decrypt" it with the public key — the
// inverse of the usual sign/verify roles. crypto/rsa only exposes
// PKCS1v15 verification (which recomputes an expected digest and
// compares) and private-key decryption, neither of which returns the
// arbitrary plaintext this protocol carries, so the modular
// exponentiation is hand-rolled on math/big exactly as
// freebsd-update's decrypt_tag does via OpenSSL's public_decrypt.
func DecryptTag(pubKeyPEM, ciphertext []byte) (string, error) {
	block, _ := pem.Decode(pubKeyPEM)
	if block == nil {
		return "", errors.New("transport: no PEM block in public key")
	}

	pub, err := parseRSAPublicKey(block.Bytes)
	if err != nil {
		return "", err
	}

	plain, err := rsaPublicDecrypt(pub, ciphertext)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func parseRSAPublicKey(der []byte) (*rsa.PublicKey, error) {
	if pub, err := x509.ParsePKIXPublicKey(der); err == nil {
		if rsaPub, ok := pub.(*rsa.PublicKey); ok {
			return rsaPub, nil
		}
		return nil, errors.New("transport: public key is not RSA")
	}
	// Some mirrors ship PKCS#1-encoded ("RSA PUBLIC KEY") rather than
	// PKIX ("PUBLIC KEY") blocks.
	rsaPub, err := x509.ParsePKCS1PublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("transport: parse public key: %w", err)
	}
	return rsaPub, nil
}

// rsaPublicDecrypt computes ciphertext^e mod n (the raw RSA "public"
// operation), then strips PKCS#1 v1.5 type-1 padding
// (0x00 0x01 FF..FF 0x00 <data>) to recover the payload.
func rsaPublicDecrypt(pub *rsa.PublicKey, ciphertext []byte) ([]byte, error) {
	k := (pub.N.BitLen() + 7) / 8
	if len(ciphertext) != k {
		return nil, fmt.Errorf("transport: ciphertext length %d != key size %d", len(ciphertext), k)
	}

	c := new(big.Int).SetBytes(ciphertext)
	if c.Cmp(pub.N) >= 0 {
		return nil, errors.New("transport: ciphertext out of range")
	}

	e := big.NewInt(int64(pub.E))
	m := new(big.Int).Exp(c, e, pub.N)

	em := m.FillBytes(make([]byte, k))
	return unpadPKCS1v15(em)
}

func unpadPKCS1v15(em []byte) ([]byte, error) {
	if len(em) < 11 || em[0] != 0x00 || em[1] != 0x01 {
		return nil, ErrBadPadding
	}
	i := 2
	for i < len(em) && em[i] == 0xFF {
		i++
	}
	if i == 2 || i >= len(em) || em[i] != 0x00 {
		return nil, ErrBadPadding
	}
	return em[i+1:], nil
}

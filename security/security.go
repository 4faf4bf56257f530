// Package security encrypts the short telemetry strings published to the
// broker. AES-CBC with PKCS7 padding, mirrored by the companion dashboard
// that decrypts the payloads. The key and IV are provisioned through the
// configuration at startup; nothing is baked into the binary.
package security

import (
	"crypto/aes"
	"crypto/cipher"

	"bedmonitor-go/errcode"
)

const (
	// BlockSize is the AES block size the padding rounds up to.
	BlockSize = 16
	// MaxPayload bounds the padded ciphertext; longer plaintexts are
	// rejected rather than truncated.
	MaxPayload = 128
)

// Codec encrypts and decrypts telemetry payloads with a fixed key/IV pair.
// Both directions run the full CBC chain from the IV each call, so every
// message is independently decodable.
type Codec struct {
	block cipher.Block
	iv    [BlockSize]byte
}

// New builds a Codec. key and iv must both be exactly 16 bytes.
func New(key, iv []byte) (*Codec, error) {
	if len(key) != BlockSize {
		return nil, &errcode.E{C: errcode.BadInput, Op: "security.New", Msg: "key must be 16 bytes"}
	}
	if len(iv) != BlockSize {
		return nil, &errcode.E{C: errcode.BadInput, Op: "security.New", Msg: "iv must be 16 bytes"}
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &errcode.E{C: errcode.Error, Op: "security.New", Err: err}
	}
	c := &Codec{block: block}
	copy(c.iv[:], iv)
	return c, nil
}

// Encrypt pads plaintext to the next block boundary (a full pad block when
// already aligned, so the empty string encrypts to one block) and encrypts
// it. Plaintexts whose padded length exceeds MaxPayload are rejected.
func (c *Codec) Encrypt(plaintext string) ([]byte, error) {
	padded := ((len(plaintext) / BlockSize) + 1) * BlockSize
	if padded > MaxPayload {
		return nil, &errcode.E{C: errcode.Oversize, Op: "security.Encrypt", Msg: "message too long"}
	}

	buf := make([]byte, padded)
	copy(buf, plaintext)
	pad := byte(padded - len(plaintext))
	for i := len(plaintext); i < padded; i++ {
		buf[i] = pad
	}

	iv := c.iv
	cipher.NewCBCEncrypter(c.block, iv[:]).CryptBlocks(buf, buf)
	return buf, nil
}

// Decrypt reverses Encrypt. The ciphertext must be a positive multiple of
// the block size, no larger than MaxPayload. A trailing byte outside [1,16]
// marks corrupt input; the block is then returned unpadded rather than
// failing outright.
func (c *Codec) Decrypt(ciphertext []byte) (string, error) {
	n := len(ciphertext)
	if n == 0 || n%BlockSize != 0 || n > MaxPayload {
		return "", &errcode.E{C: errcode.BadInput, Op: "security.Decrypt", Msg: "ciphertext length invalid"}
	}

	buf := make([]byte, n)
	iv := c.iv
	cipher.NewCBCDecrypter(c.block, iv[:]).CryptBlocks(buf, ciphertext)

	if pad := buf[n-1]; pad >= 1 && pad <= BlockSize {
		return string(buf[:n-int(pad)]), nil
	}
	return string(buf), nil
}

package tickets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/skip2/go-qrcode"

	"ms-reservation/internal/models"
)

// QRGenerator renders a sold seat's ticket as a QR image whose payload is
// encrypted, so the artifact can be verified at the gate but not forged.
type QRGenerator struct {
	secret []byte
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret))
	return &QRGenerator{secret: hashed[:]}
}

// Generate returns a 256px PNG QR encoding the encrypted ticket.
func (q *QRGenerator) Generate(ticket models.Ticket) ([]byte, error) {
	data, err := json.Marshal(ticket)
	if err != nil {
		return nil, err
	}

	sealed, err := encrypt(data, q.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(sealed, qrcode.Medium, 256)
}

// Decode reverses Generate's payload encoding; used by gate-side checks
// and tests.
func (q *QRGenerator) Decode(sealed string) (models.Ticket, error) {
	var ticket models.Ticket

	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return ticket, err
	}

	block, err := aes.NewCipher(q.secret)
	if err != nil {
		return ticket, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return ticket, err
	}
	if len(raw) < gcm.NonceSize() {
		return ticket, io.ErrUnexpectedEOF
	}

	plain, err := gcm.Open(nil, raw[:gcm.NonceSize()], raw[gcm.NonceSize():], nil)
	if err != nil {
		return ticket, err
	}
	err = json.Unmarshal(plain, &ticket)
	return ticket, err
}

func encrypt(data, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

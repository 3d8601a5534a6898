// internal/adapters/lit/nop.go
package lit

import (
	"context"
	"encoding/base64"

	"github.com/gitcoinco/grants-stack-sub000/pkg/schema"
)

// NopEncrypter is a stand-in for rounds without encrypted questions and for
// tests. It never authenticates and returns a reversible encoding so test
// assertions can inspect the value.
type NopEncrypter struct{}

func (NopEncrypter) Connect(context.Context) error { return nil }

func (NopEncrypter) Encrypt(_ context.Context, plaintext string) (*schema.EncryptedAnswer, error) {
	return &schema.EncryptedAnswer{
		Ciphertext:            base64.StdEncoding.EncodeToString([]byte(plaintext)),
		EncryptedSymmetricKey: "nop",
	}, nil
}

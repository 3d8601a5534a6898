// internal/adapters/wallet/signer.go

// Package wallet signs application hashes with the applicant's key and
// recovers signer addresses for verification.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	stderrors "github.com/gitcoinco/grants-stack-sub000/internal/common/errors"
)

// Signer produces a personal-message signature over an application hash. The
// signature step is the user-visible approval gate, so implementations may
// block on external confirmation and must honor ctx cancellation.
type Signer interface {
	// Address returns the 0x-prefixed checksum address of the signing key.
	Address() string

	// ChainID returns the chain the signer is operating on.
	ChainID() int64

	// SignMessage signs the UTF-8 message with the EIP-191 personal-message
	// prefix and returns the 65-byte signature hex encoded, V in {27, 28}.
	SignMessage(ctx context.Context, message string) (string, error)
}

// LocalSigner signs with an in-process secp256k1 key.
type LocalSigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	chainID int64
}

// NewLocalSigner parses a hex-encoded private key, with or without the 0x
// prefix.
func NewLocalSigner(privateKeyHex string, chainID int64) (*LocalSigner, error) {
	trimmed := strings.TrimPrefix(privateKeyHex, "0x")

	key, err := ethcrypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse wallet private key: %w", err)
	}

	return &LocalSigner{
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
	}, nil
}

func (s *LocalSigner) Address() string {
	return s.address.Hex()
}

func (s *LocalSigner) ChainID() int64 {
	return s.chainID
}

func (s *LocalSigner) SignMessage(ctx context.Context, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", stderrors.NewSignatureRejectedError(err)
	}

	digest := accounts.TextHash([]byte(message))

	sig, err := ethcrypto.Sign(digest, s.key)
	if err != nil {
		return "", stderrors.NewSignatureRejectedError(err)
	}

	// Shift recovery id to the Ethereum convention.
	sig[64] += 27

	return hexutil.Encode(sig), nil
}

// RecoverSigner returns the checksum address that produced signatureHex over
// message, undoing the EIP-191 prefix and the V offset.
func RecoverSigner(message, signatureHex string) (string, error) {
	sig, err := hexutil.Decode(signatureHex)
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != 65 {
		return "", fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}

	// Work on a copy so callers can reuse the decoded signature.
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	digest := accounts.TextHash([]byte(message))

	pub, err := ethcrypto.SigToPub(digest, normalized)
	if err != nil {
		return "", fmt.Errorf("recover signer: %w", err)
	}

	return ethcrypto.PubkeyToAddress(*pub).Hex(), nil
}

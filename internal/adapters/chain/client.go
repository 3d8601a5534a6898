// internal/adapters/chain/client.go
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/gitcoinco/grants-stack-sub000/internal/common/config"
	stderrors "github.com/gitcoinco/grants-stack-sub000/internal/common/errors"
	"github.com/gitcoinco/grants-stack-sub000/internal/common/logger"
	"github.com/gitcoinco/grants-stack-sub000/pkg/schema"
)

const receiptPollInterval = 2 * time.Second

const roundABI = `[
	{
		"name": "applyToRound",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "projectID", "type": "bytes32"},
			{"name": "payoutStrategy", "type": "address"},
			{"name": "newApplicationMetaPtr", "type": "tuple", "components": [
				{"name": "protocol", "type": "uint256"},
				{"name": "pointer", "type": "string"}
			]}
		],
		"outputs": []
	}
]`

const projectRegistryABI = `[
	{
		"name": "createProject",
		"type": "function",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "metadata", "type": "tuple", "components": [
				{"name": "protocol", "type": "uint256"},
				{"name": "pointer", "type": "string"}
			]}
		],
		"outputs": []
	}
]`

// Client sends the round-application transactions and tracks their receipts.
type Client struct {
	eth            *ethclient.Client
	key            *ecdsa.PrivateKey
	from           common.Address
	chainID        *big.Int
	receiptTimeout time.Duration
	roundAbi       abi.ABI
	registryAbi    abi.ABI
	logger         logger.Logger
}

// Dial connects to the chain RPC endpoint and verifies the reported chain id
// matches the configured one.
func Dial(ctx context.Context, cfg config.ChainConfig, privateKeyHex string, log logger.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, stderrors.NewChainNotConnectedError()
	}

	remoteID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, stderrors.NewChainNotConnectedError()
	}
	if remoteID.Int64() != cfg.ChainID {
		return nil, fmt.Errorf("rpc endpoint reports chain id %d, configured %d", remoteID.Int64(), cfg.ChainID)
	}

	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse transaction key: %w", err)
	}

	roundAbi, err := abi.JSON(strings.NewReader(roundABI))
	if err != nil {
		return nil, fmt.Errorf("parse round abi: %w", err)
	}
	registryAbi, err := abi.JSON(strings.NewReader(projectRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("parse project registry abi: %w", err)
	}

	return &Client{
		eth:            eth,
		key:            key,
		from:           ethcrypto.PubkeyToAddress(key.PublicKey),
		chainID:        remoteID,
		receiptTimeout: time.Duration(cfg.ReceiptTimeout) * time.Millisecond,
		roundAbi:       roundAbi,
		registryAbi:    registryAbi,
		logger:         log,
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// From returns the transaction sender address.
func (c *Client) From() string {
	return c.from.Hex()
}

type metaPtrArg struct {
	Protocol *big.Int
	Pointer  string
}

func toMetaPtrArg(ptr schema.MetaPtr) (metaPtrArg, error) {
	protocol, err := strconv.ParseInt(ptr.Protocol, 10, 64)
	if err != nil {
		return metaPtrArg{}, fmt.Errorf("metadata pointer protocol %q: %w", ptr.Protocol, err)
	}
	return metaPtrArg{Protocol: big.NewInt(protocol), Pointer: ptr.Pointer}, nil
}

// ApplyToRound submits the application transaction referencing the pinned
// metadata and the round's payout strategy, and returns the transaction
// hash.
func (c *Client) ApplyToRound(ctx context.Context, roundAddress, projectID, strategy string, metaPtr schema.MetaPtr) (string, error) {
	arg, err := toMetaPtrArg(metaPtr)
	if err != nil {
		return "", stderrors.NewTransactionFailedError(err)
	}

	calldata, err := c.roundAbi.Pack("applyToRound",
		common.HexToHash(projectID), common.HexToAddress(strategy), arg)
	if err != nil {
		return "", stderrors.NewTransactionFailedError(err)
	}

	return c.send(ctx, common.HexToAddress(roundAddress), calldata)
}

// CreateProject submits the project-registry transaction that anchors a new
// project record and returns the transaction hash.
func (c *Client) CreateProject(ctx context.Context, registryAddress string, metaPtr schema.MetaPtr) (string, error) {
	arg, err := toMetaPtrArg(metaPtr)
	if err != nil {
		return "", stderrors.NewTransactionFailedError(err)
	}

	calldata, err := c.registryAbi.Pack("createProject", arg)
	if err != nil {
		return "", stderrors.NewTransactionFailedError(err)
	}

	return c.send(ctx, common.HexToAddress(registryAddress), calldata)
}

func (c *Client) send(ctx context.Context, to common.Address, calldata []byte) (string, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", stderrors.NewTransactionFailedError(err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", stderrors.NewTransactionFailedError(err)
	}

	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &to,
		Data: calldata,
	})
	if err != nil {
		return "", stderrors.NewTransactionFailedError(err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     calldata,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return "", stderrors.NewTransactionFailedError(err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", stderrors.NewTransactionFailedError(err)
	}

	txHash := signed.Hash().Hex()
	c.logger.Info("transaction sent", map[string]interface{}{
		"txHash": txHash,
		"to":     to.Hex(),
		"nonce":  nonce,
	})
	return txHash, nil
}

// WaitForReceipt polls until the transaction is mined, then checks its
// status. A zero-status receipt is a revert, not a timeout.
func (c *Client) WaitForReceipt(ctx context.Context, txHash string) error {
	waitCtx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	hash := common.HexToHash(txHash)
	for {
		receipt, err := c.eth.TransactionReceipt(waitCtx, hash)
		if err == nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return stderrors.NewTransactionRevertedError(txHash)
			}
			return nil
		}

		select {
		case <-waitCtx.Done():
			return stderrors.NewTimeoutError("chain", fmt.Errorf("no receipt for %s: %w", txHash, waitCtx.Err()))
		case <-ticker.C:
		}
	}
}

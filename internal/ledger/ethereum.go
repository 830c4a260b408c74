package ledger

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/blues/dcs/internal/config"
	"github.com/blues/dcs/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EthereumAdapter 基于以太坊链的账本适配器
// 记录序列化后作为交易 data 写入锚定地址
type EthereumAdapter struct {
	client        *ethclient.Client
	privateKey    *ecdsa.PrivateKey
	anchorAddr    common.Address
	chainId       *big.Int
	confirmations int
}

// NewEthereumAdapter 创建以太坊账本适配器
func NewEthereumAdapter(cfg config.ChainConfig) (*EthereumAdapter, error) {
	// 连接链客户端
	client, err := ethclient.Dial(cfg.RpcUrl)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to chain client: %w", err)
	}

	// 解析私钥
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return &EthereumAdapter{
		client:        client,
		privateKey:    privateKey,
		anchorAddr:    common.HexToAddress(cfg.AnchorAddress),
		chainId:       big.NewInt(cfg.ChainId),
		confirmations: cfg.Confirmations,
	}, nil
}

// Hash 计算内容哈希（keccak256）
func (a *EthereumAdapter) Hash(data []byte) string {
	return crypto.Keccak256Hash(data).Hex()
}

// Anchor 将记录作为交易数据写入链上
func (a *EthereumAdapter) Anchor(ctx context.Context, record Record) (string, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}

	from := crypto.PubkeyToAddress(a.privateKey.PublicKey)

	nonce, err := a.client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("failed to fetch nonce: %w", err)
	}

	gasPrice, err := a.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to fetch gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &a.anchorAddr,
		Value:    big.NewInt(0),
		Gas:      21000 + uint64(len(payload))*68,
		GasPrice: gasPrice,
		Data:     payload,
	})

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(a.chainId), a.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign anchor transaction: %w", err)
	}

	if err := a.client.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("failed to send anchor transaction: %w", err)
	}

	txHash := signedTx.Hash().Hex()
	logger.Info("Anchored record on chain: %s (%d bytes)", txHash, len(payload))
	return txHash, nil
}

// Fetch 根据交易引用取回记录
func (a *EthereumAdapter) Fetch(ctx context.Context, txRef string) (Record, error) {
	tx, _, err := a.client.TransactionByHash(ctx, common.HexToHash(txRef))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transaction %s: %w", txRef, err)
	}

	var record Record
	if err := json.Unmarshal(tx.Data(), &record); err != nil {
		return nil, fmt.Errorf("failed to decode anchored record: %w", err)
	}

	return record, nil
}

// Confirmed 检查交易是否已确认
func (a *EthereumAdapter) Confirmed(ctx context.Context, txRef string) (bool, error) {
	receipt, err := a.client.TransactionReceipt(ctx, common.HexToHash(txRef))
	if err != nil {
		return false, err
	}

	if receipt == nil {
		return false, nil
	}

	header, err := a.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return false, err
	}

	return header.Number.Uint64() >= receipt.BlockNumber.Uint64()+uint64(a.confirmations), nil
}

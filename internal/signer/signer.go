// Package signer implements the venue's opaque order-signing collaborator
// (SPEC_FULL.md §6.3): sign(order) -> signed_payload, plus address(). The
// one concrete implementation here is an externally-owned-account (EOA)
// signer built on go-ethereum, grounded on the teacher's EIP-712 L1 auth
// and HMAC L2 auth.
package signer

import (
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"

	"github.com/PolyFrontBot/polymarket-market-maker-bot/pkg/types"
)

// usdcScale is 1e6, the fixed-point scale of on-chain USDC amounts.
var usdcScale = decimal.New(1, 6)

// Credentials holds the L2 API key triplet used for HMAC-signed trading
// requests, derived once from L1 auth or supplied directly in config.
type Credentials struct {
	ApiKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// Signer is the interface the rest of the system treats as opaque: sign an
// order, report the signing address. Blocking calls are expected to return
// in well under 50ms.
type Signer interface {
	Sign(order types.SignedOrderPayload) (types.SignedOrderPayload, error)
	Address() string
}

// EOASigner signs orders and L1/L2 auth headers with a single Ethereum
// private key. FunderAddress may differ from Address when trading through
// a proxy or Gnosis Safe wallet.
type EOASigner struct {
	privateKey    *ecdsa.PrivateKey
	address       common.Address
	funderAddress common.Address
	chainID       *big.Int
	sigType       types.SignatureType
	creds         Credentials
}

// NewEOASigner parses a hex-encoded private key (with or without the 0x
// prefix) and builds a signer for the given chain.
func NewEOASigner(privateKeyHex, funderAddress string, chainID int, sigType types.SignatureType, creds Credentials) (*EOASigner, error) {
	keyHex := privateKeyHex
	if len(keyHex) >= 2 && keyHex[:2] == "0x" {
		keyHex = keyHex[2:]
	}

	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	funder := address
	if funderAddress != "" {
		funder = common.HexToAddress(funderAddress)
	}

	return &EOASigner{
		privateKey:    privateKey,
		address:       address,
		funderAddress: funder,
		chainID:       big.NewInt(int64(chainID)),
		sigType:       sigType,
		creds:         creds,
	}, nil
}

// Address returns the EOA's hex address, which also serves as the signer
// field on outgoing orders.
func (s *EOASigner) Address() string {
	return s.address.Hex()
}

// FunderAddress returns the wallet that funds orders (may equal Address).
func (s *EOASigner) FunderAddress() string {
	return s.funderAddress.Hex()
}

// HasL2Credentials reports whether L2 API credentials are configured.
func (s *EOASigner) HasL2Credentials() bool {
	return s.creds.ApiKey != "" && s.creds.Secret != "" && s.creds.Passphrase != ""
}

// SetCredentials installs L2 API credentials after deriving them via L1 auth.
func (s *EOASigner) SetCredentials(creds Credentials) {
	s.creds = creds
}

// Sign fills in the maker, signer, taker (zero address if empty) and
// signature-type fields and the EIP-712 signature over the order, returning
// the signed payload. MakerAmount/TakerAmount must already be set by the
// caller.
func (s *EOASigner) Sign(order types.SignedOrderPayload) (types.SignedOrderPayload, error) {
	order.Maker = s.FunderAddress()
	order.Signer = s.Address()
	if order.Taker == "" {
		order.Taker = "0x0000000000000000000000000000000000000000"
	}
	order.SignatureType = s.sigType

	sig, err := s.signOrder(order)
	if err != nil {
		return types.SignedOrderPayload{}, fmt.Errorf("sign order: %w", err)
	}
	order.Signature = sig
	return order, nil
}

// signOrder produces the EIP-712 signature for the CTF exchange order
// struct.
func (s *EOASigner) signOrder(order types.SignedOrderPayload) (string, error) {
	sig, err := s.signTypedData(
		&apitypes.TypedDataDomain{
			Name:    "Polymarket CTF Exchange",
			Version: "1",
			ChainId: (*ethmath.HexOrDecimal256)(new(big.Int).Set(s.chainID)),
		},
		apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"Order": {
				{Name: "salt", Type: "uint256"},
				{Name: "maker", Type: "address"},
				{Name: "signer", Type: "address"},
				{Name: "taker", Type: "address"},
				{Name: "tokenId", Type: "uint256"},
				{Name: "makerAmount", Type: "uint256"},
				{Name: "takerAmount", Type: "uint256"},
				{Name: "expiration", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "feeRateBps", Type: "uint256"},
				{Name: "side", Type: "uint8"},
				{Name: "signatureType", Type: "uint8"},
			},
		},
		apitypes.TypedDataMessage{
			"salt":          order.Salt,
			"maker":         order.Maker,
			"signer":        order.Signer,
			"taker":         order.Taker,
			"tokenId":       order.TokenID,
			"makerAmount":   order.MakerAmount.String(),
			"takerAmount":   order.TakerAmount.String(),
			"expiration":    order.Expiration,
			"nonce":         order.Nonce,
			"feeRateBps":    order.FeeRateBps,
			"side":          sideCode(order.Side),
			"signatureType": fmt.Sprintf("%d", order.SignatureType),
		},
		"Order",
	)
	if err != nil {
		return "", err
	}
	return "0x" + common.Bytes2Hex(sig), nil
}

func sideCode(side types.Side) string {
	if side == types.BUY {
		return "0"
	}
	return "1"
}

// signTypedData signs EIP-712 typed data and normalizes the recovery byte
// to 27/28.
func (s *EOASigner) signTypedData(domain *apitypes.TypedDataDomain, typesDef apitypes.Types, message apitypes.TypedDataMessage, primaryType string) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       typesDef,
		PrimaryType: primaryType,
		Domain:      *domain,
		Message:     message,
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, fmt.Errorf("typed data hash: %w", err)
	}

	sig, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign typed data: %w", err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	return sig, nil
}

// L1Headers authenticates the one-time API-key derivation call.
func (s *EOASigner) L1Headers(nonce int) (map[string]string, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	sig, err := s.signClobAuth(timestamp, nonce)
	if err != nil {
		return nil, fmt.Errorf("sign clob auth: %w", err)
	}

	return map[string]string{
		"POLY_ADDRESS":   s.Address(),
		"POLY_SIGNATURE": sig,
		"POLY_TIMESTAMP": timestamp,
		"POLY_NONCE":     strconv.Itoa(nonce),
	}, nil
}

// L2Headers authenticates trading endpoints with the derived HMAC secret.
func (s *EOASigner) L2Headers(method, path, body string) (map[string]string, error) {
	if !s.HasL2Credentials() {
		return nil, fmt.Errorf("l2 credentials not set")
	}

	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	sig, err := s.buildHMAC(timestamp, method, path, body)
	if err != nil {
		return nil, fmt.Errorf("build hmac: %w", err)
	}

	return map[string]string{
		"POLY_ADDRESS":    s.Address(),
		"POLY_SIGNATURE":  sig,
		"POLY_TIMESTAMP":  timestamp,
		"POLY_API_KEY":    s.creds.ApiKey,
		"POLY_PASSPHRASE": s.creds.Passphrase,
	}, nil
}

// WSAuthPayload returns the credentials for the user WebSocket channel.
func (s *EOASigner) WSAuthPayload() *types.WSAuth {
	return &types.WSAuth{
		ApiKey:     s.creds.ApiKey,
		Secret:     s.creds.Secret,
		Passphrase: s.creds.Passphrase,
	}
}

func (s *EOASigner) signClobAuth(timestamp string, nonce int) (string, error) {
	sig, err := s.signTypedData(
		&apitypes.TypedDataDomain{
			Name:    "ClobAuthDomain",
			Version: "1",
			ChainId: (*ethmath.HexOrDecimal256)(new(big.Int).Set(s.chainID)),
		},
		apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"ClobAuth": {
				{Name: "address", Type: "address"},
				{Name: "timestamp", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "message", Type: "string"},
			},
		},
		apitypes.TypedDataMessage{
			"address":   s.Address(),
			"timestamp": timestamp,
			"nonce":     fmt.Sprintf("%d", nonce),
			"message":   "This message attests that I control the given wallet",
		},
		"ClobAuth",
	)
	if err != nil {
		return "", err
	}
	return "0x" + common.Bytes2Hex(sig), nil
}

func (s *EOASigner) buildHMAC(timestamp, method, path, body string) (string, error) {
	decoders := []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	}

	var secretBytes []byte
	var err error
	for _, dec := range decoders {
		secretBytes, err = dec.DecodeString(s.creds.Secret)
		if err == nil {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	message := timestamp + method + path + body

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil)), nil
}

// PriceToAmounts converts a decimal price/size pair into the on-chain
// maker/taker USDC amounts (6-decimal fixed point), quantized to the
// market's tick-derived amount precision. All arithmetic here is
// decimal.Decimal — never float64 — per SPEC_FULL.md §3's fixed-point rule.
func PriceToAmounts(price, size decimal.Decimal, side types.Side, tick types.TickSize) (makerAmt, takerAmt *big.Int) {
	amtDecimals := tick.AmountDecimals()
	sizeRounded := size.Truncate(2)

	switch side {
	case types.BUY:
		cost := sizeRounded.Mul(price).Truncate(amtDecimals)
		makerAmt = cost.Mul(usdcScale).Truncate(0).BigInt()
		takerAmt = sizeRounded.Mul(usdcScale).Truncate(0).BigInt()
	case types.SELL:
		makerAmt = sizeRounded.Mul(usdcScale).Truncate(0).BigInt()
		revenue := sizeRounded.Mul(price).Truncate(amtDecimals)
		takerAmt = revenue.Mul(usdcScale).Truncate(0).BigInt()
	}
	return makerAmt, takerAmt
}

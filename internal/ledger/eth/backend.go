// Package eth drives the benchmarked contract on an Ethereum JSON-RPC node.
package eth

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"breachbench/internal/ledger"
)

// Methods names the contract functions behind each operation.
type Methods struct {
	WriteEvent     string // (uint256 magnitude)
	ComputePenalty string // (address participant)
	ReadPenalty    string // view (address) returns (uint256)
	ReadEventCount string // view (address) returns (uint256)
}

func DefaultMethods() Methods {
	return Methods{
		WriteEvent:     "registerBreach",
		ComputePenalty: "calculatePenalty",
		ReadPenalty:    "penalties",
		ReadEventCount: "breaches",
	}
}

// Options configures Dial.
type Options struct {
	RPCURL       string
	ArtifactPath string
	Keys         []string // hex private keys, participant i uses key i
	KeysFile     string
	DeployerKey  string // defaults to the first participant key
	Methods      Methods
	GasLimit     uint64 // 0 lets the node estimate
}

// Client is the node API the backend needs. Both *ethclient.Client and the
// client of go-ethereum's simulated backend satisfy it.
type Client interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// Backend deploys contract instances and signs for the participants.
type Backend struct {
	client   Client
	closer   func()
	chainID  *big.Int
	artifact *Artifact
	keys     *Keyring
	deployer *ecdsa.PrivateKey
	methods  Methods
	gasLimit uint64
	log      logrus.FieldLogger
}

// Dial connects to the node and loads the artifact and keys.
func Dial(ctx context.Context, opts Options, log logrus.FieldLogger) (*Backend, error) {
	if opts.ArtifactPath == "" {
		opts.ArtifactPath = DefaultArtifactPath
	}
	artifact, err := LoadArtifact(opts.ArtifactPath)
	if err != nil {
		return nil, err
	}

	keys, err := ParseKeys(opts.Keys)
	if err != nil {
		return nil, err
	}
	if opts.KeysFile != "" {
		fromFile, err := LoadKeysFile(opts.KeysFile)
		if err != nil {
			return nil, err
		}
		keys.keys = append(keys.keys, fromFile.keys...)
	}

	b, err := newBackend(artifact, keys, opts)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	b.log = log.WithField("rpc", opts.RPCURL)

	client, err := ethclient.DialContext(ctx, opts.RPCURL)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", opts.RPCURL)
	}
	if err := b.attach(ctx, client); err != nil {
		client.Close()
		return nil, err
	}
	b.closer = client.Close
	b.log.WithFields(logrus.Fields{"chain": b.chainID, "accounts": keys.Len()}).Info("connected to node")
	return b, nil
}

// attach binds the backend to a node and reads its chain ID for signing.
func (b *Backend) attach(ctx context.Context, client Client) error {
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return errors.Wrap(err, "chain id")
	}
	b.client = client
	b.chainID = chainID
	return nil
}

func newBackend(artifact *Artifact, keys *Keyring, opts Options) (*Backend, error) {
	methods := opts.Methods
	defaults := DefaultMethods()
	if methods.WriteEvent == "" {
		methods.WriteEvent = defaults.WriteEvent
	}
	if methods.ComputePenalty == "" {
		methods.ComputePenalty = defaults.ComputePenalty
	}
	if methods.ReadPenalty == "" {
		methods.ReadPenalty = defaults.ReadPenalty
	}
	if methods.ReadEventCount == "" {
		methods.ReadEventCount = defaults.ReadEventCount
	}
	for _, m := range []string{methods.WriteEvent, methods.ComputePenalty, methods.ReadPenalty, methods.ReadEventCount} {
		if _, ok := artifact.ABI.Methods[m]; !ok {
			return nil, errors.Errorf("contract has no method %q", m)
		}
	}

	var deployer *ecdsa.PrivateKey
	if opts.DeployerKey != "" {
		dk, err := ParseKeys([]string{opts.DeployerKey})
		if err != nil {
			return nil, errors.Wrap(err, "deployer key")
		}
		if dk.Len() == 0 {
			return nil, errors.New("empty deployer key")
		}
		deployer = dk.keys[0]
	} else {
		k, err := keys.Key(1)
		if err != nil {
			return nil, errors.Wrap(err, "no deployer key")
		}
		deployer = k
	}

	return &Backend{
		artifact: artifact,
		keys:     keys,
		deployer: deployer,
		methods:  methods,
		gasLimit: opts.GasLimit,
		log:      logrus.StandardLogger(),
	}, nil
}

// DeployerAddress is the account that pays for deployments.
func (b *Backend) DeployerAddress() common.Address {
	return crypto.PubkeyToAddress(b.deployer.PublicKey)
}

func (b *Backend) Participants(_ context.Context, n int) ([]ledger.Participant, error) {
	if n > b.keys.Len() {
		return nil, errors.Errorf("%d participants requested, %d keys configured", n, b.keys.Len())
	}
	out := make([]ledger.Participant, n)
	for i := range out {
		addr, err := b.keys.Address(i + 1)
		if err != nil {
			return nil, err
		}
		out[i] = ledger.Participant{Ordinal: i + 1, Identity: addr.Hex()}
	}
	return out, nil
}

func (b *Backend) Acquire(ctx context.Context) (ledger.Handle, error) {
	auth, err := b.transactor(ctx, b.deployer)
	if err != nil {
		return nil, errors.Wrap(ledger.ErrDeployment, err.Error())
	}
	addr, tx, contract, err := bind.DeployContract(auth, b.artifact.ABI, b.artifact.Bytecode, b.client)
	if err != nil {
		return nil, errors.Wrapf(ledger.ErrDeployment, "submit: %v", err)
	}
	if _, err := bind.WaitDeployed(ctx, b.client, tx); err != nil {
		return nil, errors.Wrapf(ledger.ErrDeployment, "wait for %s: %v", tx.Hash().Hex(), err)
	}
	return &handle{backend: b, address: addr, contract: contract}, nil
}

func (b *Backend) Close() error {
	if b.closer != nil {
		b.closer()
		b.closer = nil
	}
	return nil
}

func (b *Backend) transactor(ctx context.Context, key *ecdsa.PrivateKey) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(key, b.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	opts.GasLimit = b.gasLimit
	return opts, nil
}

type handle struct {
	backend  *Backend
	address  common.Address
	contract *bind.BoundContract
}

func (h *handle) Address() string {
	return h.address.Hex()
}

func (h *handle) WriteEvent(ctx context.Context, p ledger.Participant, magnitude int64) (ledger.Receipt, error) {
	return h.transact(ctx, p, h.backend.methods.WriteEvent, big.NewInt(magnitude))
}

func (h *handle) ComputePenalty(ctx context.Context, p ledger.Participant) (ledger.Receipt, error) {
	return h.transact(ctx, p, h.backend.methods.ComputePenalty, common.HexToAddress(p.Identity))
}

func (h *handle) ReadPenalty(ctx context.Context, p ledger.Participant) (*big.Int, error) {
	return h.call(ctx, h.backend.methods.ReadPenalty, common.HexToAddress(p.Identity))
}

func (h *handle) ReadEventCount(ctx context.Context, p ledger.Participant) (*big.Int, error) {
	return h.call(ctx, h.backend.methods.ReadEventCount, common.HexToAddress(p.Identity))
}

// transact submits from p's account and waits for the receipt. The nonce
// comes from the node's pending state.
func (h *handle) transact(ctx context.Context, p ledger.Participant, method string, args ...interface{}) (ledger.Receipt, error) {
	key, err := h.backend.keys.Key(p.Ordinal)
	if err != nil {
		return ledger.Receipt{}, err
	}
	opts, err := h.backend.transactor(ctx, key)
	if err != nil {
		return ledger.Receipt{}, err
	}

	tx, err := h.contract.Transact(opts, method, args...)
	if err != nil {
		return ledger.Receipt{}, errors.Wrapf(err, "submit %s", method)
	}
	receipt, err := bind.WaitMined(ctx, h.backend.client, tx)
	if err != nil {
		return ledger.Receipt{TxHash: tx.Hash().Hex()}, errors.Wrapf(err, "wait for %s", tx.Hash().Hex())
	}
	return ledger.Receipt{
		Cost:      receipt.GasUsed,
		TxHash:    tx.Hash().Hex(),
		Confirmed: receipt.Status == types.ReceiptStatusSuccessful,
	}, nil
}

func (h *handle) call(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	var out []interface{}
	if err := h.contract.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, errors.Wrapf(err, "call %s", method)
	}
	if len(out) != 1 {
		return nil, errors.Errorf("%s returned %d values, want 1", method, len(out))
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, errors.Errorf("%s returned %T, want uint256", method, out[0])
	}
	return v, nil
}

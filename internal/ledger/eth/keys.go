package eth

import (
	"bufio"
	"crypto/ecdsa"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// Keyring holds the participant signing keys in ordinal order.
type Keyring struct {
	keys []*ecdsa.PrivateKey
}

// ParseKeys decodes hex private keys, with or without 0x prefix. Blank
// entries and lines starting with # are skipped.
func ParseKeys(entries []string) (*Keyring, error) {
	kr := &Keyring{}
	for i, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" || strings.HasPrefix(e, "#") {
			continue
		}
		k, err := crypto.HexToECDSA(strings.TrimPrefix(e, "0x"))
		if err != nil {
			return nil, errors.Wrapf(err, "key %d", i+1)
		}
		kr.keys = append(kr.keys, k)
	}
	return kr, nil
}

// LoadKeysFile reads one hex key per line.
func LoadKeysFile(path string) (*Keyring, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open keys file")
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read keys file")
	}
	return ParseKeys(lines)
}

func (k *Keyring) Len() int {
	return len(k.keys)
}

// Key returns the key of a 1-based ordinal.
func (k *Keyring) Key(ordinal int) (*ecdsa.PrivateKey, error) {
	if ordinal < 1 || ordinal > len(k.keys) {
		return nil, errors.Errorf("no key for participant %d, %d configured", ordinal, len(k.keys))
	}
	return k.keys[ordinal-1], nil
}

func (k *Keyring) Address(ordinal int) (common.Address, error) {
	key, err := k.Key(ordinal)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

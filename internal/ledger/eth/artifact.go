package eth

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// DefaultArtifactPath is where Hardhat writes the compiled contract.
const DefaultArtifactPath = "artifacts/contracts/HybridModelLocal.sol/HybridModelLocal.json"

// Artifact is a compiled contract: its ABI and creation bytecode.
type Artifact struct {
	Name     string
	ABI      abi.ABI
	Bytecode []byte
}

type rawArtifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     json.RawMessage `json:"bytecode"`
	Bin          string          `json:"bin"`
}

// LoadArtifact reads a Hardhat, Foundry or solc --combined-json style
// artifact from path.
func LoadArtifact(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open artifact")
	}
	defer f.Close()

	a, err := ParseArtifact(f)
	if err != nil {
		return nil, errors.Wrapf(err, "artifact %s", path)
	}
	return a, nil
}

func ParseArtifact(r io.Reader) (*Artifact, error) {
	var raw rawArtifact
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	if len(raw.ABI) == 0 {
		return nil, errors.New("no abi")
	}

	// solc emits the ABI as a JSON string
	abiJSON := []byte(raw.ABI)
	var inner string
	if err := json.Unmarshal(raw.ABI, &inner); err == nil {
		abiJSON = []byte(inner)
	}
	parsed, err := abi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		return nil, errors.Wrap(err, "parse abi")
	}

	code, err := bytecode(raw)
	if err != nil {
		return nil, err
	}
	return &Artifact{Name: raw.ContractName, ABI: parsed, Bytecode: code}, nil
}

func bytecode(raw rawArtifact) ([]byte, error) {
	hex := raw.Bin
	if len(raw.Bytecode) > 0 {
		var s string
		if err := json.Unmarshal(raw.Bytecode, &s); err != nil {
			// Foundry nests it: {"object": "0x..."}
			var obj struct {
				Object string `json:"object"`
			}
			if err := json.Unmarshal(raw.Bytecode, &obj); err != nil {
				return nil, errors.Wrap(err, "decode bytecode")
			}
			s = obj.Object
		}
		hex = s
	}

	hex = strings.TrimSpace(hex)
	if hex == "" || hex == "0x" {
		return nil, errors.New("no bytecode, is the contract abstract?")
	}
	if strings.Contains(hex, "__") {
		return nil, errors.New("bytecode has unlinked libraries")
	}
	return common.FromHex(hex), nil
}

package hostsim

import (
	"encoding/hex"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fortiblox/x1-nitro/pkg/types"
)

// Scenario describes one invocation in a YAML file: the program to run,
// the account positions (base58 keys, hex data), and the instruction
// data. Repeating a key across positions produces duplicate records, the
// same way a transaction referencing one account twice would.
type Scenario struct {
	Name     string            `yaml:"name"`
	Program  string            `yaml:"program"`
	Accounts []ScenarioAccount `yaml:"accounts"`
	DataHex  string            `yaml:"instruction_data_hex"`
}

// ScenarioAccount is one account position of a scenario.
type ScenarioAccount struct {
	Key        string `yaml:"key"`
	Owner      string `yaml:"owner"`
	Lamports   uint64 `yaml:"lamports"`
	DataHex    string `yaml:"data_hex"`
	Signer     bool   `yaml:"signer"`
	Writable   bool   `yaml:"writable"`
	Executable bool   `yaml:"executable"`
	RentEpoch  uint64 `yaml:"rent_epoch"`
}

// LoadScenario reads and parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &sc, nil
}

// ProgramID parses the scenario's program id.
func (sc *Scenario) ProgramID() (types.Pubkey, error) {
	id, err := types.PubkeyFromBase58(sc.Program)
	if err != nil {
		return types.Pubkey{}, fmt.Errorf("scenario program: %w", err)
	}
	return id, nil
}

// InstructionData decodes the scenario's instruction data.
func (sc *Scenario) InstructionData() ([]byte, error) {
	if sc.DataHex == "" {
		return nil, nil
	}
	data, err := hex.DecodeString(sc.DataHex)
	if err != nil {
		return nil, fmt.Errorf("scenario instruction data: %w", err)
	}
	return data, nil
}

// Seeds converts the scenario's account list to host account seeds.
func (sc *Scenario) Seeds() ([]AccountSeed, error) {
	seeds := make([]AccountSeed, len(sc.Accounts))
	for i, a := range sc.Accounts {
		key, err := types.PubkeyFromBase58(a.Key)
		if err != nil {
			return nil, fmt.Errorf("scenario account %d key: %w", i, err)
		}
		var owner types.Pubkey
		if a.Owner != "" {
			owner, err = types.PubkeyFromBase58(a.Owner)
			if err != nil {
				return nil, fmt.Errorf("scenario account %d owner: %w", i, err)
			}
		}
		var data []byte
		if a.DataHex != "" {
			data, err = hex.DecodeString(a.DataHex)
			if err != nil {
				return nil, fmt.Errorf("scenario account %d data: %w", i, err)
			}
		}
		seeds[i] = AccountSeed{
			Key:        key,
			Owner:      owner,
			Lamports:   a.Lamports,
			Data:       data,
			Executable: a.Executable,
			RentEpoch:  a.RentEpoch,
			IsSigner:   a.Signer,
			IsWritable: a.Writable,
		}
	}
	return seeds, nil
}

package hostsim

import (
	"encoding/binary"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fortiblox/x1-nitro/pkg/cpi"
	"github.com/fortiblox/x1-nitro/pkg/entry"
	"github.com/fortiblox/x1-nitro/pkg/pda"
	"github.com/fortiblox/x1-nitro/pkg/system"
	"github.com/fortiblox/x1-nitro/pkg/types"
)

// MaxInvokeDepth bounds cross-program invocation nesting.
const MaxInvokeDepth = 4

// Runtime errors.
var (
	ErrProgramNotFound        = errors.New("program not found")
	ErrInvokeDepthExceeded    = errors.New("invoke depth exceeded")
	ErrAccountMismatch        = errors.New("instruction accounts do not match supplied views")
	ErrPrivilegeEscalation    = errors.New("invoke privilege escalation")
	ErrMissingSignature       = errors.New("missing required signature")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrInvalidInstructionData = errors.New("invalid instruction data")
	ErrNotEnoughAccountKeys   = errors.New("not enough account keys")
)

// Config configures a Runtime. Zero values select a nop logger, no store,
// and the entrypoint's default account capacity.
type Config struct {
	Logger      *zap.Logger
	Store       *Store
	MaxAccounts int
}

// Runtime executes registered programs the way the host runtime would:
// serialize the accounts into an input region, run the program's process
// function over zero-copy views of that region, read the mutations back,
// and commit. It also acts as the cpi.Invoker for programs it runs.
type Runtime struct {
	log         *zap.Logger
	store       *Store
	maxAccounts int
	programs    map[types.Pubkey]entry.ProcessFunc
	stack       []frame
}

// frame tracks one live invocation for CPI privilege checks.
type frame struct {
	programID types.Pubkey
}

// NewRuntime creates a runtime from cfg.
func NewRuntime(cfg Config) *Runtime {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxAccounts := cfg.MaxAccounts
	if maxAccounts <= 0 {
		maxAccounts = entry.MaxEntrypointAccounts
	}
	return &Runtime{
		log:         log,
		store:       cfg.Store,
		maxAccounts: maxAccounts,
		programs:    make(map[types.Pubkey]entry.ProcessFunc),
	}
}

// RegisterProgram installs a program's process function under its id.
func (r *Runtime) RegisterProgram(id types.Pubkey, process entry.ProcessFunc) {
	r.programs[id] = process
}

// Result is the outcome of one top-level invocation.
type Result struct {
	// Code is the program's result code; entry.Success means success.
	Code uint64

	// Err is the failure description when Code is nonzero.
	Err string

	// Accounts is the post-execution account state, read back from the
	// input region. Only meaningful on success.
	Accounts []AccountSeed
}

// Execute runs one top-level invocation of programID over the given
// accounts and instruction data.
//
// On success the mutated account state is read back into the result and,
// when a store is configured, committed. A nonzero program result is not
// an error from the host's perspective; hard failures (unknown program,
// unserializable accounts) are.
func (r *Runtime) Execute(programID types.Pubkey, accounts []AccountSeed, data []byte) (*Result, error) {
	process, err := r.lookup(programID)
	if err != nil {
		return nil, err
	}

	input, err := BuildInput(accounts, data, programID)
	if err != nil {
		return nil, err
	}

	r.log.Debug("invoking program",
		zap.String("program", programID.String()),
		zap.Int("accounts", len(accounts)),
		zap.Int("data_len", len(data)),
	)

	if len(r.stack) == 0 {
		cpi.SetInvoker(r)
		defer cpi.SetInvoker(nil)
	}

	code, runErr := r.run(programID, process, input)
	if code != entry.Success {
		res := &Result{Code: code}
		if runErr != nil {
			res.Err = runErr.Error()
		} else {
			res.Err = fmt.Sprintf("program returned error code %d", code)
		}
		r.log.Debug("program failed", zap.String("program", programID.String()), zap.String("err", res.Err))
		return res, nil
	}

	if err := ReadBack(input, accounts); err != nil {
		return nil, err
	}
	if r.store != nil {
		if err := r.store.Commit(accounts); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
	}

	r.log.Debug("program succeeded", zap.String("program", programID.String()))
	return &Result{Code: entry.Success, Accounts: accounts}, nil
}

// run decodes input and dispatches to process inside a new frame.
func (r *Runtime) run(programID types.Pubkey, process entry.ProcessFunc, input []byte) (uint64, error) {
	views := make([]entry.Account, r.maxAccounts)
	in, err := entry.Decode(input, views)
	if err != nil {
		return entry.ErrorCode(err), err
	}

	r.stack = append(r.stack, frame{programID: programID})
	procErr := process(in.ProgramID, in.Accounts, in.Data)
	r.stack = r.stack[:len(r.stack)-1]

	return entry.ErrorCode(procErr), procErr
}

// lookup resolves a program id to its process function. The system
// program is always available natively.
func (r *Runtime) lookup(programID types.Pubkey) (entry.ProcessFunc, error) {
	if programID.Equals(types.SystemProgramID) {
		return r.processSystem, nil
	}
	if process, ok := r.programs[programID]; ok {
		return process, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, programID)
}

// InvokeSigned implements cpi.Invoker.
//
// The caller hands over its own account views; instructions for the
// system program execute directly against those views, so mutations stay
// aliased with every duplicate the caller holds. Other programs re-enter
// through a nested serialize/run/read-back cycle whose results are copied
// back into the caller's views.
func (r *Runtime) InvokeSigned(ix cpi.Instruction, accounts []entry.Account, signers [][][]byte) error {
	if len(r.stack) >= MaxInvokeDepth {
		return fmt.Errorf("%w: depth %d", ErrInvokeDepthExceeded, len(r.stack))
	}
	if len(r.stack) == 0 {
		return errors.New("invoke outside an invocation")
	}
	caller := r.stack[len(r.stack)-1]

	if len(accounts) != len(ix.Accounts) {
		return fmt.Errorf("%w: %d metas, %d views", ErrAccountMismatch, len(ix.Accounts), len(accounts))
	}

	derived, err := deriveSigners(signers, caller.programID)
	if err != nil {
		return err
	}

	for i, meta := range ix.Accounts {
		view := accounts[i]
		if !view.Key().Equals(meta.Pubkey) {
			return fmt.Errorf("%w: position %d", ErrAccountMismatch, i)
		}
		if meta.IsWritable && !view.IsWritable() {
			return fmt.Errorf("%w: %s is not writable", ErrPrivilegeEscalation, meta.Pubkey)
		}
		if meta.IsSigner && !view.IsSigner() && !derived[meta.Pubkey] {
			return fmt.Errorf("%w: %s", ErrMissingSignature, meta.Pubkey)
		}
	}

	r.log.Debug("cpi",
		zap.String("caller", caller.programID.String()),
		zap.String("target", ix.ProgramID.String()),
		zap.Int("accounts", len(ix.Accounts)),
	)

	if ix.ProgramID.Equals(types.SystemProgramID) {
		r.stack = append(r.stack, frame{programID: ix.ProgramID})
		err := r.dispatchSystem(ix.Data, accounts)
		r.stack = r.stack[:len(r.stack)-1]
		return err
	}
	return r.invokeNested(ix, accounts)
}

// invokeNested runs a registered program against a freshly serialized
// region built from the caller's view state, then copies the results back
// into the caller's views.
func (r *Runtime) invokeNested(ix cpi.Instruction, accounts []entry.Account) error {
	process, err := r.lookup(ix.ProgramID)
	if err != nil {
		return err
	}

	seeds := make([]AccountSeed, len(accounts))
	for i, view := range accounts {
		meta := ix.Accounts[i]
		seeds[i] = AccountSeed{
			Key:        *view.Key(),
			Owner:      *view.Owner(),
			Lamports:   view.Lamports(),
			Data:       view.Data(),
			Executable: view.IsExecutable(),
			RentEpoch:  view.RentEpoch(),
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
		}
	}

	input, err := BuildInput(seeds, ix.Data, ix.ProgramID)
	if err != nil {
		return err
	}
	code, runErr := r.run(ix.ProgramID, process, input)
	if code != entry.Success {
		if runErr != nil {
			return runErr
		}
		return fmt.Errorf("invoked program failed with code %d", code)
	}
	if err := ReadBack(input, seeds); err != nil {
		return err
	}

	dup := duplicateIndexes(seeds)
	for i, view := range accounts {
		if dup[i] >= 0 {
			continue // aliased view, canonical position already applied
		}
		seed := seeds[i]
		view.SetLamports(seed.Lamports)
		view.Assign(seed.Owner)
		if err := view.Realloc(len(seed.Data), false); err != nil {
			return err
		}
		copy(view.Data(), seed.Data)
	}
	return nil
}

// deriveSigners resolves each signer seed set to its program-derived
// address under the calling program.
func deriveSigners(signers [][][]byte, callerProgram types.Pubkey) (map[types.Pubkey]bool, error) {
	if len(signers) == 0 {
		return nil, nil
	}
	derived := make(map[types.Pubkey]bool, len(signers))
	for _, seeds := range signers {
		p, err := pda.CreateProgramAddress(seeds, callerProgram)
		if err != nil {
			return nil, fmt.Errorf("derive signer: %w", err)
		}
		derived[p] = true
	}
	return derived, nil
}

// processSystem is the system program's entrypoint-shaped process
// function, used when the system program is invoked at the top level.
func (r *Runtime) processSystem(_ *types.Pubkey, accounts []entry.Account, data []byte) error {
	return r.dispatchSystem(data, accounts)
}

// dispatchSystem executes a system-program instruction directly against
// the supplied views.
func (r *Runtime) dispatchSystem(data []byte, accounts []entry.Account) error {
	if len(data) < 4 {
		return fmt.Errorf("%w: missing discriminant", ErrInvalidInstructionData)
	}
	discriminant := binary.LittleEndian.Uint32(data[:4])
	args := data[4:]

	switch discriminant {
	case system.InstructionCreateAccount:
		return r.systemCreateAccount(args, accounts)
	case system.InstructionAssign:
		return r.systemAssign(args, accounts)
	case system.InstructionTransfer:
		return r.systemTransfer(args, accounts)
	case system.InstructionAllocate:
		return r.systemAllocate(args, accounts)
	default:
		return fmt.Errorf("%w: discriminant %d", ErrInvalidInstructionData, discriminant)
	}
}

func (r *Runtime) systemCreateAccount(args []byte, accounts []entry.Account) error {
	if len(accounts) < 2 {
		return fmt.Errorf("%w: CreateAccount needs 2", ErrNotEnoughAccountKeys)
	}
	if len(args) < 48 {
		return fmt.Errorf("%w: CreateAccount args", ErrInvalidInstructionData)
	}
	lamports := binary.LittleEndian.Uint64(args[0:8])
	space := binary.LittleEndian.Uint64(args[8:16])
	owner, _ := types.PubkeyFromBytes(args[16:48])

	funder, account := accounts[0], accounts[1]
	if funder.Lamports() < lamports {
		return fmt.Errorf("%w: funder has %d, needs %d", ErrInsufficientFunds, funder.Lamports(), lamports)
	}
	if err := account.Realloc(int(space), true); err != nil {
		return err
	}
	funder.SetLamports(funder.Lamports() - lamports)
	account.SetLamports(account.Lamports() + lamports)
	account.Assign(owner)
	return nil
}

func (r *Runtime) systemAssign(args []byte, accounts []entry.Account) error {
	if len(accounts) < 1 {
		return fmt.Errorf("%w: Assign needs 1", ErrNotEnoughAccountKeys)
	}
	if len(args) < 32 {
		return fmt.Errorf("%w: Assign args", ErrInvalidInstructionData)
	}
	owner, _ := types.PubkeyFromBytes(args[0:32])
	accounts[0].Assign(owner)
	return nil
}

func (r *Runtime) systemTransfer(args []byte, accounts []entry.Account) error {
	if len(accounts) < 2 {
		return fmt.Errorf("%w: Transfer needs 2", ErrNotEnoughAccountKeys)
	}
	if len(args) < 8 {
		return fmt.Errorf("%w: Transfer args", ErrInvalidInstructionData)
	}
	amount := binary.LittleEndian.Uint64(args[0:8])

	from, to := accounts[0], accounts[1]
	if from.Lamports() < amount {
		return fmt.Errorf("%w: %d < %d", ErrInsufficientFunds, from.Lamports(), amount)
	}
	// Sequential read-modify-write stays correct when from and to alias
	// the same backing record: the second read observes the first write.
	from.SetLamports(from.Lamports() - amount)
	to.SetLamports(to.Lamports() + amount)
	return nil
}

func (r *Runtime) systemAllocate(args []byte, accounts []entry.Account) error {
	if len(accounts) < 1 {
		return fmt.Errorf("%w: Allocate needs 1", ErrNotEnoughAccountKeys)
	}
	if len(args) < 8 {
		return fmt.Errorf("%w: Allocate args", ErrInvalidInstructionData)
	}
	space := binary.LittleEndian.Uint64(args[0:8])
	return accounts[0].Realloc(int(space), true)
}

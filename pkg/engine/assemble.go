package engine

import (
	"github.com/timelock-wallet/timelock-client/pkg/codec"
	"github.com/timelock-wallet/timelock-client/pkg/solana"
	"github.com/timelock-wallet/timelock-client/pkg/solana/computebudget"
	"github.com/timelock-wallet/timelock-client/pkg/solana/system"
	"github.com/timelock-wallet/timelock-client/pkg/solana/token"
	"github.com/timelock-wallet/timelock-client/pkg/timelockwallet"
)

// assembleCreate builds the unsigned create transaction. Native locks carry
// the funding transfer in the same transaction, after the program
// instruction; the program account must exist before lamports land on it.
// Token locks are funded by the program itself.
func (e *Engine) assembleCreate(params CreateLockParams) (solana.Transaction, error) {
	var op string
	args := map[string]codec.Value{
		"unlock_timestamp": codec.I64(params.UnlockAt.Unix()),
	}
	if params.Kind == timelockwallet.AssetSol {
		op = timelockwallet.OpInitializeLockSol
		args["amount_lamports"] = codec.U64(params.Amount)
	} else {
		op = timelockwallet.OpInitializeLockSpl
		args["amount"] = codec.U64(params.Amount)
	}

	programIxn, err := e.programInstruction(op, args, params.Kind, params.Mint)
	if err != nil {
		return solana.Transaction{}, err
	}

	instructions := append(e.budgetInstructions(), programIxn)

	if params.Kind == timelockwallet.AssetSol {
		lock, err := timelockwallet.GetLockAddress(params.Kind, e.signer.PublicKey())
		if err != nil {
			return solana.Transaction{}, actionError(CategoryResolution, err)
		}
		instructions = append(instructions, system.Transfer(e.signer.PublicKey(), lock, params.Amount))
	}

	return solana.NewTransaction(e.signer.PublicKey(), instructions...), nil
}

// assembleFund builds the unsigned top-up transaction for a native lock.
func (e *Engine) assembleFund(amount uint64) (solana.Transaction, error) {
	programIxn, err := e.programInstruction(
		timelockwallet.OpFundSolLock,
		map[string]codec.Value{"amount_lamports": codec.U64(amount)},
		timelockwallet.AssetSol,
		nil,
	)
	if err != nil {
		return solana.Transaction{}, err
	}

	instructions := append(e.budgetInstructions(), programIxn)
	return solana.NewTransaction(e.signer.PublicKey(), instructions...), nil
}

// assembleWithdraw builds the unsigned withdraw transaction. When the
// party's holding account went missing (closed after the lock was created),
// it is recreated in the same transaction so the program's transfer has a
// destination.
func (e *Engine) assembleWithdraw(params WithdrawParams, recreateHolding bool) (solana.Transaction, error) {
	op := timelockwallet.OpWithdrawSol
	if params.Kind == timelockwallet.AssetSpl {
		op = timelockwallet.OpWithdrawSpl
	}

	programIxn, err := e.programInstruction(op, map[string]codec.Value{}, params.Kind, params.Mint)
	if err != nil {
		return solana.Transaction{}, err
	}

	instructions := e.budgetInstructions()

	if recreateHolding {
		createIxn, _, err := token.CreateAssociatedTokenAccount(e.signer.PublicKey(), e.signer.PublicKey(), params.Mint)
		if err != nil {
			return solana.Transaction{}, actionError(CategoryResolution, err)
		}
		instructions = append(instructions, createIxn)
	}

	instructions = append(instructions, programIxn)
	return solana.NewTransaction(e.signer.PublicKey(), instructions...), nil
}

// programInstruction encodes the operation's data and resolves its account
// list against the party's context.
func (e *Engine) programInstruction(op string, args map[string]codec.Value, kind timelockwallet.AssetKind, mint []byte) (solana.Instruction, error) {
	s, err := timelockwallet.Schema()
	if err != nil {
		return solana.Instruction{}, actionError(CategoryValidation, err)
	}

	declared, ok := s.Operation(op)
	if !ok {
		return solana.Instruction{}, actionErrorf(CategoryValidation, "operation %q not declared", op)
	}

	data, err := codec.EncodeInstruction(s, op, args)
	if err != nil {
		return solana.Instruction{}, actionError(CategoryValidation, err)
	}

	metas, err := timelockwallet.ResolveAccounts(declared, timelockwallet.ResolveContext{
		Party: e.signer.PublicKey(),
		Kind:  kind,
		Mint:  mint,
	})
	if err != nil {
		return solana.Instruction{}, actionError(CategoryResolution, err)
	}

	return solana.NewInstruction(timelockwallet.ProgramID, data, metas...), nil
}

// budgetInstructions returns the configured compute budget prelude. Fee and
// limit instructions lead the transaction so they apply to the whole of it.
func (e *Engine) budgetInstructions() []solana.Instruction {
	var instructions []solana.Instruction
	if e.cfg.PriorityFee > 0 {
		instructions = append(instructions, computebudget.SetComputeUnitPrice(e.cfg.PriorityFee))
	}
	if e.cfg.ComputeUnitLimit > 0 {
		instructions = append(instructions, computebudget.SetComputeUnitLimit(e.cfg.ComputeUnitLimit))
	}
	return instructions
}

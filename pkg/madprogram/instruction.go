// Package madprogram encodes and decodes the wire format of the deployed MAD
// escrow and pool programs: instruction payloads, positional account lists
// and on-ledger account state. The byte layouts here must match the deployed
// programs exactly; the positional order of account metas is part of the
// contract, not a convention.
package madprogram

import (
	"crypto/sha256"

	"github.com/madnet-labs/madd/pkg/bufferutil"
	"github.com/madnet-labs/madd/pkg/derivation"
)

// DiscriminatorLen is the byte length of instruction and account
// discriminators.
const DiscriminatorLen = 8

// Well-known addresses baked into the deployed programs.
var (
	// EscrowProgramID is the address of the MAD escrow program.
	EscrowProgramID = derivation.NewAddressFromSeed("madd:program:escrow")
	// PoolProgramID is the address of the constant-product pool program.
	PoolProgramID = derivation.NewAddressFromSeed("madd:program:pool")
	// SystemProgramID is the address of the ledger's native system program.
	SystemProgramID = derivation.NewAddressFromSeed("madd:program:system")
	// FeePoolAddress is the address of the primary/fee-currency pool record.
	FeePoolAddress = derivation.NewAddressFromSeed("madd:pool:fee")
	// BurnSinkAddress is the unspendable address receiving burned deposits.
	BurnSinkAddress = derivation.NewAddressFromSeed("madd:sink:burn")
)

// Instruction discriminators, first 8 bytes of sha256("global:<name>").
var (
	CreateContractDiscriminator  = Discriminator("create_contract")
	AcceptContractDiscriminator  = Discriminator("accept_contract")
	CancelContractDiscriminator  = Discriminator("cancel_contract")
	ConfirmContractDiscriminator = Discriminator("confirm_contract")
	BurnContractDiscriminator    = Discriminator("burn_contract")
	InitIndexDiscriminator       = Discriminator("init_index")
	SwapDiscriminator            = Discriminator("swap")
)

// Account discriminators, first 8 bytes of sha256("account:<name>").
var (
	ContractAccountDiscriminator = accountDiscriminator("contract")
	IndexAccountDiscriminator    = accountDiscriminator("index")
	PoolAccountDiscriminator     = accountDiscriminator("pool")
)

// Discriminator returns the 8-byte instruction discriminator for a name.
func Discriminator(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + name))
	return sum[:DiscriminatorLen]
}

func accountDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("account:" + name))
	return sum[:DiscriminatorLen]
}

// AccountMeta references one account taking part in an instruction.
type AccountMeta struct {
	Address  derivation.Address
	Signer   bool
	Writable bool
}

// Instruction is one program call inside a transaction.
type Instruction struct {
	ProgramID derivation.Address
	Accounts  []AccountMeta
	Data      []byte
}

// IndexRole identifies which side of a contract an index tracks.
type IndexRole uint8

const (
	// BuyerRole ...
	BuyerRole IndexRole = iota
	// SellerRole ...
	SellerRole
)

// NewCreateContract builds the create_contract instruction. The buyer
// deposits twice the principal into the vault.
func NewCreateContract(
	buyer, contract derivation.Address, principal uint64, digest [32]byte,
) Instruction {
	s := bufferutil.NewSerializer()
	s.WriteSlice(CreateContractDiscriminator)
	s.WriteUint64(principal)
	s.WriteSlice(digest[:])

	return Instruction{
		ProgramID: EscrowProgramID,
		Accounts: []AccountMeta{
			{Address: buyer, Signer: true, Writable: true},
			{Address: contract, Writable: true},
			{Address: derivation.ForBuyerIndex(buyer), Writable: true},
			{Address: derivation.ForVaultAuthority(contract)},
			{Address: SystemProgramID},
		},
		Data: s.Bytes(),
	}
}

// NewAcceptContract builds the accept_contract instruction. The program
// re-verifies the code against the stored digest; the seller deposits the
// principal.
func NewAcceptContract(
	seller, contract derivation.Address, code string,
) Instruction {
	s := bufferutil.NewSerializer()
	s.WriteSlice(AcceptContractDiscriminator)
	s.WriteVarSlice([]byte(code))

	return Instruction{
		ProgramID: EscrowProgramID,
		Accounts: []AccountMeta{
			{Address: seller, Signer: true, Writable: true},
			{Address: contract, Writable: true},
			{Address: derivation.ForSellerIndex(seller), Writable: true},
			{Address: derivation.ForVaultAuthority(contract)},
			{Address: SystemProgramID},
		},
		Data: s.Bytes(),
	}
}

// NewCancelContract builds the cancel_contract instruction refunding the
// buyer deposit.
func NewCancelContract(buyer, contract derivation.Address) Instruction {
	s := bufferutil.NewSerializer()
	s.WriteSlice(CancelContractDiscriminator)

	return Instruction{
		ProgramID: EscrowProgramID,
		Accounts: []AccountMeta{
			{Address: buyer, Signer: true, Writable: true},
			{Address: contract, Writable: true},
			{Address: derivation.ForBuyerIndex(buyer), Writable: true},
			{Address: derivation.ForVaultAuthority(contract)},
		},
		Data: s.Bytes(),
	}
}

// NewConfirmContract builds the confirm_contract instruction for either
// party.
func NewConfirmContract(
	party, contract, buyer, seller derivation.Address,
) Instruction {
	s := bufferutil.NewSerializer()
	s.WriteSlice(ConfirmContractDiscriminator)

	return Instruction{
		ProgramID: EscrowProgramID,
		Accounts: []AccountMeta{
			{Address: party, Signer: true},
			{Address: contract, Writable: true},
			{Address: derivation.ForBuyerIndex(buyer), Writable: true},
			{Address: derivation.ForSellerIndex(seller), Writable: true},
			{Address: derivation.ForVaultAuthority(contract)},
		},
		Data: s.Bytes(),
	}
}

// NewBurnContract builds the burn_contract instruction sending both deposits
// to the burn sink.
func NewBurnContract(
	party, contract, buyer, seller derivation.Address,
) Instruction {
	s := bufferutil.NewSerializer()
	s.WriteSlice(BurnContractDiscriminator)

	return Instruction{
		ProgramID: EscrowProgramID,
		Accounts: []AccountMeta{
			{Address: party, Signer: true},
			{Address: contract, Writable: true},
			{Address: derivation.ForBuyerIndex(buyer), Writable: true},
			{Address: derivation.ForSellerIndex(seller), Writable: true},
			{Address: derivation.ForVaultAuthority(contract)},
			{Address: BurnSinkAddress, Writable: true},
		},
		Data: s.Bytes(),
	}
}

// NewInitIndex builds the init_index instruction creating the per-owner
// index record for the given role.
func NewInitIndex(owner derivation.Address, role IndexRole) Instruction {
	s := bufferutil.NewSerializer()
	s.WriteSlice(InitIndexDiscriminator)
	s.WriteUint8(uint8(role))

	index := derivation.ForBuyerIndex(owner)
	if role == SellerRole {
		index = derivation.ForSellerIndex(owner)
	}

	return Instruction{
		ProgramID: EscrowProgramID,
		Accounts: []AccountMeta{
			{Address: owner, Signer: true, Writable: true},
			{Address: index, Writable: true},
			{Address: SystemProgramID},
		},
		Data: s.Bytes(),
	}
}

// NewSwap builds the pool swap instruction trading the primary token for
// fee currency. The pool program rejects the trade if the actual output
// would fall below minAmountOut.
func NewSwap(
	trader derivation.Address, amountIn, minAmountOut uint64,
) Instruction {
	s := bufferutil.NewSerializer()
	s.WriteSlice(SwapDiscriminator)
	s.WriteUint64(amountIn)
	s.WriteUint64(minAmountOut)

	return Instruction{
		ProgramID: PoolProgramID,
		Accounts: []AccountMeta{
			{Address: trader, Signer: true, Writable: true},
			{Address: FeePoolAddress, Writable: true},
			{Address: derivation.NewAddressFromSeed("madd:pool:fee:reserve:primary"), Writable: true},
			{Address: derivation.NewAddressFromSeed("madd:pool:fee:reserve:fee"), Writable: true},
			{Address: derivation.ForVaultAuthority(FeePoolAddress)},
		},
		Data: s.Bytes(),
	}
}

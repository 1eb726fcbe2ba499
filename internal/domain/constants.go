package domain

const (
	// Ledger account types.
	AccountTypePersonal = "PERSONAL"
	AccountTypeBusiness = "BUSINESS"
	AccountTypeSystem   = "SYSTEM"

	// TransferSource tags every request this service sends to the ledger.
	TransferSource = "shop-treasury"

	DefaultSystemAccountName = "Shop System"

	MemoDeposit    = "Shop deposit"
	MemoWithdrawal = "Shop withdrawal"
	MemoRollback   = "Shop rollback"

	// Idempotency key tags, one per kind of leg.
	KeyTagAdd         = "add"
	KeyTagSub         = "sub"
	KeyTagTransferSub = "transfer:sub"
	KeyTagTransferAdd = "transfer:add"
	KeyTagRollback    = "rollback"

	DirectionDebit  = "debit"
	DirectionCredit = "credit"
)

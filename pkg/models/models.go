package models

// Side is the trade direction relative to the base token.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is one of the two supported directions.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// TxStatus is the normalized lifecycle state of a submitted transaction.
type TxStatus int

const (
	TxFailed    TxStatus = -1
	TxPending   TxStatus = 0
	TxConfirmed TxStatus = 1
)

func (s TxStatus) String() string {
	switch s {
	case TxFailed:
		return "FAILED"
	case TxConfirmed:
		return "CONFIRMED"
	default:
		return "PENDING"
	}
}

// SwapRequest describes a swap against a single pool. Amount is denominated
// in the base token for SELL and in the base token to receive for BUY; the
// executor converts it to raw integer units before any math.
type SwapRequest struct {
	Network          string  `json:"network"`
	WalletAddress    string  `json:"walletAddress"`
	BaseToken        string  `json:"baseToken"`
	QuoteToken       string  `json:"quoteToken"`
	Amount           float64 `json:"amount"`
	Side             Side    `json:"side"`
	PoolAddress      string  `json:"poolAddress,omitempty"`
	SlippagePct      float64 `json:"slippagePct,omitempty"`
	UseNativeBalance bool    `json:"useNativeBalance,omitempty"`
}

// QuoteResult is the response of quote-swap. QuoteID references the cached
// route and can be redeemed once through execute-quote while the quote is
// still live.
type QuoteResult struct {
	QuoteID        string  `json:"quoteId"`
	PoolAddress    string  `json:"poolAddress"`
	TokenIn        string  `json:"tokenIn"`
	TokenOut       string  `json:"tokenOut"`
	AmountIn       float64 `json:"amountIn"`
	AmountOut      float64 `json:"amountOut"`
	Price          float64 `json:"price"`
	SlippagePct    float64 `json:"slippagePct"`
	MinAmountOut   float64 `json:"minAmountOut"`
	MaxAmountIn    float64 `json:"maxAmountIn"`
	PriceImpactPct float64 `json:"priceImpactPct"`
}

// ExecuteQuoteRequest redeems a previously issued quote.
type ExecuteQuoteRequest struct {
	Network       string `json:"network"`
	WalletAddress string `json:"walletAddress"`
	QuoteID       string `json:"quoteId"`
}

// SwapData carries the economics of a settled swap.
type SwapData struct {
	TokenIn                 string  `json:"tokenIn"`
	TokenOut                string  `json:"tokenOut"`
	AmountIn                float64 `json:"amountIn"`
	AmountOut               float64 `json:"amountOut"`
	Fee                     float64 `json:"fee"`
	BaseTokenBalanceChange  float64 `json:"baseTokenBalanceChange"`
	QuoteTokenBalanceChange float64 `json:"quoteTokenBalanceChange"`
}

// SwapExecuteResponse is returned by execute-swap and execute-quote. Status 0
// means the transaction was submitted but not confirmed within the polling
// budget; clients poll the signature to learn the final state.
type SwapExecuteResponse struct {
	Signature string    `json:"signature"`
	Status    TxStatus  `json:"status"`
	Data      *SwapData `json:"data,omitempty"`
}

// ApproveRequest grants a spender an allowance on a token. Amount zero
// requests an unlimited approval.
type ApproveRequest struct {
	Network       string  `json:"network"`
	WalletAddress string  `json:"walletAddress"`
	Token         string  `json:"token"`
	Spender       string  `json:"spender"`
	Amount        float64 `json:"amount,omitempty"`
}

// ApproveResponse reports a standalone allowance grant.
type ApproveResponse struct {
	Signature string   `json:"signature"`
	Status    TxStatus `json:"status"`
	Token     string   `json:"token"`
	Spender   string   `json:"spender"`
	Fee       float64  `json:"fee"`
}

// WrapRequest wraps native currency into its ERC-20 form, or unwraps it back.
type WrapRequest struct {
	Network       string  `json:"network"`
	WalletAddress string  `json:"walletAddress"`
	Amount        float64 `json:"amount"`
	Unwrap        bool    `json:"unwrap,omitempty"`
}

// WrapResponse reports a wrap or unwrap transaction.
type WrapResponse struct {
	Signature string   `json:"signature"`
	Status    TxStatus `json:"status"`
	Amount    float64  `json:"amount"`
	Unwrapped bool     `json:"unwrapped"`
	Fee       float64  `json:"fee"`
}

// PollResponse reports the chain's view of a submitted transaction.
type PollResponse struct {
	Signature   string   `json:"signature"`
	Status      TxStatus `json:"status"`
	Fee         float64  `json:"fee,omitempty"`
	BlockNumber uint64   `json:"blockNumber,omitempty"`
}

// TransactionOutcome is the confirmation engine's summary of a submitted
// transaction. Balance changes are signed: positive on receipt, negative on
// spend, denominated in token units.
type TransactionOutcome struct {
	Status                  TxStatus
	Signature               string
	Fee                     float64
	BaseTokenBalanceChange  float64
	QuoteTokenBalanceChange float64
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Signature string `json:"signature,omitempty"`
}

package domain

// Market is a decoded market account snapshot. It is immutable once decoded
// and replaced wholesale on every refresh, never mutated in place.
type Market struct {
	Address Address `json:"address"`
	Name    string  `json:"name"`

	Bids       Address `json:"bids"`
	Asks       Address `json:"asks"`
	EventQueue Address `json:"event_queue"`

	BaseMint   Address `json:"base_mint"`
	QuoteMint  Address `json:"quote_mint"`
	BaseVault  Address `json:"base_vault"`
	QuoteVault Address `json:"quote_vault"`

	BaseDecimals  uint8 `json:"base_decimals"`
	QuoteDecimals uint8 `json:"quote_decimals"`

	BaseLotSize  uint64 `json:"base_lot_size"`
	QuoteLotSize uint64 `json:"quote_lot_size"`

	BaseDepositTotal  uint64 `json:"base_deposit_total"`
	QuoteDepositTotal uint64 `json:"quote_deposit_total"`

	// Fee rates in micros (1% = 10,000).
	TakerFeeMicros int64 `json:"taker_fee"`
	MakerFeeMicros int64 `json:"maker_fee"`
}

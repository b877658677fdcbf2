package codec

import (
	"encoding/binary"

	"clob_go/internal/book"
	"clob_go/internal/domain"
)

// Encoders for the account layouts above. The client never writes accounts
// on-chain; these exist for fixtures, dry-run tooling and the round-trip
// tests that pin the layout.

// EncodeMarket serializes a market account.
func EncodeMarket(m domain.Market) []byte {
	raw := make([]byte, marketAccountSize)
	copy(raw, marketDiscriminator[:])

	name := []byte(m.Name)
	if len(name) > 16 {
		name = name[:16]
	}
	copy(raw[marketNameOff:], name)

	copy(raw[marketBidsOff:], m.Bids[:])
	copy(raw[marketAsksOff:], m.Asks[:])
	copy(raw[marketEventQueueOff:], m.EventQueue[:])
	copy(raw[marketBaseMintOff:], m.BaseMint[:])
	copy(raw[marketQuoteMintOff:], m.QuoteMint[:])
	copy(raw[marketBaseVaultOff:], m.BaseVault[:])
	copy(raw[marketQuoteVaultOff:], m.QuoteVault[:])

	raw[marketBaseDecOff] = m.BaseDecimals
	raw[marketQuoteDecOff] = m.QuoteDecimals

	binary.LittleEndian.PutUint64(raw[marketBaseLotOff:], m.BaseLotSize)
	binary.LittleEndian.PutUint64(raw[marketQuoteLotOff:], m.QuoteLotSize)
	binary.LittleEndian.PutUint64(raw[marketBaseDepositOff:], m.BaseDepositTotal)
	binary.LittleEndian.PutUint64(raw[marketQuoteDepositOff:], m.QuoteDepositTotal)
	binary.LittleEndian.PutUint64(raw[marketTakerFeeOff:], uint64(m.TakerFeeMicros))
	binary.LittleEndian.PutUint64(raw[marketMakerFeeOff:], uint64(m.MakerFeeMicros))
	return raw
}

// EncodeBookSide serializes a book side with the given slot capacity. Leaves
// fill the first slots; the rest are marked free.
func EncodeBookSide(records []book.LeafOrderRecord, capacity int) []byte {
	if capacity < len(records) {
		capacity = len(records)
	}
	raw := make([]byte, bookSideHeaderSize+capacity*slotSize)
	copy(raw, bookSideDiscriminator[:])
	binary.LittleEndian.PutUint32(raw[bookSideLeafCountOff:], uint32(len(records)))

	for i, r := range records {
		slot := raw[bookSideHeaderSize+i*slotSize:]
		slot[slotTagOff] = tagLeaf
		key := r.Key.Bytes()
		copy(slot[slotKeyOff:], key[:])
		binary.LittleEndian.PutUint64(slot[slotQtyOff:], uint64(r.Quantity))
	}
	return raw
}

// EncodeOpenOrders serializes an open-orders account.
func EncodeOpenOrders(rec domain.OpenOrderRecord) []byte {
	raw := make([]byte, openOrdersAccountSize)
	copy(raw, openOrdersDiscriminator[:])
	copy(raw[openOrdersOwnerOff:], rec.Owner[:])
	copy(raw[openOrdersMarketOff:], rec.Market[:])
	binary.LittleEndian.PutUint32(raw[openOrdersAccountNumOff:], rec.AccountNum)
	binary.LittleEndian.PutUint64(raw[openOrdersBaseFreeOff:], rec.BaseFree)
	binary.LittleEndian.PutUint64(raw[openOrdersQuoteFreeOff:], rec.QuoteFree)
	return raw
}

// EncodeEventQueue serializes an event queue header with the given count.
func EncodeEventQueue(count uint32) []byte {
	raw := make([]byte, eventQueueHeaderLen)
	copy(raw, eventQueueDiscriminator[:])
	binary.LittleEndian.PutUint32(raw[eventQueueCountOff:], count)
	return raw
}

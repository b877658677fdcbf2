package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"clob_go/internal/book"
	"clob_go/internal/domain"
)

// MalformedAccountError reports account bytes that do not match the expected
// record layout. It is fatal for the refresh cycle that hit it: the previous
// snapshot must be kept and the failure surfaced distinctly from a fetch
// failure.
type MalformedAccountError struct {
	Record string
	Reason string
}

func (e *MalformedAccountError) Error() string {
	return fmt.Sprintf("malformed %s account: %s", e.Record, e.Reason)
}

func malformed(record, format string, args ...any) error {
	return &MalformedAccountError{Record: record, Reason: fmt.Sprintf(format, args...)}
}

func checkDiscriminator(record string, raw []byte, want [8]byte) error {
	if len(raw) < discriminatorLen {
		return malformed(record, "short account: %d bytes", len(raw))
	}
	if !bytes.Equal(raw[:discriminatorLen], want[:]) {
		return malformed(record, "discriminator mismatch")
	}
	return nil
}

func addressAt(raw []byte, off int) domain.Address {
	var a domain.Address
	copy(a[:], raw[off:off+32])
	return a
}

// DecodeMarket decodes a market account snapshot.
func DecodeMarket(addr domain.Address, raw []byte) (domain.Market, error) {
	if err := checkDiscriminator("market", raw, marketDiscriminator); err != nil {
		return domain.Market{}, err
	}
	if len(raw) != marketAccountSize {
		return domain.Market{}, malformed("market", "size %d, want %d", len(raw), marketAccountSize)
	}

	name := raw[marketNameOff : marketNameOff+16]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}

	return domain.Market{
		Address:           addr,
		Name:              string(name),
		Bids:              addressAt(raw, marketBidsOff),
		Asks:              addressAt(raw, marketAsksOff),
		EventQueue:        addressAt(raw, marketEventQueueOff),
		BaseMint:          addressAt(raw, marketBaseMintOff),
		QuoteMint:         addressAt(raw, marketQuoteMintOff),
		BaseVault:         addressAt(raw, marketBaseVaultOff),
		QuoteVault:        addressAt(raw, marketQuoteVaultOff),
		BaseDecimals:      raw[marketBaseDecOff],
		QuoteDecimals:     raw[marketQuoteDecOff],
		BaseLotSize:       binary.LittleEndian.Uint64(raw[marketBaseLotOff:]),
		QuoteLotSize:      binary.LittleEndian.Uint64(raw[marketQuoteLotOff:]),
		BaseDepositTotal:  binary.LittleEndian.Uint64(raw[marketBaseDepositOff:]),
		QuoteDepositTotal: binary.LittleEndian.Uint64(raw[marketQuoteDepositOff:]),
		TakerFeeMicros:    int64(binary.LittleEndian.Uint64(raw[marketTakerFeeOff:])),
		MakerFeeMicros:    int64(binary.LittleEndian.Uint64(raw[marketMakerFeeOff:])),
	}, nil
}

// DecodeBookSide decodes a bid or ask account into the leaf orders resting
// on it. Free and inner slots are skipped, never emitted as zero-price
// levels; an unknown slot tag or a size that does not divide into whole
// slots is malformed.
func DecodeBookSide(raw []byte) ([]book.LeafOrderRecord, error) {
	if err := checkDiscriminator("bookSide", raw, bookSideDiscriminator); err != nil {
		return nil, err
	}
	if len(raw) < bookSideHeaderSize {
		return nil, malformed("bookSide", "short header: %d bytes", len(raw))
	}
	body := raw[bookSideHeaderSize:]
	if len(body)%slotSize != 0 {
		return nil, malformed("bookSide", "body size %d not a multiple of slot size %d", len(body), slotSize)
	}

	wantLeaves := binary.LittleEndian.Uint32(raw[bookSideLeafCountOff:])

	var records []book.LeafOrderRecord
	for off := 0; off < len(body); off += slotSize {
		slot := body[off : off+slotSize]
		switch slot[slotTagOff] {
		case tagFree, tagInner:
			continue
		case tagLeaf:
			var keyBytes [16]byte
			copy(keyBytes[:], slot[slotKeyOff:slotKeyOff+16])
			qty := int64(binary.LittleEndian.Uint64(slot[slotQtyOff:]))
			if qty < 0 {
				return nil, malformed("bookSide", "negative quantity %d in slot %d", qty, off/slotSize)
			}
			records = append(records, book.LeafOrderRecord{
				Key:      book.KeyFromBytes(keyBytes),
				Quantity: qty,
			})
		default:
			return nil, malformed("bookSide", "unknown slot tag %d in slot %d", slot[slotTagOff], off/slotSize)
		}
	}

	if uint32(len(records)) != wantLeaves {
		return nil, malformed("bookSide", "header says %d leaves, found %d", wantLeaves, len(records))
	}
	return records, nil
}

// DecodeOpenOrders decodes one open-orders account.
func DecodeOpenOrders(addr domain.Address, raw []byte) (domain.OpenOrderRecord, error) {
	if err := checkDiscriminator("openOrdersAccount", raw, openOrdersDiscriminator); err != nil {
		return domain.OpenOrderRecord{}, err
	}
	if len(raw) != openOrdersAccountSize {
		return domain.OpenOrderRecord{}, malformed("openOrdersAccount", "size %d, want %d", len(raw), openOrdersAccountSize)
	}
	return domain.OpenOrderRecord{
		Address:    addr,
		Owner:      addressAt(raw, openOrdersOwnerOff),
		Market:     addressAt(raw, openOrdersMarketOff),
		AccountNum: binary.LittleEndian.Uint32(raw[openOrdersAccountNumOff:]),
		BaseFree:   binary.LittleEndian.Uint64(raw[openOrdersBaseFreeOff:]),
		QuoteFree:  binary.LittleEndian.Uint64(raw[openOrdersQuoteFreeOff:]),
	}, nil
}

// DecodeEventQueueCount reads the unconsumed event count from an event queue
// account header.
func DecodeEventQueueCount(raw []byte) (uint32, error) {
	if err := checkDiscriminator("eventQueue", raw, eventQueueDiscriminator); err != nil {
		return 0, err
	}
	if len(raw) < eventQueueHeaderLen {
		return 0, malformed("eventQueue", "short header: %d bytes", len(raw))
	}
	return binary.LittleEndian.Uint32(raw[eventQueueCountOff:]), nil
}

package codec

// Account layouts, all little-endian. Every account opens with an 8-byte
// record discriminator identifying the record type.

const discriminatorLen = 8

var (
	marketDiscriminator     = [8]byte{'c', 'l', 'o', 'b', 'm', 'r', 'k', 't'}
	bookSideDiscriminator   = [8]byte{'c', 'l', 'o', 'b', 's', 'i', 'd', 'e'}
	openOrdersDiscriminator = [8]byte{'c', 'l', 'o', 'b', 'o', 'o', 'r', 'd'}
	eventQueueDiscriminator = [8]byte{'c', 'l', 'o', 'b', 'e', 'v', 't', 'q'}
)

// Market account: header, seven account references, decimals, lot sizes,
// deposit totals and fee rates.
const (
	marketNameOff       = 8 // 16 bytes, NUL padded
	marketBidsOff       = 24
	marketAsksOff       = 56
	marketEventQueueOff = 88
	marketBaseMintOff   = 120
	marketQuoteMintOff  = 152
	marketBaseVaultOff  = 184
	marketQuoteVaultOff = 216
	marketBaseDecOff    = 248
	marketQuoteDecOff   = 249
	// 6 bytes padding
	marketBaseLotOff      = 256
	marketQuoteLotOff     = 264
	marketBaseDepositOff  = 272
	marketQuoteDepositOff = 280
	marketTakerFeeOff     = 288
	marketMakerFeeOff     = 296

	marketAccountSize = 304
)

// Book side account: a fixed-capacity slab of 64-byte node slots after a
// 16-byte header. The header carries the expected leaf count; each slot
// starts with a tag byte marking it free, inner or leaf.
const (
	bookSideHeaderSize   = 16
	bookSideLeafCountOff = 8 // u32

	slotSize     = 64
	slotTagOff   = 0 // u8, then 7 bytes padding
	slotKeyOff   = 8 // u128
	slotOwnerOff = 24
	slotQtyOff   = 56 // i64
)

// Node slot tags.
const (
	tagFree  = 0
	tagInner = 1
	tagLeaf  = 2
)

// Open orders account.
const (
	openOrdersOwnerOff      = 8
	openOrdersMarketOff     = 40
	openOrdersAccountNumOff = 72 // u32, then 4 bytes padding
	openOrdersBaseFreeOff   = 80
	openOrdersQuoteFreeOff  = 88

	openOrdersAccountSize = 96
)

// MemcmpOwnerOffset and MemcmpMarketOffset are the byte offsets used to
// filter a program-account scan down to one owner on one market.
const (
	MemcmpOwnerOffset  = openOrdersOwnerOff
	MemcmpMarketOffset = openOrdersMarketOff
)

// Event queue account: only the header is decoded client-side; the fill
// count drives the crank affordance.
const (
	eventQueueCountOff  = 8 // u32
	eventQueueHeadOff   = 12
	eventQueueHeaderLen = 16
)

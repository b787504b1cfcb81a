package pager

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// ───────────────────────────────────────────────────────────────────────────
// Header — Page 0
// ───────────────────────────────────────────────────────────────────────────
//
// Page 0 is special-cased: it does not begin with the common PageHeader
// that every other page type carries (type tag, flags, page ID, LSN). It
// opens directly with a literal magic string so that an external tool (or a
// human with a hex dump) can identify a tinydb file without understanding
// the rest of the format.
//
//  Offset  Size  Field
//  ──────  ────  ───────────────────
//  0       7     Magic            "TINYDB\x00"
//  7       1     FormatVersion    uint8
//  8       8     Reserved0        [8]byte (zero-filled)
//  16      4     PageSize         uint32 LE
//  20      8     PageCount        uint64 LE  (total pages in file)
//  28      4     FreePageHead     uint32 LE  (PageID of free-list head)
//  32      8     CheckpointLSN    uint64 LE
//  40      4     CatalogRoot      uint32 LE  (PageID of the catalog page)
//  44      4     AutoincrementRoot uint32 LE (always InvalidPageID; counter trees are rooted per table in the catalog)
//  48      8     NextTxID         uint64 LE
//  56      4     NextPageID       uint32 LE
//  60      8     FeatureFlags     uint64 LE
//  68      16    SessionID        [16]byte (random UUID, set on every Open)
//  84      4     CRC32            uint32 LE (whole page, this field zeroed)
//  88      —     Reserved         zero-filled to end of page

const (
	// HeaderMagic identifies a valid tinydb database file.
	HeaderMagic = "TINYDB\x00"

	// CurrentFormatVersion is the on-disk format version.
	CurrentFormatVersion uint8 = 1

	hdrMagicOff         = 0
	hdrFormatVersionOff = 7
	hdrReserved0Off     = 8
	hdrPageSizeOff      = 16
	hdrPageCountOff     = 20
	hdrFreePageHeadOff  = 28
	hdrCheckpointLSNOff = 32
	hdrCatalogRootOff   = 40
	hdrAutoincRootOff   = 44
	hdrNextTxIDOff      = 48
	hdrNextPageIDOff    = 56
	hdrFeatureFlagsOff  = 60
	hdrSessionIDOff     = 68
	hdrCRCOff           = 84
	// HeaderFixedSize is the number of bytes of page 0 occupied by fixed
	// fields; the remainder up to PageSize is reserved and zero-filled.
	HeaderFixedSize = 88
)

// FeatureFlag bits (bitmask). Version 1 has no flags set.
const (
	FeatureCompression FeatureFlag = 1 << iota // reserved: page-level compression
	FeatureEncryption                          // reserved: page-level encryption
	FeatureMVCC                                // reserved: multi-version concurrency
	FeaturePartitions                          // reserved: range partitioning
)

// FeatureFlag is a bitmask of optional format features.
type FeatureFlag uint64

// SupportedFeatures is the set of features understood by this build.
// Any flag outside of this set causes the file to be rejected.
const SupportedFeatures FeatureFlag = 0 // v1: none

// Header holds the parsed contents of page 0.
type Header struct {
	FormatVersion uint8
	PageSize      uint32
	PageCount     uint64
	FreePageHead  PageID
	CheckpointLSN LSN
	CatalogRoot   PageID
	AutoincRoot   PageID
	NextTxID      TxID
	NextPageID    PageID
	FeatureFlags  FeatureFlag
	SessionID     [16]byte
}

// computeHeaderCRC computes the CRC32-C of a header page, treating the CRC
// field as zero during computation. Page 0 does not share the common
// PageHeader's CRC placement, so it gets its own helper rather than reusing
// ComputePageCRC.
func computeHeaderCRC(page []byte) uint32 {
	h := crc32.New(crcTable)
	h.Write(page[:hdrCRCOff])
	h.Write([]byte{0, 0, 0, 0})
	h.Write(page[hdrCRCOff+4:])
	return h.Sum32()
}

// MarshalHeaderPage serializes a Header into a full page buffer.
func MarshalHeaderPage(hdr *Header, pageSize int) []byte {
	buf := make([]byte, pageSize)

	copy(buf[hdrMagicOff:hdrMagicOff+7], HeaderMagic)
	buf[hdrFormatVersionOff] = hdr.FormatVersion
	// hdrReserved0Off..hdrPageSizeOff stays zero.

	binary.LittleEndian.PutUint32(buf[hdrPageSizeOff:], hdr.PageSize)
	binary.LittleEndian.PutUint64(buf[hdrPageCountOff:], hdr.PageCount)
	binary.LittleEndian.PutUint32(buf[hdrFreePageHeadOff:], uint32(hdr.FreePageHead))
	binary.LittleEndian.PutUint64(buf[hdrCheckpointLSNOff:], uint64(hdr.CheckpointLSN))
	binary.LittleEndian.PutUint32(buf[hdrCatalogRootOff:], uint32(hdr.CatalogRoot))
	binary.LittleEndian.PutUint32(buf[hdrAutoincRootOff:], uint32(hdr.AutoincRoot))
	binary.LittleEndian.PutUint64(buf[hdrNextTxIDOff:], uint64(hdr.NextTxID))
	binary.LittleEndian.PutUint32(buf[hdrNextPageIDOff:], uint32(hdr.NextPageID))
	binary.LittleEndian.PutUint64(buf[hdrFeatureFlagsOff:], uint64(hdr.FeatureFlags))
	copy(buf[hdrSessionIDOff:hdrSessionIDOff+16], hdr.SessionID[:])

	crc := computeHeaderCRC(buf)
	binary.LittleEndian.PutUint32(buf[hdrCRCOff:], crc)
	return buf
}

// UnmarshalHeaderPage decodes page 0 from buf. It validates magic bytes,
// format version, CRC, and feature flags.
func UnmarshalHeaderPage(buf []byte) (*Header, error) {
	if len(buf) < MinPageSize {
		return nil, fmt.Errorf("header page too small: %d bytes", len(buf))
	}
	stored := binary.LittleEndian.Uint32(buf[hdrCRCOff:])
	computed := computeHeaderCRC(buf)
	if stored != computed {
		return nil, fmt.Errorf("header CRC mismatch: stored=%08x computed=%08x", stored, computed)
	}
	magic := string(buf[hdrMagicOff : hdrMagicOff+7])
	if magic != HeaderMagic {
		return nil, fmt.Errorf("bad magic %q, expected %q", magic, HeaderMagic)
	}

	hdr := &Header{
		FormatVersion: buf[hdrFormatVersionOff],
		PageSize:      binary.LittleEndian.Uint32(buf[hdrPageSizeOff:]),
		PageCount:     binary.LittleEndian.Uint64(buf[hdrPageCountOff:]),
		FreePageHead:  PageID(binary.LittleEndian.Uint32(buf[hdrFreePageHeadOff:])),
		CheckpointLSN: LSN(binary.LittleEndian.Uint64(buf[hdrCheckpointLSNOff:])),
		CatalogRoot:   PageID(binary.LittleEndian.Uint32(buf[hdrCatalogRootOff:])),
		AutoincRoot:   PageID(binary.LittleEndian.Uint32(buf[hdrAutoincRootOff:])),
		NextTxID:      TxID(binary.LittleEndian.Uint64(buf[hdrNextTxIDOff:])),
		NextPageID:    PageID(binary.LittleEndian.Uint32(buf[hdrNextPageIDOff:])),
		FeatureFlags:  FeatureFlag(binary.LittleEndian.Uint64(buf[hdrFeatureFlagsOff:])),
	}
	copy(hdr.SessionID[:], buf[hdrSessionIDOff:hdrSessionIDOff+16])

	if hdr.FormatVersion != CurrentFormatVersion {
		return nil, fmt.Errorf("unsupported format version %d (this build supports %d)",
			hdr.FormatVersion, CurrentFormatVersion)
	}
	if hdr.PageSize < MinPageSize || hdr.PageSize > MaxPageSize {
		return nil, fmt.Errorf("page size %d out of range [%d..%d]",
			hdr.PageSize, MinPageSize, MaxPageSize)
	}
	if hdr.PageSize&(hdr.PageSize-1) != 0 {
		return nil, fmt.Errorf("page size %d is not a power of two", hdr.PageSize)
	}
	if hdr.FeatureFlags & ^SupportedFeatures != 0 {
		return nil, fmt.Errorf("unsupported feature flags: %016x", hdr.FeatureFlags)
	}

	return hdr, nil
}

// NewHeader creates a default Header for a new database.
func NewHeader(pageSize uint32, sessionID [16]byte) *Header {
	return &Header{
		FormatVersion: CurrentFormatVersion,
		PageSize:      pageSize,
		PageCount:     1, // only the header page so far
		FreePageHead:  InvalidPageID,
		CheckpointLSN: 0,
		CatalogRoot:   InvalidPageID,
		AutoincRoot:   InvalidPageID,
		NextTxID:      1,
		NextPageID:    1, // page 0 is the header
		FeatureFlags:  0,
		SessionID:     sessionID,
	}
}

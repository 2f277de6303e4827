package meagerdb

import (
	"github.com/fpgaminer/meagerdb-go/internal/ciphersuite"
	"github.com/fpgaminer/meagerdb-go/internal/packing"
)

// On-disk constants shared across the header, journal, and row layouts.
// The header and parameters-block field offsets live here; the row header
// offsets are in row.go and the journal slot fields in journal.go.
const (
	magic = "MEAGERDB"

	// versionLow and versionHigh are the two bytes of the on-disk version
	// field, 0x0100 stored little-endian (byte 0 = 0x00, byte 1 = 0x01).
	versionLow  = 0x00
	versionHigh = 0x01

	// DefaultPageSize is the page size Create always uses.
	DefaultPageSize = 256
	// MaxPageSize bounds how large a page may be; it keeps the single
	// scratch buffer's size bounded for RAM-constrained hosts.
	MaxPageSize = 4096
	// MinPageSize is the smallest page size that can hold a full header,
	// tag, and at least one cipher block of payload.
	MinPageSize = 256

	// rowHeaderSize is the 13-byte row header: page_count(4) + rowid(4) +
	// tableid(1) + valuelen(4).
	rowHeaderSize = 13

	tagSize = ciphersuite.TagSize // 32

	headerContentSize = 8 + 2 + 4 + 32 + 32 + 32 // magic+version+pagesize+dbid+suite+hash = 110
	headerHashOffset  = 8 + 2 + 4 + 32 + 32       // 78
	headerDBIDOffset  = 8 + 2 + 4                 // 14
	headerSuiteOffset = 8 + 2 + 4 + 32            // 46
	headerPageSzOff   = 8 + 2                     // 10

	// paramsContentSize is salt(64)+kdfname(32)+kdfparams(32)+contentkeys(128)+mac(32)+hash(32) = 320.
	paramsContentSize  = 64 + 32 + 32 + 128 + 32 + 32
	paramsSaltOffset   = 0
	paramsKDFNameOff   = 64
	paramsKDFParamsOff = 96
	paramsKeysOffset   = 128
	paramsMACOffset    = 256
	paramsHashOffset   = 288
	paramsHashedSize   = paramsMACOffset // hash covers bytes [0:256), excluding MAC and itself.
	paramsMACedSize    = paramsMACOffset // MAC input is headerHash(32) ++ params[0:256).

	journalSlot0 = 0
	journalSlot1 = 1
	firstPage    = 2
)

func roundUpU32(num, mod uint32, fatal func(string)) uint32 {
	return packing.RoundUpUint32(num, mod, fatal)
}

// realPageSize computes floor((pageSize-32)/64)*64, the usable plaintext
// payload per page.
func realPageSize(pageSize uint32) uint32 {
	return ((pageSize - tagSize) / ciphersuite.BlockSize) * ciphersuite.BlockSize
}

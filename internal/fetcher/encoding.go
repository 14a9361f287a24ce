package fetcher

import (
	"log/slog"

	"golang.org/x/text/encoding/korean"
)

// DecodeEUCKR decodes an upstream page body from EUC-KR into UTF-8.
// The upstream source serves EUC-KR regardless of Accept-Charset. If
// decoding fails the raw bytes are interpreted as UTF-8 instead of
// failing the request: structural markup is ASCII and still parses
// even when the labels corrupt.
func DecodeEUCKR(raw []byte) string {
	decoded, err := korean.EUCKR.NewDecoder().Bytes(raw)
	if err != nil {
		slog.Warn("euc-kr decoding failed, falling back to utf-8", "error", err)
		return string(raw)
	}
	return string(decoded)
}

package z3950

import (
	"bytes"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/transform"
)

// legacyEncodings are tried in order on non-UTF-8 field data. EUC-KR comes
// first since most targets we query are Korean.
var legacyEncodings = []encoding.Encoding{
	korean.EUCKR,
	simplifiedchinese.GBK,
	traditionalchinese.Big5,
	japanese.ShiftJIS,
	japanese.EUCJP,
}

// DecodeText converts MARC field bytes to UTF-8. Data that is already valid
// UTF-8 is returned unchanged; otherwise the first legacy CJK encoding that
// decodes without replacement characters wins, then charset detection.
func DecodeText(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if utf8.Valid(data) {
		return string(data)
	}

	for _, enc := range legacyEncodings {
		if s, ok := decodeClean(data, enc); ok {
			return s
		}
	}

	if enc, _, _ := charset.DetermineEncoding(data, ""); enc != nil {
		if s, ok := decodeClean(data, enc); ok {
			return s
		}
	}
	return string(data)
}

func decodeClean(data []byte, enc encoding.Encoding) (string, bool) {
	d, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), enc.NewDecoder()))
	if err != nil {
		return "", false
	}
	s := string(d)
	return s, !strings.ContainsRune(s, utf8.RuneError)
}

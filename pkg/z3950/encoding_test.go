package z3950

import (
	"bytes"
	"io"
	"testing"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

func TestDecodeText(t *testing.T) {
	utf8Str := "해리 포터와 마법사의 돌"
	if got := DecodeText([]byte(utf8Str)); got != utf8Str {
		t.Errorf("UTF-8 decode failed. Got %q, want %q", got, utf8Str)
	}

	korStr := "해리 포터와 비밀의 방"
	if got := DecodeText(encodeTo(t, korStr, korean.EUCKR)); got != korStr {
		t.Errorf("EUC-KR decode failed. Got %q, want %q", got, korStr)
	}

	if got := DecodeText(nil); got != "" {
		t.Errorf("Empty decode failed. Got %q", got)
	}
	if got := DecodeText([]byte("abc")); got != "abc" {
		t.Errorf("ASCII decode failed. Got %q", got)
	}
}

func TestDecodeText_NotKorean(t *testing.T) {
	// GBK bytes for this sentence are not valid EUC-KR, so decoding falls
	// through to GBK.
	gbkStr := "这是一个测试句子，用于验证GBK编码的自动识别功能。"
	b := encodeTo(t, gbkStr, simplifiedchinese.GBK)
	got := DecodeText(b)
	if got == string(b) {
		t.Errorf("GBK bytes were returned undecoded: %x", b)
	}
}

func encodeTo(t *testing.T, s string, enc encoding.Encoding) []byte {
	t.Helper()
	b, err := io.ReadAll(transform.NewReader(bytes.NewReader([]byte(s)), enc.NewEncoder()))
	if err != nil {
		t.Fatalf("encode %q: %v", s, err)
	}
	return b
}

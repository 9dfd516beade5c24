package embedding

import (
	"reflect"
	"strings"
	"testing"
)

const testVocab = "[PAD]\n[UNK]\n[CLS]\n[SEP]\nreport\nphish\n##ing\nemail\n.\nthe\n"

func TestWordPieceTokenizer_Tokenize(t *testing.T) {
	tok, err := NewWordPieceTokenizer(strings.NewReader(testVocab))
	if err != nil {
		t.Fatal(err)
	}

	ids, attn, types := tok.Tokenize("Report the PHISHING email. zzz", 12)
	want := []int64{2, 4, 9, 5, 6, 7, 8, 1, 3, 0, 0, 0}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
	wantAttn := []int64{1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0}
	if !reflect.DeepEqual(attn, wantAttn) {
		t.Errorf("attention = %v, want %v", attn, wantAttn)
	}
	if len(types) != 12 {
		t.Errorf("len(types) = %d", len(types))
	}
}

func TestWordPieceTokenizer_Truncates(t *testing.T) {
	tok, _ := NewWordPieceTokenizer(strings.NewReader(testVocab))
	ids, attn, _ := tok.Tokenize(strings.Repeat("email ", 50), 6)
	want := []int64{2, 7, 7, 7, 7, 3}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("ids = %v, want %v", ids, want)
	}
	for i, a := range attn {
		if a != 1 {
			t.Errorf("attention[%d] = %d", i, a)
		}
	}
}

func TestNewWordPieceTokenizer_Empty(t *testing.T) {
	if _, err := NewWordPieceTokenizer(strings.NewReader("")); err == nil {
		t.Error("expected error for empty vocab")
	}
}

func TestHashTokenizer(t *testing.T) {
	var tok HashTokenizer
	ids, attn, _ := tok.Tokenize("hello world", 10)
	if len(ids) != 10 || ids[0] != clsID || ids[3] != sepID {
		t.Errorf("ids = %v", ids)
	}
	if attn[3] != 1 || attn[4] != 0 {
		t.Errorf("attention = %v", attn)
	}
	again, _, _ := tok.Tokenize("HELLO world", 10)
	if !reflect.DeepEqual(ids, again) {
		t.Error("hash tokenizer should be case-insensitive and deterministic")
	}
}

func TestBasicTokens(t *testing.T) {
	got := basicTokens("  Café, OTP!\tok ")
	want := []string{"cafe", ",", "otp", "!", "ok"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

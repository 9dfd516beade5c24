package embedding

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Tokenizer produces BERT-style model inputs padded to maxTokens.
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64)
}

const (
	clsID int64 = 101
	sepID int64 = 102
	unkID int64 = 100

	maxWordChars = 100
)

// WordPieceTokenizer implements uncased BERT tokenization over a vocab.txt file,
// the format shipped with all-MiniLM-L6-v2.
type WordPieceTokenizer struct {
	vocab map[string]int64
	cls   int64
	sep   int64
	unk   int64
}

// LoadWordPieceTokenizer reads a one-token-per-line vocabulary file.
func LoadWordPieceTokenizer(path string) (*WordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()
	return NewWordPieceTokenizer(f)
}

// NewWordPieceTokenizer builds a tokenizer from vocabulary lines; line n has ID n.
func NewWordPieceTokenizer(r io.Reader) (*WordPieceTokenizer, error) {
	vocab := make(map[string]int64)
	sc := bufio.NewScanner(r)
	var id int64
	for sc.Scan() {
		vocab[strings.TrimRight(sc.Text(), "\r")] = id
		id++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("empty vocab")
	}
	t := &WordPieceTokenizer{vocab: vocab, cls: clsID, sep: sepID, unk: unkID}
	if v, ok := vocab["[CLS]"]; ok {
		t.cls = v
	}
	if v, ok := vocab["[SEP]"]; ok {
		t.sep = v
	}
	if v, ok := vocab["[UNK]"]; ok {
		t.unk = v
	}
	return t, nil
}

// Tokenize lowercases, splits on whitespace and punctuation, then applies greedy
// longest-match-first WordPiece. Output is [CLS] tokens [SEP] followed by padding.
func (t *WordPieceTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	ids := make([]int64, 0, maxTokens)
	for _, word := range basicTokens(text) {
		ids = append(ids, t.wordPiece(word)...)
		if len(ids) >= maxTokens-2 {
			break
		}
	}
	return pack(ids, t.cls, t.sep, maxTokens)
}

func (t *WordPieceTokenizer) wordPiece(word string) []int64 {
	runes := []rune(word)
	if len(runes) > maxWordChars {
		return []int64{t.unk}
	}
	var out []int64
	for start := 0; start < len(runes); {
		end := len(runes)
		var id int64 = -1
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if v, ok := t.vocab[piece]; ok {
				id = v
				break
			}
			end--
		}
		if id < 0 {
			return []int64{t.unk}
		}
		out = append(out, id)
		start = end
	}
	return out
}

// basicTokens lowercases text, strips accents and splits punctuation into separate tokens.
func basicTokens(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range norm.NFD.String(strings.ToLower(text)) {
		switch {
		case unicode.IsSpace(r) || unicode.IsControl(r):
			flush()
		case unicode.Is(unicode.Mn, r):
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			tokens = append(tokens, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

// HashTokenizer maps whitespace-separated words to hashed IDs. It is used when no
// vocabulary file is configured; embeddings are then only self-consistent.
type HashTokenizer struct{}

// Tokenize hashes each word into the BERT vocabulary range.
func (HashTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	var ids []int64
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if len(ids) >= maxTokens-2 {
			break
		}
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		ids = append(ids, 1000+int64(h.Sum32()%29000))
	}
	return pack(ids, clsID, sepID, maxTokens)
}

func pack(ids []int64, cls, sep int64, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64) {
	if maxTokens < 2 {
		maxTokens = 2
	}
	if len(ids) > maxTokens-2 {
		ids = ids[:maxTokens-2]
	}
	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)

	inputIDs[0] = cls
	copy(inputIDs[1:], ids)
	inputIDs[len(ids)+1] = sep
	for i := 0; i < len(ids)+2; i++ {
		attentionMask[i] = 1
	}
	return inputIDs, attentionMask, tokenTypeIDs
}

// Package guard flags questions that ask for one-time codes, PINs, passwords or
// verification codes.
package guard

import "strings"

// Keyword is a credential term and the language it belongs to.
type Keyword struct {
	Term string
	Lang string
}

// DefaultKeywords is matched as case-folded substrings, so it over-matches on purpose.
var DefaultKeywords = []Keyword{
	{"otp", "en"},
	{"one time password", "en"},
	{"verification code", "en"},
	{"2fa", "en"},
	{"pin", "en"},
	{"password", "en"},
	{"passcode", "en"},

	{"kode verifikasi", "id"},
	{"kode otp", "id"},
	{"kata sandi", "id"},
	{"sandi", "id"},
	{"pin atm", "id"},
	{"kode sms", "id"},
	{"kode 2fa", "id"},
	{"kode autentikasi", "id"},
}

// Detection describes the first keyword found in a question.
type Detection struct {
	Matched bool
	Keyword string
	Lang    string
}

// Detector checks questions against a fixed keyword table.
type Detector struct {
	keywords []Keyword
}

// NewDetector returns a detector over DefaultKeywords plus any extra terms.
// Extra terms are tagged "custom".
func NewDetector(extra ...string) *Detector {
	kws := make([]Keyword, 0, len(DefaultKeywords)+len(extra))
	kws = append(kws, DefaultKeywords...)
	for _, term := range extra {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		kws = append(kws, Keyword{Term: term, Lang: "custom"})
	}
	return &Detector{keywords: kws}
}

// Detect reports the first keyword contained in the question.
func (d *Detector) Detect(question string) Detection {
	q := strings.ToLower(question)
	for _, kw := range d.keywords {
		if strings.Contains(q, kw.Term) {
			return Detection{Matched: true, Keyword: kw.Term, Lang: kw.Lang}
		}
	}
	return Detection{}
}

// IsCredentialRequest reports whether the question contains any keyword.
func (d *Detector) IsCredentialRequest(question string) bool {
	return d.Detect(question).Matched
}

// Keywords returns a copy of the detector's table.
func (d *Detector) Keywords() []Keyword {
	out := make([]Keyword, len(d.keywords))
	copy(out, d.keywords)
	return out
}

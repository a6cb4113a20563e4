package spam

import (
	"strings"
	"testing"
)

func hasToken(tokens []string, want string) bool {
	for _, tok := range tokens {
		if tok == want {
			return true
		}
	}
	return false
}

func TestTokenizeWords(t *testing.T) {
	tok := NewTokenizer()

	tests := []struct {
		name    string
		subject string
		body    string
		want    []string
		exclude []string
	}{
		{
			name:    "subject words are prefixed",
			subject: "Meeting tomorrow",
			body:    "the agenda is attached",
			want:    []string{"SUBJ_meeting", "SUBJ_tomorrow", "agenda", "attached"},
			exclude: []string{"meeting", "the", "is"},
		},
		{
			name:    "stop words and short words dropped",
			body:    "a ab the xyz",
			want:    []string{"ab", "xyz"},
			exclude: []string{"a", "the"},
		},
		{
			name:    "html tags stripped",
			body:    "<p>Hello <b>world</b></p>",
			want:    []string{"hello", "world"},
			exclude: []string{"p", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tok.Tokenize(tt.subject, tt.body, "", nil)
			for _, w := range tt.want {
				if !hasToken(got, w) {
					t.Errorf("Tokenize() missing token %q, got %v", w, got)
				}
			}
			for _, e := range tt.exclude {
				if hasToken(got, e) {
					t.Errorf("Tokenize() contains unwanted token %q", e)
				}
			}
		})
	}
}

func TestTokenizeTruncatesLongWords(t *testing.T) {
	tok := NewTokenizer()

	long := strings.Repeat("x", 60)
	got := tok.Tokenize("", long, "", nil)

	if !hasToken(got, strings.Repeat("x", 50)) {
		t.Errorf("Tokenize() did not truncate %d-char word to 50, got %v", len(long), got)
	}
}

func TestTokenizeSpecialPatterns(t *testing.T) {
	tok := NewTokenizer()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"repeated exclamation", "Buy now!!!", "TOKEN_EXCLAMATION"},
		{"dollar signs", "make $$$ fast", "TOKEN_MONEY"},
		{"all caps run", "this is URGENT stuff", "TOKEN_ALLCAPS"},
		{"phone number", "call 555-123-4567 today", "TOKEN_PHONE"},
		{"click here", "just Click Here to win", "TOKEN_CLICKHERE"},
		{"act now", "ACT NOW before it ends", "TOKEN_ACTNOW"},
		{"limited time", "a limited   time offer", "TOKEN_LIMITED"},
		{"free gift", "claim your FREE GIFT", "TOKEN_FREEGIFT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tok.Tokenize("", tt.text, "", nil)
			if !hasToken(got, tt.want) {
				t.Errorf("Tokenize(%q) missing %s, got %v", tt.text, tt.want, got)
			}
		})
	}

	t.Run("mixed case words are not all caps", func(t *testing.T) {
		got := tok.Tokenize("Totally Normal Subject", "nothing shouting here", "", nil)
		if hasToken(got, "TOKEN_ALLCAPS") {
			t.Error("Tokenize() reported TOKEN_ALLCAPS for mixed-case text")
		}
	})
}

func TestTokenizeURLDomains(t *testing.T) {
	tok := NewTokenizer()

	got := tok.Tokenize("", "visit https://www.example.com/promo today", "", nil)
	if !hasToken(got, "URL_DOMAIN_example.com") {
		t.Errorf("Tokenize() missing URL domain token, got %v", got)
	}

	tok.IncludeURLs = false
	got = tok.Tokenize("", "visit https://www.example.com/promo today", "", nil)
	for _, tk := range got {
		if strings.HasPrefix(tk, "URL_DOMAIN_") {
			t.Errorf("Tokenize() produced %q with IncludeURLs disabled", tk)
		}
	}
}

func TestTokenizeSenderDomain(t *testing.T) {
	tok := NewTokenizer()

	got := tok.Tokenize("", "", "Deals <deals@offers.example.net>", nil)
	if !hasToken(got, "SENDER_DOMAIN_offers.example.net") {
		t.Errorf("Tokenize() missing sender domain token, got %v", got)
	}

	got = tok.Tokenize("", "", "not an address", nil)
	for _, tk := range got {
		if strings.HasPrefix(tk, "SENDER_DOMAIN_") {
			t.Errorf("Tokenize() produced %q for sender without address", tk)
		}
	}
}

func TestTokenizeHeaders(t *testing.T) {
	tok := NewTokenizer()

	tests := []struct {
		name    string
		headers map[string]string
		want    []string
		exclude []string
	}{
		{
			name:    "mass mailer and missing message id",
			headers: map[string]string{"X-Mailer": "PHPMailer 6.5"},
			want:    []string{"HEADER_MASSMAILER", "HEADER_NO_MESSAGEID"},
		},
		{
			name: "reply-to differs from sender",
			headers: map[string]string{
				"Message-ID": "<a@b>",
				"From":       "alice@example.com",
				"Reply-To":   "other@elsewhere.net",
			},
			want:    []string{"HEADER_REPLY_DIFFERS"},
			exclude: []string{"HEADER_NO_MESSAGEID"},
		},
		{
			name: "reply-to matches sender ignoring case",
			headers: map[string]string{
				"Message-ID": "<a@b>",
				"From":       "Alice@Example.com",
				"Reply-To":   "alice@example.com",
			},
			exclude: []string{"HEADER_REPLY_DIFFERS"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tok.Tokenize("", "", "", tt.headers)
			for _, w := range tt.want {
				if !hasToken(got, w) {
					t.Errorf("Tokenize() missing %s, got %v", w, got)
				}
			}
			for _, e := range tt.exclude {
				if hasToken(got, e) {
					t.Errorf("Tokenize() contains unwanted %s", e)
				}
			}
		})
	}

	t.Run("headers disabled", func(t *testing.T) {
		tok := NewTokenizer()
		tok.IncludeHeaders = false
		got := tok.Tokenize("", "", "", map[string]string{"X-Mailer": "PHPMailer"})
		for _, tk := range got {
			if strings.HasPrefix(tk, "HEADER_") {
				t.Errorf("Tokenize() produced %q with IncludeHeaders disabled", tk)
			}
		}
	})
}

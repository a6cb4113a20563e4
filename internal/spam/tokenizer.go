package spam

import (
	"regexp"
	"strings"
)

var (
	htmlTagPattern = regexp.MustCompile(`<[^>]+>`)
	wordPattern    = regexp.MustCompile(`\b[a-zA-Z0-9]+\b`)
	urlPattern     = regexp.MustCompile(`(?i)https?://(?:www\.)?([a-zA-Z0-9-]+(?:\.[a-zA-Z]{2,})+)`)
	emailPattern   = regexp.MustCompile(`(?i)[a-zA-Z0-9._%+-]+@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)
)

// specialPatterns turn content shapes into features of their own,
// independent of the words involved.
var specialPatterns = []struct {
	re    *regexp.Regexp
	token string
}{
	{regexp.MustCompile(`!!+`), "TOKEN_EXCLAMATION"},
	{regexp.MustCompile(`\$\$+`), "TOKEN_MONEY"},
	{regexp.MustCompile(`[A-Z]{5,}`), "TOKEN_ALLCAPS"},
	{regexp.MustCompile(`\d{3}-\d{3}-\d{4}`), "TOKEN_PHONE"},
	{regexp.MustCompile(`(?i)click\s+here`), "TOKEN_CLICKHERE"},
	{regexp.MustCompile(`(?i)act\s+now`), "TOKEN_ACTNOW"},
	{regexp.MustCompile(`(?i)limited\s+time`), "TOKEN_LIMITED"},
	{regexp.MustCompile(`(?i)free\s+gift`), "TOKEN_FREEGIFT"},
}

// stopWords are common words that carry no classification signal.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"but": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true,
	"would": true, "could": true, "should": true, "may": true,
	"might": true, "can": true, "to": true, "of": true, "in": true,
	"for": true, "on": true, "with": true, "at": true, "by": true,
	"from": true, "as": true, "into": true, "through": true,
	"during": true, "before": true, "after": true, "above": true,
	"below": true, "this": true, "that": true, "these": true,
	"those": true, "it": true, "its": true, "i": true, "me": true,
	"my": true, "we": true, "our": true, "you": true, "your": true,
	"he": true, "she": true, "they": true, "them": true, "his": true,
	"her": true, "their": true,
}

// massMailers are X-Mailer substrings typical of bulk senders.
var massMailers = []string{"phpmailer", "mailchimp", "sendgrid"}

// Tokenizer converts message content into classification features:
// normalized words, subject-prefixed words, sender and link domains,
// and pattern tokens for shapes like repeated punctuation or phone
// numbers.
type Tokenizer struct {
	// MinTokenLength drops shorter word tokens.
	MinTokenLength int

	// MaxTokenLength truncates longer word tokens.
	MaxTokenLength int

	// IncludeURLs adds a URL_DOMAIN_* token per link found.
	IncludeURLs bool

	// IncludeHeaders adds HEADER_* tokens for header anomalies.
	IncludeHeaders bool
}

// NewTokenizer returns a tokenizer with the default limits.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		MinTokenLength: 2,
		MaxTokenLength: 50,
		IncludeURLs:    true,
		IncludeHeaders: true,
	}
}

// Tokenize extracts the features of one message. Subject words are
// prefixed so the classifier weights them separately from body words.
// headers may be nil.
func (t *Tokenizer) Tokenize(subject, body, sender string, headers map[string]string) []string {
	var tokens []string

	for _, tok := range t.words(subject) {
		tokens = append(tokens, "SUBJ_"+tok)
	}
	tokens = append(tokens, t.words(body)...)

	// Pattern and URL features scan the raw text, before HTML
	// stripping, so links inside markup still count.
	fullText := subject + " " + body
	for _, p := range specialPatterns {
		if p.re.MatchString(fullText) {
			tokens = append(tokens, p.token)
		}
	}

	if t.IncludeURLs {
		for _, m := range urlPattern.FindAllStringSubmatch(fullText, -1) {
			tokens = append(tokens, "URL_DOMAIN_"+strings.ToLower(m[1]))
		}
	}

	if sender != "" {
		if m := emailPattern.FindStringSubmatch(sender); m != nil {
			tokens = append(tokens, "SENDER_DOMAIN_"+strings.ToLower(m[1]))
		}
	}

	if t.IncludeHeaders && headers != nil {
		tokens = append(tokens, t.headerTokens(headers)...)
	}

	return tokens
}

// words splits text into normalized word tokens, dropping markup,
// stop words, and words outside the configured length bounds.
func (t *Tokenizer) words(text string) []string {
	if text == "" {
		return nil
	}
	text = htmlTagPattern.ReplaceAllString(text, " ")

	var tokens []string
	for _, word := range wordPattern.FindAllString(text, -1) {
		word = strings.ToLower(word)
		if len(word) < t.MinTokenLength {
			continue
		}
		if len(word) > t.MaxTokenLength {
			word = word[:t.MaxTokenLength]
		}
		if stopWords[word] {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// headerTokens flags header shapes common in bulk mail: known mass
// mailing software, a missing Message-ID, or a Reply-To pointing away
// from the From address.
func (t *Tokenizer) headerTokens(headers map[string]string) []string {
	var tokens []string

	xMailer := strings.ToLower(headers["X-Mailer"])
	for _, mailer := range massMailers {
		if strings.Contains(xMailer, mailer) {
			tokens = append(tokens, "HEADER_MASSMAILER")
			break
		}
	}

	if headers["Message-ID"] == "" {
		tokens = append(tokens, "HEADER_NO_MESSAGEID")
	}

	replyTo := headers["Reply-To"]
	from := headers["From"]
	if replyTo != "" && from != "" && !strings.EqualFold(replyTo, from) {
		tokens = append(tokens, "HEADER_REPLY_DIFFERS")
	}

	return tokens
}

package sanitize

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Максимальная длина одного поля: грубая защита от DoS через гигантские ячейки.
const MaxFieldLength = 1000

const (
	ReasonSQL          = "input contains suspicious SQL code"
	ReasonScript       = "input contains suspicious script code"
	ReasonTraversal    = "input contains a path traversal pattern"
	ReasonCommand      = "input contains a command injection pattern"
	ReasonHeaderInject = "input contains a header injection pattern"
	ReasonTooLong      = "input exceeds the maximum allowed length"
	ReasonSpecialChars = "input contains disallowed special characters"
)

var sqlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|EXEC|UNION)\b`),
	regexp.MustCompile(`--|#|/\*|\*/`),
	regexp.MustCompile(`(?i)\bOR\b.*=.*\bOR\b`),
	regexp.MustCompile(`(?i)\bAND\b.*=.*\bAND\b`),
	regexp.MustCompile(`(?i)\bxp_cmdshell\b`),
	regexp.MustCompile(`(?i)\bsp_executesql\b`),
}

var scriptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?is)<iframe[^>]*>.*?</iframe>`),
	regexp.MustCompile(`(?is)<object[^>]*>.*?</object>`),
	regexp.MustCompile(`(?i)<embed[^>]*>`),
	regexp.MustCompile(`(?i)<link[^>]*>`),
	regexp.MustCompile(`(?i)<meta[^>]*>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)\bon[a-z]+\s*=`),
}

var headerInjectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\r?\n.*(Set-Cookie|Location|Content-Type|Cache-Control):`),
}

var traversalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.\./`),
	regexp.MustCompile(`\.\.\\`),
	regexp.MustCompile(`(?i)\.\.%2f`),
	regexp.MustCompile(`(?i)\.\.%5c`),
	regexp.MustCompile(`(?i)%2e%2e%2f`),
	regexp.MustCompile(`(?i)%2e%2e%5c`),
}

var commandPatterns = []*regexp.Regexp{
	regexp.MustCompile(`;\s*\w+`),
	regexp.MustCompile(`\|\s*\w+`),
	regexp.MustCompile(`&&\s*\w+`),
	regexp.MustCompile(`\$\(\w+\)`),
	regexp.MustCompile("`\\w+`"),
}

var alnumOnly = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Clean нормализует произвольное поле и возвращает список причин отказа.
// Пустой список причин означает, что значение безопасно. Скрининг идёт
// до HTML-экранирования, иначе разметка в паттернах никогда не совпадёт.
func Clean(raw string) (string, []string) {
	stripped := stripControl(raw)
	return html.EscapeString(stripped), screen(stripped)
}

// CleanTrackingNumber — более строгий вариант для трек-номеров:
// после общей проверки требует 6..30 символов и только буквы/цифры.
func CleanTrackingNumber(raw string) (string, []string) {
	if strings.TrimSpace(raw) == "" {
		return "", []string{"tracking number must not be empty"}
	}
	stripped := stripControl(raw)
	if reasons := screen(stripped); len(reasons) > 0 {
		return stripped, reasons
	}

	if utf8.RuneCountInString(stripped) < 6 {
		return stripped, []string{"tracking number must be at least 6 characters"}
	}
	if utf8.RuneCountInString(stripped) > 30 {
		return stripped, []string{"tracking number must be at most 30 characters"}
	}
	if !alnumOnly.MatchString(stripped) {
		return stripped, []string{"tracking number must contain only letters and digits"}
	}
	return stripped, nil
}

func stripControl(s string) string {
	cleaned := strings.TrimSpace(s)

	var b strings.Builder
	b.Grow(len(cleaned))
	for _, r := range cleaned {
		if r >= 32 || r == '\n' || r == '\t' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func screen(s string) []string {
	var reasons []string

	for _, p := range sqlPatterns {
		if p.MatchString(s) {
			reasons = append(reasons, ReasonSQL)
			break
		}
	}
	for _, p := range scriptPatterns {
		if p.MatchString(s) {
			reasons = append(reasons, ReasonScript)
			break
		}
	}
	for _, p := range traversalPatterns {
		if p.MatchString(s) {
			reasons = append(reasons, ReasonTraversal)
			break
		}
	}
	for _, p := range commandPatterns {
		if p.MatchString(s) {
			reasons = append(reasons, ReasonCommand)
			break
		}
	}
	for _, p := range headerInjectPatterns {
		if p.MatchString(s) {
			reasons = append(reasons, ReasonHeaderInject)
			break
		}
	}

	// Лимиты считаем в рунах: поля приходят и в CJK.
	if utf8.RuneCountInString(s) > MaxFieldLength {
		reasons = append(reasons, ReasonTooLong)
	}

	if strings.ContainsAny(s, `<>"';(){}[]&`) && !looksLikeTrackingNumber(s) {
		reasons = append(reasons, ReasonSpecialChars)
	}

	return reasons
}

// looksLikeTrackingNumber — эвристика: в основном буквы/цифры, разумная длина.
// Снижает ложные срабатывания на легитимных номерах перевозчиков.
func looksLikeTrackingNumber(s string) bool {
	runes := utf8.RuneCountInString(s)
	if runes < 6 || runes > 30 {
		return false
	}
	alnum := 0
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			alnum++
		}
	}
	return float64(alnum)/float64(runes) > 0.8
}

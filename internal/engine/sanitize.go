package engine

import "regexp"

// Sanitizer patterns, applied in the order spec.md §4.F mandates: digits,
// then senha (password), then cpf. Each is a pure, stateless transform.
var (
	reDigit = regexp.MustCompile(`\d`)
	// "senha" (case-insensitive) followed by ':' or '=', optional
	// whitespace, then a non-separator run.
	reSenha = regexp.MustCompile(`(?i)senha[:=]\s*[^\s,;]+`)
	// "cpf" (case-insensitive) followed by ':' or '=' and exactly 11
	// digits.
	reCPF = regexp.MustCompile(`(?i)cpf[:=]\d{11}`)
)

// Sanitize produces the PII-masked MIRROR body from real payload data
// (spec.md §4.F). It is idempotent: Sanitize(Sanitize(x)) == Sanitize(x),
// since digits are already masked and the senha/cpf replacements no longer
// match their own output.
func Sanitize(data string) string {
	data = reDigit.ReplaceAllString(data, "*")
	data = reSenha.ReplaceAllString(data, "senha=********")
	data = reCPF.ReplaceAllString(data, "cpf=***.***.***-**")
	return data
}

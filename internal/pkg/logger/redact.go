package logger

import "strings"

// RedactEmail masks a recipient address so simulation logs never carry a
// full identity. The first two characters of the local part survive when
// it is long enough to stay unidentifiable; anything unparseable is
// masked entirely.
//
//	"jordan.reyes@corp.example" → "jo***@corp.example"
//	"ab@corp.example"           → "***@corp.example"
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if len(local) <= 2 {
		return "***@" + domain
	}
	return local[:2] + "***@" + domain
}

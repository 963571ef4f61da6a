// redact — маскирование чувствительных значений в логах.
// Учётные данные (пароли, токены) в логи не попадают никогда; email
// маскируется с сохранением домена, чтобы записи оставались полезными.
package redact

import "strings"

// Email маскирует локальную часть адреса: первые две руны сохраняются,
// остальное заменяется на "***". Невалидные адреса маскируются целиком.
func Email(s string) string {
	if strings.Count(s, "@") != 1 {
		return "***"
	}

	local, domain, _ := strings.Cut(s, "@")

	runes := []rune(local)
	if len(runes) > 2 {
		local = string(runes[:2]) + "***"
	} else {
		local = "***"
	}

	return local + "@" + domain
}

func Token() string    { return "[REDACTED_TOKEN]" }
func Password() string { return "[REDACTED_PASSWORD]" }

// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: форматирование сумм GP, работа с временем и контекстом транзакций.
package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CurrencyName — название валюты в сообщениях. Переопределяется из конфига при старте.
var CurrencyName = "GP"

// FormatGP форматирует сумму с разделителями тысяч.
//
// Примеры:
//
//	FormatGP(150)     → "150 GP"
//	FormatGP(12500)   → "12,500 GP"
//	FormatGP(-1000)   → "-1,000 GP"
func FormatGP(amount int64) string {
	return fmt.Sprintf("%s %s", groupThousands(amount), CurrencyName)
}

// FormatSignedGP всегда показывает знак: +200 GP / -100 GP.
func FormatSignedGP(amount int64) string {
	if amount > 0 {
		return "+" + FormatGP(amount)
	}
	return FormatGP(amount)
}

func groupThousands(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var sb strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		sb.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + sb.String()
	}
	return sb.String()
}

// ChallengeContext формирует поле context транзакции для челленджа.
// Пустой ID → пустая строка.
func ChallengeContext(challengeID string) string {
	if challengeID == "" {
		return ""
	}
	return "challenge:" + challengeID
}

// DiscordTimestamp возвращает метку времени Discord (<t:unix:R>),
// которую клиент сам отображает в часовом поясе пользователя.
func DiscordTimestamp(t time.Time, style string) string {
	if style == "" {
		style = "f"
	}
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), style)
}

// FormatDateTime форматирует время в UTC: "2006-01-02 15:04 UTC".
// Используется в истории транзакций и в логах CLI.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04") + " UTC"
}

// Ordinal возвращает порядковое числительное: 1st, 2nd, 3rd, 11th...
func Ordinal(n int) string {
	suffix := "th"
	switch n % 100 {
	case 11, 12, 13:
	default:
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return strconv.Itoa(n) + suffix
}

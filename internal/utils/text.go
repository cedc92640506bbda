package utils

import (
	"regexp"
	"strings"
)

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// CleanText готовит текстовое поле продукта к выгрузке: вырезает HTML-теги,
// убирает запятые и кавычки (нижестоящая загрузка табличная), схлопывает
// пробелы и обрезает до maxLen символов.
func CleanText(s string, maxLen int) string {
	s = htmlTagRe.ReplaceAllString(s, " ")

	replacer := strings.NewReplacer(
		",", " ",
		"\"", " ",
		"'", " ",
		"\n", " ",
		"\r", " ",
		"\t", " ",
	)
	s = replacer.Replace(s)

	s = strings.Join(strings.Fields(s), " ")

	if maxLen > 0 && len(s) > maxLen {
		runes := []rune(s)
		if len(runes) > maxLen {
			s = string(runes[:maxLen])
		}
	}

	return strings.TrimSpace(s)
}

package slicer

import (
	"regexp"
	"strconv"
	"strings"
)

var durationPart = regexp.MustCompile(`(\d+)\s*([dhms])`)

// ParseDurationSeconds переводит человекочитаемую строку времени печати
// ("1h 30m 45s", "2d 4h", "5445") в секунды. Возвращает false, если строка
// не содержит ничего разборчивого.
func ParseDurationSeconds(s string) (int64, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, false
	}

	// голое число трактуем как секунды
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}

	matches := durationPart.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0, false
	}

	var total int64
	for _, m := range matches {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		switch m[2] {
		case "d":
			total += n * 86400
		case "h":
			total += n * 3600
		case "m":
			total += n * 60
		case "s":
			total += n
		}
	}
	return total, true
}

// parsePercent разбирает строки вида "15%" или "15" в целые проценты.
func parsePercent(s string) (int, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseFloat разбирает числовую строку с отбрасыванием пробелов.
func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// parseInt разбирает целочисленную строку, допуская дробную запись ("220.0").
func parseInt(s string) (int, bool) {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return n, true
	}
	if f, ok := parseFloat(s); ok {
		return int(f), true
	}
	return 0, false
}

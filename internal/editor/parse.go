package editor

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// parseEntero lee un entero como lo hace un input numérico del navegador:
// ignora espacios iniciales, acepta signo y toma el prefijo de dígitos.
// "12abc" -> 12, "" -> (0, false). Fuera de rango satura en los extremos
// de int, así una cantidad enorme sigue acotándose al stock.
func parseEntero(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s[:end], "+"))
	if errors.Is(err, strconv.ErrRange) {
		if s[0] == '-' {
			return math.MinInt, true
		}
		return math.MaxInt, true
	}
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseDecimal toma el prefijo numérico más largo ("5.5x" -> 5.5).
func parseDecimal(s string) (decimal.Decimal, bool) {
	s = strings.TrimLeft(s, " \t\r\n")
	end := 0
	neg := false
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		neg = s[end] == '-'
		end++
	}
	start := end
	digitos := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
		digitos++
	}
	if end < len(s) && s[end] == '.' {
		end++
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
			digitos++
		}
	}
	if digitos == 0 {
		return decimal.Zero, false
	}
	num := strings.TrimSuffix(s[start:end], ".")
	if strings.HasPrefix(num, ".") {
		num = "0" + num
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

func cantidadDe(s string) int {
	n, _ := parseEntero(s)
	return n
}

func precioDe(s string) decimal.Decimal {
	d, _ := parseDecimal(s)
	return d
}

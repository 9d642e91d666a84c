package http

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"tally/internal/core"
)

// formatAmount renders cents as a currency string, comma-separated decimals.
func formatAmount(unit string, cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	s := fmt.Sprintf("%s%d,%02d", unit, cents/100, cents%100)
	if neg {
		return "-" + s
	}
	return s
}

// sanitizeInput trims whitespace and strips control characters.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// formInt reads an integer form value, falling back when absent or invalid.
func formInt(r *http.Request, key string, fallback int) int {
	if v := strings.TrimSpace(r.Form.Get(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// formID reads an int64 id form value; zero means absent.
func formID(r *http.Request, key string) int64 {
	v := strings.TrimSpace(r.Form.Get(key))
	if v == "" {
		return 0
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// formRate reads an exchange-rate form value, defaulting to 1.
func formRate(r *http.Request, key string) float64 {
	v := strings.TrimSpace(r.Form.Get(key))
	if v == "" {
		return 1
	}
	rate, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil || rate <= 0 {
		return 1
	}
	return rate
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateCategory),
		errors.Is(err, core.ErrDuplicateFavourite):
		return http.StatusConflict
	case errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidPeriod),
		errors.Is(err, core.ErrReservedCategoryName),
		errors.Is(err, core.ErrAccountLocked),
		errors.Is(err, core.ErrAccountOutdated),
		errors.Is(err, core.ErrAccountHasFunds),
		errors.Is(err, core.ErrRecurringNotActive):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeErrorFragment(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`<div class="error">` + template.HTMLEscapeString(msg) + `</div>`))
}

func writeSuccessFragment(w http.ResponseWriter, msg string) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">` + template.HTMLEscapeString(msg) + `</div>`))
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	if err := r.ParseForm(); err != nil {
		writeErrorFragment(w, http.StatusBadRequest, "Invalid request format")
		return false
	}
	return true
}

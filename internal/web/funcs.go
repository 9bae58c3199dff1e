package web

import (
	"html/template"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/photocore/photoadmin/internal/validate"
)

// funcMap функции шаблонов
var funcMap = template.FuncMap{
	"sub": func(a, b int) int { return a - b },
	"add": func(a, b int) int { return a + b },
	"bytes": func(n int64) string {
		if n < 0 {
			n = 0
		}
		return humanize.IBytes(uint64(n))
	},
	"comma": func(n int64) string { return humanize.Comma(n) },
	"ago":   func(t time.Time) string { return humanize.Time(t) },
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("02.01.2006 15:04")
	},
	"gb": func(n int64) string {
		return strconv.FormatFloat(validate.BytesToGB(n), 'f', 2, 64)
	},
	// процент занятой квоты, 0 при неограниченной
	"percent": func(used, total int64) int {
		if total <= 0 {
			return 0
		}
		p := int(used * 100 / total)
		if p > 100 {
			p = 100
		}
		return p
	},
}

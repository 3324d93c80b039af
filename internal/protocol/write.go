package protocol

import (
	"strconv"
	"strings"
)

// Line joins an id and raw fields into one wire line. Fields are emitted
// verbatim; callers build key=value pairs with KV.
func Line(id int, fields ...string) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(id))
	for _, f := range fields {
		b.WriteByte(';')
		b.WriteString(f)
	}
	b.WriteByte('\n')
	return b.String()
}

// KV renders one key=value field.
func KV(key, value string) string { return key + "=" + value }

// KVInt renders one key=<int> field.
func KVInt(key string, value int) string { return key + "=" + strconv.Itoa(value) }

// KVInt64 renders one key=<int64> field.
func KVInt64(key string, value int64) string { return key + "=" + strconv.FormatInt(value, 10) }

// Error renders <id>;ERROR;<code>[;<detail>].
func Error(id int, code string, detail ...string) string {
	fields := append([]string{"ERROR", code}, detail...)
	return Line(id, fields...)
}

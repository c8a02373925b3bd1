package lua

import (
	"fmt"
	"math"

	lua "github.com/Shopify/go-lua"

	"github.com/aretw0/birocrat/pkg/domain"
)

// pushValue pushes a decoded JSON value onto the Lua stack. Maps become
// record tables, slices become 1-indexed array tables.
func pushValue(l *lua.State, v any) {
	switch val := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(val)
	case float64:
		l.PushNumber(val)
	case int:
		l.PushNumber(float64(val))
	case string:
		l.PushString(val)
	case []any:
		l.CreateTable(len(val), 0)
		for i, item := range val {
			pushValue(l, item)
			l.RawSetInt(-2, i+1)
		}
	case map[string]any:
		l.CreateTable(0, len(val))
		for key, item := range val {
			pushValue(l, item)
			l.SetField(-2, key)
		}
	default:
		l.PushString(fmt.Sprintf("%v", val))
	}
}

// pushAnswer pushes the Lua representation of an answer: a table tagged with
// type "text" or "options". A nil answer pushes nil for the initial poll.
func pushAnswer(l *lua.State, a *domain.Answer) {
	if a == nil {
		l.PushNil()
		return
	}
	l.CreateTable(0, 2)
	switch a.Kind {
	case domain.AnswerSelected:
		l.PushString("options")
		l.SetField(-2, "type")
		l.CreateTable(len(a.Selected), 0)
		for i, opt := range a.Selected {
			l.PushString(opt)
			l.RawSetInt(-2, i+1)
		}
		l.SetField(-2, "selected")
	default:
		l.PushString("text")
		l.SetField(-2, "type")
		l.PushString(a.Text)
		l.SetField(-2, "text")
	}
}

// luaToGo converts the Lua value at index into a plain Go value suitable for
// JSON serialization.
func luaToGo(l *lua.State, index int) any {
	switch l.TypeOf(index) {
	case lua.TypeNil:
		return nil
	case lua.TypeBoolean:
		return l.ToBoolean(index)
	case lua.TypeNumber:
		n, _ := l.ToNumber(index)
		return normalizeNumber(n)
	case lua.TypeString:
		s, _ := l.ToString(index)
		return s
	case lua.TypeTable:
		return tableToGo(l, index)
	default:
		s, _ := l.ToString(index)
		return s
	}
}

// tableToGo converts a Lua table to either a []any, when it is a dense
// 1-indexed array, or a map[string]any otherwise.
func tableToGo(l *lua.State, index int) any {
	abs := l.AbsIndex(index)

	record := map[string]any{}
	maxIndex := 0
	arrayLike := true

	l.PushNil()
	for l.Next(abs) {
		switch l.TypeOf(-2) {
		case lua.TypeNumber:
			n, _ := l.ToNumber(-2)
			if i := int(n); float64(i) == n && i >= 1 {
				if i > maxIndex {
					maxIndex = i
				}
				record[fmt.Sprintf("%d", i)] = luaToGo(l, -1)
			} else {
				arrayLike = false
				record[fmt.Sprintf("%v", normalizeNumber(n))] = luaToGo(l, -1)
			}
		case lua.TypeString:
			arrayLike = false
			key, _ := l.ToString(-2)
			record[key] = luaToGo(l, -1)
		default:
			arrayLike = false
		}
		l.Pop(1)
	}

	if arrayLike && maxIndex == len(record) {
		arr := make([]any, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			arr[i-1] = record[fmt.Sprintf("%d", i)]
		}
		return arr
	}
	return record
}

// tableToMap converts the Lua table at index into a string-keyed map,
// ignoring non-string keys.
func tableToMap(l *lua.State, index int) map[string]any {
	abs := l.AbsIndex(index)
	out := map[string]any{}
	l.PushNil()
	for l.Next(abs) {
		if l.TypeOf(-2) == lua.TypeString {
			key, _ := l.ToString(-2)
			out[key] = luaToGo(l, -1)
		}
		l.Pop(1)
	}
	return out
}

// normalizeNumber returns an int for Lua numbers with no fractional part so
// they round-trip through JSON without a decimal point.
func normalizeNumber(n float64) any {
	if math.Mod(n, 1) == 0 && !math.IsInf(n, 0) {
		return int(n)
	}
	return n
}

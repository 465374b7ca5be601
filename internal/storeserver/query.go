package storeserver

import (
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/valyala/fastjson"
)

type opKind int

const (
	opEq opKind = iota
	opNe
	opLike
	opGte
	opLte
)

var opSuffixes = []struct {
	suffix string
	kind   opKind
}{
	{"_like", opLike},
	{"_ne", opNe},
	{"_gte", opGte},
	{"_lte", opLte},
}

type condition struct {
	path   []string
	kind   opKind
	values []string
	res    []*regexp.Regexp
}

// query — разобранные параметры json-server: фильтры, q, _sort/_order, _start/_end/_limit.
type query struct {
	conds []condition
	text  string
	sorts []sortKey
	start int
	end   int
	limit int
}

type sortKey struct {
	path []string
	desc bool
}

func parseQuery(v url.Values) *query {
	q := &query{start: -1, end: -1, limit: -1}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		vals := v[key]
		switch key {
		case "q":
			q.text = strings.ToLower(vals[0])
			continue
		case "_sort":
			var orders []string
			if o := v.Get("_order"); o != "" {
				orders = strings.Split(o, ",")
			}
			for i, f := range strings.Split(vals[0], ",") {
				sk := sortKey{path: strings.Split(strings.TrimSpace(f), ".")}
				if i < len(orders) && strings.EqualFold(strings.TrimSpace(orders[i]), "desc") {
					sk.desc = true
				}
				q.sorts = append(q.sorts, sk)
			}
			continue
		case "_start":
			q.start = atoiOr(vals[0], -1)
			continue
		case "_end":
			q.end = atoiOr(vals[0], -1)
			continue
		case "_limit":
			q.limit = atoiOr(vals[0], -1)
			continue
		}
		if strings.HasPrefix(key, "_") {
			continue
		}
		c := condition{kind: opEq, values: vals}
		field := key
		for _, s := range opSuffixes {
			if strings.HasSuffix(key, s.suffix) {
				c.kind = s.kind
				field = strings.TrimSuffix(key, s.suffix)
				break
			}
		}
		c.path = strings.Split(field, ".")
		if c.kind == opLike {
			for _, val := range vals {
				re, err := regexp.Compile("(?i)" + val)
				if err != nil {
					re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(val))
				}
				c.res = append(c.res, re)
			}
		}
		q.conds = append(q.conds, c)
	}
	return q
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// textOf — строковое представление значения в духе JavaScript toString:
// массивы через запятую, объекты не сравниваются.
func textOf(v *fastjson.Value) string {
	if v == nil {
		return ""
	}
	switch v.Type() {
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return v.String()
	case fastjson.TypeTrue:
		return "true"
	case fastjson.TypeFalse:
		return "false"
	case fastjson.TypeNull:
		return "null"
	case fastjson.TypeArray:
		items := v.GetArray()
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = textOf(it)
		}
		return strings.Join(parts, ",")
	}
	return "[object Object]"
}

// compareText сравнивает числа численно, остальное лексикографически.
func compareText(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

func (c *condition) match(rec *fastjson.Value) bool {
	field := rec.Get(c.path...)
	if field == nil {
		return c.kind == opNe
	}
	text := textOf(field)
	switch c.kind {
	case opLike:
		for _, re := range c.res {
			if re.MatchString(text) {
				return true
			}
		}
		return false
	case opNe:
		for _, v := range c.values {
			if v == text {
				return false
			}
		}
		return true
	case opGte:
		return compareText(text, c.values[0]) >= 0
	case opLte:
		return compareText(text, c.values[0]) <= 0
	}
	for _, v := range c.values {
		if v == text {
			return true
		}
	}
	return false
}

// containsText ищет подстроку в любом строковом/числовом значении записи.
func containsText(v *fastjson.Value, needle string) bool {
	switch v.Type() {
	case fastjson.TypeObject:
		found := false
		o, _ := v.Object()
		o.Visit(func(_ []byte, child *fastjson.Value) {
			if !found && containsText(child, needle) {
				found = true
			}
		})
		return found
	case fastjson.TypeArray:
		for _, it := range v.GetArray() {
			if containsText(it, needle) {
				return true
			}
		}
		return false
	case fastjson.TypeString, fastjson.TypeNumber:
		return strings.Contains(strings.ToLower(textOf(v)), needle)
	}
	return false
}

func (q *query) match(rec *fastjson.Value) bool {
	for i := range q.conds {
		if !q.conds[i].match(rec) {
			return false
		}
	}
	if q.text != "" && !containsText(rec, q.text) {
		return false
	}
	return true
}

// less для sort.SliceStable; записи без поля идут в конец.
func (q *query) less(a, b *fastjson.Value) bool {
	for _, sk := range q.sorts {
		va, vb := a.Get(sk.path...), b.Get(sk.path...)
		switch {
		case va == nil && vb == nil:
			continue
		case va == nil:
			return false
		case vb == nil:
			return true
		}
		c := compareText(textOf(va), textOf(vb))
		if c == 0 {
			continue
		}
		if sk.desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

// window применяет _start/_end/_limit к n отфильтрованным записям.
func (q *query) window(n int) (int, int) {
	start, end := 0, n
	if q.start >= 0 {
		start = q.start
	}
	if q.end >= 0 {
		end = q.end
	} else if q.limit >= 0 {
		end = start + q.limit
	}
	if start > n {
		start = n
	}
	if end > n {
		end = n
	}
	if end < start {
		end = start
	}
	return start, end
}

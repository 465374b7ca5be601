package storeserver

import (
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/valyala/fastjson"
	"github.com/waclient/internal/logger"
	"github.com/waclient/internal/storage"
)

const (
	maxBodySize   = 64 << 20
	maxIDAttempts = 1000
)

// DefaultCollections — коллекции клиента мессенджера.
var DefaultCollections = []string{"users", "conversations", "messages", "contacts"}

// RecordHandler обслуживает CRUD json-server поверх storage.RecordStore.
type RecordHandler struct {
	store       storage.RecordStore
	collections map[string]bool
	order       []string
	parsers     fastjson.ParserPool
	arenas      fastjson.ArenaPool
	// mu сериализует выдачу id и read-modify-write PATCH.
	mu sync.Mutex
}

func NewRecordHandler(store storage.RecordStore, collections ...string) *RecordHandler {
	if len(collections) == 0 {
		collections = DefaultCollections
	}
	h := &RecordHandler{store: store, collections: make(map[string]bool, len(collections))}
	for _, c := range collections {
		if !h.collections[c] {
			h.collections[c] = true
			h.order = append(h.order, c)
		}
	}
	return h
}

func (h *RecordHandler) collection(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "collection")
	if !h.collections[name] {
		writeEmpty(w, http.StatusNotFound)
		return "", false
	}
	return name, true
}

// joinRecords склеивает записи в JSON-массив, чтобы разобрать коллекцию одним парсером.
func joinRecords(recs []storage.Record) []byte {
	n := 2
	for _, rec := range recs {
		n += len(rec.Data) + 1
	}
	buf := make([]byte, 0, n)
	buf = append(buf, '[')
	for i, rec := range recs {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, rec.Data...)
	}
	return append(buf, ']')
}

func (h *RecordHandler) List(w http.ResponseWriter, r *http.Request) {
	name, ok := h.collection(w, r)
	if !ok {
		return
	}
	recs, err := h.store.List(r.Context(), name)
	if err != nil {
		logger.Errorf("list %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	p := h.parsers.Get()
	defer h.parsers.Put(p)
	v, err := p.ParseBytes(joinRecords(recs))
	if err != nil {
		logger.Errorf("list %s: corrupt record: %v", name, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	q := parseQuery(r.URL.Query())
	items := v.GetArray()
	matched := make([]*fastjson.Value, 0, len(items))
	for _, it := range items {
		if q.match(it) {
			matched = append(matched, it)
		}
	}
	if len(q.sorts) > 0 {
		sort.SliceStable(matched, func(i, j int) bool { return q.less(matched[i], matched[j]) })
	}
	start, end := q.window(len(matched))

	out := []byte{'['}
	for i, it := range matched[start:end] {
		if i > 0 {
			out = append(out, ',')
		}
		out = it.MarshalTo(out)
	}
	out = append(out, ']')
	w.Header().Set("X-Total-Count", strconv.Itoa(len(matched)))
	writeRaw(w, http.StatusOK, out)
}

func (h *RecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	name, ok := h.collection(w, r)
	if !ok {
		return
	}
	rec, err := h.store.Get(r.Context(), name, chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeEmpty(w, http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Errorf("get %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeRaw(w, http.StatusOK, rec.Data)
}

// readObject читает тело запроса и проверяет, что это JSON-объект.
func (h *RecordHandler) readObject(w http.ResponseWriter, r *http.Request, p *fastjson.Parser) (*fastjson.Value, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return nil, false
	}
	v, err := p.ParseBytes(body)
	if err != nil || v.Type() != fastjson.TypeObject {
		writeError(w, http.StatusBadRequest, "body must be a JSON object")
		return nil, false
	}
	return v, true
}

// idValue сохраняет тип идентификатора: числовые id остаются числами.
func idValue(a *fastjson.Arena, id string) *fastjson.Value {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil && strconv.FormatInt(n, 10) == id {
		return a.NewNumberString(id)
	}
	return a.NewString(id)
}

func (h *RecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	name, ok := h.collection(w, r)
	if !ok {
		return
	}
	defer logger.DeferLogDuration("records.Create "+name, time.Now())()
	p := h.parsers.Get()
	defer h.parsers.Put(p)
	v, ok := h.readObject(w, r, p)
	if !ok {
		return
	}
	a := h.arenas.Get()
	defer h.arenas.Put(a)

	h.mu.Lock()
	defer h.mu.Unlock()

	if idv := v.Get("id"); idv != nil && idv.Type() != fastjson.TypeNull {
		id := textOf(idv)
		if id == "" || idv.Type() == fastjson.TypeObject || idv.Type() == fastjson.TypeArray {
			writeError(w, http.StatusBadRequest, "invalid id")
			return
		}
		rec := storage.Record{ID: id, Data: v.MarshalTo(nil)}
		if err := h.store.Insert(r.Context(), name, rec); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				writeError(w, http.StatusConflict, "Insert failed, duplicate id")
				return
			}
			logger.Errorf("create %s: %v", name, err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeRaw(w, http.StatusCreated, rec.Data)
		return
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		n, err := h.store.NextID(r.Context(), name)
		if err != nil {
			logger.Errorf("create %s: next id: %v", name, err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		id := strconv.FormatInt(n, 10)
		v.Set("id", a.NewNumberString(id))
		rec := storage.Record{ID: id, Data: v.MarshalTo(nil)}
		err = h.store.Insert(r.Context(), name, rec)
		if errors.Is(err, storage.ErrConflict) {
			continue
		}
		if err != nil {
			logger.Errorf("create %s: %v", name, err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeRaw(w, http.StatusCreated, rec.Data)
		return
	}
	logger.Errorf("create %s: no free id after %d attempts", name, maxIDAttempts)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// Replace — PUT: запись заменяется целиком, id берётся из пути.
func (h *RecordHandler) Replace(w http.ResponseWriter, r *http.Request) {
	name, ok := h.collection(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	p := h.parsers.Get()
	defer h.parsers.Put(p)
	v, ok := h.readObject(w, r, p)
	if !ok {
		return
	}
	a := h.arenas.Get()
	defer h.arenas.Put(a)
	v.Set("id", idValue(a, id))
	rec := storage.Record{ID: id, Data: v.MarshalTo(nil)}

	h.mu.Lock()
	err := h.store.Replace(r.Context(), name, rec)
	h.mu.Unlock()
	h.writeWriteResult(w, name, rec, err)
}

// Patch — PATCH: поля тела сливаются с сохранённой записью (только сервер).
func (h *RecordHandler) Patch(w http.ResponseWriter, r *http.Request) {
	name, ok := h.collection(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	bp := h.parsers.Get()
	defer h.parsers.Put(bp)
	patch, ok := h.readObject(w, r, bp)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	cur, err := h.store.Get(r.Context(), name, id)
	if err != nil {
		h.writeWriteResult(w, name, storage.Record{}, err)
		return
	}
	cp := h.parsers.Get()
	defer h.parsers.Put(cp)
	v, err := cp.ParseBytes(cur.Data)
	if err != nil {
		logger.Errorf("patch %s: corrupt record %s: %v", name, id, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	obj, _ := patch.Object()
	obj.Visit(func(key []byte, val *fastjson.Value) {
		if string(key) != "id" {
			v.Set(string(key), val)
		}
	})
	rec := storage.Record{ID: id, Data: v.MarshalTo(nil)}
	h.writeWriteResult(w, name, rec, h.store.Replace(r.Context(), name, rec))
}

func (h *RecordHandler) writeWriteResult(w http.ResponseWriter, name string, rec storage.Record, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeEmpty(w, http.StatusNotFound)
	case err != nil:
		logger.Errorf("write %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeRaw(w, http.StatusOK, rec.Data)
	}
}

func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name, ok := h.collection(w, r)
	if !ok {
		return
	}
	err := h.store.Delete(r.Context(), name, chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeEmpty(w, http.StatusNotFound)
	case err != nil:
		logger.Errorf("delete %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeEmpty(w, http.StatusOK)
	}
}

// Dump — GET /db: вся база одним объектом, как у json-server.
func (h *RecordHandler) Dump(w http.ResponseWriter, r *http.Request) {
	out := []byte{'{'}
	for i, name := range h.order {
		recs, err := h.store.List(r.Context(), name)
		if err != nil {
			logger.Errorf("dump %s: %v", name, err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendQuote(out, name)
		out = append(out, ':')
		out = append(out, joinRecords(recs)...)
	}
	out = append(out, '}')
	writeRaw(w, http.StatusOK, out)
}

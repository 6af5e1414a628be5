package httpserver

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fdg312/nutrition-planner/internal/userctx"
)

const (
	// IdempotencyHeader carries the client-generated key of a write.
	IdempotencyHeader = "Idempotency-Key"

	maxIdempotencyKeyLen = 128
	maxRecordedBodyBytes = 1 << 20
	maxRequestBodyBytes  = 1 << 20
)

type idempotencyEntry struct {
	// fingerprint — sha256 тела запроса, под которым ключ был занят
	fingerprint [sha256.Size]byte
	done        bool
	status      int
	contentType string
	body        []byte
	expiresAt   time.Time
}

// IdempotencyStore remembers responses of writes by (user, method, path, key).
type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]*idempotencyEntry
	ttl     time.Duration
	now     func() time.Time
	counter atomic.Int64
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{
		entries: make(map[string]*idempotencyEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// begin reserves the key. It returns the stored entry when the key was seen
// before and has not expired; reserved is false in that case.
func (s *IdempotencyStore) begin(key string, fingerprint [sha256.Size]byte) (entry idempotencyEntry, reserved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.counter.Add(1)%1000 == 0 {
		s.cleanup(now)
	}

	if e, ok := s.entries[key]; ok && now.Before(e.expiresAt) {
		return *e, false
	}

	s.entries[key] = &idempotencyEntry{fingerprint: fingerprint, expiresAt: now.Add(s.ttl)}
	return idempotencyEntry{}, true
}

func (s *IdempotencyStore) finish(key string, fingerprint [sha256.Size]byte, status int, contentType string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 5xx не запоминаем, клиент повторит запрос
	if status >= http.StatusInternalServerError {
		delete(s.entries, key)
		return
	}

	s.entries[key] = &idempotencyEntry{
		fingerprint: fingerprint,
		done:        true,
		status:      status,
		contentType: contentType,
		body:        body,
		expiresAt:   s.now().Add(s.ttl),
	}
}

func (s *IdempotencyStore) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *IdempotencyStore) cleanup(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}

type recordingWriter struct {
	http.ResponseWriter
	status   int
	body     bytes.Buffer
	overflow bool
}

func (w *recordingWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	if w.body.Len()+len(p) > maxRecordedBodyBytes {
		w.overflow = true
	} else {
		w.body.Write(p)
	}
	return w.ResponseWriter.Write(p)
}

// IdempotencyMiddleware replays the stored response when a write with the
// same Idempotency-Key is repeated by the same user. Requests without the
// header and safe methods pass through. A repeat that arrives while the
// first request is still running gets 409. Reusing a key with a different
// body gets 422.
func IdempotencyMiddleware(store *IdempotencyStore, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idemKey := r.Header.Get(IdempotencyHeader)
		if idemKey == "" || !isWriteMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}
		if len(idemKey) > maxIdempotencyKeyLen {
			writeIdempotencyError(w, http.StatusBadRequest, "invalid_idempotency_key", "Idempotency-Key is too long")
			return
		}

		userID, _ := userctx.GetUserID(r.Context())
		key := userID + "\x00" + r.Method + "\x00" + r.URL.Path + "\x00" + idemKey

		raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes+1))
		if err != nil {
			writeIdempotencyError(w, http.StatusBadRequest, "invalid_body", "Failed to read request body")
			return
		}
		if len(raw) > maxRequestBodyBytes {
			writeIdempotencyError(w, http.StatusRequestEntityTooLarge, "body_too_large", "Request body is too large")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(raw))
		fingerprint := sha256.Sum256(raw)

		entry, reserved := store.begin(key, fingerprint)
		if !reserved {
			if entry.fingerprint != fingerprint {
				writeIdempotencyError(w, http.StatusUnprocessableEntity, "idempotency_key_reused", "Idempotency-Key was already used with a different request body")
				return
			}
			if !entry.done {
				writeIdempotencyError(w, http.StatusConflict, "idempotency_in_progress", "A request with this Idempotency-Key is still in progress")
				return
			}
			log.Printf("INFO idempotency: replay method=%s path=%s status=%d", r.Method, r.URL.Path, entry.status)
			if entry.contentType != "" {
				w.Header().Set("Content-Type", entry.contentType)
			}
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(entry.status)
			_, _ = w.Write(entry.body)
			return
		}

		rec := &recordingWriter{ResponseWriter: w}
		completed := false
		defer func() {
			if !completed {
				store.release(key)
			}
		}()

		next.ServeHTTP(rec, r)
		completed = true

		if rec.overflow {
			store.release(key)
			return
		}
		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		store.finish(key, fingerprint, status, rec.Header().Get("Content-Type"), rec.body.Bytes())
	})
}

func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func writeIdempotencyError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

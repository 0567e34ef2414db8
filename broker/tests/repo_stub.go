package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// repoStub emulates the hydroshare, earthchem, and zenodo apis plus a shared
// oauth token endpoint, backed by an in memory record table.
type repoStub struct {
	server *httptest.Server

	mu      sync.Mutex
	nextId  int
	records map[string]map[string]interface{}
}

func newRepoStub() *repoStub {
	stub := &repoStub{nextId: 1000, records: make(map[string]map[string]interface{})}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		code := r.FormValue("code")
		if code == "" {
			http.Error(w, "missing authorization code", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token": "repo-token-%v", "token_type": "Bearer", "expires_in": 3600}`, code)
	})

	mux.HandleFunc("POST /hsapi/resource/", func(w http.ResponseWriter, r *http.Request) {
		if !stub.bearerAuth(w, r) {
			return
		}
		id := fmt.Sprintf("hs%d", stub.mint())
		stub.put(id, map[string]interface{}{})
		writeJson(w, map[string]interface{}{"resource_id": id})
	})

	mux.HandleFunc("GET /hsapi/resource/{id}/scimeta/elements/", func(w http.ResponseWriter, r *http.Request) {
		if !stub.bearerAuth(w, r) {
			return
		}
		record, ok := stub.get(r.PathValue("id"))
		if !ok {
			http.Error(w, "no resource found", http.StatusNotFound)
			return
		}
		writeJson(w, record)
	})

	mux.HandleFunc("PUT /hsapi/resource/{id}/scimeta/elements/", func(w http.ResponseWriter, r *http.Request) {
		if !stub.bearerAuth(w, r) {
			return
		}
		if _, ok := stub.get(r.PathValue("id")); !ok {
			http.Error(w, "no resource found", http.StatusNotFound)
			return
		}
		var record map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		stub.put(r.PathValue("id"), record)
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("DELETE /hsapi/resource/{id}/", func(w http.ResponseWriter, r *http.Request) {
		if !stub.bearerAuth(w, r) {
			return
		}
		stub.delete(r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /ecl/submissions", func(w http.ResponseWriter, r *http.Request) {
		if !stub.bearerAuth(w, r) {
			return
		}
		id := stub.mint()
		stub.put(strconv.Itoa(id), map[string]interface{}{})
		writeJson(w, map[string]interface{}{"id": id})
	})

	mux.HandleFunc("GET /ecl/submissions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !stub.bearerAuth(w, r) {
			return
		}
		record, ok := stub.get(r.PathValue("id"))
		if !ok {
			http.Error(w, "no submission found", http.StatusNotFound)
			return
		}
		writeJson(w, record)
	})

	mux.HandleFunc("PUT /ecl/submissions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !stub.bearerAuth(w, r) {
			return
		}
		if _, ok := stub.get(r.PathValue("id")); !ok {
			http.Error(w, "no submission found", http.StatusNotFound)
			return
		}
		var record map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		stub.put(r.PathValue("id"), record)
		writeJson(w, record)
	})

	mux.HandleFunc("DELETE /ecl/submissions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !stub.bearerAuth(w, r) {
			return
		}
		stub.delete(r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/deposit/depositions", func(w http.ResponseWriter, r *http.Request) {
		if !stub.queryAuth(w, r) {
			return
		}
		id := stub.mint()
		stub.put(strconv.Itoa(id), map[string]interface{}{})
		writeJson(w, map[string]interface{}{"id": id})
	})

	mux.HandleFunc("GET /api/deposit/depositions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !stub.queryAuth(w, r) {
			return
		}
		record, ok := stub.get(r.PathValue("id"))
		if !ok {
			http.Error(w, "no deposition found", http.StatusNotFound)
			return
		}
		writeJson(w, record)
	})

	mux.HandleFunc("PUT /api/deposit/depositions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !stub.queryAuth(w, r) {
			return
		}
		if _, ok := stub.get(r.PathValue("id")); !ok {
			http.Error(w, "no deposition found", http.StatusNotFound)
			return
		}
		var record map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		stub.put(r.PathValue("id"), record)
		writeJson(w, record)
	})

	mux.HandleFunc("DELETE /api/deposit/depositions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if !stub.queryAuth(w, r) {
			return
		}
		stub.delete(r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})

	stub.server = httptest.NewServer(mux)

	return stub
}

// Tokens minted by the stub's oauth endpoint all carry the repo-token- prefix,
// so anything else is rejected the way a real repository would.
func (s *repoStub) bearerAuth(w http.ResponseWriter, r *http.Request) bool {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer repo-token-") {
		http.Error(w, "invalid access token", http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *repoStub) queryAuth(w http.ResponseWriter, r *http.Request) bool {
	if !strings.HasPrefix(r.URL.Query().Get("access_token"), "repo-token-") {
		http.Error(w, "invalid access token", http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *repoStub) mint() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextId++
	return s.nextId
}

func (s *repoStub) put(id string, record map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[id] = record
}

func (s *repoStub) get(id string) (map[string]interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	return record, ok
}

func (s *repoStub) delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

func writeJson(w http.ResponseWriter, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(value); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

package kvtree

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ruteri/server-identity-backend/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVaultKV is a minimal stand-in for Vault's KV v2 HTTP API, enough to
// exercise the tree's read, check-and-set write and health paths.
type fakeVaultKV struct {
	mu            sync.Mutex
	values        map[string]string // data path -> base64 payload
	versions      map[string]int
	sealed        bool
	rejectWrites  int // writes to reject with a CAS conflict before accepting
	writeAttempts int

	// onConflict runs while a write is being rejected, with the mutex held.
	// Tests use it to install the state a winning concurrent writer would
	// have committed.
	onConflict func(f *fakeVaultKV, path string)
}

func newFakeVaultKV() *fakeVaultKV {
	return &fakeVaultKV{
		values:   make(map[string]string),
		versions: make(map[string]int),
	}
}

func (f *fakeVaultKV) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/sys/health", f.handleHealth)
	mux.HandleFunc("/v1/", f.handleKV)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func (f *fakeVaultKV) handleHealth(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	sealed := f.sealed
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"initialized": true,
		"sealed":      sealed,
	})
}

func (f *fakeVaultKV) handleKV(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/")

	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch r.Method {
	case http.MethodGet:
		value, ok := f.values[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"errors":[]}`)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"data":     map[string]interface{}{"value": value},
				"metadata": map[string]interface{}{"version": f.versions[path]},
			},
		})

	case http.MethodPut, http.MethodPost:
		var body struct {
			Data    map[string]interface{} `json:"data"`
			Options map[string]interface{} `json:"options"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"errors":["malformed body"]}`)
			return
		}
		f.writeAttempts++

		cas := -1
		if raw, ok := body.Options["cas"].(float64); ok {
			cas = int(raw)
		}
		if f.rejectWrites > 0 || cas != f.versions[path] {
			if f.rejectWrites > 0 {
				f.rejectWrites--
			}
			if f.onConflict != nil {
				f.onConflict(f, path)
			}
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"errors":["check-and-set parameter did not match the current version"]}`)
			return
		}

		value, _ := body.Data["value"].(string)
		f.values[path] = value
		f.versions[path]++
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"version": f.versions[path]},
		})

	case http.MethodDelete:
		delete(f.values, path)
		delete(f.versions, path)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// seed stores a raw payload under the data path for key, bypassing the API.
func (f *fakeVaultKV) seed(key []byte, payload string, version int) {
	path := fmt.Sprintf("secret/data/identity/%x", key)
	f.mu.Lock()
	f.values[path] = payload
	f.versions[path] = version
	f.mu.Unlock()
}

func newVaultTreeForTest(t *testing.T, fake *fakeVaultKV) *VaultTree {
	t.Helper()
	ts := fake.server(t)

	tree, err := NewVaultTree(ts.URL, "secret", "identity", testLogger())
	require.NoError(t, err)
	return tree
}

func TestVaultTree_GetAbsent(t *testing.T) {
	tree := newVaultTreeForTest(t, newFakeVaultKV())

	_, err := tree.Get(context.Background(), []byte("missing"))
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestVaultTree_UpdateAndFetchRoundtrip(t *testing.T) {
	fake := newFakeVaultKV()
	tree := newVaultTreeForTest(t, fake)
	ctx := context.Background()

	committed, err := tree.UpdateAndFetch(ctx, []byte("k"), func(old []byte) []byte {
		require.Nil(t, old)
		return []byte("v1")
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), committed)

	committed, err = tree.UpdateAndFetch(ctx, []byte("k"), func(old []byte) []byte {
		require.Equal(t, []byte("v1"), old)
		return []byte("v2")
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), committed)
	assert.Equal(t, 2, fake.writeAttempts)

	value, err := tree.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), value)

	committed, err = tree.UpdateAndFetch(ctx, []byte("k"), func([]byte) []byte { return nil })
	require.NoError(t, err)
	assert.Nil(t, committed)

	_, err = tree.Get(ctx, []byte("k"))
	assert.ErrorIs(t, err, interfaces.ErrKeyNotFound)
}

func TestVaultTree_UpdateAndFetchRetriesOnConflict(t *testing.T) {
	fake := newFakeVaultKV()
	winner := base64.StdEncoding.EncodeToString([]byte("winner"))

	// The first write loses the race against a concurrent caller that
	// committed "winner"; the loop must re-read and apply on top of it.
	fake.rejectWrites = 1
	fake.onConflict = func(f *fakeVaultKV, path string) {
		f.values[path] = winner
		f.versions[path]++
	}
	tree := newVaultTreeForTest(t, fake)
	ctx := context.Background()

	committed, err := tree.UpdateAndFetch(ctx, []byte("k"), func(old []byte) []byte {
		if old == nil {
			return []byte("loser")
		}
		return append(old, []byte("+retry")...)
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("winner+retry"), committed)
	assert.Equal(t, 2, fake.writeAttempts)

	value, err := tree.Get(ctx, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []byte("winner+retry"), value)
}

func TestVaultTree_UpdateAndFetchExhaustsRetries(t *testing.T) {
	fake := newFakeVaultKV()
	fake.rejectWrites = casMaxRetries + 1
	tree := newVaultTreeForTest(t, fake)

	_, err := tree.UpdateAndFetch(context.Background(), []byte("k"), func([]byte) []byte {
		return []byte("v")
	})
	assert.ErrorIs(t, err, interfaces.ErrTreeUnavailable)
	assert.Equal(t, casMaxRetries, fake.writeAttempts)
}

func TestVaultTree_CorruptPayload(t *testing.T) {
	fake := newFakeVaultKV()
	fake.seed([]byte("k"), "!!!not base64!!!", 1)
	tree := newVaultTreeForTest(t, fake)
	ctx := context.Background()

	_, err := tree.Get(ctx, []byte("k"))
	assert.ErrorIs(t, err, interfaces.ErrBadDatabase)

	_, err = tree.UpdateAndFetch(ctx, []byte("k"), func(old []byte) []byte { return old })
	assert.ErrorIs(t, err, interfaces.ErrBadDatabase)
}

func TestVaultTree_Available(t *testing.T) {
	fake := newFakeVaultKV()
	tree := newVaultTreeForTest(t, fake)
	ctx := context.Background()

	assert.True(t, tree.Available(ctx))

	fake.mu.Lock()
	fake.sealed = true
	fake.mu.Unlock()
	assert.False(t, tree.Available(ctx))
}

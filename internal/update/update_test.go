package update

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// ///////////////////////////////////////////////
// parseVersion Tests
// ///////////////////////////////////////////////

func TestParseVersion(t *testing.T) {
	tests := []struct {
		input  string
		want   version
		wantOK bool
	}{
		{"1.2.3", version{major: 1, minor: 2, patch: 3}, true},
		{"v1.2.3", version{major: 1, minor: 2, patch: 3}, true},
		{"0.0.0", version{}, true},
		{"10.20.30", version{major: 10, minor: 20, patch: 30}, true},
		{"0.0.0-dev", version{pre: true}, true},
		{"1.2.3-rc.1", version{major: 1, minor: 2, patch: 3, pre: true}, true},
		{"1.0.0-beta+build123", version{major: 1, pre: true}, true},
		{"1.2.3+metadata", version{major: 1, minor: 2, patch: 3}, true},
		{"1.2.3+meta-data", version{major: 1, minor: 2, patch: 3}, true},
		{"v0.1.0", version{minor: 1}, true},

		// Anything that is not three numeric parts is rejected.
		{"", version{}, false},
		{"1", version{}, false},
		{"1.2", version{}, false},
		{"1.2.3.4", version{}, false},
		{"v", version{}, false},
		{"1.2.x", version{}, false},
		{"not.a.version", version{}, false},
		{"a.b.c", version{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := parseVersion(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("parseVersion(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("parseVersion(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Ordering Tests
// ///////////////////////////////////////////////

func mustParse(t *testing.T, s string) version {
	t.Helper()
	v, ok := parseVersion(s)
	if !ok {
		t.Fatalf("parseVersion(%q) rejected a test fixture", s)
	}
	return v
}

func TestVersionLess(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{"equal", "1.2.3", "1.2.3", false},
		{"major below", "0.9.9", "1.0.0", true},
		{"major above", "2.0.0", "1.9.9", false},
		{"minor below", "1.0.0", "1.1.0", true},
		{"minor above", "1.2.0", "1.1.0", false},
		{"patch below", "1.0.0", "1.0.1", true},
		{"patch above", "1.0.2", "1.0.1", false},
		{"v prefixes", "v0.1.0", "v0.2.0", true},
		{"mixed prefixes", "0.1.0", "v0.2.0", true},
		{"pre-release below release", "0.1.0-dev", "0.1.0", true},
		{"release not below pre-release", "0.1.0", "0.1.0-dev", false},
		{"pre-release below next release", "0.0.0-dev", "0.1.0", true},
		{"two pre-releases tie", "1.0.0-alpha", "1.0.0-beta", false},
		{"metadata ignored", "1.2.3+abc", "1.2.3+def", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustParse(t, tt.a).less(mustParse(t, tt.b))
			if got != tt.want {
				t.Errorf("%q less %q = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Manifest fetch Tests
// ///////////////////////////////////////////////

func manifestServer(t *testing.T, status int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestFetchLatest(t *testing.T) {
	server, _ := manifestServer(t, http.StatusOK, `{".": "2.0.0", "docs": "1.1.0"}`)

	got, err := fetchLatest(server.URL)
	if err != nil {
		t.Fatalf("fetchLatest: %v", err)
	}
	if got != "2.0.0" {
		t.Errorf("latest = %q, want %q", got, "2.0.0")
	}
}

func TestFetchLatestMissingRootKey(t *testing.T) {
	server, _ := manifestServer(t, http.StatusOK, `{"docs": "1.1.0"}`)

	got, err := fetchLatest(server.URL)
	if err != nil {
		t.Fatalf("fetchLatest: %v", err)
	}
	if got != "" {
		t.Errorf("latest = %q, want empty for manifest without root entry", got)
	}
}

func TestFetchLatestNon200(t *testing.T) {
	server, _ := manifestServer(t, http.StatusInternalServerError, "")

	if _, err := fetchLatest(server.URL); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestFetchLatestInvalidJSON(t *testing.T) {
	server, _ := manifestServer(t, http.StatusOK, "not json")

	if _, err := fetchLatest(server.URL); err == nil {
		t.Fatal("expected error for malformed manifest")
	}
}

// ///////////////////////////////////////////////
// Check flow Tests
// ///////////////////////////////////////////////

func TestCheckAgainstNewerVersion(t *testing.T) {
	server, hits := manifestServer(t, http.StatusOK, `{".": "1.2.0"}`)

	checkAgainst(server.URL, "1.0.0")

	if hits.Load() != 1 {
		t.Errorf("manifest fetched %d times, want 1", hits.Load())
	}
}

func TestCheckAgainstSameVersion(t *testing.T) {
	server, _ := manifestServer(t, http.StatusOK, `{".": "1.0.0"}`)

	checkAgainst(server.URL, "1.0.0")
}

func TestCheckAgainstUnparsableCurrent(t *testing.T) {
	server, _ := manifestServer(t, http.StatusOK, `{".": "1.2.0"}`)

	// A local dev build without a SemVer version must not trip the check.
	checkAgainst(server.URL, "devbuild")
}

func TestCheckAgainstFetchFailure(t *testing.T) {
	server, _ := manifestServer(t, http.StatusBadGateway, "")

	checkAgainst(server.URL, "1.0.0")
}

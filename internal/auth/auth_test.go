package auth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCredentials_InlineToken(t *testing.T) {
	creds, err := LoadCredentials("11148817", "pajlada", "client", "oauth:abc123", "")
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}

	if creds.UserID != "11148817" {
		t.Errorf("UserID = %q, want %q", creds.UserID, "11148817")
	}
	if creds.AuthToken != "abc123" {
		t.Errorf("AuthToken = %q, want %q", creds.AuthToken, "abc123")
	}
	if !creds.Valid() {
		t.Error("expected credentials to be valid")
	}
}

func TestLoadCredentials_TokenFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "token")

	if err := os.WriteFile(path, []byte("\n  oauth:fromfile  \nignored\n"), 0600); err != nil {
		t.Fatalf("failed to write token file: %v", err)
	}

	creds, err := LoadCredentials("1", "", "", "", path)
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if creds.AuthToken != "fromfile" {
		t.Errorf("AuthToken = %q, want %q", creds.AuthToken, "fromfile")
	}
}

func TestLoadCredentials_InlineWins(t *testing.T) {
	creds, err := LoadCredentials("1", "", "", "inline", "/nonexistent/token")
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}
	if creds.AuthToken != "inline" {
		t.Errorf("AuthToken = %q, want %q", creds.AuthToken, "inline")
	}
}

func TestLoadCredentials_Errors(t *testing.T) {
	tmpDir := t.TempDir()
	empty := filepath.Join(tmpDir, "empty")
	if err := os.WriteFile(empty, []byte("\n\n"), 0600); err != nil {
		t.Fatalf("failed to write token file: %v", err)
	}

	tests := []struct {
		name      string
		userID    string
		token     string
		tokenPath string
		wantErr   string
	}{
		{"missing user", "", "tok", "", "user ID is required"},
		{"missing token", "1", "", "", "auth token or token path is required"},
		{"prefix only", "1", "oauth:", "", "auth token is empty"},
		{"missing file", "1", "", filepath.Join(tmpDir, "nope"), "read token file"},
		{"empty file", "1", "", empty, "is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCredentials(tt.userID, "", "", tt.token, tt.tokenPath)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestNormalizeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc", "abc"},
		{"oauth:abc", "abc"},
		{"  oauth:abc\n", "abc"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeToken(tt.in); got != tt.want {
			t.Errorf("NormalizeToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCredentials_Valid(t *testing.T) {
	if (Credentials{UserID: "1"}).Valid() {
		t.Error("credentials without token should be invalid")
	}
	if (Credentials{AuthToken: "t"}).Valid() {
		t.Error("credentials without user id should be invalid")
	}
}

func TestCredentials_Headers(t *testing.T) {
	headers := Credentials{AuthToken: "tok", ClientID: "cid"}.Headers()

	if headers["Authorization"] != "Bearer tok" {
		t.Errorf("Authorization = %q, want %q", headers["Authorization"], "Bearer tok")
	}
	if headers["Client-Id"] != "cid" {
		t.Errorf("Client-Id = %q, want %q", headers["Client-Id"], "cid")
	}

	if len(Credentials{}.Headers()) != 0 {
		t.Error("expected no headers for empty credentials")
	}
}

func TestStatic(t *testing.T) {
	var p Provider = Static{UserID: "1", AuthToken: "t"}
	if got := p.Credentials(); got.UserID != "1" || got.AuthToken != "t" {
		t.Errorf("Credentials() = %+v", got)
	}
}

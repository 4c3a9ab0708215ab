package streamauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestMetadataRoundTrip(t *testing.T) {
	ctx := WithUserAgent(WithClientIP(context.Background(), "198.51.100.4"), "curl/8")
	if got := ClientIP(ctx); got != "198.51.100.4" {
		t.Fatalf("ClientIP = %q", got)
	}
	if got := UserAgent(ctx); got != "curl/8" {
		t.Fatalf("UserAgent = %q", got)
	}
	if ClientIP(context.Background()) != "" || UserAgent(context.TODO()) != "" {
		t.Fatal("expected empty values without metadata")
	}

	if _, ok := AuthUserFromContext(context.Background()); ok {
		t.Fatal("expected no user")
	}
	u := &AuthUser{Username: "alice", Role: RoleUser}
	got, ok := AuthUserFromContext(WithAuthUser(context.Background(), u))
	if !ok || got.Username != "alice" {
		t.Fatalf("AuthUserFromContext = %v, %v", got, ok)
	}
}

func TestTokenFromRequest(t *testing.T) {
	cases := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"bearer wins", "Bearer header-token", "cookie-token", "header-token"},
		{"scheme is case insensitive", "bearer header-token", "", "header-token"},
		{"cookie fallback", "", "cookie-token", "cookie-token"},
		{"other scheme blocks cookie", "Basic dXNlcjpwdw==", "cookie-token", ""},
		{"nothing", "", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				r.AddCookie(&http.Cookie{Name: "accessToken", Value: tc.cookie})
			}
			if got := TokenFromRequest(r, "accessToken"); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

package domainkey

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/text-extraction/internal/extraction"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  Key
	}{
		{name: "bare registrable domain", input: "https://example.com/", want: "example.com"},
		{name: "subdomain stripped", input: "https://www.example.com/a/b", want: "example.com"},
		{name: "deep subdomain", input: "http://a.b.c.example.com", want: "example.com"},
		{name: "case folded", input: "HTTPS://News.EXAMPLE.com/Story", want: "example.com"},
		{name: "port dropped", input: "http://example.com:8080/x", want: "example.com"},
		{name: "multi-label suffix", input: "https://www.bbc.co.uk/news", want: "bbc.co.uk"},
		{name: "scheme-less", input: "blog.example.org/post", want: "example.org"},
		{name: "trailing dot", input: "https://www.example.com./", want: "example.com"},
		{name: "ipv4 literal", input: "http://127.0.0.1:9000/page", want: "127.0.0.1"},
		{name: "ipv6 literal", input: "http://[::1]:9000/page", want: "::1"},
		{name: "single label", input: "http://localhost:8080", want: "localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Resolve(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestResolveSharedRegistrableDomain(t *testing.T) {
	t.Parallel()

	urls := []string{
		"https://example.com",
		"https://www.example.com/one",
		"http://shop.example.com/two?q=1",
		"https://EXAMPLE.com/three#frag",
	}
	first, err := Resolve(urls[0])
	require.NoError(t, err)
	for _, u := range urls[1:] {
		got, err := Resolve(u)
		require.NoError(t, err)
		require.Equal(t, first, got, "url %s", u)
	}
	again, err := Resolve(urls[1])
	require.NoError(t, err)
	require.Equal(t, first, again)
}

func TestResolveInvalid(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "   ", "http://", "https:///path-only", "http://%zz"} {
		_, err := Resolve(input)
		require.Error(t, err, "input %q", input)
		require.True(t, errors.Is(err, extraction.ErrInvalidURL), "input %q: %v", input, err)
	}
}

func TestKeyFuncs(t *testing.T) {
	t.Parallel()

	var fromString KeyFunc[string] = ForString
	var fromRequest KeyFunc[extraction.Request] = ForRequest

	a, err := fromString("https://docs.example.com")
	require.NoError(t, err)
	b, err := fromRequest(extraction.Request{URL: "https://api.example.com/v1"})
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Equal(t, "example.com", a.String())
}

func FuzzResolve(f *testing.F) {
	for _, seed := range []string{"https://example.com", "www.example.co.uk", "http://[::1]", ""} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		key, err := Resolve(in)
		if err != nil {
			if !errors.Is(err, extraction.ErrInvalidURL) {
				t.Fatalf("unexpected error kind for %q: %v", in, err)
			}
			return
		}
		if key == "" {
			t.Fatalf("empty key for %q", in)
		}
	})
}

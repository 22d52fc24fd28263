package osrm

import (
	"errors"
	"testing"
)

func TestRequestConfig_StringAndParse(t *testing.T) {
	cfg := DefaultRequestConfig().WithHost("http://0.0.0.0:5000")
	if got := cfg.String(); got != "http://0.0.0.0:5000/*/v1/driving" {
		t.Fatalf("String()=%q", got)
	}
	if DefaultRequestConfig().Host != DefaultHost {
		t.Fatalf("default config was modified through a copy")
	}

	a, err := ParseRequestConfig("192.168.1.1/v1/biking")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.Profile != "biking" || a.Host != "192.168.1.1" || a.Version != "v1" {
		t.Fatalf("unexpected config: %+v", a)
	}
	b, err := ParseRequestConfig("192.168.1.1/*/v1/biking")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a.String() != b.String() {
		t.Fatalf("%q != %q", a.String(), b.String())
	}

	c, err := ParseRequestConfig("https://router.example.org:443/*/v5/foot/")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Host != "https://router.example.org:443" || c.Version != "v5" || c.Profile != "foot" {
		t.Fatalf("unexpected config: %+v", c)
	}

	d, err := ParseRequestConfig("")
	if err != nil || d != DefaultRequestConfig() {
		t.Fatalf("empty address should give the default, got %+v err=%v", d, err)
	}
}

func TestParseRequestConfig_Invalid(t *testing.T) {
	for _, in := range []string{"localhost", "localhost/v1", "localhost/*/biking"} {
		if _, err := ParseRequestConfig(in); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%q: want ErrInvalidConfig, got %v", in, err)
		}
	}
}

func TestCheckHost(t *testing.T) {
	cases := map[string]string{
		"localhost:5000":         "http://localhost:5000",
		"localhost:5000/":        "http://localhost:5000",
		"http://localhost:5000/": "http://localhost:5000",
		"https://osrm.example":   "https://osrm.example",
	}
	for in, want := range cases {
		if got := CheckHost(in); got != want {
			t.Fatalf("CheckHost(%q)=%q want %q", in, got, want)
		}
	}
}

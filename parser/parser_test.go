package parser

import (
	"testing"

	"github.com/kelora-go/kelora/event"
)

func mustParse(t *testing.T, p Parser, chunk string) *event.Event {
	t.Helper()
	e, err := p.Parse(chunk)
	if err != nil {
		t.Fatalf("%s: parse failed: %v", p.Name(), err)
	}
	return e
}

func TestLineParser(t *testing.T) {
	e := mustParse(t, NewLine(), "plain text")
	v, ok := e.Fields.Get("line")
	if !ok || v.Str != "plain text" {
		t.Errorf("expected line field %q, got %+v", "plain text", v)
	}
}

func TestJSONParserPreservesOrder(t *testing.T) {
	e := mustParse(t, NewJSON(), `{"b":1,"a":2,"c":{"z":1,"y":2}}`)
	got := e.Fields.Keys()
	want := []string{"b", "a", "c"}
	for i, k := range want {
		if got[i] != k {
			t.Fatalf("key order = %v, want prefix %v", got, want)
		}
	}
}

func TestKVParser(t *testing.T) {
	e := mustParse(t, NewKV(), `level=info msg="hello world" retries=3 ok=true ratio=0.5`)
	if v, _ := e.Fields.Get("level"); v.Str != "info" {
		t.Errorf("level = %+v", v)
	}
	if v, _ := e.Fields.Get("msg"); v.Str != "hello world" {
		t.Errorf("msg = %+v", v)
	}
	if v, _ := e.Fields.Get("retries"); v.Int != 3 {
		t.Errorf("retries = %+v", v)
	}
	if v, _ := e.Fields.Get("ok"); v.Bool != true {
		t.Errorf("ok = %+v", v)
	}
}

func TestSyslog5424Parser(t *testing.T) {
	line := `<34>1 2026-07-31T10:00:00Z myhost myapp 1234 ID47 - trouble found`
	e := mustParse(t, NewSyslog5424(), line)
	if v, _ := e.Fields.Get("hostname"); v.Str != "myhost" {
		t.Errorf("hostname = %+v", v)
	}
	if v, _ := e.Fields.Get("message"); v.Str != "trouble found" {
		t.Errorf("message = %+v", v)
	}
	if v, _ := e.Fields.Get("level"); v.Str != "crit" {
		t.Errorf("level = %+v", v)
	}
}

func TestSyslog3164Parser(t *testing.T) {
	line := `<13>Jul 31 10:00:00 myhost sshd[123]: login failed`
	e := mustParse(t, NewSyslog3164(), line)
	if v, _ := e.Fields.Get("hostname"); v.Str != "myhost" {
		t.Errorf("hostname = %+v", v)
	}
	if v, _ := e.Fields.Get("message"); v.Str != "login failed" {
		t.Errorf("message = %+v", v)
	}
}

func TestCEFParser(t *testing.T) {
	line := `CEF:0|Security|threatmanager|1.0|100|worm successfully stopped|10|src=10.0.0.1 dst=2.1.2.2 spt=1232`
	e := mustParse(t, NewCEF(), line)
	if v, _ := e.Fields.Get("device_vendor"); v.Str != "Security" {
		t.Errorf("device_vendor = %+v", v)
	}
	if v, _ := e.Fields.Get("name"); v.Str != "worm successfully stopped" {
		t.Errorf("name = %+v", v)
	}
	if v, _ := e.Fields.Get("src"); v.Str != "10.0.0.1" {
		t.Errorf("src = %+v", v)
	}
	if v, _ := e.Fields.Get("spt"); v.Int != 1232 {
		t.Errorf("spt = %+v", v)
	}
}

func TestApacheCombinedParser(t *testing.T) {
	line := `198.51.10.21 - - [06/Jul/2025:19:57:26 +0000] "GET /dataset/?test HTTP/1.0" 200 13984 "-" "Mozilla/5.0"`
	p, err := NewApache(ApacheCombined, "apache-combined")
	if err != nil {
		t.Fatal(err)
	}
	e := mustParse(t, p, line)
	if v, _ := e.Fields.Get("host"); v.Str != "198.51.10.21" {
		t.Errorf("host = %+v", v)
	}
	if v, _ := e.Fields.Get("method"); v.Str != "GET" {
		t.Errorf("method = %+v", v)
	}
	if v, _ := e.Fields.Get("uri"); v.Str != "/dataset/?test" {
		t.Errorf("uri = %+v", v)
	}
	if v, _ := e.Fields.Get("status"); v.Int != 200 {
		t.Errorf("status = %+v", v)
	}
	if v, _ := e.Fields.Get("user_agent"); v.Str != "Mozilla/5.0" {
		t.Errorf("user_agent = %+v", v)
	}
}

func TestCSVParserWithHeader(t *testing.T) {
	p, err := NewCSV(',', true)
	if err != nil {
		t.Fatal(err)
	}
	hdr := p.(HeaderAware)
	if !hdr.NeedsHeader() {
		t.Fatal("expected NeedsHeader true before SetHeader")
	}
	if err := hdr.SetHeader("time,level,message"); err != nil {
		t.Fatal(err)
	}
	if hdr.NeedsHeader() {
		t.Fatal("expected NeedsHeader false after SetHeader")
	}
	e := mustParse(t, p, "2026-07-31,info,hello")
	if v, _ := e.Fields.Get("level"); v.Str != "info" {
		t.Errorf("level = %+v", v)
	}
}

func TestCSVParserWithoutHeader(t *testing.T) {
	p, err := NewCSV(',', false)
	if err != nil {
		t.Fatal(err)
	}
	e := mustParse(t, p, "a,1,true")
	if v, _ := e.Fields.Get("col1"); v.Str != "a" {
		t.Errorf("col1 = %+v", v)
	}
	if v, _ := e.Fields.Get("col2"); v.Int != 1 {
		t.Errorf("col2 = %+v", v)
	}
}

func TestFixedParser(t *testing.T) {
	p, err := NewFixed(`%{time} %{level} [%{component}] %{message}`)
	if err != nil {
		t.Fatal(err)
	}
	e := mustParse(t, p, "2026-07-31T10:00:00Z warn [auth] token expired")
	if v, _ := e.Fields.Get("level"); v.Str != "warn" {
		t.Errorf("level = %+v", v)
	}
	if v, _ := e.Fields.Get("component"); v.Str != "auth" {
		t.Errorf("component = %+v", v)
	}
}

func TestDetect(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:     "json",
		`CEF:0|a|b|1|2|c|3|x=1`: "cef",
		`level=info msg=hi`:     "kv",
		`just some text`:        "line",
	}
	for input, want := range cases {
		if got := Detect(input); got != want {
			t.Errorf("Detect(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNewUnknownFormat(t *testing.T) {
	if _, err := New("bogus", Options{}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

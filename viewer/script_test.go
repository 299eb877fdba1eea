package viewer

import (
	"testing"
	"time"

	"github.com/yinliguo/pdf-viewer/decoder/decodertest"
)

func TestOnLoadScript(t *testing.T) {
	doc := decodertest.NewUniform(4, 600, 800)
	alerts := make(chan string, 1)
	v := newTestViewer(t, doc, func(cfg *Config) {
		cfg.OnLoadScript = `app.alert("pages:" + pageCount())`
		cfg.OnAlert = func(msg string) { alerts <- msg }
	})
	waitReady(t, v)

	select {
	case msg := <-alerts:
		if msg != "pages:4" {
			t.Fatalf("Expected alert 'pages:4', got %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("load script never ran")
	}
}

func TestOnLoadScriptScrollTo(t *testing.T) {
	doc := decodertest.NewUniform(6, 600, 800)
	v := newTestViewer(t, doc, func(cfg *Config) {
		cfg.OnLoadScript = `scrollTo(4)`
	})
	waitReady(t, v)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if top, _ := v.ScrollOffset(); top == 2430 { // three pages and gaps
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	top, _ := v.ScrollOffset()
	t.Fatalf("Expected script scroll to reach offset 2430, got %v", top)
}

func TestScriptGetPage(t *testing.T) {
	doc := decodertest.NewUniform(2, 600, 800)
	alerts := make(chan string, 1)
	v := newTestViewer(t, doc, func(cfg *Config) {
		cfg.OnLoadScript = `app.alert("w:" + getPage(2).GetWidth())`
		cfg.OnAlert = func(msg string) { alerts <- msg }
	})
	waitReady(t, v)

	select {
	case msg := <-alerts:
		if msg != "w:600" {
			t.Fatalf("Expected alert 'w:600', got %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("load script never ran")
	}
}

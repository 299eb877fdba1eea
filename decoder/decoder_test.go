package decoder

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestSourceValidate(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		if err := (Source{}).Validate(); !errors.Is(err, ErrNoSource) {
			t.Fatalf("Expected ErrNoSource, got %v", err)
		}
	})
	t.Run("Single", func(t *testing.T) {
		if err := (Source{Path: "doc.pdf"}).Validate(); err != nil {
			t.Fatalf("Expected nil, got %v", err)
		}
		if err := (Source{Bytes: []byte{1}}).Validate(); err != nil {
			t.Fatalf("Expected nil, got %v", err)
		}
	})
	t.Run("Ambiguous", func(t *testing.T) {
		s := Source{Path: "doc.pdf", Reader: bytes.NewReader([]byte{1}), Size: 1}
		if err := s.Validate(); !errors.Is(err, ErrAmbiguousSource) {
			t.Fatalf("Expected ErrAmbiguousSource, got %v", err)
		}
	})
}

func TestRotatedSize(t *testing.T) {
	cases := []struct {
		rot          int
		w, h         float64
		wantW, wantH float64
	}{
		{0, 600, 800, 600, 800},
		{90, 600, 800, 800, 600},
		{180, 600, 800, 600, 800},
		{270, 600, 800, 800, 600},
		{-90, 600, 800, 800, 600},
		{450, 600, 800, 800, 600},
	}
	for _, c := range cases {
		w, h := RotatedSize(c.w, c.h, c.rot)
		if w != c.wantW || h != c.wantH {
			t.Fatalf("rotation %d: Expected %vx%v, got %vx%v", c.rot, c.wantW, c.wantH, w, h)
		}
	}
}

func TestStreamItemsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	items := make([]TextItem, 100)
	ch := StreamItems(ctx, items)
	<-ch
	cancel()
	// Channel must close once the producer observes cancellation.
	for range ch {
	}
}

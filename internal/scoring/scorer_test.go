package scoring

import (
	"math"
	"sync"
	"testing"
)

func TestScore(t *testing.T) {
	s := New()

	tests := []struct {
		name string
		text string
		want float64
	}{
		{"empty", "", 0},
		{"english", "Hello World", 0.9094},
		{"lowercase", "hello world", 0.9094},
		{"uppercase", "HELLO WORLD", 0.9094},
		{"flag marker", "the answer is flag{x}", Sentinel},
		{"ctf marker uppercase", "CTF{abc}", Sentinel},
		{"mostly digits", "1234567890 abc", 0},
		{"control bytes", "\x00\x01\x02abc", 0},
		{"rare letters", "zzqx", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(tt.text)
			if math.Abs(got-tt.want) > 1e-3 {
				t.Errorf("Score(%q) = %.4f, want %.4f", tt.text, got, tt.want)
			}
		})
	}
}

func TestScoreRange(t *testing.T) {
	s := New(WithCache(&NopCache{}))
	inputs := []string{
		"a",
		"The quick brown fox jumps over the lazy dog",
		"Uryyb Jbeyq",
		"etaoin shrdlu",
		"\xff\xfe\xfd",
	}
	for _, in := range inputs {
		got := s.Score(in)
		if got < 0 || got > 1 {
			t.Errorf("Score(%q) = %f, outside [0,1]", in, got)
		}
	}
}

func TestEnglishOutranksCiphertext(t *testing.T) {
	s := New()
	if s.Score("Hello World") <= s.Score("Uryyb Jbeyq") {
		t.Fatal("expected plaintext to outrank rot13 ciphertext")
	}
}

func TestScoreMemoizes(t *testing.T) {
	cache := NewLRUCache(16)
	s := New(WithCache(cache))

	first := s.Score("hello world")
	second := s.Score("hello world")
	if first != second {
		t.Fatalf("scores differ: %f vs %f", first, second)
	}

	stats := cache.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("expected 1 hit and 1 miss, got %+v", stats)
	}
	if stats.Size != 1 || stats.Capacity != 16 {
		t.Errorf("unexpected size/capacity: %+v", stats)
	}
}

func TestCacheClear(t *testing.T) {
	cache := NewLRUCache(4)
	s := New(WithCache(cache))
	s.Score("one")
	s.Score("two")
	s.Score("one")

	cache.Clear()
	stats := cache.Stats()
	if stats != (CacheStats{Capacity: 4}) {
		t.Errorf("expected empty stats after clear, got %+v", stats)
	}
}

func TestCacheEviction(t *testing.T) {
	cache := NewLRUCache(2)
	s := New(WithCache(cache))
	for _, w := range []string{"alpha", "beta", "gamma", "delta"} {
		s.Score(w)
	}
	if got := cache.Stats().Size; got != 2 {
		t.Errorf("expected size capped at 2, got %d", got)
	}
}

func TestNewLRUCacheDefaultCapacity(t *testing.T) {
	if got := NewLRUCache(0).Stats().Capacity; got != DefaultCacheSize {
		t.Errorf("expected default capacity %d, got %d", DefaultCacheSize, got)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	s := New()
	want := s.Score("attack at dawn")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if got := s.Score("attack at dawn"); got != want {
					t.Errorf("concurrent score mismatch: %f vs %f", got, want)
					return
				}
			}
		}()
	}
	wg.Wait()

	stats := s.Cache().Stats()
	if stats.Hits+stats.Misses != 3201 {
		t.Errorf("expected 3201 lookups, got %d", stats.Hits+stats.Misses)
	}
}

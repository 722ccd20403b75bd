package cache

import (
	"testing"
	"time"
)

func BenchmarkLRU_Put(b *testing.B) {
	c := NewLRU[int64, float64](b.N+1, time.Hour)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Put(int64(i), 0.5)
	}
}

func BenchmarkLRU_Get_Hit(b *testing.B) {
	c := NewLRU[int64, float64](1024, time.Hour)
	for i := int64(0); i < 1024; i++ {
		c.Put(i, 0.5)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get(int64(i % 1024))
	}
}

func BenchmarkLRU_Put_Eviction(b *testing.B) {
	c := NewLRU[int64, float64](256, time.Hour)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Put(int64(i), 0.5)
	}
}

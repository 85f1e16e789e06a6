package test

import (
	"context"
	"fmt"
	"testing"

	"yoroi/client"
	"yoroi/registry"
)

func BenchmarkForwardSerial(b *testing.B) {
	backend := startH2C(b, arithHandler())
	srv, addr := startGateway(b)
	srv.Registry().Register("arith", "Arith", []string{backend})
	c := client.New(addr)
	defer c.Close()

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var reply Reply
		if err := c.Call(ctx, "arith", "/add", &Args{A: i, B: 1}, &reply); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkForwardParallel(b *testing.B) {
	backend := startH2C(b, arithHandler())
	srv, addr := startGateway(b)
	srv.Registry().Register("arith", "Arith", []string{backend})
	c := client.New(addr)
	defer c.Close()

	ctx := context.Background()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			var reply Reply
			if err := c.Call(ctx, "arith", "/add", &Args{A: 1, B: 1}, &reply); err != nil {
				b.Error(err)
				return
			}
		}
	})
}

func BenchmarkResolveContended(b *testing.B) {
	reg := registry.NewServiceRegistry()
	for i := 0; i < 64; i++ {
		reg.Register(fmt.Sprintf("svc-%d", i), "svc", []string{fmt.Sprintf("10.0.0.%d:80", i)})
	}
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			reg.Resolve(fmt.Sprintf("svc-%d", i%64))
			i++
		}
	})
}

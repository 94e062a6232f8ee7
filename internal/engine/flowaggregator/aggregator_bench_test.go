package flowaggregator

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"TrafficGraph/internal/model"
)

var benchTuples []*model.PacketTuple

func init() {
	protos := []string{"TCP", "UDP", "ICMPv4"}
	for i := 0; i < 1<<16; i++ {
		benchTuples = append(benchTuples, &model.PacketTuple{
			SrcAddr:  fmt.Sprintf("10.0.%d.%d", (i>>8)&0x0f, i&0xff),
			DstAddr:  fmt.Sprintf("10.1.0.%d", i%32),
			Protocol: protos[i%len(protos)],
		})
	}
}

func BenchmarkIngest(b *testing.B) {
	fa := New(nil, 0)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		fa.IngestTuple(ctx, benchTuples[i%len(benchTuples)])
	}
}

func BenchmarkIngest_Parallel(b *testing.B) {
	for _, workers := range []int{2, 4, 8} {
		b.Run(fmt.Sprintf("%d_workers", workers), func(b *testing.B) {
			fa := New(nil, 0)
			ctx := context.Background()
			b.ResetTimer()

			var wg sync.WaitGroup
			wg.Add(workers)
			for w := 0; w < workers; w++ {
				go func(w int) {
					defer wg.Done()
					for i := w; i < b.N; i += workers {
						fa.IngestTuple(ctx, benchTuples[i%len(benchTuples)])
					}
				}(w)
			}
			wg.Wait()
		})
	}
}

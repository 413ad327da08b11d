package dedup

import (
	"context"
	"testing"
	"time"

	ds "github.com/wdm0006/dedupjob/pkg/dataset"
)

func BenchmarkLatest(b *testing.B) {
	const rows = 100000
	id := ds.NewIntColumn("id", ds.KindLong, rows)
	upd := ds.NewTimeColumn("update_date", ds.KindTimestamp, rows)
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < rows; i++ {
		id.Set(i, int64((i*7919)%10000))
		upd.Set(i, base.Add(time.Duration(i%977)*time.Minute))
	}
	d, err := ds.FromColumns(id, upd)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		if _, err := (Latest{}).Apply(context.Background(), d); err != nil {
			b.Fatal(err)
		}
	}
}

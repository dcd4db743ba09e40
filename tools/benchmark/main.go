package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sharedcode/soi"
	"github.com/sharedcode/soi/inmemory"
)

func main() {
	count := flag.Int("count", 100000, "Number of items to insert/read/delete")
	writers := flag.Int("writers", 8, "Number of concurrent enqueuing tasks")
	slotLength := flag.Int("slotlength", 100, "Slot length for index nodes")
	flag.Parse()

	soi.ConfigureLogging()
	ctx := context.Background()

	fmt.Printf("Benchmarking in-memory map with %d items, %d writers, slot length %d\n",
		*count, *writers, *slotLength)

	m, err := inmemory.NewMap[int, string](soi.StoreOptions{
		Name:       "benchmark",
		SlotLength: *slotLength,
	})
	if err != nil {
		fmt.Printf("Failed to create map: %v\n", err)
		os.Exit(1)
	}
	defer m.Terminate()

	// 1. Insert
	fmt.Println("Starting Insert benchmark...")
	start := time.Now()

	perWriter := *count / *writers
	tr := soi.NewTaskRunner(ctx, *writers)
	for w := 0; w < *writers; w++ {
		offset := w * perWriter
		tr.Go(func() error {
			for i := 1; i <= perWriter; i++ {
				key := offset + i
				if _, _, err := m.Put(tr.GetContext(), key, fmt.Sprintf("value_%d", key)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := tr.Wait(); err != nil {
		fmt.Printf("Insert failed: %v\n", err)
		os.Exit(1)
	}
	enqueued := time.Since(start)
	if err := m.WaitQuiesced(ctx); err != nil {
		fmt.Printf("Drain failed: %v\n", err)
		os.Exit(1)
	}
	duration := time.Since(start)
	total := *writers * perWriter
	fmt.Printf("Insert: %d items enqueued in %v, applied in %v (%.2f ops/sec)\n",
		total, enqueued, duration, float64(total)/duration.Seconds())

	// 2. Read
	fmt.Println("Starting Read benchmark...")
	start = time.Now()
	for key := 1; key <= total; key++ {
		if _, found, err := m.Get(ctx, key); err != nil || !found {
			fmt.Printf("Failed to read key %d: %v\n", key, err)
			os.Exit(1)
		}
	}
	duration = time.Since(start)
	fmt.Printf("Read: %d items in %v (%.2f ops/sec)\n", total, duration, float64(total)/duration.Seconds())

	// 3. Ordered traversal
	fmt.Println("Starting Traversal benchmark...")
	start = time.Now()
	seen := 0
	prev := 0
	err = m.Ascend(ctx, func(key int, _ string) bool {
		if seen > 0 && key <= prev {
			fmt.Printf("Order violation: %d after %d\n", key, prev)
			os.Exit(1)
		}
		prev = key
		seen++
		return true
	})
	if err != nil {
		fmt.Printf("Traversal failed: %v\n", err)
		os.Exit(1)
	}
	if seen != total {
		fmt.Printf("Traversal saw %d of %d items\n", seen, total)
		os.Exit(1)
	}
	duration = time.Since(start)
	fmt.Printf("Traversal: %d items in %v (%.2f ops/sec)\n", total, duration, float64(total)/duration.Seconds())

	// 4. Delete
	fmt.Println("Starting Delete benchmark...")
	start = time.Now()
	for key := 1; key <= total; key++ {
		if _, _, err := m.Remove(ctx, key); err != nil {
			fmt.Printf("Failed to delete key %d: %v\n", key, err)
			os.Exit(1)
		}
	}
	if err := m.WaitQuiesced(ctx); err != nil {
		fmt.Printf("Drain failed: %v\n", err)
		os.Exit(1)
	}
	duration = time.Since(start)
	fmt.Printf("Delete: %d items in %v (%.2f ops/sec)\n", total, duration, float64(total)/duration.Seconds())

	if !m.IsEmpty() {
		fmt.Printf("Map not empty after deletes: size %d\n", m.Size())
		os.Exit(1)
	}
	fmt.Println("Benchmark complete.")
}

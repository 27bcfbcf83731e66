package chunked_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"gocloud.dev/blob/memblob"

	"github.com/ligustah/blobstream/pkg/chunked"
)

func Example() {
	ctx := context.Background()

	bucket := memblob.OpenBucket(nil)
	defer bucket.Close()

	content := strings.Repeat("0123456789", 100)
	if err := bucket.WriteAll(ctx, "numbers.txt", []byte(content), nil); err != nil {
		log.Fatal(err)
	}

	stream := chunked.Open(ctx, chunked.NewBlobSource(bucket), "numbers.txt",
		chunked.WithChunkSize(64),
		chunked.WithConcurrency(4),
	)
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(len(data), string(data[:10]))
	// Output: 1000 0123456789
}

func ExamplePlan() {
	chunks, err := chunked.Plan(25, 10)
	if err != nil {
		log.Fatal(err)
	}
	for _, c := range chunks {
		fmt.Printf("%d: %d-%d\n", c.Index, c.Start, c.End)
	}
	// Output:
	// 0: 0-9
	// 1: 10-19
	// 2: 20-24
}

package chunked

import (
	"errors"
	"testing"
)

func TestPlan(t *testing.T) {
	tests := []struct {
		name      string
		totalSize int64
		chunkSize int64
		want      []Chunk
	}{
		{
			name:      "empty object",
			totalSize: 0,
			chunkSize: 10,
			want:      []Chunk{},
		},
		{
			name:      "smaller than one chunk",
			totalSize: 3,
			chunkSize: 10,
			want:      []Chunk{{Index: 0, Start: 0, End: 2}},
		},
		{
			name:      "exact multiple",
			totalSize: 20,
			chunkSize: 10,
			want: []Chunk{
				{Index: 0, Start: 0, End: 9},
				{Index: 1, Start: 10, End: 19},
			},
		},
		{
			name:      "short last chunk",
			totalSize: 25,
			chunkSize: 10,
			want: []Chunk{
				{Index: 0, Start: 0, End: 9},
				{Index: 1, Start: 10, End: 19},
				{Index: 2, Start: 20, End: 24},
			},
		},
		{
			name:      "one byte chunks",
			totalSize: 3,
			chunkSize: 1,
			want: []Chunk{
				{Index: 0, Start: 0, End: 0},
				{Index: 1, Start: 1, End: 1},
				{Index: 2, Start: 2, End: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Plan(tt.totalSize, tt.chunkSize)
			if err != nil {
				t.Fatalf("Plan: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d chunks, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPlanPartitions(t *testing.T) {
	for totalSize := int64(0); totalSize <= 200; totalSize++ {
		for _, chunkSize := range []int64{1, 2, 3, 7, 16, 64, 199, 200, 201, 1000} {
			chunks, err := Plan(totalSize, chunkSize)
			if err != nil {
				t.Fatalf("Plan(%d, %d): %v", totalSize, chunkSize, err)
			}

			wantCount := int((totalSize + chunkSize - 1) / chunkSize)
			if len(chunks) != wantCount {
				t.Fatalf("Plan(%d, %d): got %d chunks, want %d", totalSize, chunkSize, len(chunks), wantCount)
			}

			var next int64
			for i, c := range chunks {
				if c.Index != i {
					t.Fatalf("Plan(%d, %d): chunk %d has index %d", totalSize, chunkSize, i, c.Index)
				}
				if c.Start != next {
					t.Fatalf("Plan(%d, %d): chunk %d starts at %d, want %d", totalSize, chunkSize, i, c.Start, next)
				}
				if c.Len() <= 0 || c.Len() > chunkSize {
					t.Fatalf("Plan(%d, %d): chunk %d has length %d", totalSize, chunkSize, i, c.Len())
				}
				if c.End > totalSize-1 {
					t.Fatalf("Plan(%d, %d): chunk %d ends past the object at %d", totalSize, chunkSize, i, c.End)
				}
				next = c.End + 1
			}
			if next != totalSize {
				t.Fatalf("Plan(%d, %d): chunks cover %d bytes", totalSize, chunkSize, next)
			}
		}
	}
}

func TestPlanElevenMiB(t *testing.T) {
	const mib = 1024 * 1024
	chunks, err := Plan(11*mib, 5*mib)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	wantLens := []int64{5 * mib, 5 * mib, 1 * mib}
	if len(chunks) != len(wantLens) {
		t.Fatalf("got %d chunks, want %d", len(chunks), len(wantLens))
	}
	for i, c := range chunks {
		if c.Len() != wantLens[i] {
			t.Errorf("chunk %d length = %d, want %d", i, c.Len(), wantLens[i])
		}
	}
}

func TestPlanInvalid(t *testing.T) {
	tests := []struct {
		name      string
		totalSize int64
		chunkSize int64
	}{
		{"zero chunk size", 10, 0},
		{"negative chunk size", 10, -1},
		{"negative total size", -1, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(tt.totalSize, tt.chunkSize)
			if !errors.Is(err, ErrInvalidPlan) {
				t.Errorf("expected ErrInvalidPlan, got %v", err)
			}
		})
	}
}

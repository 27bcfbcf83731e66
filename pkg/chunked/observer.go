package chunked

import "time"

// Observer receives download and per-chunk events. Methods are called from
// worker and coordinator goroutines and must be safe for concurrent use.
//
// Every ChunkStarted is followed by exactly one ChunkFetched or ChunkFailed.
// A fetch abandoned because the download ended reports ChunkFailed with the
// context error.
type Observer interface {
	DownloadStarted(totalSize int64, totalChunks int)
	ChunkStarted(index int)
	ChunkRetrying(index, attempt int, delay time.Duration, err error)
	ChunkFetched(index int, size int)
	ChunkFailed(index int, err error)
	ChunkEmitted(index int, size int)
	DownloadFinished(err error)
}

type observers []Observer

func (o observers) DownloadStarted(totalSize int64, totalChunks int) {
	for _, obs := range o {
		obs.DownloadStarted(totalSize, totalChunks)
	}
}

func (o observers) ChunkStarted(index int) {
	for _, obs := range o {
		obs.ChunkStarted(index)
	}
}

func (o observers) ChunkRetrying(index, attempt int, delay time.Duration, err error) {
	for _, obs := range o {
		obs.ChunkRetrying(index, attempt, delay, err)
	}
}

func (o observers) ChunkFetched(index int, size int) {
	for _, obs := range o {
		obs.ChunkFetched(index, size)
	}
}

func (o observers) ChunkFailed(index int, err error) {
	for _, obs := range o {
		obs.ChunkFailed(index, err)
	}
}

func (o observers) ChunkEmitted(index int, size int) {
	for _, obs := range o {
		obs.ChunkEmitted(index, size)
	}
}

func (o observers) DownloadFinished(err error) {
	for _, obs := range o {
		obs.DownloadFinished(err)
	}
}

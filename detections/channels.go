package detections

import (
	"image"
	"runtime"
	"sync"
)

type channelProcessor struct {
	width, height int
	numWorkers    int
}

func newChannelProcessor(width, height int) *channelProcessor {
	return &channelProcessor{
		width:      width,
		height:     height,
		numWorkers: runtime.GOMAXPROCS(0),
	}
}

// processChannels writes img as interleaved RGB (NHWC) into buffer,
// splitting rows across workers. img must be width x height.
func (cp *channelProcessor) processChannels(img *image.NRGBA, buffer []int32) {
	workers := cp.numWorkers
	if workers > cp.height {
		workers = cp.height
	}
	if workers < 1 {
		workers = 1
	}
	rowsPerWorker := cp.height / workers

	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		startRow := w * rowsPerWorker
		endRow := startRow + rowsPerWorker
		if w == workers-1 {
			endRow = cp.height
		}

		go func(start, end int) {
			defer wg.Done()
			for y := start; y < end; y++ {
				src := img.Pix[y*img.Stride:]
				dst := buffer[y*cp.width*3:]
				for x := 0; x < cp.width; x++ {
					dst[x*3] = int32(src[x*4])
					dst[x*3+1] = int32(src[x*4+1])
					dst[x*3+2] = int32(src[x*4+2])
				}
			}
		}(startRow, endRow)
	}

	wg.Wait()
}

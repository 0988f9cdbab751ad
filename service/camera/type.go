package camera

import "gocv.io/x/gocv"

// IService is a frame source. LastFrame hands ownership of the returned
// Mat to the caller, who must Close it.
type IService interface {
	Open() error
	LastFrame() (gocv.Mat, error)
	Close() error
}

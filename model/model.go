package model

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Kind classifies an error escaping an inference run so the supervisor
// can pick a restart policy.
type Kind string

const (
	Transient Kind = "transient"
	Fatal     Kind = "fatal"
)

type CustomError struct {
	Processor  string                 `json:"processor"`
	Kind       Kind                   `json:"kind"`
	Inner      error                  `json:"innerError"`
	Message    string                 `json:"message"`
	StackTrace string                 `json:"stackTrace"`
	Misc       map[string]interface{} `json:"misc"`
}

func (e CustomError) Error() string {
	if e.Inner == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, e.Inner.Error())
}

func (e CustomError) Unwrap() error {
	return e.Inner
}

func GenError(proc string, kind Kind, err error, misc map[string]interface{}, messagef string, args ...interface{}) CustomError {
	return CustomError{
		Processor:  proc,
		Kind:       kind,
		Inner:      err,
		Message:    fmt.Sprintf(messagef, args...),
		StackTrace: string(debug.Stack()),
		Misc:       misc,
	}
}

// KindOf returns the kind of the first CustomError in err's chain.
// Unclassified errors are transient.
func KindOf(err error) Kind {
	var custom CustomError
	if errors.As(err, &custom) && custom.Kind != "" {
		return custom.Kind
	}
	return Transient
}

func IsFatal(err error) bool {
	return KindOf(err) == Fatal
}

// Classification is one entry of a parsed classification result.
type Classification struct {
	Label int     `json:"label"`
	Prob  float32 `json:"prob"`
}

// Detection is one entry of a parsed ssd result. Coordinates are in
// pixels of the model input.
type Detection struct {
	Label int     `json:"label"`
	Prob  float32 `json:"prob"`
	XMin  float32 `json:"xmin"`
	YMin  float32 `json:"ymin"`
	XMax  float32 `json:"xmax"`
	YMax  float32 `json:"ymax"`
}

type LoopStats struct {
	Name         string  `json:"name"`
	RunID        string  `json:"runId"`
	Frames       int     `json:"frames"`
	Errors       int     `json:"errors"`
	Uploads      int     `json:"uploads"`
	Publishes    int     `json:"publishes"`
	FPS          int     `json:"fps"`
	Uptime       int64   `json:"uptime"`
	AvgInferTime float64 `json:"avgInferTime"`
	Timestamp    int64   `json:"timestamp"`
}

type PreviewStats struct {
	Name        string `json:"name"`
	Opens       int    `json:"opens"`
	Frames      int    `json:"frames"`
	Dropped     int    `json:"dropped"`
	WriteErrors int    `json:"writeErrors"`
	Uptime      int64  `json:"uptime"`
	Timestamp   int64  `json:"timestamp"`
}

type SupervisorStats struct {
	Runs          int   `json:"runs"`
	Restarts      int   `json:"restarts"`
	FatalErrors   int   `json:"fatalErrors"`
	TransientErrs int   `json:"transientErrors"`
	Uptime        int64 `json:"uptime"`
	Timestamp     int64 `json:"timestamp"`
}

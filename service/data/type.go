package data

import "github.com/khaledhikmat/lens-go/model"

type IService interface {
	NewError(err interface{}) error
	NewLoopStats(stats model.LoopStats) error
	NewPreviewStats(stats model.PreviewStats) error
	NewSupervisorStats(stats model.SupervisorStats) error
}

package config

import "time"

const (
	StorageS3     = "s3"
	StorageFolder = "folder"
	StorageFake   = "fake"

	PublisherMQTT = "mqtt"
	PublisherFake = "fake"

	CameraRandom = "random"
	ModelFake    = "fake"

	// The loop ranks classification results; ssd is only used to draw boxes
	ModelTypeClassification = "classification"
)

type IService interface {
	GetThingName() string
	GetTopic() string

	GetCameraSource() string

	GetModelPath() string
	GetModelType() string
	GetModelInputSize() int
	GetModelGPU() bool
	GetLabelsFile() string
	GetTopN() int

	GetFifoPath() string
	GetPreviewAddr() string

	GetStorageType() string
	GetStorageFolder() string
	GetS3Bucket() string
	GetS3Region() string
	GetS3Prefix() string
	GetJPEGQuality() int

	GetPublisherType() string
	GetMQTTBroker() string
	GetMQTTClientID() string
	GetMQTTQoS() byte
	GetMQTTCAFile() string
	GetMQTTCertFile() string
	GetMQTTKeyFile() string

	GetRestartDelay() time.Duration
	GetRestartMaxDelay() time.Duration
	GetMaxRestarts() int
	GetUploadEvery() int
	GetPublishEvery() int

	GetDataFolder() string
	GetResultsLog() string
	GetModeMaxShutdownTime() time.Duration
}

// Topic builds the per-device inference topic.
func Topic(thingName string) string {
	return "$aws/things/" + thingName + "/infer"
}

package config

import "time"

// NewHardCoded returns built-in defaults that need no environment and no
// cloud: random frames, a fake model, fake publisher and fake storage.
func NewHardCoded() IService {
	return &settingsService{s: Defaults()}
}

func Defaults() Settings {
	return Settings{
		ThingName:           "deeplens-dev",
		CameraSource:        CameraRandom,
		ModelPath:           ModelFake,
		ModelType:           ModelTypeClassification,
		ModelInputSize:      224,
		ModelGPU:            false,
		TopN:                5,
		FifoPath:            "/tmp/results.mjpeg",
		StorageType:         StorageFake,
		StorageFolder:       "./snapshots",
		S3Bucket:            "deeplens-sagemaker-heng",
		S3Region:            "us-east-1",
		S3Prefix:            "DeepLens/",
		JPEGQuality:         90,
		PublisherType:       PublisherFake,
		MQTTBroker:          "tcp://localhost:1883",
		RestartDelay:        15 * time.Second,
		RestartMaxDelay:     5 * time.Minute,
		UploadEvery:         1,
		PublishEvery:        1,
		DataFolder:          "./data",
		ResultsLog:          "results.log",
		ModeMaxShutdownTime: 5 * time.Second,
	}
}

// NewFromSettings wraps explicit settings, mostly for tests.
func NewFromSettings(s Settings) IService {
	return &settingsService{s: s}
}

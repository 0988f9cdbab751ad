package config

import (
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/xerrors"
)

// NewEnv reads the configuration from environment variables.
// AWS_IOT_THING_NAME is required because the publish topic derives from it.
func NewEnv() (IService, error) {
	var s Settings
	if err := envconfig.Process("", &s); err != nil {
		return nil, xerrors.Errorf("error processing env config: %w", err)
	}

	if err := validate(s); err != nil {
		return nil, err
	}

	return &settingsService{s: s}, nil
}

func validate(s Settings) error {
	if s.ThingName == "" {
		return xerrors.New("AWS_IOT_THING_NAME must not be empty")
	}
	if s.ModelInputSize <= 0 {
		return xerrors.Errorf("MODEL_INPUT_SIZE must be positive, got %d", s.ModelInputSize)
	}
	if s.ModelType != ModelTypeClassification {
		return xerrors.Errorf("MODEL_TYPE must be %q, got %q", ModelTypeClassification, s.ModelType)
	}
	if s.TopN <= 0 {
		return xerrors.Errorf("TOP_N must be positive, got %d", s.TopN)
	}
	if s.JPEGQuality < 0 || s.JPEGQuality > 100 {
		return xerrors.Errorf("JPEG_QUALITY must be within [0,100], got %d", s.JPEGQuality)
	}
	if s.MQTTQoS > 2 {
		return xerrors.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", s.MQTTQoS)
	}

	if s.RestartDelay <= 0 {
		return xerrors.Errorf("RESTART_DELAY must be positive, got %s", s.RestartDelay)
	}

	switch s.StorageType {
	case StorageS3, StorageFolder, StorageFake:
	default:
		return xerrors.Errorf("unknown STORAGE_TYPE %q", s.StorageType)
	}

	switch s.PublisherType {
	case PublisherMQTT, PublisherFake:
	default:
		return xerrors.Errorf("unknown PUBLISHER_TYPE %q", s.PublisherType)
	}

	if (s.MQTTCertFile == "") != (s.MQTTKeyFile == "") {
		return xerrors.New("MQTT_CERT_FILE and MQTT_KEY_FILE must be set together")
	}

	return nil
}

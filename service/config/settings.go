package config

import "time"

// Settings is the flat configuration shared by the env and hardcoded
// services. Field tags drive envconfig.
type Settings struct {
	ThingName string `envconfig:"AWS_IOT_THING_NAME" required:"true"`

	CameraSource string `envconfig:"CAMERA_SOURCE" default:"0"`

	ModelPath      string `envconfig:"MODEL_PATH" default:"/opt/awscam/artifacts/mxnet_action_recognition_v2.0_FP16_FUSED.xml"`
	ModelType      string `envconfig:"MODEL_TYPE" default:"classification"`
	ModelInputSize int    `envconfig:"MODEL_INPUT_SIZE" default:"224"`
	ModelGPU       bool   `envconfig:"MODEL_GPU" default:"true"`
	LabelsFile     string `envconfig:"LABELS_FILE"`
	TopN           int    `envconfig:"TOP_N" default:"5"`

	FifoPath    string `envconfig:"FIFO_PATH" default:"/tmp/results.mjpeg"`
	PreviewAddr string `envconfig:"PREVIEW_ADDR"`

	StorageType   string `envconfig:"STORAGE_TYPE" default:"s3"`
	StorageFolder string `envconfig:"STORAGE_FOLDER" default:"./snapshots"`
	S3Bucket      string `envconfig:"S3_BUCKET" default:"deeplens-sagemaker-heng"`
	S3Region      string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Prefix      string `envconfig:"S3_PREFIX" default:"DeepLens/"`
	JPEGQuality   int    `envconfig:"JPEG_QUALITY" default:"90"`

	PublisherType string `envconfig:"PUBLISHER_TYPE" default:"mqtt"`
	MQTTBroker    string `envconfig:"MQTT_BROKER" default:"tcp://localhost:1883"`
	MQTTClientID  string `envconfig:"MQTT_CLIENT_ID"`
	MQTTQoS       byte   `envconfig:"MQTT_QOS" default:"0"`
	MQTTCAFile    string `envconfig:"MQTT_CA_FILE"`
	MQTTCertFile  string `envconfig:"MQTT_CERT_FILE"`
	MQTTKeyFile   string `envconfig:"MQTT_KEY_FILE"`

	RestartDelay    time.Duration `envconfig:"RESTART_DELAY" default:"15s"`
	RestartMaxDelay time.Duration `envconfig:"RESTART_MAX_DELAY" default:"5m"`
	MaxRestarts     int           `envconfig:"MAX_RESTARTS" default:"0"`
	UploadEvery     int           `envconfig:"UPLOAD_EVERY" default:"1"`
	PublishEvery    int           `envconfig:"PUBLISH_EVERY" default:"1"`

	DataFolder          string        `envconfig:"DATA_FOLDER" default:"./data"`
	ResultsLog          string        `envconfig:"RESULTS_LOG" default:"results.log"`
	ModeMaxShutdownTime time.Duration `envconfig:"MODE_MAX_SHUTDOWN" default:"5s"`
}

type settingsService struct {
	s Settings
}

func (svc *settingsService) GetThingName() string { return svc.s.ThingName }
func (svc *settingsService) GetTopic() string     { return Topic(svc.s.ThingName) }

func (svc *settingsService) GetCameraSource() string { return svc.s.CameraSource }

func (svc *settingsService) GetModelPath() string   { return svc.s.ModelPath }
func (svc *settingsService) GetModelType() string   { return svc.s.ModelType }
func (svc *settingsService) GetModelInputSize() int { return svc.s.ModelInputSize }
func (svc *settingsService) GetModelGPU() bool      { return svc.s.ModelGPU }
func (svc *settingsService) GetLabelsFile() string  { return svc.s.LabelsFile }
func (svc *settingsService) GetTopN() int           { return svc.s.TopN }

func (svc *settingsService) GetFifoPath() string    { return svc.s.FifoPath }
func (svc *settingsService) GetPreviewAddr() string { return svc.s.PreviewAddr }

func (svc *settingsService) GetStorageType() string   { return svc.s.StorageType }
func (svc *settingsService) GetStorageFolder() string { return svc.s.StorageFolder }
func (svc *settingsService) GetS3Bucket() string      { return svc.s.S3Bucket }
func (svc *settingsService) GetS3Region() string      { return svc.s.S3Region }
func (svc *settingsService) GetS3Prefix() string      { return svc.s.S3Prefix }
func (svc *settingsService) GetJPEGQuality() int      { return svc.s.JPEGQuality }

func (svc *settingsService) GetPublisherType() string { return svc.s.PublisherType }
func (svc *settingsService) GetMQTTBroker() string    { return svc.s.MQTTBroker }
func (svc *settingsService) GetMQTTQoS() byte         { return svc.s.MQTTQoS }
func (svc *settingsService) GetMQTTCAFile() string    { return svc.s.MQTTCAFile }
func (svc *settingsService) GetMQTTCertFile() string  { return svc.s.MQTTCertFile }
func (svc *settingsService) GetMQTTKeyFile() string   { return svc.s.MQTTKeyFile }

// The thing name doubles as the client id, which is what the IoT broker
// expects for device connections.
func (svc *settingsService) GetMQTTClientID() string {
	if svc.s.MQTTClientID != "" {
		return svc.s.MQTTClientID
	}
	return svc.s.ThingName
}

func (svc *settingsService) GetRestartDelay() time.Duration    { return svc.s.RestartDelay }
func (svc *settingsService) GetRestartMaxDelay() time.Duration { return svc.s.RestartMaxDelay }
func (svc *settingsService) GetMaxRestarts() int               { return svc.s.MaxRestarts }
func (svc *settingsService) GetUploadEvery() int               { return atLeastOne(svc.s.UploadEvery) }
func (svc *settingsService) GetPublishEvery() int              { return atLeastOne(svc.s.PublishEvery) }

func (svc *settingsService) GetDataFolder() string                 { return svc.s.DataFolder }
func (svc *settingsService) GetResultsLog() string                 { return svc.s.ResultsLog }
func (svc *settingsService) GetModeMaxShutdownTime() time.Duration { return svc.s.ModeMaxShutdownTime }

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

package publisher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"log/slog"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/khaledhikmat/lens-go/service/config"
	"github.com/khaledhikmat/lens-go/service/lgr"
	"golang.org/x/xerrors"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
)

type mqttService struct {
	CfgSvc    config.IService
	client    mqtt.Client
	newClient func(*mqtt.ClientOptions) mqtt.Client

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
	connected bool
}

func NewMQTT(cfgSvc config.IService) IService {
	return &mqttService{
		CfgSvc:    cfgSvc,
		newClient: mqtt.NewClient,
		published: make(map[string]uint64),
	}
}

func (svc *mqttService) Connect(ctx context.Context) error {
	if svc.client != nil {
		if svc.client.IsConnected() {
			return nil
		}

		// A client whose connect timed out keeps retrying with our client
		// id. Two clients with one id keep kicking each other off the broker.
		svc.client.Disconnect(0)
		svc.client = nil
	}

	clientID := svc.CfgSvc.GetMQTTClientID()
	if clientID == "" {
		clientID = "lens-" + uuid.NewString()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(svc.CfgSvc.GetMQTTBroker())
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	tlsCfg, err := newTLSConfig(svc.CfgSvc.GetMQTTCAFile(), svc.CfgSvc.GetMQTTCertFile(), svc.CfgSvc.GetMQTTKeyFile())
	if err != nil {
		return err
	}
	if tlsCfg != nil {
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnect = func(_ mqtt.Client) {
		svc.setConnected(true)
		lgr.Logger.Info(
			"mqtt connection established",
			slog.String("broker", svc.CfgSvc.GetMQTTBroker()),
			slog.String("clientId", clientID),
		)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		svc.setConnected(false)
		lgr.Logger.Warn(
			"mqtt connection lost, will auto-reconnect",
			slog.String("broker", svc.CfgSvc.GetMQTTBroker()),
			slog.Any("error", err),
		)
	}

	svc.client = svc.newClient(opts)

	lgr.Logger.Info(
		"connecting to mqtt broker",
		slog.String("broker", svc.CfgSvc.GetMQTTBroker()),
	)

	token := svc.client.Connect()
	if err := waitToken(ctx, token, connectTimeout); err != nil {
		return xerrors.Errorf("mqtt connection failed: %w", err)
	}

	svc.setConnected(true)
	return nil
}

func (svc *mqttService) Publish(ctx context.Context, topic string, payload []byte) error {
	if !svc.isConnected() {
		svc.countError()
		return xerrors.New("mqtt not connected")
	}

	token := svc.client.Publish(topic, svc.CfgSvc.GetMQTTQoS(), false, payload)
	if err := waitToken(ctx, token, publishTimeout); err != nil {
		svc.countError()
		return xerrors.Errorf("publish to %s failed: %w", topic, err)
	}

	svc.mu.Lock()
	svc.published[topic]++
	svc.mu.Unlock()

	lgr.Logger.Debug(
		"message published",
		slog.String("topic", topic),
		slog.Int("size", len(payload)),
	)

	return nil
}

func (svc *mqttService) Disconnect() {
	if svc.client != nil {
		svc.client.Disconnect(250) // 250ms grace period
		svc.client = nil
		lgr.Logger.Info("mqtt disconnected")
	}
	svc.setConnected(false)
}

func (svc *mqttService) Stats() Stats {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	published := make(map[string]uint64, len(svc.published))
	for k, v := range svc.published {
		published[k] = v
	}

	return Stats{
		Connected: svc.connected,
		Published: published,
		Errors:    svc.errors,
	}
}

func (svc *mqttService) setConnected(connected bool) {
	svc.mu.Lock()
	svc.connected = connected
	svc.mu.Unlock()
}

func (svc *mqttService) isConnected() bool {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.connected
}

func (svc *mqttService) countError() {
	svc.mu.Lock()
	svc.errors++
	svc.mu.Unlock()
}

// waitToken waits for a paho token, the context or the timeout, whichever
// comes first.
func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return xerrors.Errorf("timed out after %s", timeout)
	case <-token.Done():
		return token.Error()
	}
}

// newTLSConfig builds the mutual TLS configuration AWS IoT Core expects.
// It returns nil when no certificate material is configured.
func newTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	if caFile == "" && certFile == "" {
		return nil, nil
	}

	cfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, xerrors.Errorf("error reading CA file %s: %w", caFile, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, xerrors.Errorf("no certificates found in CA file %s", caFile)
		}
		cfg.RootCAs = pool
	}

	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, xerrors.Errorf("error loading client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

// Package publish — публикация принятых fix в MQTT (JSON).
package publish

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/TwoToneEddy/gpsTestOnUno/internal/controller"
	"github.com/TwoToneEddy/gpsTestOnUno/internal/logger"
)

// publishTimeout — сколько фоновая горутина ждёт подтверждения публикации
const publishTimeout = 2 * time.Second

// Config — параметры MQTT
type Config struct {
	Broker   string
	Topic    string
	ClientID string
	QoS      byte
	Retain   bool
}

// FixMessage — JSON представление fix
type FixMessage struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	HeightM float64 `json:"height_m"`
	HMSLM   float64 `json:"hmsl_m"`
	HAccM   float64 `json:"h_acc_m"`
	VAccM   float64 `json:"v_acc_m"`
	ITOWMs  uint32  `json:"itow_ms"`
	Forced  bool    `json:"forced"`
	URL     string  `json:"url"`
}

// NewFixMessage переводит fix в сообщение
func NewFixMessage(fix controller.Fix) FixMessage {
	return FixMessage{
		Lat:     fix.LatDeg(),
		Lon:     fix.LonDeg(),
		HeightM: fix.HeightM(),
		HMSLM:   fix.HMSLM(),
		HAccM:   fix.HAccM(),
		VAccM:   fix.VAccM(),
		ITOWMs:  fix.ITOW,
		Forced:  fix.Forced,
		URL:     fix.MapsURL(),
	}
}

// Publisher публикует fix; реализует controller.Listener
type Publisher struct {
	controller.NopListener
	client mqtt.Client
	topic  string
	qos    byte
	retain bool
	// inflight — публикации, ждущие подтверждения брокера
	inflight sync.WaitGroup
}

// Connect подключается к брокеру
func Connect(cfg Config) (*Publisher, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "gps-poll-" + uuid.NewString()
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, token.Error())
	}
	logger.Info("mqtt: connected to %s as %s", cfg.Broker, clientID)
	return NewWithClient(client, cfg), nil
}

// NewWithClient создаёт Publisher поверх готового клиента
func NewWithClient(client mqtt.Client, cfg Config) *Publisher {
	return &Publisher{
		client: client,
		topic:  cfg.Topic,
		qos:    cfg.QoS,
		retain: cfg.Retain,
	}
}

// FixAccepted отправляет fix и сразу возвращается: подтверждение брокера
// ждёт фоновая горутина, чтобы не задерживать цикл управления.
func (p *Publisher) FixAccepted(fix controller.Fix) {
	payload, err := json.Marshal(NewFixMessage(fix))
	if err != nil {
		logger.Error("mqtt: marshal fix: %v", err)
		return
	}
	token := p.client.Publish(p.topic, p.qos, p.retain, payload)
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		p.awaitPublish(token)
	}()
}

func (p *Publisher) awaitPublish(token mqtt.Token) {
	if !token.WaitTimeout(publishTimeout) {
		logger.Error("mqtt: publish to %s timed out", p.topic)
		return
	}
	if err := token.Error(); err != nil {
		logger.Error("mqtt: publish to %s: %v", p.topic, err)
		return
	}
	logger.Debug("mqtt: published fix to %s", p.topic)
}

// Close дожидается незавершённых публикаций и отключается от брокера
func (p *Publisher) Close() {
	p.inflight.Wait()
	p.client.Disconnect(250)
}

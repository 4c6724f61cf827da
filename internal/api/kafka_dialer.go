package api

import (
	"crypto/tls"
	"crypto/x509"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/sirupsen/logrus"
)

// KafkaAuth - параметры подключения к Kafka (SASL/PLAIN и TLS, как у Aiven)
type KafkaAuth struct {
	Username string
	Password string
	CACert   string
}

// security возвращает механизм SASL и настройки TLS.
// При SASL TLS включается всегда; без CA используются системные сертификаты.
func (a KafkaAuth) security(log *logrus.Entry) (sasl.Mechanism, *tls.Config) {
	var mechanism sasl.Mechanism
	if a.Username != "" && a.Password != "" {
		mechanism = plain.Mechanism{
			Username: a.Username,
			Password: a.Password,
		}
		log.WithField("username", a.Username).Info("🔐 Kafka: SASL/PLAIN аутентификация включена")
	}

	if mechanism == nil && a.CACert == "" {
		return nil, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if a.CACert != "" {
		pool := x509.NewCertPool()
		if pool.AppendCertsFromPEM([]byte(a.CACert)) {
			tlsConfig.RootCAs = pool
			log.Info("🔒 Kafka: TLS с CA сертификатом включен")
		} else {
			log.Warn("⚠️ Kafka: не удалось распарсить CA сертификат, используем системные сертификаты")
		}
	} else {
		log.Info("🔒 Kafka: TLS включен (системные сертификаты)")
	}
	return mechanism, tlsConfig
}

// CreateKafkaDialer создает dialer для чтения (Reader)
func CreateKafkaDialer(auth KafkaAuth, log *logrus.Entry) *kafka.Dialer {
	mechanism, tlsConfig := auth.security(log)
	return &kafka.Dialer{
		Timeout:       10 * time.Second,
		DualStack:     true,
		SASLMechanism: mechanism,
		TLS:           tlsConfig,
	}
}

// CreateKafkaTransport создает транспорт для записи (Writer)
func CreateKafkaTransport(auth KafkaAuth, log *logrus.Entry) *kafka.Transport {
	mechanism, tlsConfig := auth.security(log)
	return &kafka.Transport{
		DialTimeout: 10 * time.Second,
		SASL:        mechanism,
		TLS:         tlsConfig,
	}
}

// ParseKafkaBrokers парсит строку с брокерами (может быть через запятую)
func ParseKafkaBrokers(brokers string) []string {
	if brokers == "" {
		return []string{}
	}
	// Убираем пробелы и разбиваем по запятой
	brokerList := strings.Split(strings.ReplaceAll(brokers, " ", ""), ",")
	var result []string
	for _, broker := range brokerList {
		if broker != "" {
			result = append(result, broker)
		}
	}
	return result
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "shareit_booking", cfg.DBConfig.DBName)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaConfig.Brokers)
	assert.Equal(t, 3, cfg.TxMaxRetries)
}

func TestFromViperReadsEnvironment(t *testing.T) {
	t.Setenv("BOOKING_SERVICE_PORT", "9090")
	t.Setenv("BOOKING_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("BOOKING_TX_MAX_RETRIES", "5")
	t.Setenv("BOOKING_DB_HOST", "db.internal")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaConfig.Brokers)
	assert.Equal(t, 5, cfg.TxMaxRetries)
	assert.Equal(t, "db.internal", cfg.DBConfig.Host)
}

func TestFromViperRejectsNegativeRetries(t *testing.T) {
	t.Setenv("BOOKING_TX_MAX_RETRIES", "-1")

	_, err := FromViper(newViper())
	assert.Error(t, err)
}

func TestFromViperRequiresBrokersWhenKafkaEnabled(t *testing.T) {
	t.Setenv("BOOKING_KAFKA_BROKERS", " , ")

	_, err := FromViper(newViper())
	assert.Error(t, err)

	t.Setenv("BOOKING_KAFKA_ENABLED", "false")
	_, err = FromViper(newViper())
	assert.NoError(t, err)
}

func TestFromViperValidatesFields(t *testing.T) {
	cases := map[string][2]string{
		"malformed broker": {"BOOKING_KAFKA_BROKERS", "no-port"},
		"non-numeric port": {"BOOKING_DB_PORT", "pg"},
		"unknown ssl mode": {"BOOKING_DB_SSLMODE", "sometimes"},
		"too many retries": {"BOOKING_TX_MAX_RETRIES", "50"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(env[0], env[1])
			_, err := FromViper(newViper())
			assert.Error(t, err)
		})
	}
}
